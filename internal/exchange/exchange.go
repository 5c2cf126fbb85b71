package exchange

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/lotkeep-dev/lotkeep/internal/config"
	"github.com/lotkeep-dev/lotkeep/internal/reconcile"
)

// Client reports exchange completion facts from report files under
// <dataDir>/exchange/. Deposits come from <name>-deposits.csv and
// withdrawals from <name>-withdrawals.csv, both exported from the exchange
// by the owner. A missing file or row means the operation is still in
// flight.
type Client struct {
	name             string
	dir              string
	noDepositHistory bool
}

const dateFormat = "2006-01-02"

// New creates a Client for one configured exchange.
func New(dataDir string, cfg config.ExchangeConfig) *Client {
	return &Client{
		name:             cfg.Name,
		dir:              filepath.Join(dataDir, "exchange"),
		noDepositHistory: cfg.NoDepositHistory,
	}
}

// DepositCompleted returns the completion fact for the tagged deposit, or
// nil while it is still in flight.
func (c *Client) DepositCompleted(_ context.Context, tag string) (*reconcile.DepositFact, error) {
	if c.noDepositHistory {
		return nil, reconcile.ErrNoDepositHistory
	}

	rows, err := c.readReport(c.name + "-deposits.csv")
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row[0] != tag {
			continue
		}
		when, err := time.Parse(dateFormat, row[1])
		if err != nil {
			return nil, fmt.Errorf("deposit %s: parsing date %q: %w", tag, row[1], err)
		}
		amount := uint64(0)
		if len(row) > 2 && row[2] != "" {
			amount, err = strconv.ParseUint(row[2], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("deposit %s: parsing amount %q: %w", tag, row[2], err)
			}
		}
		return &reconcile.DepositFact{When: when, Amount: amount}, nil
	}
	return nil, nil
}

// WithdrawalCompleted returns the completion fact for the tagged
// withdrawal, or nil while it is still in flight.
func (c *Client) WithdrawalCompleted(_ context.Context, tag string) (*reconcile.WithdrawalFact, error) {
	rows, err := c.readReport(c.name + "-withdrawals.csv")
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row[0] != tag {
			continue
		}
		when, err := time.Parse(dateFormat, row[1])
		if err != nil {
			return nil, fmt.Errorf("withdrawal %s: parsing date %q: %w", tag, row[1], err)
		}
		fact := &reconcile.WithdrawalFact{When: when}
		if len(row) > 2 {
			fact.TxRef = row[2]
		}
		return fact, nil
	}
	return nil, nil
}

func (c *Client) readReport(name string) ([][]string, error) {
	f, err := os.Open(filepath.Join(c.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if len(records) <= 1 {
		return nil, nil
	}
	return records[1:], nil
}
