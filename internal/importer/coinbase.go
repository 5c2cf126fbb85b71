package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lotkeep-dev/lotkeep/internal/model"
)

// CoinbaseParser parses Coinbase fill report CSV exports.
type CoinbaseParser struct{}

const (
	coinbaseNumFields  = 11
	coinbaseColOrderID = 1
	coinbaseColProduct = 2
	coinbaseColSide    = 3
	coinbaseColDate    = 4
	coinbaseColSize    = 5
	coinbaseColPrice   = 7
	coinbaseColFee     = 8
)

// Format returns the parser name.
func (p *CoinbaseParser) Format() string { return "coinbase" }

// Parse reads a Coinbase fill report and returns Fills.
func (p *CoinbaseParser) Parse(r io.Reader) ([]model.Fill, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = coinbaseNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading coinbase CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var fills []model.Fill
	for i, rec := range records[1:] {
		fill, err := parseCoinbaseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		fills = append(fills, fill)
	}
	return fills, nil
}

func parseCoinbaseRow(rec []string) (model.Fill, error) {
	when, err := time.Parse(time.RFC3339, rec[coinbaseColDate])
	if err != nil {
		return model.Fill{}, fmt.Errorf("parsing date %q: %w", rec[coinbaseColDate], err)
	}

	// Products are pairs like SOL-USD; the base asset is what was traded.
	product := rec[coinbaseColProduct]
	asset, _, ok := strings.Cut(product, "-")
	if !ok {
		return model.Fill{}, fmt.Errorf("parsing product %q: expected BASE-QUOTE", product)
	}

	side := model.FillSide(strings.ToLower(rec[coinbaseColSide]))
	if side != model.FillBuy && side != model.FillSell {
		return model.Fill{}, fmt.Errorf("parsing side %q: expected BUY or SELL", rec[coinbaseColSide])
	}

	amount, err := decimal.NewFromString(rec[coinbaseColSize])
	if err != nil {
		return model.Fill{}, fmt.Errorf("parsing size %q: %w", rec[coinbaseColSize], err)
	}
	price, err := decimal.NewFromString(rec[coinbaseColPrice])
	if err != nil {
		return model.Fill{}, fmt.Errorf("parsing price %q: %w", rec[coinbaseColPrice], err)
	}
	fee, err := decimal.NewFromString(rec[coinbaseColFee])
	if err != nil {
		return model.Fill{}, fmt.Errorf("parsing fee %q: %w", rec[coinbaseColFee], err)
	}

	return model.Fill{
		When:     when.UTC(),
		Exchange: "coinbase",
		OrderID:  rec[coinbaseColOrderID],
		Side:     side,
		Asset:    asset,
		Amount:   amount,
		Price:    price,
		Fee:      fee,
	}, nil
}
