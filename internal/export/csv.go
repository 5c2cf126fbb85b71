package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lotkeep-dev/lotkeep/internal/asset"
	"github.com/lotkeep-dev/lotkeep/internal/gains"
	"github.com/lotkeep-dev/lotkeep/internal/model"
)

// Header is the CSV header for disposed-lot exports.
const Header = "lot_number,asset,acquired_date,acquired_price,acquisition_kind,amount,disposed_date,disposed_price,disposal_kind,basis,proceeds,gain,long_term,signature"

const (
	numFields    = 14
	dateFormat   = "2006-01-02"
	colLotNumber = 0
	colAsset     = 1
	colAcqDate   = 2
	colAcqPrice  = 3
	colAcqKind   = 4
	colAmount    = 5
	colDispDate  = 6
	colDispPrice = 7
	colDispKind  = 8
	colBasis     = 9
	colProceeds  = 10
	colGain      = 11
	colLongTerm  = 12
	colSignature = 13
)

// WriteDisposed writes disposal history to w as CSV, header included. Rows
// come out in the order given, which for store history is disposal order.
func WriteDisposed(w io.Writer, assets *asset.Registry, disposed []model.DisposedLot) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, dl := range disposed {
		a, err := assets.MustGet(dl.Asset)
		if err != nil {
			return err
		}
		if err := cw.Write(marshalDisposed(a, dl)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

func marshalDisposed(a model.Asset, dl model.DisposedLot) []string {
	basis := gains.DisposedBasis(a, dl)
	proceeds := a.UIAmount(dl.Amount).Mul(dl.Price)
	gain := gains.DisposedGain(a, dl)

	row := make([]string, numFields)
	row[colLotNumber] = strconv.FormatUint(dl.LotNumber, 10)
	row[colAsset] = dl.Asset
	row[colAcqDate] = dl.Acquisition.When.Format(dateFormat)
	row[colAcqPrice] = dl.Acquisition.Price.String()
	row[colAcqKind] = string(dl.Acquisition.Kind)
	row[colAmount] = a.UIAmount(dl.Amount).String()
	row[colDispDate] = dl.When.Format(dateFormat)
	row[colDispPrice] = dl.Price.String()
	row[colDispKind] = string(dl.Kind)
	row[colBasis] = basis.StringFixed(2)
	row[colProceeds] = proceeds.StringFixed(2)
	row[colGain] = gain.StringFixed(2)
	row[colLongTerm] = strconv.FormatBool(gains.IsLongTerm(dl.Acquisition.When, dl.When))
	row[colSignature] = dl.Signature
	return row
}
