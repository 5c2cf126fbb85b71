package export

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/lotkeep-dev/lotkeep/internal/asset"
	"github.com/lotkeep-dev/lotkeep/internal/gains"
	"github.com/lotkeep-dev/lotkeep/internal/model"
)

// AssetReport is the realized-gain summary for one asset.
type AssetReport struct {
	Asset   string
	Summary gains.Summary
	Tax     decimal.Decimal
}

// BuildReport groups disposal history by asset and summarizes realized
// gains and estimated tax. A non-zero year keeps only disposals from that
// calendar year. Results are sorted by asset symbol.
func BuildReport(assets *asset.Registry, rate model.TaxRate, disposed []model.DisposedLot, year int) ([]AssetReport, error) {
	byAsset := make(map[string][]model.DisposedLot)
	for _, dl := range disposed {
		if year != 0 && dl.When.Year() != year {
			continue
		}
		byAsset[dl.Asset] = append(byAsset[dl.Asset], dl)
	}

	var reports []AssetReport
	for symbol, dls := range byAsset {
		a, err := assets.MustGet(symbol)
		if err != nil {
			return nil, err
		}
		summary := gains.Summarize(a, dls)
		reports = append(reports, AssetReport{
			Asset:   a.Symbol,
			Summary: summary,
			Tax:     summary.Tax(rate),
		})
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].Asset < reports[j].Asset })
	return reports, nil
}
