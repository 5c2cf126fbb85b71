package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotkeep-dev/lotkeep/internal/asset"
	"github.com/lotkeep-dev/lotkeep/internal/model"
)

func day(n int) time.Time {
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func disposedSOL(dayAcq, dayDisp int, acqPrice, dispPrice string, amount uint64) model.DisposedLot {
	return model.DisposedLot{
		LotNumber: 1,
		Asset:     "SOL",
		Acquisition: model.Acquisition{
			When:  day(dayAcq),
			Price: decimal.RequireFromString(acqPrice),
			Kind:  model.AcquireTransaction,
		},
		Amount: amount,
		When:   day(dayDisp),
		Price:  decimal.RequireFromString(dispPrice),
		Kind:   model.DisposeSale,
	}
}

func TestWriteDisposed(t *testing.T) {
	var buf bytes.Buffer
	disposed := []model.DisposedLot{
		// 2 SOL bought at $100, sold at $120 after 400 days.
		disposedSOL(0, 400, "100", "120", 2_000_000_000),
	}
	require.NoError(t, WriteDisposed(&buf, asset.Default(), disposed))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, Header, lines[0])

	fields := strings.Split(lines[1], ",")
	require.Len(t, fields, numFields)
	assert.Equal(t, "1", fields[colLotNumber])
	assert.Equal(t, "SOL", fields[colAsset])
	assert.Equal(t, "2025-01-01", fields[colAcqDate])
	assert.Equal(t, "2", fields[colAmount])
	assert.Equal(t, "2026-02-05", fields[colDispDate])
	assert.Equal(t, "200.00", fields[colBasis])
	assert.Equal(t, "240.00", fields[colProceeds])
	assert.Equal(t, "40.00", fields[colGain])
	assert.Equal(t, "true", fields[colLongTerm])
}

func TestWriteDisposedUnknownAsset(t *testing.T) {
	var buf bytes.Buffer
	dl := disposedSOL(0, 10, "100", "120", 1)
	dl.Asset = "DOGE"
	err := WriteDisposed(&buf, asset.Default(), []model.DisposedLot{dl})
	require.Error(t, err)
}

func TestBuildReport(t *testing.T) {
	rate := model.TaxRate{
		Income:    decimal.NewFromInt(30),
		ShortTerm: decimal.NewFromInt(30),
		LongTerm:  decimal.NewFromInt(15),
	}
	disposed := []model.DisposedLot{
		disposedSOL(0, 400, "100", "120", 2_000_000_000),   // long-term gain 40
		disposedSOL(390, 400, "110", "120", 1_000_000_000), // short-term gain 10
	}

	reports, err := BuildReport(asset.Default(), rate, disposed, 0)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	r := reports[0]
	assert.Equal(t, "SOL", r.Asset)
	assert.Equal(t, uint64(3_000_000_000), r.Summary.Amount)
	assert.True(t, r.Summary.LongTermGain.Equal(decimal.NewFromInt(40)), r.Summary.LongTermGain.String())
	assert.True(t, r.Summary.ShortTermGain.Equal(decimal.NewFromInt(10)), r.Summary.ShortTermGain.String())
	// 40 * 15% + 10 * 30%
	assert.True(t, r.Tax.Equal(decimal.NewFromInt(9)), r.Tax.String())
}

func TestBuildReportYearFilter(t *testing.T) {
	rate := model.TaxRate{
		Income:    decimal.NewFromInt(30),
		ShortTerm: decimal.NewFromInt(30),
		LongTerm:  decimal.NewFromInt(15),
	}
	disposed := []model.DisposedLot{
		disposedSOL(0, 100, "100", "120", 1_000_000_000), // 2025
		disposedSOL(0, 400, "100", "120", 2_000_000_000), // 2026
	}

	reports, err := BuildReport(asset.Default(), rate, disposed, 2026)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, uint64(2_000_000_000), reports[0].Summary.Amount)
}
