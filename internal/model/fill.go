package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fill is a single executed exchange order, as reported by the exchange's
// fill export. Amounts are in UI units; conversion to smallest units happens
// when the fill is applied to an account.
type Fill struct {
	When     time.Time
	Exchange string
	OrderID  string
	Side     FillSide
	Asset    string
	Amount   decimal.Decimal
	Price    decimal.Decimal
	Fee      decimal.Decimal
}

// FillSide is the direction of a fill.
type FillSide string

const (
	FillBuy  FillSide = "buy"
	FillSell FillSide = "sell"
)
