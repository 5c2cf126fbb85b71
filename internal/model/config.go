package model

import "github.com/shopspring/decimal"

// TaxRate holds the percentages applied to realized income and gains.
type TaxRate struct {
	Income    decimal.Decimal `json:"income"`
	ShortTerm decimal.Decimal `json:"shortTerm"`
	LongTerm  decimal.Decimal `json:"longTerm"`
}

// SweepAccount is the configured destination for balance consolidation.
type SweepAccount struct {
	Address string `json:"address"`
	// Authority is a reference to the signing authority (keypair path);
	// the ledger never reads it, callers do.
	Authority string `json:"authority"`
}
