package model

import "github.com/shopspring/decimal"

// PendingDeposit tracks funds sent toward an exchange deposit address,
// awaiting chain finality.
type PendingDeposit struct {
	Signature string `json:"signature"`
	Exchange  string `json:"exchange"`
	Tag       string `json:"tag"` // exchange deposit reference
	// Transfer descriptor.
	FromAddress          string `json:"fromAddress"`
	ToAddress            string `json:"toAddress"`
	Asset                string `json:"asset"`
	Amount               uint64 `json:"amount"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// PendingWithdrawal tracks a requested exchange withdrawal. The backing lots
// are selected at request time but disposal is deferred to confirmation.
type PendingWithdrawal struct {
	Tag         string `json:"tag"` // exchange withdrawal reference
	Exchange    string `json:"exchange"`
	FromAddress string `json:"fromAddress"` // tracked exchange account
	ToAddress   string `json:"toAddress"`
	Asset       string `json:"asset"`
	Amount      uint64 `json:"amount"` // includes the fee
	Fee         uint64 `json:"fee"`
	// Lots backing the withdrawal, detached from the source account at
	// request time.
	Lots []Lot `json:"lots"`
}

// PendingTransfer tracks an address-to-address or wrap/unwrap move.
type PendingTransfer struct {
	Signature   string `json:"signature"`
	FromAddress string `json:"fromAddress"`
	FromAsset   string `json:"fromAsset"`
	ToAddress   string `json:"toAddress"`
	ToAsset     string `json:"toAsset"`
	// Amount is nil for sweep-everything transfers; the realized amount is
	// only known at confirmation.
	Amount               *uint64  `json:"amount,omitempty"`
	LastValidBlockHeight uint64   `json:"lastValidBlockHeight"`
	SelectionMethod      string   `json:"selectionMethod"`
	LotNumbers           []uint64 `json:"lotNumbers,omitempty"`
}

// PendingSwap tracks an asset-to-asset conversion on one address.
type PendingSwap struct {
	Signature            string          `json:"signature"`
	Address              string          `json:"address"`
	FromAsset            string          `json:"fromAsset"`
	FromPrice            decimal.Decimal `json:"fromPrice"`
	ToAsset              string          `json:"toAsset"`
	ToPrice              decimal.Decimal `json:"toPrice"`
	LastValidBlockHeight uint64          `json:"lastValidBlockHeight"`
	SelectionMethod      string          `json:"selectionMethod"`
	LotNumbers           []uint64        `json:"lotNumbers,omitempty"`
}
