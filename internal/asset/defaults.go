package asset

import "github.com/lotkeep-dev/lotkeep/internal/model"

// Default returns the built-in asset set: the native token plus the wrapped
// tokens the ledger knows how to track.
func Default() *Registry {
	return NewRegistry([]model.Asset{
		{Symbol: "SOL", Decimals: 9},
		{Symbol: "wSOL", Mint: "So11111111111111111111111111111111111111112", Decimals: 9},
		{Symbol: "mSOL", Mint: "mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So", Decimals: 9},
		{Symbol: "jitoSOL", Mint: "J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn", Decimals: 9},
		{Symbol: "USDC", Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6, FiatFungible: true},
		{Symbol: "USDT", Mint: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", Decimals: 6, FiatFungible: true},
	})
}
