package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotkeep-dev/lotkeep/internal/asset"
	"github.com/lotkeep-dev/lotkeep/internal/lots"
	"github.com/lotkeep-dev/lotkeep/internal/model"
	"github.com/lotkeep-dev/lotkeep/internal/store"
)

func day(n int) time.Time {
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

type mockChain struct {
	height   uint64
	epoch    uint64
	statuses map[string]*ChainResult
	dates    map[string]time.Time
	balances map[string]uint64 // "address:asset"
	rewards  map[string]*EpochReward
	swaps    map[string]*SwapOutcome
}

func newMockChain() *mockChain {
	return &mockChain{
		statuses: map[string]*ChainResult{},
		dates:    map[string]time.Time{},
		balances: map[string]uint64{},
		rewards:  map[string]*EpochReward{},
		swaps:    map[string]*SwapOutcome{},
	}
}

func (c *mockChain) CurrentHeight(context.Context) (uint64, error) { return c.height, nil }
func (c *mockChain) CurrentEpoch(context.Context) (uint64, error)  { return c.epoch, nil }

func (c *mockChain) Confirm(_ context.Context, signature string) (*ChainResult, error) {
	return c.statuses[signature], nil
}

func (c *mockChain) SignatureDate(_ context.Context, signature string) (time.Time, error) {
	return c.dates[signature], nil
}

func (c *mockChain) BlockDate(_ context.Context, _ uint64) (time.Time, error) {
	return day(10), nil
}

func (c *mockChain) Balance(_ context.Context, address, asset string) (uint64, error) {
	return c.balances[address+":"+asset], nil
}

func (c *mockChain) Reward(_ context.Context, address string, epoch uint64) (*EpochReward, error) {
	return c.rewards[fmt.Sprintf("%s:%d", address, epoch)], nil
}

func (c *mockChain) Swap(_ context.Context, signature, _, _, _ string) (*SwapOutcome, error) {
	return c.swaps[signature], nil
}

type mockOracle struct {
	price decimal.Decimal
}

func (o *mockOracle) CurrentPrice(context.Context, string) (decimal.Decimal, error) {
	return o.price, nil
}

func (o *mockOracle) HistoricalPrice(context.Context, string, time.Time) (decimal.Decimal, error) {
	return o.price, nil
}

type mockExchange struct {
	deposits    map[string]*DepositFact
	withdrawals map[string]*WithdrawalFact
	noHistory   bool
}

func (e *mockExchange) DepositCompleted(_ context.Context, tag string) (*DepositFact, error) {
	if e.noHistory {
		return nil, ErrNoDepositHistory
	}
	return e.deposits[tag], nil
}

func (e *mockExchange) WithdrawalCompleted(_ context.Context, tag string) (*WithdrawalFact, error) {
	return e.withdrawals[tag], nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func trackedAccount(address, assetSym string, ls ...model.Lot) model.TrackedAccount {
	acct := model.TrackedAccount{Address: address, Asset: assetSym, Description: "test", Lots: ls}
	acct.LastUpdateBalance = acct.LotTotal()
	return acct
}

func solLot(number uint64, dayN int, price string, amount uint64) model.Lot {
	return model.Lot{
		Number: number,
		Acquisition: model.Acquisition{
			When:  day(dayN),
			Price: decimal.RequireFromString(price),
			Kind:  model.AcquireTransaction,
		},
		Amount: amount,
	}
}

func newReconciler(s *store.Store, chain *mockChain, exchanges map[string]ExchangeClient) *Reconciler {
	return New(s, asset.Default(), chain, &mockOracle{price: decimal.NewFromInt(2)}, exchanges)
}

// A pending transfer past its last-valid block height with no chain fact is
// expired: removing it leaves both accounts untouched.
func TestTransferExpiry(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddAccount(trackedAccount("addr1", "SOL", solLot(1, 0, "1.00", 100))))
	require.NoError(t, s.AddAccount(trackedAccount("addr2", "SOL", solLot(2, 0, "1.00", 40))))

	amount := uint64(50)
	require.NoError(t, s.RecordTransfer(model.PendingTransfer{
		Signature: "sig-t1", FromAddress: "addr1", FromAsset: "SOL",
		ToAddress: "addr2", ToAsset: "SOL", Amount: &amount,
		LastValidBlockHeight: 1000, SelectionMethod: lots.FIFO.String(),
	}))

	chain := newMockChain()
	chain.height = 1001
	r := newReconciler(s, chain, nil)

	require.NoError(t, r.SyncPendingTransfers(context.Background()))

	open, err := s.PendingTransfers()
	require.NoError(t, err)
	assert.Empty(t, open, "expired transfer is cancelled")

	src, _ := s.GetAccount("addr1", "SOL")
	dest, _ := s.GetAccount("addr2", "SOL")
	assert.Equal(t, uint64(100), src.LastUpdateBalance)
	assert.Equal(t, uint64(40), dest.LastUpdateBalance)
}

func TestTransferNotYetExpired(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddAccount(trackedAccount("addr1", "SOL", solLot(1, 0, "1.00", 100))))

	amount := uint64(50)
	require.NoError(t, s.RecordTransfer(model.PendingTransfer{
		Signature: "sig-t1", FromAddress: "addr1", FromAsset: "SOL",
		ToAddress: "addr2", ToAsset: "SOL", Amount: &amount,
		LastValidBlockHeight: 1000, SelectionMethod: lots.FIFO.String(),
	}))

	chain := newMockChain()
	chain.height = 1000 // not yet past the budget
	r := newReconciler(s, chain, nil)

	require.NoError(t, r.SyncPendingTransfers(context.Background()))
	open, err := s.PendingTransfers()
	require.NoError(t, err)
	assert.Len(t, open, 1, "still within its block budget")
}

func TestTransferConfirmAndFail(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddAccount(trackedAccount("addr1", "SOL", solLot(1, 0, "1.00", 100))))

	amount := uint64(60)
	require.NoError(t, s.RecordTransfer(model.PendingTransfer{
		Signature: "sig-ok", FromAddress: "addr1", FromAsset: "SOL",
		ToAddress: "addr2", ToAsset: "SOL", Amount: &amount,
		LastValidBlockHeight: 1000, SelectionMethod: lots.FIFO.String(),
	}))
	failAmount := uint64(10)
	require.NoError(t, s.RecordTransfer(model.PendingTransfer{
		Signature: "sig-bad", FromAddress: "addr1", FromAsset: "SOL",
		ToAddress: "addr3", ToAsset: "SOL", Amount: &failAmount,
		LastValidBlockHeight: 1000, SelectionMethod: lots.FIFO.String(),
	}))

	chain := newMockChain()
	chain.height = 900
	chain.statuses["sig-ok"] = &ChainResult{}
	chain.dates["sig-ok"] = day(5)
	chain.statuses["sig-bad"] = &ChainResult{Failed: true, Reason: "blockhash expired"}
	r := newReconciler(s, chain, nil)

	require.NoError(t, r.SyncPendingTransfers(context.Background()))

	open, err := s.PendingTransfers()
	require.NoError(t, err)
	assert.Empty(t, open)

	dest, err := s.GetAccount("addr2", "SOL")
	require.NoError(t, err)
	assert.Equal(t, uint64(60), dest.LastUpdateBalance)

	_, err = s.GetAccount("addr3", "SOL")
	assert.ErrorIs(t, err, store.ErrNotFound, "failed transfer mutates nothing")
}

func TestSwapConfirm(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddAccount(trackedAccount("addr1", "SOL", solLot(1, 0, "1.00", 1000))))

	require.NoError(t, s.RecordSwap(model.PendingSwap{
		Signature: "sig-s1", Address: "addr1",
		FromAsset: "SOL", FromPrice: decimal.RequireFromString("2.00"),
		ToAsset: "USDC", ToPrice: decimal.RequireFromString("1.00"),
		LastValidBlockHeight: 1000, SelectionMethod: lots.FIFO.String(),
	}))

	chain := newMockChain()
	chain.height = 500
	chain.statuses["sig-s1"] = &ChainResult{}
	chain.swaps["sig-s1"] = &SwapOutcome{When: day(20), FromAmount: 400, ToAmount: 800}
	r := newReconciler(s, chain, nil)

	require.NoError(t, r.SyncPendingSwaps(context.Background()))

	from, err := s.GetAccount("addr1", "SOL")
	require.NoError(t, err)
	assert.Equal(t, uint64(600), from.LastUpdateBalance)

	to, err := s.GetAccount("addr1", "USDC")
	require.NoError(t, err)
	assert.Equal(t, uint64(800), to.LastUpdateBalance)
}

func TestDepositConfirmViaExchangeFact(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordDeposit(model.PendingDeposit{
		Signature: "sig-d1", Exchange: "kraken", Tag: "dep-1",
		ToAddress: "kraken:deposit", Asset: "SOL", Amount: 300,
		LastValidBlockHeight: 1000,
	}))

	chain := newMockChain()
	chain.height = 500
	exch := &mockExchange{deposits: map[string]*DepositFact{
		"dep-1": {When: day(7), Amount: 300},
	}}
	r := newReconciler(s, chain, map[string]ExchangeClient{"kraken": exch})

	require.NoError(t, r.SyncDeposits(context.Background()))

	acct, err := s.GetAccount("kraken:deposit", "SOL")
	require.NoError(t, err)
	assert.Equal(t, uint64(300), acct.LastUpdateBalance)
	require.Len(t, acct.Lots, 1)
	assert.Equal(t, day(7), acct.Lots[0].Acquisition.When)
	assert.True(t, acct.Lots[0].Acquisition.Price.Equal(decimal.NewFromInt(2)),
		"priced by the oracle at the deposit date")
}

func TestDepositConfirmAmountMismatch(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordDeposit(model.PendingDeposit{
		Signature: "sig-d1", Exchange: "kraken", Tag: "dep-1",
		ToAddress: "kraken:deposit", Asset: "SOL", Amount: 300,
		LastValidBlockHeight: 1000,
	}))

	chain := newMockChain()
	chain.height = 500
	// Exchange reports less than was recorded; the recorded amount wins.
	exch := &mockExchange{deposits: map[string]*DepositFact{
		"dep-1": {When: day(7), Amount: 290},
	}}
	r := newReconciler(s, chain, map[string]ExchangeClient{"kraken": exch})

	require.NoError(t, r.SyncDeposits(context.Background()))

	acct, err := s.GetAccount("kraken:deposit", "SOL")
	require.NoError(t, err)
	assert.Equal(t, uint64(300), acct.LastUpdateBalance)

	pending, err := s.PendingDeposits()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDepositExpiry(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordDeposit(model.PendingDeposit{
		Signature: "sig-d1", Exchange: "kraken", Tag: "dep-1",
		ToAddress: "kraken:deposit", Asset: "SOL", Amount: 300,
		LastValidBlockHeight: 1000,
	}))

	chain := newMockChain()
	chain.height = 1001
	exch := &mockExchange{deposits: map[string]*DepositFact{}}
	r := newReconciler(s, chain, map[string]ExchangeClient{"kraken": exch})

	require.NoError(t, r.SyncDeposits(context.Background()))
	open, err := s.PendingDeposits()
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestBlindDepositFiatOnly(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordDeposit(model.PendingDeposit{
		Signature: "sig-d1", Exchange: "shadow", Tag: "dep-1",
		ToAddress: "shadow:deposit", Asset: "USDC", Amount: 5_000_000,
		LastValidBlockHeight: 1000,
	}))

	chain := newMockChain()
	chain.height = 100
	chain.dates["sig-d1"] = day(3)
	exch := &mockExchange{noHistory: true}
	r := newReconciler(s, chain, map[string]ExchangeClient{"shadow": exch})

	require.NoError(t, r.SyncDeposits(context.Background()))

	acct, err := s.GetAccount("shadow:deposit", "USDC")
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000_000), acct.LastUpdateBalance)
	assert.True(t, acct.Lots[0].Acquisition.Price.Equal(decimal.NewFromInt(1)),
		"fiat-fungible assets are priced at par")
}

func TestBlindDepositNonFiatIsFatal(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordDeposit(model.PendingDeposit{
		Signature: "sig-d1", Exchange: "shadow", Tag: "dep-1",
		ToAddress: "shadow:deposit", Asset: "SOL", Amount: 100,
		LastValidBlockHeight: 1000,
	}))

	chain := newMockChain()
	exch := &mockExchange{noHistory: true}
	r := newReconciler(s, chain, map[string]ExchangeClient{"shadow": exch})

	err := r.SyncDeposits(context.Background())
	var inv *model.InvariantError
	require.ErrorAs(t, err, &inv, "blind non-fiat deposits lose cost basis")
}

func TestWithdrawalConfirm(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddAccount(trackedAccount("kraken:main", "SOL", solLot(1, 0, "1.00", 200))))
	require.NoError(t, s.RecordWithdrawal(model.PendingWithdrawal{
		Tag: "wd-1", Exchange: "kraken", FromAddress: "kraken:main",
		ToAddress: "wallet1", Asset: "SOL", Amount: 120, Fee: 20,
	}))

	chain := newMockChain()
	exch := &mockExchange{withdrawals: map[string]*WithdrawalFact{
		"wd-1": {When: day(9), TxRef: "tx-abc"},
	}}
	r := newReconciler(s, chain, map[string]ExchangeClient{"kraken": exch})

	require.NoError(t, r.SyncWithdrawals(context.Background()))

	dest, err := s.GetAccount("wallet1", "SOL")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), dest.LastUpdateBalance)
}

func TestSyncAccountsEpochReward(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddAccount(trackedAccount("addr1", "SOL", solLot(1, 0, "1.00", 1000))))

	chain := newMockChain()
	chain.height = 100
	chain.epoch = 5
	chain.rewards["addr1:3"] = &EpochReward{Amount: 50, Slot: 4321}
	chain.balances["addr1:SOL"] = 1050
	r := newReconciler(s, chain, nil)

	require.NoError(t, r.SyncAccounts(context.Background(), SyncOptions{}))

	acct, err := s.GetAccount("addr1", "SOL")
	require.NoError(t, err)
	assert.Equal(t, uint64(1050), acct.LastUpdateBalance)
	require.NoError(t, acct.AssertLotBalance())

	var reward *model.Lot
	for i := range acct.Lots {
		if acct.Lots[i].Acquisition.Kind == model.AcquireEpochReward {
			reward = &acct.Lots[i]
		}
	}
	require.NotNil(t, reward)
	assert.Equal(t, uint64(50), reward.Amount)
	assert.Equal(t, uint64(4321), reward.Acquisition.Slot)
	assert.Equal(t, uint64(3), reward.Acquisition.Epoch)
	assert.Equal(t, uint64(4), acct.LastUpdateEpoch, "high-water mark advances to the last scanned epoch")
}

func TestSyncAccountsUnexplainedSurplus(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddAccount(trackedAccount("addr1", "SOL", solLot(1, 0, "1.00", 1_000_000_000))))

	chain := newMockChain()
	chain.epoch = 5
	chain.balances["addr1:SOL"] = 3_000_000_000
	r := newReconciler(s, chain, nil)

	require.NoError(t, r.SyncAccounts(context.Background(), SyncOptions{}))

	acct, err := s.GetAccount("addr1", "SOL")
	require.NoError(t, err)
	assert.Equal(t, uint64(3_000_000_000), acct.LastUpdateBalance)
	require.Len(t, acct.Lots, 2)
	assert.Equal(t, model.AcquireUnknown, acct.Lots[1].Acquisition.Kind)
	require.NoError(t, acct.AssertLotBalance())
}

func TestSyncAccountsShortfallOnlyWarns(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddAccount(trackedAccount("addr1", "SOL", solLot(1, 0, "1.00", 1000))))

	chain := newMockChain()
	chain.epoch = 5
	chain.balances["addr1:SOL"] = 400
	r := newReconciler(s, chain, nil)

	require.NoError(t, r.SyncAccounts(context.Background(), SyncOptions{}))

	acct, err := s.GetAccount("addr1", "SOL")
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), acct.LastUpdateBalance, "shortfalls are never auto-applied")
}

func TestNoSyncReconciliation(t *testing.T) {
	s := newTestStore(t)
	acct := trackedAccount("manual1", "SOL",
		solLot(1, 0, "3.00", 100),
		solLot(2, 5, "1.00", 100),
	)
	acct.NoSync = true
	require.NoError(t, s.AddAccount(acct))

	chain := newMockChain()
	chain.epoch = 5
	chain.balances["manual1:SOL"] = 260
	r := newReconciler(s, chain, nil)

	// Skipped without the explicit opt-in.
	require.NoError(t, r.SyncAccounts(context.Background(), SyncOptions{}))
	got, _ := s.GetAccount("manual1", "SOL")
	assert.Equal(t, uint64(200), got.LastUpdateBalance)

	require.NoError(t, r.SyncAccounts(context.Background(), SyncOptions{ReconcileNoSync: true}))
	got, err := s.GetAccount("manual1", "SOL")
	require.NoError(t, err)
	assert.Equal(t, uint64(260), got.LastUpdateBalance)
	require.NoError(t, got.AssertLotBalance())

	lowest := got.Lot(2)
	require.NotNil(t, lowest)
	assert.Equal(t, uint64(160), lowest.Amount, "surplus folds into the lowest-basis lot")
	assert.Equal(t, day(5), lowest.Acquisition.When, "acquisition untouched")
}

func TestSweepCleanup(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetSweepAccount(model.SweepAccount{Address: "sweepDest", Authority: "/keys/sweep.json"}))
	require.NoError(t, s.AddTransitorySweepAddress("tmp1"))
	require.NoError(t, s.AddAccount(trackedAccount("tmp1", "SOL"))) // empty tracked account

	chain := newMockChain()
	chain.balances["tmp1:SOL"] = 0
	r := newReconciler(s, chain, nil)

	require.NoError(t, r.SyncSweep(context.Background()))

	addrs, err := s.TransitorySweepAddresses()
	require.NoError(t, err)
	assert.Empty(t, addrs)
	_, err = s.GetAccount("tmp1", "SOL")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSweepVanishedNonEmptyIsFatal(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetSweepAccount(model.SweepAccount{Address: "sweepDest"}))
	require.NoError(t, s.AddTransitorySweepAddress("tmp1"))
	require.NoError(t, s.AddAccount(trackedAccount("tmp1", "SOL", solLot(1, 0, "1.00", 100))))

	chain := newMockChain() // balance 0: account vanished on chain
	r := newReconciler(s, chain, nil)

	err := r.SyncSweep(context.Background())
	var inv *model.InvariantError
	require.ErrorAs(t, err, &inv)
}

type mockSubmitter struct {
	signature string
	lastValid uint64
}

func (m *mockSubmitter) SubmitMerge(_ context.Context, _, _ string) (string, uint64, error) {
	return m.signature, m.lastValid, nil
}

func TestSweepSubmitsTransfer(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetSweepAccount(model.SweepAccount{Address: "sweepDest"}))
	require.NoError(t, s.AddTransitorySweepAddress("tmp1"))
	require.NoError(t, s.AddAccount(trackedAccount("tmp1", "SOL", solLot(1, 0, "1.00", 100))))

	chain := newMockChain()
	chain.balances["tmp1:SOL"] = 100
	r := newReconciler(s, chain, nil)

	require.NoError(t, r.SyncSweepWith(context.Background(), &mockSubmitter{signature: "sig-sweep", lastValid: 2000}))

	open, err := s.PendingTransfers()
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "sig-sweep", open[0].Signature)
	assert.Equal(t, "sweepDest", open[0].ToAddress)
	assert.Nil(t, open[0].Amount, "sweep moves everything; amount resolves at confirmation")
}
