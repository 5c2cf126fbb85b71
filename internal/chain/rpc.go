package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/lotkeep-dev/lotkeep/internal/asset"
	"github.com/lotkeep-dev/lotkeep/internal/reconcile"
)

// Client talks JSON-RPC to a chain node. It implements
// reconcile.ChainClient.
type Client struct {
	url    string
	http   *http.Client
	assets *asset.Registry

	nextID int
}

// New creates a Client against the given RPC endpoint.
func New(url string, timeout time.Duration, assets *asset.Registry) *Client {
	return &Client{
		url:    url,
		http:   &http.Client{Timeout: timeout},
		assets: assets,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	c.nextID++
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: reading response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: http %d", method, resp.StatusCode)
	}

	var envelope struct {
		Error  *rpcError       `json:"error"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("%s: decoding response: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("%s: %w", method, envelope.Error)
	}
	if result == nil {
		return nil
	}
	return json.Unmarshal(envelope.Result, result)
}

// CurrentHeight returns the current block height.
func (c *Client) CurrentHeight(ctx context.Context) (uint64, error) {
	var height uint64
	if err := c.call(ctx, "getBlockHeight", nil, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// CurrentEpoch returns the current epoch.
func (c *Client) CurrentEpoch(ctx context.Context) (uint64, error) {
	var info struct {
		Epoch uint64 `json:"epoch"`
	}
	if err := c.call(ctx, "getEpochInfo", nil, &info); err != nil {
		return 0, err
	}
	return info.Epoch, nil
}

// Confirm returns the terminal status of a signature, or nil while the
// outcome is still unknown.
func (c *Client) Confirm(ctx context.Context, signature string) (*reconcile.ChainResult, error) {
	var result struct {
		Value []*struct {
			Err                any    `json:"err"`
			ConfirmationStatus string `json:"confirmationStatus"`
		} `json:"value"`
	}
	params := []any{
		[]string{signature},
		map[string]any{"searchTransactionHistory": true},
	}
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		return nil, nil
	}

	status := result.Value[0]
	if status.Err != nil {
		reason, _ := json.Marshal(status.Err)
		return &reconcile.ChainResult{Failed: true, Reason: string(reason)}, nil
	}
	if status.ConfirmationStatus != "finalized" {
		// Landed but not yet rooted; treat as still unknown.
		return nil, nil
	}
	return &reconcile.ChainResult{}, nil
}

// SignatureDate returns the block date of a finalized transaction.
func (c *Client) SignatureDate(ctx context.Context, signature string) (time.Time, error) {
	var tx struct {
		BlockTime *int64 `json:"blockTime"`
	}
	params := []any{
		signature,
		map[string]any{"transactionDetails": "none", "maxSupportedTransactionVersion": 0},
	}
	if err := c.call(ctx, "getTransaction", params, &tx); err != nil {
		return time.Time{}, err
	}
	if tx.BlockTime == nil {
		return time.Time{}, fmt.Errorf("transaction %s has no block time", signature)
	}
	return midnight(*tx.BlockTime), nil
}

// BlockDate returns the date of a slot.
func (c *Client) BlockDate(ctx context.Context, slot uint64) (time.Time, error) {
	var blockTime int64
	if err := c.call(ctx, "getBlockTime", []any{slot}, &blockTime); err != nil {
		return time.Time{}, err
	}
	return midnight(blockTime), nil
}

// Balance returns the smallest-unit balance of address in the given asset.
// The native token reads the account lamports; wrapped tokens sum the
// owner's token accounts for the mint.
func (c *Client) Balance(ctx context.Context, address, assetSym string) (uint64, error) {
	a, err := c.assets.MustGet(assetSym)
	if err != nil {
		return 0, err
	}

	if a.Native() {
		var result struct {
			Value uint64 `json:"value"`
		}
		if err := c.call(ctx, "getBalance", []any{address}, &result); err != nil {
			return 0, err
		}
		return result.Value, nil
	}

	var result struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							TokenAmount struct {
								Amount string `json:"amount"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}
	params := []any{
		address,
		map[string]any{"mint": a.Mint},
		map[string]any{"encoding": "jsonParsed"},
	}
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return 0, err
	}

	var total uint64
	for _, v := range result.Value {
		amount, err := strconv.ParseUint(v.Account.Data.Parsed.Info.TokenAmount.Amount, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing token amount: %w", err)
		}
		total += amount
	}
	return total, nil
}

// Reward returns the inflation reward credited to address at epoch, or nil.
func (c *Client) Reward(ctx context.Context, address string, epoch uint64) (*reconcile.EpochReward, error) {
	var result []*struct {
		Amount        uint64 `json:"amount"`
		EffectiveSlot uint64 `json:"effectiveSlot"`
	}
	params := []any{
		[]string{address},
		map[string]any{"epoch": epoch},
	}
	if err := c.call(ctx, "getInflationReward", params, &result); err != nil {
		return nil, err
	}
	if len(result) == 0 || result[0] == nil {
		return nil, nil
	}
	return &reconcile.EpochReward{
		Amount: result[0].Amount,
		Slot:   result[0].EffectiveSlot,
	}, nil
}

// Swap returns the realized balance changes of a confirmed swap
// transaction for the swapping address.
func (c *Client) Swap(ctx context.Context, signature, address, fromAsset, toAsset string) (*reconcile.SwapOutcome, error) {
	tx, err := c.transaction(ctx, signature)
	if err != nil {
		return nil, err
	}
	if tx.BlockTime == nil {
		return nil, fmt.Errorf("transaction %s has no block time", signature)
	}

	fromAmount, err := c.balanceDelta(tx, address, fromAsset)
	if err != nil {
		return nil, err
	}
	toAmount, err := c.balanceDelta(tx, address, toAsset)
	if err != nil {
		return nil, err
	}
	if fromAmount >= 0 || toAmount <= 0 {
		return nil, fmt.Errorf("transaction %s is not a %s to %s swap for %s",
			signature, fromAsset, toAsset, address)
	}

	return &reconcile.SwapOutcome{
		When:       midnight(*tx.BlockTime),
		FromAmount: uint64(-fromAmount),
		ToAmount:   uint64(toAmount),
	}, nil
}

type parsedTransaction struct {
	BlockTime *int64 `json:"blockTime"`
	Meta      struct {
		Fee               uint64         `json:"fee"`
		PreBalances       []uint64       `json:"preBalances"`
		PostBalances      []uint64       `json:"postBalances"`
		PreTokenBalances  []tokenBalance `json:"preTokenBalances"`
		PostTokenBalances []tokenBalance `json:"postTokenBalances"`
	} `json:"meta"`
	Transaction struct {
		Message struct {
			AccountKeys []struct {
				Pubkey string `json:"pubkey"`
			} `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
}

type tokenBalance struct {
	Mint          string `json:"mint"`
	Owner         string `json:"owner"`
	UITokenAmount struct {
		Amount string `json:"amount"`
	} `json:"uiTokenAmount"`
}

func (c *Client) transaction(ctx context.Context, signature string) (*parsedTransaction, error) {
	var tx parsedTransaction
	params := []any{
		signature,
		map[string]any{"encoding": "jsonParsed", "maxSupportedTransactionVersion": 0},
	}
	if err := c.call(ctx, "getTransaction", params, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// balanceDelta computes the signed post-minus-pre change for address in
// assetSym. The native balance excludes the transaction fee so a swap's
// from-side reflects only the traded amount.
func (c *Client) balanceDelta(tx *parsedTransaction, address, assetSym string) (int64, error) {
	a, err := c.assets.MustGet(assetSym)
	if err != nil {
		return 0, err
	}

	if a.Native() {
		for i, key := range tx.Transaction.Message.AccountKeys {
			if key.Pubkey != address {
				continue
			}
			if i >= len(tx.Meta.PreBalances) || i >= len(tx.Meta.PostBalances) {
				return 0, fmt.Errorf("balance arrays do not cover account %d", i)
			}
			delta := int64(tx.Meta.PostBalances[i]) - int64(tx.Meta.PreBalances[i])
			if i == 0 {
				// The fee payer's first-account delta includes the fee.
				delta += int64(tx.Meta.Fee)
			}
			return delta, nil
		}
		return 0, fmt.Errorf("address %s not in transaction", address)
	}

	pre := sumTokenBalances(tx.Meta.PreTokenBalances, address, a.Mint)
	post := sumTokenBalances(tx.Meta.PostTokenBalances, address, a.Mint)
	return int64(post) - int64(pre), nil
}

func sumTokenBalances(balances []tokenBalance, owner, mint string) uint64 {
	var total uint64
	for _, b := range balances {
		if b.Owner != owner || b.Mint != mint {
			continue
		}
		amount, err := strconv.ParseUint(b.UITokenAmount.Amount, 10, 64)
		if err != nil {
			continue
		}
		total += amount
	}
	return total
}

func midnight(unix int64) time.Time {
	t := time.Unix(unix, 0).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
