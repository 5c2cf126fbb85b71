package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotkeep-dev/lotkeep/internal/asset"
)

// rpcServer serves canned JSON-RPC results keyed by method name.
func rpcServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int    `json:"id"`
			Method string `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, ok := results[req.Method]
		if !ok {
			t.Errorf("unexpected rpc method %s", req.Method)
			result = "null"
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + result + `}`))
	}))
}

func newTestClient(t *testing.T, results map[string]string) *Client {
	srv := rpcServer(t, results)
	t.Cleanup(srv.Close)
	return New(srv.URL, 5*time.Second, asset.Default())
}

func TestCurrentHeightAndEpoch(t *testing.T) {
	c := newTestClient(t, map[string]string{
		"getBlockHeight": `12345`,
		"getEpochInfo":   `{"epoch":678}`,
	})

	height, err := c.CurrentHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(12345), height)

	epoch, err := c.CurrentEpoch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(678), epoch)
}

func TestConfirm(t *testing.T) {
	cases := []struct {
		name   string
		value  string
		failed bool
		nilRes bool
	}{
		{name: "unknown", value: `{"value":[null]}`, nilRes: true},
		{name: "processed only", value: `{"value":[{"err":null,"confirmationStatus":"confirmed"}]}`, nilRes: true},
		{name: "finalized success", value: `{"value":[{"err":null,"confirmationStatus":"finalized"}]}`},
		{name: "failed", value: `{"value":[{"err":{"InstructionError":[0,"Custom"]},"confirmationStatus":"finalized"}]}`, failed: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, map[string]string{"getSignatureStatuses": tc.value})
			result, err := c.Confirm(context.Background(), "sig")
			require.NoError(t, err)
			if tc.nilRes {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.Equal(t, tc.failed, result.Failed)
			if tc.failed {
				assert.NotEmpty(t, result.Reason)
			}
		})
	}
}

func TestSignatureDate(t *testing.T) {
	// 2025-06-15T13:45:00Z, expected to floor to midnight.
	c := newTestClient(t, map[string]string{
		"getTransaction": `{"blockTime":1749995100,"slot":1}`,
	})

	when, err := c.SignatureDate(context.Background(), "sig")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), when)
}

func TestBalanceNative(t *testing.T) {
	c := newTestClient(t, map[string]string{
		"getBalance": `{"context":{"slot":1},"value":2500000000}`,
	})

	balance, err := c.Balance(context.Background(), "addr1", "SOL")
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000_000), balance)
}

func TestBalanceToken(t *testing.T) {
	c := newTestClient(t, map[string]string{
		"getTokenAccountsByOwner": `{"value":[
			{"account":{"data":{"parsed":{"info":{"tokenAmount":{"amount":"1000000"}}}}}},
			{"account":{"data":{"parsed":{"info":{"tokenAmount":{"amount":"250000"}}}}}}
		]}`,
	})

	balance, err := c.Balance(context.Background(), "addr1", "USDC")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_250_000), balance)
}

func TestReward(t *testing.T) {
	c := newTestClient(t, map[string]string{
		"getInflationReward": `[{"amount":54321,"effectiveSlot":999,"epoch":10}]`,
	})

	reward, err := c.Reward(context.Background(), "addr1", 10)
	require.NoError(t, err)
	require.NotNil(t, reward)
	assert.Equal(t, uint64(54321), reward.Amount)
	assert.Equal(t, uint64(999), reward.Slot)
}

func TestRewardNone(t *testing.T) {
	c := newTestClient(t, map[string]string{
		"getInflationReward": `[null]`,
	})

	reward, err := c.Reward(context.Background(), "addr1", 10)
	require.NoError(t, err)
	assert.Nil(t, reward)
}

func TestSwap(t *testing.T) {
	// addr1 pays the fee, sends 1 SOL, receives 150 USDC.
	c := newTestClient(t, map[string]string{
		"getTransaction": `{
			"blockTime":1749995100,
			"meta":{
				"fee":5000,
				"preBalances":[2000005000,1],
				"postBalances":[1000000000,1],
				"preTokenBalances":[{"mint":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v","owner":"addr1","uiTokenAmount":{"amount":"0"}}],
				"postTokenBalances":[{"mint":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v","owner":"addr1","uiTokenAmount":{"amount":"150000000"}}]
			},
			"transaction":{"message":{"accountKeys":[{"pubkey":"addr1"},{"pubkey":"pool"}]}}
		}`,
	})

	outcome, err := c.Swap(context.Background(), "sig", "addr1", "SOL", "USDC")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), outcome.FromAmount, "fee excluded from the traded amount")
	assert.Equal(t, uint64(150_000_000), outcome.ToAmount)
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), outcome.When)
}

func TestRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`))
	}))
	t.Cleanup(srv.Close)
	c := New(srv.URL, 5*time.Second, asset.Default())

	_, err := c.CurrentHeight(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "method not found")
}
