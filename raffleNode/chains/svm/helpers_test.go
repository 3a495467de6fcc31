package svm

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

// signedTransfer builds a real signed transfer from payer to to.
func signedTransfer(t *testing.T, payer solana.PrivateKey, to solana.PublicKey, lamports uint64) *solana.Transaction {
	t.Helper()
	ix := system.NewTransferInstruction(lamports, payer.PublicKey(), to).Build()
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{1, 2, 3}, solana.TransactionPayer(payer.PublicKey()))
	require.NoError(t, err)
	_, err = tx.Sign(func(k solana.PublicKey) *solana.PrivateKey {
		if k.Equals(payer.PublicKey()) {
			return &payer
		}
		return nil
	})
	require.NoError(t, err)
	return tx
}

// txResultJSON renders a getTransaction result for tx with the given balance
// snapshots, in the account order of the compiled message.
func txResultJSON(t *testing.T, tx *solana.Transaction, pre, post []uint64, txErr any) json.RawMessage {
	t.Helper()
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)

	out, err := json.Marshal(map[string]any{
		"slot":        4242,
		"blockTime":   nil,
		"transaction": []string{base64.StdEncoding.EncodeToString(raw), "base64"},
		"meta": map[string]any{
			"err":          txErr,
			"fee":          5000,
			"preBalances":  pre,
			"postBalances": post,
			"loadedAddresses": map[string]any{
				"readonly": []string{},
				"writable": []string{},
			},
		},
		"version": "legacy",
	})
	require.NoError(t, err)
	return out
}

func decodeTxResult(t *testing.T, raw json.RawMessage) *rpc.GetTransactionResult {
	t.Helper()
	var res rpc.GetTransactionResult
	require.NoError(t, json.Unmarshal(raw, &res))
	return &res
}

// fakeRPC is a minimal Solana JSON-RPC endpoint.
type fakeRPC struct {
	mu       sync.Mutex
	results  map[string]any // method -> result
	failing  map[string]bool
	calls    map[string]int
	received []string
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{
		results: map[string]any{"getHealth": "ok"},
		failing: map[string]bool{},
		calls:   map[string]int{},
	}
}

func (f *fakeRPC) set(method string, result any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[method] = result
}

func (f *fakeRPC) fail(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[method] = true
}

func (f *fakeRPC) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeRPC) serve(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			ID     any    `json:"id"`
			Method string `json:"method"`
		}
		_ = json.Unmarshal(body, &req)

		f.mu.Lock()
		f.calls[req.Method]++
		f.received = append(f.received, req.Method)
		failing := f.failing[req.Method]
		result, ok := f.results[req.Method]
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch {
		case failing:
			resp["error"] = map[string]any{"code": -32000, "message": "node is behind"}
		case ok:
			resp["result"] = result
		default:
			resp["result"] = nil
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}
