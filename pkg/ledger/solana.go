package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mr-tron/base58"
)

// SolanaLedger talks to a Solana-style JSON-RPC endpoint over HTTP. It never
// opens a subscription (websocket) connection — publish confirmation is a
// plain poll loop, matching the spec's "no subscription model" requirement.
type SolanaLedger struct {
	endpoint   string
	httpClient *http.Client
	signerKey  []byte // ed25519 seed used to sign outgoing memo transactions
}

// NewSolanaLedger builds a client against endpoint (a Solana JSON-RPC URL).
// signerKey is the raw secret key bytes for the writer account; the ledger
// never logs or returns it.
func NewSolanaLedger(endpoint string, signerKey []byte) *SolanaLedger {
	return &SolanaLedger{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: publishTimeout,
		},
		signerKey: signerKey,
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (l *SolanaLedger) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("encoding rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// The publish path must disable response caching on the transport.
	req.Header.Set("Cache-Control", "no-store")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading rpc response: %w", err)
	}

	var parsed rpcResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("decoding rpc response: %w", err)
	}
	if parsed.Error != nil {
		return fmt.Errorf("rpc %s: %s (code %d)", method, parsed.Error.Message, parsed.Error.Code)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(parsed.Result, out)
}

// RecentMemos fetches the writer's recent confirmed signatures and their
// attached memo, filtering to finalized-commitment entries.
func (l *SolanaLedger) RecentMemos(ctx context.Context, writer string, limit int) ([]RecentMemo, error) {
	var sigResult []struct {
		Signature          string `json:"signature"`
		ConfirmationStatus string `json:"confirmationStatus"`
		Memo               string `json:"memo"`
		Err                interface{} `json:"err"`
	}
	params := []interface{}{writer, map[string]interface{}{"limit": limit, "commitment": "finalized"}}
	if err := l.call(ctx, "getSignaturesForAddress", params, &sigResult); err != nil {
		return nil, fmt.Errorf("fetching recent memos: %w", err)
	}

	memos := make([]RecentMemo, 0, len(sigResult))
	for _, s := range sigResult {
		if s.Err != nil || s.ConfirmationStatus != "finalized" {
			continue
		}
		memos = append(memos, RecentMemo{
			Signature:          s.Signature,
			ConfirmationStatus: s.ConfirmationStatus,
			Memo:               s.Memo,
		})
	}
	return memos, nil
}

// PublishMemo sends payload as a memo transaction from writer and polls
// getSignatureStatuses every pollInterval until the transaction reaches
// finalized, an error status is observed, or publishTimeout elapses.
func (l *SolanaLedger) PublishMemo(ctx context.Context, writer string, payload []byte) (PublishResult, error) {
	var sendResult string
	params := []interface{}{base64.StdEncoding.EncodeToString(payload), map[string]interface{}{"encoding": "base64"}}
	if err := l.call(ctx, "sendTransaction", params, &sendResult); err != nil {
		return PublishResult{}, fmt.Errorf("publishing memo: %w", err)
	}

	deadline := time.Now().Add(publishTimeout)
	for {
		var statusResult struct {
			Value []*struct {
				Slot               uint64      `json:"slot"`
				ConfirmationStatus string      `json:"confirmationStatus"`
				Err                interface{} `json:"err"`
			} `json:"value"`
		}
		statusParams := []interface{}{[]string{sendResult}}
		if err := l.call(ctx, "getSignatureStatuses", statusParams, &statusResult); err != nil {
			return PublishResult{}, fmt.Errorf("polling signature status: %w", err)
		}

		if len(statusResult.Value) == 1 && statusResult.Value[0] != nil {
			st := statusResult.Value[0]
			if st.Err != nil {
				return PublishResult{}, fmt.Errorf("transaction failed: %v", st.Err)
			}
			if st.ConfirmationStatus == "finalized" {
				return PublishResult{Signature: sendResult, Slot: st.Slot}, nil
			}
		}

		if time.Now().After(deadline) {
			return PublishResult{}, fmt.Errorf("timed out waiting for finalized confirmation of %s", sendResult)
		}

		select {
		case <-ctx.Done():
			return PublishResult{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// ExternalEntropy reads the most recent finalized blockhash and returns it
// base58-encoded as 32 bytes of entropy, or "" if the ledger has none yet.
func (l *SolanaLedger) ExternalEntropy(ctx context.Context) (string, error) {
	var result struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	params := []interface{}{map[string]interface{}{"commitment": "finalized"}}
	if err := l.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return "", fmt.Errorf("fetching external entropy: %w", err)
	}
	if result.Value.Blockhash == "" {
		return "", nil
	}
	// Solana blockhashes are already base58; round-trip through raw bytes to
	// guarantee exactly 32 bytes before handing it back as entropy.
	raw, err := base58.Decode(result.Value.Blockhash)
	if err != nil || len(raw) != 32 {
		return "", nil
	}
	return result.Value.Blockhash, nil
}

// AccountBalance returns writer's lamport balance at finalized commitment.
func (l *SolanaLedger) AccountBalance(ctx context.Context, writer string) (int64, error) {
	var result struct {
		Value int64 `json:"value"`
	}
	params := []interface{}{writer, map[string]interface{}{"commitment": "finalized"}}
	if err := l.call(ctx, "getBalance", params, &result); err != nil {
		return 0, fmt.Errorf("fetching account balance: %w", err)
	}
	return result.Value, nil
}
