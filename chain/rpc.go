package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jonboulle/clockwork"

	"github.com/bitfsorg/libairdrop-go/retry"
)

// RPCClient is a JSON-RPC 2.0 client for an EVM node or wallet bridge that
// holds the signing key. Transactions are submitted with eth_sendTransaction,
// so the wallet assigns the nonce, prices gas and may ask the user to
// confirm; a declined request surfaces as *Error with CodeUserRejected.
type RPCClient struct {
	url    string
	user   string
	pass   string
	from   common.Address
	client *http.Client
	nextID atomic.Int64

	log    *slog.Logger
	retry  retry.Config
	poller receiptPoller
}

// RPCOptions tunes an RPCClient. Zero values select defaults.
type RPCOptions struct {
	Logger         *slog.Logger
	Clock          clockwork.Clock
	PollInterval   time.Duration
	ReceiptTimeout time.Duration
	Retry          retry.Config
	HTTPClient     *http.Client
}

// rpcRequest represents a JSON-RPC 2.0 request payload.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// rpcResponse represents a JSON-RPC 2.0 response payload.
type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// rpcError represents an error object returned by the JSON-RPC server.
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// httpStatusError carries a non-2xx HTTP status so retry can classify it.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.status, e.body)
}

func (e *httpStatusError) StatusCode() int { return e.status }

func (e *httpStatusError) Unwrap() error { return ErrConnectionFailed }

// Compile-time interface check.
var _ Client = (*RPCClient)(nil)

// NewRPCClient creates a client that submits transactions from the given
// wallet account.
func NewRPCClient(cfg RPCConfig, from common.Address, opts RPCOptions) *RPCClient {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.ReceiptTimeout == 0 {
		opts.ReceiptTimeout = DefaultReceiptTimeout
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultConfig()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		}
	}
	return &RPCClient{
		url:    cfg.URL,
		user:   cfg.User,
		pass:   cfg.Password,
		from:   from,
		client: opts.HTTPClient,
		log:    opts.Logger,
		retry:  opts.Retry,
		poller: receiptPoller{
			log:      opts.Logger,
			clock:    opts.Clock,
			interval: opts.PollInterval,
			timeout:  opts.ReceiptTimeout,
		},
	}
}

// Call invokes a JSON-RPC method. If params is nil an empty array is sent;
// if result is nil the result is discarded.
//
// Transport failures wrap ErrConnectionFailed, undecodable responses wrap
// ErrInvalidResponse, and error objects returned by the server become
// *Error carrying the server's code.
func (c *RPCClient) Call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("chain: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chain: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrConnectionFailed, err)
	}

	var rpcResp rpcResponse
	decodeErr := json.Unmarshal(respBody, &rpcResp)

	// Some nodes answer RPC errors with a 5xx status; prefer the error object when present.
	if decodeErr == nil && rpcResp.Error != nil {
		return &Error{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := respBody
		if len(snippet) > 1024 {
			snippet = snippet[:1024]
		}
		return &httpStatusError{status: resp.StatusCode, body: string(snippet)}
	}
	if decodeErr != nil {
		return fmt.Errorf("%w: decode response: %w", ErrInvalidResponse, decodeErr)
	}
	if rpcResp.ID != reqBody.ID {
		return fmt.Errorf("%w: response ID mismatch: expected %d, got %d",
			ErrInvalidResponse, reqBody.ID, rpcResp.ID)
	}
	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("%w: unmarshal result: %w", ErrInvalidResponse, err)
		}
	}
	return nil
}

// callWithRetry runs an idempotent read with backoff.
func (c *RPCClient) callWithRetry(ctx context.Context, method string, params []interface{}, result interface{}) error {
	return retry.Do(ctx, c.retry, func() error {
		return c.Call(ctx, method, params, result)
	})
}

// Sender returns the wallet account transactions are sent from.
func (c *RPCClient) Sender() common.Address { return c.from }

// callArgs is the transaction object accepted by eth_call and eth_sendTransaction.
type callArgs struct {
	From common.Address  `json:"from"`
	To   *common.Address `json:"to"`
	Data hexutil.Bytes   `json:"data"`
}

// ReadState executes call against the latest block via eth_call.
func (c *RPCClient) ReadState(ctx context.Context, call Call) ([]byte, error) {
	to := call.To
	args := callArgs{From: c.from, To: &to, Data: call.Data}
	var out hexutil.Bytes
	if err := c.callWithRetry(ctx, "eth_call", []interface{}{args, "latest"}, &out); err != nil {
		return nil, wrapError(err)
	}
	return out, nil
}

// Submit hands call to the wallet via eth_sendTransaction and returns once
// the wallet reports a transaction hash. It is never retried.
func (c *RPCClient) Submit(ctx context.Context, call Call) (*TxHandle, error) {
	to := call.To
	args := callArgs{From: c.from, To: &to, Data: call.Data}
	var hash common.Hash
	if err := c.Call(ctx, "eth_sendTransaction", []interface{}{args}, &hash); err != nil {
		return nil, wrapError(err)
	}
	if hash == (common.Hash{}) {
		return nil, &Error{Code: CodeUnknown, Message: "wallet returned empty transaction hash", Err: ErrInvalidResponse}
	}
	c.log.Debug("chain: transaction sent", "tx", hash.Hex(), "to", to.Hex())
	return &TxHandle{Hash: hash}, nil
}

// rpcReceipt is the subset of eth_getTransactionReceipt the engine needs.
type rpcReceipt struct {
	TxHash      common.Hash    `json:"transactionHash"`
	Status      hexutil.Uint64 `json:"status"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	GasUsed     hexutil.Uint64 `json:"gasUsed"`
}

// AwaitReceipt polls eth_getTransactionReceipt until the transaction is included.
func (c *RPCClient) AwaitReceipt(ctx context.Context, h *TxHandle) (*Receipt, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: handle", ErrNilParam)
	}
	return c.poller.wait(ctx, h.Hash, func(ctx context.Context) (*Receipt, error) {
		var r *rpcReceipt
		if err := c.Call(ctx, "eth_getTransactionReceipt", []interface{}{h.Hash}, &r); err != nil {
			return nil, err
		}
		if r == nil {
			return nil, nil
		}
		status := ReceiptReverted
		if r.Status == hexutil.Uint64(types.ReceiptStatusSuccessful) {
			status = ReceiptSuccess
		}
		return &Receipt{
			TxHash:      h.Hash,
			Status:      status,
			BlockNumber: uint64(r.BlockNumber),
			GasUsed:     uint64(r.GasUsed),
		}, nil
	})
}

// BlockNumber returns the current chain head via eth_blockNumber.
func (c *RPCClient) BlockNumber(ctx context.Context) (uint64, error) {
	var n hexutil.Uint64
	if err := c.callWithRetry(ctx, "eth_blockNumber", nil, &n); err != nil {
		return 0, wrapError(err)
	}
	return uint64(n), nil
}

// FilterLogs returns the logs matching q via eth_getLogs.
func (c *RPCClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	arg := map[string]interface{}{}
	if len(q.Addresses) > 0 {
		arg["address"] = q.Addresses
	}
	if len(q.Topics) > 0 {
		arg["topics"] = q.Topics
	}
	if q.BlockHash != nil {
		arg["blockHash"] = *q.BlockHash
	} else {
		arg["fromBlock"] = blockArg(q.FromBlock)
		arg["toBlock"] = blockArg(q.ToBlock)
	}

	var logs []types.Log
	if err := c.callWithRetry(ctx, "eth_getLogs", []interface{}{arg}, &logs); err != nil {
		return nil, wrapError(err)
	}
	return logs, nil
}

// blockArg encodes a block number for eth_getLogs; nil means latest.
func blockArg(n *big.Int) string {
	if n == nil {
		return "latest"
	}
	return hexutil.EncodeBig(n)
}
