package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/jonboulle/clockwork"

	"github.com/bitfsorg/libairdrop-go/retry"
)

// Backend is the node surface KeyedClient needs. *ethclient.Client satisfies it.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// gasHeadroomPercent is added on top of the node's gas estimate.
const gasHeadroomPercent = 20

// KeyedClient signs transactions locally with a private key and broadcasts
// them through a Backend. Nonces are tracked locally so consecutive
// submissions do not depend on the node's pending pool being up to date.
type KeyedClient struct {
	backend Backend
	key     *ecdsa.PrivateKey
	from    common.Address
	signer  types.Signer
	log     *slog.Logger
	retry   retry.Config
	poller  receiptPoller

	mu        sync.Mutex
	nextNonce *uint64
}

// Compile-time interface check.
var _ Client = (*KeyedClient)(nil)

// NewKeyedClient creates a client signing for chainID with key.
func NewKeyedClient(backend Backend, key *ecdsa.PrivateKey, chainID uint64, opts RPCOptions) (*KeyedClient, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend", ErrNilParam)
	}
	if key == nil {
		return nil, fmt.Errorf("%w: private key", ErrNilParam)
	}
	if chainID == 0 {
		return nil, fmt.Errorf("chain: chain ID must be set for local signing")
	}
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
	return &KeyedClient{
		backend: backend,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(new(big.Int).SetUint64(chainID)),
		log:     opts.Logger,
		retry:   opts.Retry,
		poller: receiptPoller{
			log:      opts.Logger,
			clock:    opts.Clock,
			interval: opts.PollInterval,
			timeout:  opts.ReceiptTimeout,
		},
	}, nil
}

// DialKeyed connects to the node at cfg.URL and returns a KeyedClient
// together with the underlying ethclient, which also serves log queries.
func DialKeyed(ctx context.Context, cfg RPCConfig, key *ecdsa.PrivateKey, opts RPCOptions) (*KeyedClient, *ethclient.Client, error) {
	ec, err := ethclient.DialContext(ctx, cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	kc, err := NewKeyedClient(ec, key, cfg.ChainID, opts)
	if err != nil {
		ec.Close()
		return nil, nil, err
	}
	return kc, ec, nil
}

// Sender returns the address derived from the signing key.
func (c *KeyedClient) Sender() common.Address { return c.from }

// ReadState executes call against the latest block.
func (c *KeyedClient) ReadState(ctx context.Context, call Call) ([]byte, error) {
	to := call.To
	msg := ethereum.CallMsg{From: c.from, To: &to, Data: call.Data}
	var out []byte
	err := retry.Do(ctx, c.retry, func() error {
		var err error
		out, err = c.backend.CallContract(ctx, msg, nil)
		return err
	})
	if err != nil {
		return nil, wrapError(err)
	}
	return out, nil
}

// Submit estimates gas, signs a legacy transaction and broadcasts it.
// The local nonce only advances when the node accepts the transaction.
func (c *KeyedClient) Submit(ctx context.Context, call Call) (*TxHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	nonce, err := c.nonce(ctx)
	if err != nil {
		return nil, wrapError(err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, wrapError(fmt.Errorf("suggest gas price: %w", err))
	}
	to := call.To
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: &to, Data: call.Data})
	if err != nil {
		return nil, wrapError(fmt.Errorf("estimate gas: %w", err))
	}
	gas += gas * gasHeadroomPercent / 100

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    new(big.Int),
		Data:     call.Data,
	})
	signed, err := types.SignTx(tx, c.signer, c.key)
	if err != nil {
		return nil, &Error{Code: CodeUnknown, Message: "sign transaction: " + err.Error(), Err: err}
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		// The node may have seen a different nonce; resync on the next submit.
		c.nextNonce = nil
		return nil, wrapError(err)
	}

	next := nonce + 1
	c.nextNonce = &next
	c.log.Debug("chain: transaction sent", "tx", signed.Hash().Hex(), "nonce", nonce, "gas", gas)
	return &TxHandle{Hash: signed.Hash(), Nonce: nonce}, nil
}

// nonce returns the next nonce to use. Caller must hold c.mu.
func (c *KeyedClient) nonce(ctx context.Context) (uint64, error) {
	pending, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return 0, fmt.Errorf("pending nonce: %w", err)
	}
	if c.nextNonce != nil && *c.nextNonce > pending {
		return *c.nextNonce, nil
	}
	return pending, nil
}

// AwaitReceipt polls the node until the transaction is included.
func (c *KeyedClient) AwaitReceipt(ctx context.Context, h *TxHandle) (*Receipt, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: handle", ErrNilParam)
	}
	return c.poller.wait(ctx, h.Hash, func(ctx context.Context) (*Receipt, error) {
		r, err := c.backend.TransactionReceipt(ctx, h.Hash)
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return convertReceipt(r), nil
	})
}

func convertReceipt(r *types.Receipt) *Receipt {
	out := &Receipt{
		TxHash:  r.TxHash,
		Status:  ReceiptReverted,
		GasUsed: r.GasUsed,
	}
	if r.Status == types.ReceiptStatusSuccessful {
		out.Status = ReceiptSuccess
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	return out
}
