// Package chain talks to an EVM RPC endpoint. It answers the one question
// the risk engine needs, whether an address has deployed code, and serves
// token metadata, RPC health, and payment-receipt verification for the
// surrounding API.
//
// Classification is fail-safe: every lookup is bounded by a timeout and any
// failure resolves to "not a contract", which biases the rules toward
// flagging rather than staying silent.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/mbd888/trapdetect/internal/circuitbreaker"
	"github.com/mbd888/trapdetect/internal/metrics"
	"github.com/mbd888/trapdetect/internal/retry"
	"github.com/mbd888/trapdetect/internal/traces"
	"github.com/mbd888/trapdetect/internal/validation"
)

// erc20ABI covers the read-only metadata surface we probe on tokens and
// NFT collections.
const erc20ABI = `[
	{"name":"name","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"string"}]},
	{"name":"symbol","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"string"}]},
	{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"uint8"}]}
]`

// EthClient is the subset of ethclient.Client the chain client uses.
// Narrowed for test doubles.
type EthClient interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// Config for the chain client.
type Config struct {
	RPCURL       string
	Timeout      time.Duration // per-lookup bound, defaults to 5s
	PaymentToken string        // ERC-20 contract payments are made in
	Recipient    string        // address payments must land on
}

// breakerKey is the single circuit key; there is one upstream RPC endpoint.
const breakerKey = "rpc"

// Client wraps an RPC connection.
type Client struct {
	client       EthClient
	timeout      time.Duration
	tokenABI     abi.ABI
	paymentToken common.Address
	recipient    common.Address
	breaker      *circuitbreaker.Breaker
	logger       *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithEthClient sets a custom RPC client (for testing).
func WithEthClient(ec EthClient) Option {
	return func(c *Client) { c.client = ec }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a chain client, dialing cfg.RPCURL unless a client is
// injected through options.
func New(cfg Config, opts ...Option) (*Client, error) {
	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}

	c := &Client{
		timeout:      cfg.Timeout,
		tokenABI:     parsedABI,
		paymentToken: common.HexToAddress(cfg.PaymentToken),
		recipient:    common.HexToAddress(cfg.Recipient),
		breaker:      circuitbreaker.New(5, 30*time.Second),
		logger:       slog.Default(),
	}
	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.client == nil {
		if cfg.RPCURL == "" {
			return nil, fmt.Errorf("RPC URL required")
		}
		ec, err := ethclient.Dial(cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("failed to dial RPC: %w", err)
		}
		c.client = ec
	}

	return c, nil
}

// IsContract reports whether address has deployed code. Never errors:
// invalid addresses, timeouts, and transport failures all resolve to false.
func (c *Client) IsContract(ctx context.Context, address string) bool {
	if !validation.IsValidEthAddress(address) {
		return false
	}

	ctx, span := traces.StartSpan(ctx, "classify_address", traces.Address(address))
	defer span.End()

	if !c.breaker.Allow(breakerKey) {
		c.logger.Debug("RPC circuit open, treating as EOA", "address", address)
		metrics.ClassifierLookupsTotal.WithLabelValues("error").Inc()
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var code []byte
	err := retry.Do(ctx, 2, 200*time.Millisecond, func() error {
		var err error
		code, err = c.client.CodeAt(ctx, common.HexToAddress(address), nil)
		return err
	})
	if err != nil {
		c.breaker.RecordFailure(breakerKey)
		c.logger.Debug("contract classification failed, treating as EOA",
			"address", address, "error", err)
		metrics.ClassifierLookupsTotal.WithLabelValues("error").Inc()
		return false
	}
	c.breaker.RecordSuccess(breakerKey)

	if len(code) > 0 {
		metrics.ClassifierLookupsTotal.WithLabelValues("contract").Inc()
		return true
	}
	metrics.ClassifierLookupsTotal.WithLabelValues("eoa").Inc()
	return false
}

// TokenInfo is best-effort ERC-20/721 metadata. Fields a token does not
// implement are left zero.
type TokenInfo struct {
	Name     string `json:"name,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals uint8  `json:"decimals,omitempty"`
}

// GetTokenInfo probes name, symbol, and decimals on a token contract.
func (c *Client) GetTokenInfo(ctx context.Context, address string) TokenInfo {
	var info TokenInfo
	if !validation.IsValidEthAddress(address) {
		return info
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	addr := common.HexToAddress(address)
	if v, err := c.callString(ctx, addr, "name"); err == nil {
		info.Name = v
	}
	if v, err := c.callString(ctx, addr, "symbol"); err == nil {
		info.Symbol = v
	}
	if v, err := c.callUint8(ctx, addr, "decimals"); err == nil {
		info.Decimals = v
	}
	return info
}

func (c *Client) call(ctx context.Context, addr common.Address, method string) ([]any, error) {
	data, err := c.tokenABI.Pack(method)
	if err != nil {
		return nil, err
	}
	result, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	return c.tokenABI.Unpack(method, result)
}

func (c *Client) callString(ctx context.Context, addr common.Address, method string) (string, error) {
	values, err := c.call(ctx, addr, method)
	if err != nil {
		return "", err
	}
	s, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("%s returned non-string", method)
	}
	return s, nil
}

func (c *Client) callUint8(ctx context.Context, addr common.Address, method string) (uint8, error) {
	values, err := c.call(ctx, addr, method)
	if err != nil {
		return 0, err
	}
	n, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("%s returned non-uint8", method)
	}
	return n, nil
}

// Healthy reports whether the RPC endpoint answers a block number query.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_, err := c.client.BlockNumber(ctx)
	return err == nil
}

// BlockNumber returns the current chain head.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.client.BlockNumber(ctx)
}

// Close closes the RPC connection.
func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}
