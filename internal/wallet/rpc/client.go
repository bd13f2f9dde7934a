// Package rpc is a Starknet JSON-RPC client with failover over several node URLs.
package rpc

import (
	"context"
	"sync"
	"time"

	"github.com/NethermindEth/juno/core/felt"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github/chapool/go-stark-signer/internal/util"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
)

// Client talks to one node at a time. Reads move on to the next URL when a node does not answer;
// submissions are sent to the current node only and never repeated.
type Client struct {
	urls    []string
	clients []*gethrpc.Client
	timeout time.Duration

	mu      sync.Mutex
	current int
}

// NewClient dials every URL. HTTP endpoints are dialed lazily, so this only fails on malformed
// URLs.
func NewClient(ctx context.Context, urls []string, timeout time.Duration) (*Client, error) {
	if len(urls) == 0 {
		return nil, ErrNoEndpoints
	}

	clients := make([]*gethrpc.Client, 0, len(urls))
	for _, url := range urls {
		client, err := gethrpc.DialContext(ctx, url)
		if err != nil {
			for _, c := range clients {
				c.Close()
			}
			return nil, errors.Wrapf(err, "failed to dial %s", url)
		}
		clients = append(clients, client)
	}

	return &Client{
		urls:    urls,
		clients: clients,
		timeout: timeout,
	}, nil
}

// Close closes all client connections.
func (c *Client) Close() {
	for _, client := range c.clients {
		client.Close()
	}
}

// call runs method with failover: a node that does not answer is skipped, a node that answers
// with an error ends the call.
func (c *Client) call(ctx context.Context, result any, method string, args ...any) error {
	c.mu.Lock()
	start := c.current
	c.mu.Unlock()

	var lastErr error
	for i := 0; i < len(c.clients); i++ {
		idx := (start + i) % len(c.clients)

		err := c.callAt(ctx, idx, result, method, args...)
		if err == nil {
			if idx != start {
				c.mu.Lock()
				c.current = idx
				c.mu.Unlock()
			}
			return nil
		}
		if !IsTransient(err) || ctx.Err() != nil {
			return err
		}

		util.LogFromContext(ctx).Warn().
			Str("url", c.urls[idx]).
			Str("method", method).
			Err(err).
			Msg("RPC node unavailable, trying next")
		lastErr = err
	}

	return lastErr
}

// send runs method on the current node only.
func (c *Client) send(ctx context.Context, result any, method string, args ...any) error {
	c.mu.Lock()
	idx := c.current
	c.mu.Unlock()

	return c.callAt(ctx, idx, result, method, args...)
}

func (c *Client) callAt(ctx context.Context, idx int, result any, method string, args ...any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	return wrapError(method, c.clients[idx].CallContext(ctx, result, method, args...))
}

func (c *Client) callFelt(ctx context.Context, method string, args ...any) (*felt.Felt, error) {
	var raw string
	if err := c.call(ctx, &raw, method, args...); err != nil {
		return nil, err
	}

	f, err := starknet.ParseFelt(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s result", method)
	}
	return f, nil
}

// ChainID returns the chain id felt, e.g. the short string SN_SEPOLIA.
func (c *Client) ChainID(ctx context.Context) (*felt.Felt, error) {
	return c.callFelt(ctx, "starknet_chainId")
}

// GetNonce returns the nonce of address at the latest block.
func (c *Client) GetNonce(ctx context.Context, address *felt.Felt) (*felt.Felt, error) {
	return c.callFelt(ctx, "starknet_getNonce", BlockLatest, hexFelt(address))
}

// GetClassHashAt returns the class hash of the contract at address. A missing contract yields
// an error matching ErrContractNotFound.
func (c *Client) GetClassHashAt(ctx context.Context, address *felt.Felt) (*felt.Felt, error) {
	return c.callFelt(ctx, "starknet_getClassHashAt", BlockLatest, hexFelt(address))
}

// EstimateFee estimates txs. With skipValidate the account's __validate__ is not run, so the
// transactions may carry an empty signature.
func (c *Client) EstimateFee(ctx context.Context, txs []any, skipValidate bool) ([]FeeEstimate, error) {
	flags := []string{}
	if skipValidate {
		flags = append(flags, simulationSkipValidate)
	}

	var estimates []FeeEstimate
	if err := c.call(ctx, &estimates, "starknet_estimateFee", txs, flags, BlockLatest); err != nil {
		return nil, err
	}
	if len(estimates) != len(txs) {
		return nil, errors.Errorf("node returned %d estimates for %d transactions", len(estimates), len(txs))
	}

	return estimates, nil
}

// AddDeployAccountTransaction broadcasts txn once.
func (c *Client) AddDeployAccountTransaction(ctx context.Context, txn DeployAccountTxn) (*DeployAccountResult, error) {
	var result DeployAccountResult
	if err := c.send(ctx, &result, "starknet_addDeployAccountTransaction", txn); err != nil {
		return nil, err
	}
	return &result, nil
}

// AddInvokeTransaction broadcasts txn once.
func (c *Client) AddInvokeTransaction(ctx context.Context, txn InvokeTxn) (*InvokeResult, error) {
	var result InvokeResult
	if err := c.send(ctx, &result, "starknet_addInvokeTransaction", txn); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTransactionStatus returns the status of txHash. An unknown hash yields an error matching
// ErrTransactionNotFound.
func (c *Client) GetTransactionStatus(ctx context.Context, txHash *felt.Felt) (*TransactionStatus, error) {
	var status TransactionStatus
	if err := c.call(ctx, &status, "starknet_getTransactionStatus", hexFelt(txHash)); err != nil {
		return nil, err
	}
	return &status, nil
}
