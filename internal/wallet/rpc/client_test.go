package rpc_test

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-stark-signer/internal/wallet/rpc"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcReply struct {
	result any
	code   int
	msg    string
}

// node is a minimal JSON-RPC server recording every request.
type node struct {
	mu       sync.Mutex
	requests []rpcRequest
	handlers map[string]func(params []json.RawMessage) rpcReply
	broken   bool
}

func (n *node) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if n.broken {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.requests = append(n.requests, req)
	handler, ok := n.handlers[req.Method]
	n.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if !ok {
		resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
	} else if reply := handler(req.Params); reply.code != 0 {
		resp["error"] = map[string]any{"code": reply.code, "message": reply.msg}
	} else {
		resp["result"] = reply.result
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *node) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.requests)
}

func (n *node) last() rpcRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.requests[len(n.requests)-1]
}

func newNode(t *testing.T, handlers map[string]func([]json.RawMessage) rpcReply) (*node, string) {
	t.Helper()
	n := &node{handlers: handlers}
	srv := httptest.NewServer(n)
	t.Cleanup(srv.Close)
	return n, srv.URL
}

func result(v any) func([]json.RawMessage) rpcReply {
	return func([]json.RawMessage) rpcReply { return rpcReply{result: v} }
}

func failure(code int, msg string) func([]json.RawMessage) rpcReply {
	return func([]json.RawMessage) rpcReply { return rpcReply{code: code, msg: msg} }
}

func newClient(t *testing.T, urls ...string) *rpc.Client {
	t.Helper()
	c, err := rpc.NewClient(t.Context(), urls, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := rpc.NewClient(t.Context(), nil, 0)
	assert.ErrorIs(t, err, rpc.ErrNoEndpoints)
}

func TestChainID(t *testing.T) {
	_, url := newNode(t, map[string]func([]json.RawMessage) rpcReply{
		"starknet_chainId": result("0x534e5f5345504f4c4941"),
	})

	chainID, err := newClient(t, url).ChainID(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "SN_SEPOLIA", starknet.DecodeShortString(chainID))
}

func TestGetClassHashAtContractNotFound(t *testing.T) {
	first, url1 := newNode(t, map[string]func([]json.RawMessage) rpcReply{
		"starknet_getClassHashAt": failure(rpc.CodeContractNotFound, "Contract not found"),
	})
	second, url2 := newNode(t, nil)

	_, err := newClient(t, url1, url2).GetClassHashAt(t.Context(), starknet.FeltFromUint64(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, rpc.ErrContractNotFound)
	assert.False(t, rpc.IsTransient(err))

	assert.Equal(t, 1, first.count())
	assert.Zero(t, second.count(), "a definitive answer must not fail over")

	var params []string
	for _, p := range first.last().Params {
		var s string
		require.NoError(t, json.Unmarshal(p, &s))
		params = append(params, s)
	}
	assert.Equal(t, []string{"latest", "0x1"}, params)
}

func TestTransportErrorIsTransient(t *testing.T) {
	broken, url := newNode(t, nil)
	broken.broken = true

	_, err := newClient(t, url).GetClassHashAt(t.Context(), starknet.FeltFromUint64(1))
	require.Error(t, err)
	assert.True(t, rpc.IsTransient(err))
	assert.NotErrorIs(t, err, rpc.ErrContractNotFound)
}

func TestReadsFailOver(t *testing.T) {
	broken, url1 := newNode(t, nil)
	broken.broken = true
	healthy, url2 := newNode(t, map[string]func([]json.RawMessage) rpcReply{
		"starknet_getNonce": result("0x5"),
	})

	client := newClient(t, url1, url2)
	nonce, err := client.GetNonce(t.Context(), starknet.FeltFromUint64(7))
	require.NoError(t, err)
	assert.Equal(t, "0x5", starknet.FeltToHex(nonce))

	// the healthy node is now preferred
	_, err = client.GetNonce(t.Context(), starknet.FeltFromUint64(7))
	require.NoError(t, err)
	assert.Equal(t, 2, healthy.count())
}

func TestSubmissionsDoNotFailOver(t *testing.T) {
	broken, url1 := newNode(t, nil)
	broken.broken = true
	healthy, url2 := newNode(t, map[string]func([]json.RawMessage) rpcReply{
		"starknet_addDeployAccountTransaction": result(map[string]string{"transaction_hash": "0x1", "contract_address": "0x2"}),
	})

	details := deployDetails(starknet.TransactionV3)
	_, err := newClient(t, url1, url2).AddDeployAccountTransaction(t.Context(), rpc.NewDeployAccountTxn(details, nil))
	require.Error(t, err)
	assert.True(t, rpc.IsTransient(err))
	assert.Zero(t, healthy.count())
}

func TestAddDeployAccountTransaction(t *testing.T) {
	n, url := newNode(t, map[string]func([]json.RawMessage) rpcReply{
		"starknet_addDeployAccountTransaction": result(map[string]string{"transaction_hash": "0xabc", "contract_address": "0xdef"}),
	})

	details := deployDetails(starknet.TransactionV3)
	res, err := newClient(t, url).AddDeployAccountTransaction(t.Context(), rpc.NewDeployAccountTxn(details, []*felt.Felt{starknet.FeltFromUint64(10)}))
	require.NoError(t, err)
	assert.Equal(t, "0xabc", res.TransactionHash)
	assert.Equal(t, "0xdef", res.ContractAddress)

	var txn map[string]any
	require.NoError(t, json.Unmarshal(n.last().Params[0], &txn))
	assert.Equal(t, "DEPLOY_ACCOUNT", txn["type"])
	assert.Equal(t, "0x3", txn["version"])
	assert.Equal(t, []any{"0xa"}, txn["signature"])
	assert.Equal(t, "L1", txn["nonce_data_availability_mode"])
	assert.Equal(t, []any{}, txn["paymaster_data"])
	assert.NotContains(t, txn, "max_fee")

	bounds, ok := txn["resource_bounds"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"max_amount": "0x3e8", "max_price_per_unit": "0x64"}, bounds["l1_gas"])
	assert.NotContains(t, bounds, "l1_data_gas")
}

func TestDeployAccountTxnFeeFamily(t *testing.T) {
	details := deployDetails(starknet.TransactionV1)
	details.MaxFee = starknet.FeltFromUint64(255)

	raw, err := json.Marshal(rpc.NewDeployAccountTxn(details, nil))
	require.NoError(t, err)

	var txn map[string]any
	require.NoError(t, json.Unmarshal(raw, &txn))
	assert.Equal(t, "0xff", txn["max_fee"])
	assert.NotContains(t, txn, "resource_bounds")
	assert.NotContains(t, txn, "tip")
	assert.Equal(t, []any{}, txn["signature"])

	details.Version = starknet.TransactionVersion("0x9")
	_, err = json.Marshal(rpc.NewDeployAccountTxn(details, nil))
	assert.Error(t, err)
}

func TestInvokeTxnJSON(t *testing.T) {
	details := &starknet.InvocationDetails{
		FeeDetails:    deployDetails(starknet.TransactionV3).FeeDetails,
		SenderAddress: starknet.FeltFromUint64(0x123),
	}

	raw, err := json.Marshal(rpc.NewInvokeTxn([]*felt.Felt{starknet.FeltFromUint64(1)}, details, nil))
	require.NoError(t, err)

	var txn map[string]any
	require.NoError(t, json.Unmarshal(raw, &txn))
	assert.Equal(t, "INVOKE", txn["type"])
	assert.Equal(t, "0x123", txn["sender_address"])
	assert.Equal(t, []any{"0x1"}, txn["calldata"])
	assert.Equal(t, []any{}, txn["account_deployment_data"])
}

func TestEstimateFee(t *testing.T) {
	n, url := newNode(t, map[string]func([]json.RawMessage) rpcReply{
		"starknet_estimateFee": result([]map[string]string{{
			"l1_gas_consumed": "0x10", "l1_gas_price": "0x64",
			"l2_gas_consumed": "0x200", "l2_gas_price": "0x2",
			"l1_data_gas_consumed": "0x20", "l1_data_gas_price": "0x1",
			"overall_fee": "0x2710", "unit": "FRI",
		}}),
	})

	details := deployDetails(starknet.TransactionV3Query)
	estimates, err := newClient(t, url).EstimateFee(t.Context(), []any{rpc.NewDeployAccountTxn(details, nil)}, true)
	require.NoError(t, err)
	require.Len(t, estimates, 1)

	req := n.last()
	require.Len(t, req.Params, 3)
	var flags []string
	require.NoError(t, json.Unmarshal(req.Params[1], &flags))
	assert.Equal(t, []string{"SKIP_VALIDATE"}, flags)

	bounds, err := estimates[0].SuggestedResourceBounds(50)
	require.NoError(t, err)
	assert.Equal(t, uint64(24), bounds.L1Gas.MaxAmount)
	assert.Equal(t, big.NewInt(150), bounds.L1Gas.MaxPricePerUnit)
	assert.Equal(t, uint64(768), bounds.L2Gas.MaxAmount)
	require.NotNil(t, bounds.L1DataGas)
	assert.Equal(t, uint64(48), bounds.L1DataGas.MaxAmount)
	assert.Equal(t, big.NewInt(1), bounds.L1DataGas.MaxPricePerUnit)

	fee, err := estimates[0].OverallFeeDecimal()
	require.NoError(t, err)
	assert.Equal(t, "0.00000000000001", fee.String())
}

func TestEstimateFeeValidatedHasNoFlags(t *testing.T) {
	n, url := newNode(t, map[string]func([]json.RawMessage) rpcReply{
		"starknet_estimateFee": result([]map[string]string{{"overall_fee": "0x1", "unit": "WEI"}}),
	})

	_, err := newClient(t, url).EstimateFee(t.Context(), []any{rpc.NewDeployAccountTxn(deployDetails(starknet.TransactionV1Query), nil)}, false)
	require.NoError(t, err)

	var flags []string
	require.NoError(t, json.Unmarshal(n.last().Params[1], &flags))
	assert.Empty(t, flags)
}

func TestSuggestedFeesLegacyFields(t *testing.T) {
	estimate := rpc.FeeEstimate{GasConsumed: "0x64", GasPrice: "0xa", OverallFee: "1000"}

	maxFee, err := estimate.SuggestedMaxFee(rpc.DefaultFeeMarginPercent)
	require.NoError(t, err)
	assert.Equal(t, "1500", starknet.FeltToDecimal(maxFee))

	bounds, err := estimate.SuggestedResourceBounds(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bounds.L1Gas.MaxAmount)
	assert.Equal(t, big.NewInt(10), bounds.L1Gas.MaxPricePerUnit)
	assert.Equal(t, uint64(0), bounds.L2Gas.MaxAmount)
	assert.Nil(t, bounds.L1DataGas)

	_, err = rpc.FeeEstimate{GasConsumed: "0x10000000000000000", OverallFee: "0x1"}.SuggestedResourceBounds(0)
	assert.Error(t, err)
}

func TestGetTransactionStatus(t *testing.T) {
	_, url := newNode(t, map[string]func([]json.RawMessage) rpcReply{
		"starknet_getTransactionStatus": func(params []json.RawMessage) rpcReply {
			var hash string
			_ = json.Unmarshal(params[0], &hash)
			if hash == "0x1" {
				return rpcReply{result: map[string]string{"finality_status": "ACCEPTED_ON_L2", "execution_status": "REVERTED"}}
			}
			return rpcReply{code: rpc.CodeTransactionNotFound, msg: "Transaction hash not found"}
		},
	})
	client := newClient(t, url)

	status, err := client.GetTransactionStatus(t.Context(), starknet.FeltFromUint64(1))
	require.NoError(t, err)
	assert.True(t, status.Failed())
	assert.False(t, status.Accepted())

	_, err = client.GetTransactionStatus(t.Context(), starknet.FeltFromUint64(2))
	assert.ErrorIs(t, err, rpc.ErrTransactionNotFound)
}

func deployDetails(version starknet.TransactionVersion) *starknet.DeployAccountDetails {
	return &starknet.DeployAccountDetails{
		FeeDetails: starknet.FeeDetails{
			Version: version,
			Nonce:   starknet.FeltFromUint64(0),
			ChainID: starknet.ChainIDSepolia,
			ResourceBounds: starknet.ResourceBounds{
				L1Gas: starknet.ResourceBound{MaxAmount: 1000, MaxPricePerUnit: big.NewInt(100)},
				L2Gas: starknet.ResourceBound{MaxAmount: 0, MaxPricePerUnit: big.NewInt(0)},
			},
			NonceDataAvailabilityMode: starknet.DAModeL1,
			FeeDataAvailabilityMode:   starknet.DAModeL1,
		},
		ClassHash:           starknet.FeltFromUint64(0x999),
		AddressSalt:         starknet.FeltFromUint64(0x42),
		ConstructorCalldata: []*felt.Felt{starknet.FeltFromUint64(1), starknet.FeltFromUint64(0x42)},
	}
}
