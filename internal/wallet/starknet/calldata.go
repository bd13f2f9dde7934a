package starknet

import (
	"github.com/NethermindEth/juno/core/felt"
	"github.com/pkg/errors"
)

// CompileExecuteCalldata flattens calls into the calldata of the account's __execute__ entry point.
//
// Cairo 1 accounts take an array of calls:
//
//	[n_calls, to_1, selector_1, len_1, ...data_1, to_2, ...]
//
// Cairo 0 accounts take a call array followed by the concatenated calldata:
//
//	[n_calls, to_1, selector_1, offset_1, len_1, ..., total_len, ...data_1, ...data_2]
func CompileExecuteCalldata(calls []Call, cairoVersion CairoVersion) ([]*felt.Felt, error) {
	for i, call := range calls {
		if call.ContractAddress == nil {
			return nil, errors.Errorf("call %d has no contract address", i)
		}
		if call.EntryPoint == "" {
			return nil, errors.Errorf("call %d has no entry point", i)
		}
	}

	switch cairoVersion {
	case Cairo1, "":
		return compileCairo1(calls), nil
	case Cairo0:
		return compileCairo0(calls), nil
	default:
		return nil, errors.Errorf("unknown cairo version %q", string(cairoVersion))
	}
}

func compileCairo1(calls []Call) []*felt.Felt {
	out := []*felt.Felt{FeltFromUint64(uint64(len(calls)))}
	for _, call := range calls {
		out = append(out,
			call.ContractAddress,
			Selector(call.EntryPoint),
			FeltFromUint64(uint64(len(call.Calldata))),
		)
		out = append(out, call.Calldata...)
	}
	return out
}

func compileCairo0(calls []Call) []*felt.Felt {
	out := []*felt.Felt{FeltFromUint64(uint64(len(calls)))}
	var data []*felt.Felt
	for _, call := range calls {
		out = append(out,
			call.ContractAddress,
			Selector(call.EntryPoint),
			FeltFromUint64(uint64(len(data))),
			FeltFromUint64(uint64(len(call.Calldata))),
		)
		data = append(data, call.Calldata...)
	}
	out = append(out, FeltFromUint64(uint64(len(data))))
	return append(out, data...)
}
