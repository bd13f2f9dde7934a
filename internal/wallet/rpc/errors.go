package rpc

import (
	"fmt"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
)

// Starknet JSON-RPC error codes the signer reacts to.
const (
	CodeContractNotFound    = 20
	CodeTransactionNotFound = 29
	CodeClassHashNotFound   = 28
	CodeInvalidNonce        = 52
	CodeInsufficientFee     = 53
	CodeInsufficientBalance = 54
	CodeValidationFailure   = 55
	CodeDuplicateTx         = 59
)

var (
	ErrContractNotFound    = errors.New("contract not found")
	ErrTransactionNotFound = errors.New("transaction hash not found")
	ErrNoEndpoints         = errors.New("at least one RPC URL is required")
)

// Error is returned by every client call. Code is zero when the node never answered (transport
// failure, timeout, HTTP error); such errors are transient and say nothing about chain state.
type Error struct {
	Method  string
	Code    int
	Message string
	Data    any
	Err     error
}

func (e *Error) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("rpc %s: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("rpc %s: %s (code %d)", e.Method, e.Message, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets definitive not-found answers match their sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrContractNotFound:
		return e.Code == CodeContractNotFound
	case ErrTransactionNotFound:
		return e.Code == CodeTransactionNotFound
	default:
		return false
	}
}

// Transient reports whether the node never gave an answer.
func (e *Error) Transient() bool {
	return e.Code == 0
}

// IsTransient reports whether err is a transport level failure.
func IsTransient(err error) bool {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Transient()
	}
	return false
}

func wrapError(method string, err error) error {
	if err == nil {
		return nil
	}

	var jsonErr gethrpc.Error
	if errors.As(err, &jsonErr) {
		out := &Error{Method: method, Code: jsonErr.ErrorCode(), Message: jsonErr.Error(), Err: err}
		var dataErr gethrpc.DataError
		if errors.As(err, &dataErr) {
			out.Data = dataErr.ErrorData()
		}
		return out
	}

	return &Error{Method: method, Err: err}
}
