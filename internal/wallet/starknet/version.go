package starknet

import (
	"fmt"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/pkg/errors"
)

// TransactionKind enumerates the account transaction types the signer knows about.
type TransactionKind int

const (
	KindInvoke TransactionKind = iota
	KindDeployAccount
	KindDeclare
)

func (k TransactionKind) String() string {
	switch k {
	case KindInvoke:
		return "invoke"
	case KindDeployAccount:
		return "deploy_account"
	case KindDeclare:
		return "declare"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TransactionVersion is the hex encoded version felt of a transaction.
// Query versions carry the 2^128 bit. They use the field layout of their base version, but the
// version felt that goes into the hash is 2^128+v, so their hashes differ.
type TransactionVersion string

const (
	TransactionV0 TransactionVersion = "0x0"
	TransactionV1 TransactionVersion = "0x1"
	TransactionV2 TransactionVersion = "0x2"
	TransactionV3 TransactionVersion = "0x3"

	TransactionV0Query TransactionVersion = "0x100000000000000000000000000000000"
	TransactionV1Query TransactionVersion = "0x100000000000000000000000000000001"
	TransactionV2Query TransactionVersion = "0x100000000000000000000000000000002"
	TransactionV3Query TransactionVersion = "0x100000000000000000000000000000003"
)

// VersionFamily splits versions by fee model.
type VersionFamily int

const (
	UnknownFamily VersionFamily = iota
	// FeeFamily versions carry a single max_fee and hash with Pedersen
	FeeFamily
	// ResourceFamily versions carry resource bounds plus DA modes and hash with Poseidon
	ResourceFamily
)

func (f VersionFamily) String() string {
	switch f {
	case FeeFamily:
		return "fee"
	case ResourceFamily:
		return "resource"
	case UnknownFamily:
		return "unknown"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

var versionFamilies = map[TransactionVersion]VersionFamily{
	TransactionV0:      FeeFamily,
	TransactionV1:      FeeFamily,
	TransactionV2:      FeeFamily,
	TransactionV0Query: FeeFamily,
	TransactionV1Query: FeeFamily,
	TransactionV2Query: FeeFamily,
	TransactionV3:      ResourceFamily,
	TransactionV3Query: ResourceFamily,
}

var queryVersions = map[TransactionVersion]TransactionVersion{
	TransactionV0: TransactionV0Query,
	TransactionV1: TransactionV1Query,
	TransactionV2: TransactionV2Query,
	TransactionV3: TransactionV3Query,
}

// Family classifies the version; anything not listed is UnknownFamily.
func (v TransactionVersion) Family() VersionFamily {
	return versionFamilies[v]
}

// Felt returns the version as a field element.
func (v TransactionVersion) Felt() (*felt.Felt, error) {
	if v.Family() == UnknownFamily {
		return nil, errors.Errorf("unknown transaction version %q", string(v))
	}
	return ParseFelt(string(v))
}

// Query returns the fee-estimation variant of v. Query versions map to themselves.
func (v TransactionVersion) Query() TransactionVersion {
	if q, ok := queryVersions[v]; ok {
		return q
	}
	return v
}

// ParseTransactionVersion accepts "1", "3", "0x1", "0x3" and the query forms.
func ParseTransactionVersion(s string) (TransactionVersion, error) {
	f, err := ParseFelt(s)
	if err != nil {
		return "", err
	}
	v := TransactionVersion(FeltToHex(f))
	if v.Family() == UnknownFamily {
		return "", errors.Errorf("unknown transaction version %q", s)
	}
	return v, nil
}

// CairoVersion selects the __execute__ calldata layout of the account contract.
type CairoVersion string

const (
	Cairo0 CairoVersion = "0"
	Cairo1 CairoVersion = "1"
)

// DAMode is the data-availability mode of the nonce or the fee of a V3 transaction.
type DAMode string

const (
	DAModeL1 DAMode = "L1"
	DAModeL2 DAMode = "L2"
)

// Int returns the protocol integer of the mode: L1 is 0, L2 is 1.
func (m DAMode) Int() (uint64, error) {
	switch m {
	case DAModeL1:
		return 0, nil
	case DAModeL2:
		return 1, nil
	default:
		return 0, errors.Errorf("unknown data availability mode %q", string(m))
	}
}

// ParseDAMode parses "L1"/"L2" as well as the integers 0/1.
func ParseDAMode(s string) (DAMode, error) {
	switch s {
	case "L1", "0":
		return DAModeL1, nil
	case "L2", "1":
		return DAModeL2, nil
	default:
		return "", errors.Errorf("unknown data availability mode %q", s)
	}
}
