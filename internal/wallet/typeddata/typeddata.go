// Package typeddata hashes SNIP-12 typed structured data, revisions 0 and 1.
package typeddata

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/pkg/errors"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
)

var (
	ErrUnknownType   = errors.New("unknown typed data type")
	ErrInvalidValue  = errors.New("invalid typed data value")
	ErrInvalidSchema = errors.New("invalid typed data schema")

	messagePrefix = starknet.MustShortString("StarkNet Message")
)

// Revision selects the hashing rules.
type Revision int

const (
	Revision0 Revision = 0 // pedersen, StarkNetDomain
	Revision1 Revision = 1 // poseidon, StarknetDomain
)

// TypeMember is one field of a struct type. Contains names the enum type of an "enum" member
// and the leaf type of a "merkletree" member.
type TypeMember struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Contains string `json:"contains,omitempty"`
}

// presetTypes are implicitly declared by every revision 1 document.
var presetTypes = map[string][]TypeMember{
	"u256": {
		{Name: "low", Type: "u128"},
		{Name: "high", Type: "u128"},
	},
	"TokenAmount": {
		{Name: "token_address", Type: "ContractAddress"},
		{Name: "amount", Type: "u256"},
	},
	"NftId": {
		{Name: "collection_address", Type: "ContractAddress"},
		{Name: "token_id", Type: "u256"},
	},
}

// TypedData is the wallet-facing document that gets signed by signMessage.
type TypedData struct {
	Types       map[string][]TypeMember `json:"types"`
	PrimaryType string                  `json:"primaryType"`
	Domain      map[string]any          `json:"domain"`
	Message     map[string]any          `json:"message"`
}

// Parse decodes a typed data JSON document keeping numbers exact.
func Parse(data []byte) (*TypedData, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var td TypedData
	if err := dec.Decode(&td); err != nil {
		return nil, errors.Wrap(err, "failed to decode typed data")
	}
	if err := td.Validate(); err != nil {
		return nil, err
	}

	return &td, nil
}

// Revision reads domain.revision; a missing revision means revision 0.
func (td *TypedData) Revision() Revision {
	switch v := td.Domain["revision"].(type) {
	case json.Number:
		if v.String() == "1" {
			return Revision1
		}
	case string:
		if v == "1" {
			return Revision1
		}
	case float64:
		if v == 1 {
			return Revision1
		}
	case int:
		if v == 1 {
			return Revision1
		}
	}
	return Revision0
}

// DomainType is the name of the domain separator struct for the revision.
func (td *TypedData) DomainType() string {
	if td.Revision() == Revision1 {
		return "StarknetDomain"
	}
	return "StarkNetDomain"
}

// Validate checks that the primary and domain types are declared.
func (td *TypedData) Validate() error {
	if td.PrimaryType == "" {
		return errors.Wrap(ErrInvalidSchema, "primaryType is empty")
	}
	if _, ok := td.Types[td.PrimaryType]; !ok {
		return errors.Wrapf(ErrInvalidSchema, "primaryType %q is not declared", td.PrimaryType)
	}
	if _, ok := td.Types[td.DomainType()]; !ok {
		return errors.Wrapf(ErrInvalidSchema, "domain type %q is not declared", td.DomainType())
	}
	return nil
}

// MessageHash is the hash a signer signs for account:
// H("StarkNet Message", domain hash, account, message hash).
func MessageHash(td *TypedData, account *felt.Felt) (*felt.Felt, error) {
	if account == nil {
		return nil, errors.New("account address is required")
	}
	if err := td.Validate(); err != nil {
		return nil, err
	}

	domainHash, err := td.StructHash(td.DomainType(), td.Domain)
	if err != nil {
		return nil, errors.Wrap(err, "domain")
	}
	msgHash, err := td.StructHash(td.PrimaryType, td.Message)
	if err != nil {
		return nil, errors.Wrap(err, "message")
	}

	return td.hashArray(messagePrefix, domainHash, account, msgHash), nil
}

// EncodeType renders the type signature of typeName followed by its sorted dependencies.
func (td *TypedData) EncodeType(typeName string) (string, error) {
	if _, ok := td.lookup(typeName); !ok {
		return "", errors.Wrapf(ErrUnknownType, "%q", typeName)
	}

	deps := map[string]struct{}{}
	td.collectDependencies(typeName, "", deps)
	delete(deps, typeName)

	sorted := make([]string, 0, len(deps))
	for dep := range deps {
		sorted = append(sorted, dep)
	}
	sort.Strings(sorted)

	var b strings.Builder
	for _, name := range append([]string{typeName}, sorted...) {
		b.WriteString(td.quote(name))
		b.WriteByte('(')
		members, _ := td.lookup(name)
		for i, member := range members {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(td.quote(member.Name))
			b.WriteByte(':')
			b.WriteString(td.encodeMemberType(member))
		}
		b.WriteByte(')')
	}

	return b.String(), nil
}

// TypeHash is starknet_keccak of the encoded type.
func (td *TypedData) TypeHash(typeName string) (*felt.Felt, error) {
	encoded, err := td.EncodeType(typeName)
	if err != nil {
		return nil, err
	}
	return starknet.StarknetKeccak([]byte(encoded)), nil
}

// StructHash hashes data as an instance of typeName.
func (td *TypedData) StructHash(typeName string, data map[string]any) (*felt.Felt, error) {
	typeHash, err := td.TypeHash(typeName)
	if err != nil {
		return nil, err
	}

	members, _ := td.lookup(typeName)
	elems := []*felt.Felt{typeHash}
	for _, member := range members {
		value, ok := data[member.Name]
		if !ok {
			return nil, errors.Wrapf(ErrInvalidValue, "%s.%s is missing", typeName, member.Name)
		}
		encoded, err := td.encodeMember(member, value)
		if err != nil {
			return nil, errors.Wrapf(err, "%s.%s", typeName, member.Name)
		}
		elems = append(elems, encoded)
	}

	return td.hashArray(elems...), nil
}

// lookup resolves a declared type; revision 1 documents also see the preset types.
func (td *TypedData) lookup(typeName string) ([]TypeMember, bool) {
	if td.Revision() == Revision1 {
		if members, ok := presetTypes[typeName]; ok {
			return members, true
		}
	}
	members, ok := td.Types[typeName]
	return members, ok
}

func (td *TypedData) collectDependencies(typeName, contains string, seen map[string]struct{}) {
	candidates := []string{strings.TrimSuffix(typeName, "*")}
	if td.Revision() == Revision1 {
		if typeName == "enum" {
			candidates = []string{contains}
		} else if params, ok := variantParams(typeName); ok {
			candidates = candidates[:0]
			for _, param := range params {
				candidates = append(candidates, strings.TrimSuffix(param, "*"))
			}
		}
	}

	for _, name := range candidates {
		if _, ok := seen[name]; ok {
			continue
		}
		members, ok := td.lookup(name)
		if !ok {
			continue
		}
		seen[name] = struct{}{}
		for _, member := range members {
			td.collectDependencies(member.Type, member.Contains, seen)
		}
	}
}

// encodeMemberType renders the type of member inside an encoded type string. Enum members show
// the enum they contain, enum variants keep their parenthesised parameter list.
func (td *TypedData) encodeMemberType(member TypeMember) string {
	typeName := member.Type
	if typeName == "enum" && td.Revision() == Revision1 {
		typeName = member.Contains
	}

	params, ok := variantParams(typeName)
	if !ok {
		return td.quote(typeName)
	}
	quoted := make([]string, len(params))
	for i, param := range params {
		quoted[i] = td.quote(param)
	}
	return "(" + strings.Join(quoted, ",") + ")"
}

// variantParams splits an enum variant type such as "(u128,u128*)". The unit variant "()" has
// no parameters.
func variantParams(typeName string) ([]string, bool) {
	inner, ok := strings.CutPrefix(typeName, "(")
	if !ok {
		return nil, false
	}
	inner, ok = strings.CutSuffix(inner, ")")
	if !ok {
		return nil, false
	}
	if inner == "" {
		return nil, true
	}
	return strings.Split(inner, ","), true
}

func (td *TypedData) quote(s string) string {
	if td.Revision() == Revision1 {
		return `"` + s + `"`
	}
	return s
}
