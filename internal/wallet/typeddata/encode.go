package typeddata

import (
	"encoding/json"
	"math"
	"math/big"
	"strings"

	"github.com/NethermindEth/juno/core/crypto"
	"github.com/NethermindEth/juno/core/felt"
	"github.com/pkg/errors"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
)

const byteArrayWordSize = 31

var minI128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))

func (td *TypedData) hashArray(elems ...*felt.Felt) *felt.Felt {
	if td.Revision() == Revision1 {
		return crypto.PoseidonArray(elems...)
	}
	return crypto.PedersenArray(elems...)
}

// encodeMember encodes a struct member. Enum and merkletree members need the type named by
// Contains, everything else is encoded by its type alone.
func (td *TypedData) encodeMember(member TypeMember, value any) (*felt.Felt, error) {
	switch {
	case member.Type == "enum" && td.Revision() == Revision1:
		return td.encodeEnum(member.Contains, value)
	case member.Type == "merkletree":
		return td.encodeMerkleTree(member.Contains, value)
	default:
		return td.encodeValue(member.Type, value)
	}
}

func (td *TypedData) encodeValue(typeName string, value any) (*felt.Felt, error) {
	if _, ok := td.lookup(typeName); ok {
		nested, ok := value.(map[string]any)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidValue, "expected object for %q, got %T", typeName, value)
		}
		return td.StructHash(typeName, nested)
	}

	if base, isArray := strings.CutSuffix(typeName, "*"); isArray {
		items, ok := value.([]any)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidValue, "expected array for %q, got %T", typeName, value)
		}
		encoded := make([]*felt.Felt, 0, len(items))
		for i, item := range items {
			f, err := td.encodeValue(base, item)
			if err != nil {
				return nil, errors.Wrapf(err, "index %d", i)
			}
			encoded = append(encoded, f)
		}
		return td.hashArray(encoded...), nil
	}

	switch typeName {
	case "felt", "shortstring", "ContractAddress", "ClassHash":
		return toFelt(value)
	case "enum":
		if td.Revision() == Revision1 {
			break
		}
		return toFelt(value)
	case "string":
		if td.Revision() == Revision1 {
			s, ok := value.(string)
			if !ok {
				return nil, errors.Wrapf(ErrInvalidValue, "expected string, got %T", value)
			}
			return byteArrayHash(s), nil
		}
		return toFelt(value)
	case "bool":
		return toBool(value)
	case "selector":
		s, ok := value.(string)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidValue, "expected selector name, got %T", value)
		}
		if strings.HasPrefix(s, "0x") {
			return starknet.ParseFelt(s)
		}
		return starknet.Selector(s), nil
	case "u128", "timestamp":
		if td.Revision() != Revision1 {
			break
		}
		f, err := toFelt(value)
		if err != nil {
			return nil, err
		}
		if starknet.FeltToBig(f).Cmp(starknet.Max128) >= 0 {
			return nil, errors.Wrapf(ErrInvalidValue, "%s exceeds 128 bits", typeName)
		}
		return f, nil
	case "i128":
		if td.Revision() != Revision1 {
			break
		}
		return toI128(value)
	}

	return nil, errors.Wrapf(ErrUnknownType, "%q", typeName)
}

// encodeEnum hashes the index of the selected variant followed by its encoded parameters. A
// unit variant hashes its index with a single zero.
func (td *TypedData) encodeEnum(enumType string, value any) (*felt.Felt, error) {
	variants, ok := td.Types[enumType]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownType, "enum %q", enumType)
	}
	selected, ok := value.(map[string]any)
	if !ok || len(selected) != 1 {
		return nil, errors.Wrapf(ErrInvalidValue, "enum %q needs exactly one variant", enumType)
	}

	for name, data := range selected {
		for index, variant := range variants {
			if variant.Name != name {
				continue
			}
			params, ok := variantParams(variant.Type)
			if !ok {
				return nil, errors.Wrapf(ErrInvalidSchema, "variant %s.%s has type %q", enumType, name, variant.Type)
			}

			elems := []*felt.Felt{starknet.FeltFromUint64(uint64(index))}
			if len(params) == 0 {
				return crypto.PoseidonArray(append(elems, new(felt.Felt))...), nil
			}
			args, ok := data.([]any)
			if !ok || len(args) != len(params) {
				return nil, errors.Wrapf(ErrInvalidValue, "variant %s.%s takes %d parameters", enumType, name, len(params))
			}
			for i, param := range params {
				f, err := td.encodeValue(param, args[i])
				if err != nil {
					return nil, errors.Wrapf(err, "%s.%s parameter %d", enumType, name, i)
				}
				elems = append(elems, f)
			}
			return crypto.PoseidonArray(elems...), nil
		}
		return nil, errors.Wrapf(ErrInvalidValue, "enum %q has no variant %q", enumType, name)
	}
	return nil, errors.Wrapf(ErrInvalidValue, "enum %q needs exactly one variant", enumType)
}

// encodeMerkleTree encodes every leaf as leafType and returns the root of the tree built by
// hashing sorted pairs. An odd node at the end of a level is paired with zero.
func (td *TypedData) encodeMerkleTree(leafType string, value any) (*felt.Felt, error) {
	if leafType == "" || strings.HasSuffix(leafType, "*") || leafType == "merkletree" {
		return nil, errors.Wrapf(ErrInvalidSchema, "merkletree leaf type %q", leafType)
	}
	items, ok := value.([]any)
	if !ok || len(items) == 0 {
		return nil, errors.Wrap(ErrInvalidValue, "merkletree needs a non-empty array of leaves")
	}

	level := make([]*felt.Felt, 0, len(items))
	for i, item := range items {
		leaf, err := td.encodeValue(leafType, item)
		if err != nil {
			return nil, errors.Wrapf(err, "leaf %d", i)
		}
		level = append(level, leaf)
	}

	for len(level) > 1 {
		next := make([]*felt.Felt, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := new(felt.Felt)
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, td.hashPair(level[i], right))
		}
		level = next
	}

	return level[0], nil
}

func (td *TypedData) hashPair(a, b *felt.Felt) *felt.Felt {
	if a.Cmp(b) > 0 {
		a, b = b, a
	}
	if td.Revision() == Revision1 {
		return crypto.Poseidon(a, b)
	}
	return crypto.Pedersen(a, b)
}

// toFelt follows wallet conventions: numbers and numeric strings are integers, hex strings are
// parsed as hex, any other string is a short string.
func toFelt(value any) (*felt.Felt, error) {
	switch v := value.(type) {
	case json.Number:
		return starknet.ParseFelt(v.String())
	case float64:
		if v < 0 || v != math.Trunc(v) || v >= math.MaxUint64 {
			return nil, errors.Wrapf(ErrInvalidValue, "number %v is not a field element", v)
		}
		return starknet.FeltFromUint64(uint64(v)), nil
	case int:
		if v < 0 {
			return nil, errors.Wrapf(ErrInvalidValue, "negative number %d", v)
		}
		return starknet.FeltFromUint64(uint64(v)), nil
	case uint64:
		return starknet.FeltFromUint64(v), nil
	case bool:
		return toBool(v)
	case string:
		switch {
		case v == "":
			return new(felt.Felt), nil
		case strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X"):
			return starknet.ParseFelt(v)
		case isDecimal(v):
			return starknet.ParseFelt(v)
		default:
			return starknet.EncodeShortString(v)
		}
	case nil:
		return nil, errors.Wrap(ErrInvalidValue, "null value")
	default:
		return nil, errors.Wrapf(ErrInvalidValue, "unsupported value type %T", value)
	}
}

func toBool(value any) (*felt.Felt, error) {
	switch v := value.(type) {
	case bool:
		if v {
			return starknet.FeltFromUint64(1), nil
		}
		return new(felt.Felt), nil
	case string, json.Number, float64, int:
		s := strings.TrimSpace(strings.ToLower(toString(v)))
		switch s {
		case "true", "1", "0x1":
			return starknet.FeltFromUint64(1), nil
		case "false", "0", "0x0":
			return new(felt.Felt), nil
		}
	}
	return nil, errors.Wrapf(ErrInvalidValue, "%v is not a boolean", value)
}

func toI128(value any) (*felt.Felt, error) {
	var s string
	switch v := value.(type) {
	case json.Number:
		s = v.String()
	case string:
		s = v
	case float64, int:
		s = toString(v)
	default:
		return nil, errors.Wrapf(ErrInvalidValue, "unsupported i128 value %T", value)
	}

	n, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidValue, "invalid i128 %q", s)
	}
	if n.Cmp(minI128) < 0 || n.Cmp(new(big.Int).Neg(minI128)) >= 0 {
		return nil, errors.Wrapf(ErrInvalidValue, "i128 %q out of range", s)
	}
	if n.Sign() < 0 {
		n.Add(n, starknet.FieldPrime)
	}
	return starknet.FeltFromBig(n)
}

// byteArrayHash hashes s with the Cairo ByteArray layout:
// [n_full_words, ...31-byte words, pending_word, pending_word_len].
func byteArrayHash(s string) *felt.Felt {
	data := []byte(s)
	fullWords := len(data) / byteArrayWordSize

	elems := []*felt.Felt{starknet.FeltFromUint64(uint64(fullWords))}
	for i := 0; i < fullWords; i++ {
		word := data[i*byteArrayWordSize : (i+1)*byteArrayWordSize]
		elems = append(elems, new(felt.Felt).SetBigInt(new(big.Int).SetBytes(word)))
	}

	pending := data[fullWords*byteArrayWordSize:]
	elems = append(elems,
		new(felt.Felt).SetBigInt(new(big.Int).SetBytes(pending)),
		starknet.FeltFromUint64(uint64(len(pending))),
	)

	return crypto.PoseidonArray(elems...)
}

func isDecimal(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return big.NewFloat(t).Text('f', -1)
	case int:
		return big.NewInt(int64(t)).String()
	default:
		return ""
	}
}
