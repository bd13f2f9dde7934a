package starknet

import (
	"math/big"
	"strings"

	"github.com/NethermindEth/juno/core/felt"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

const (
	base10 = 10
	base16 = 16

	// maxShortStringLength is the number of ASCII characters that fit into a single felt
	maxShortStringLength = 31
)

var (
	// FieldPrime is the Stark field modulus 2^251 + 17*2^192 + 1
	FieldPrime = func() *big.Int {
		p := new(big.Int).Lsh(big.NewInt(1), 251)
		p.Add(p, new(big.Int).Lsh(big.NewInt(17), 192))
		return p.Add(p, big.NewInt(1))
	}()

	// mask250 keeps the low 250 bits of a keccak digest (starknet_keccak)
	mask250 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 250), big.NewInt(1))

	// Max128 is the exclusive upper bound of an u128 value
	Max128 = new(big.Int).Lsh(big.NewInt(1), 128)

	ErrInvalidFelt        = errors.New("invalid field element")
	ErrShortStringTooLong = errors.New("short string exceeds 31 characters")
)

// ParseFelt parses a 0x-prefixed hex string or a decimal string into a field element.
// Values outside of the field are rejected instead of being reduced.
func ParseFelt(s string) (*felt.Felt, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.Wrap(ErrInvalidFelt, "empty value")
	}

	var (
		n  = new(big.Int)
		ok bool
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		ok = len(s) > 2
		if ok {
			_, ok = n.SetString(s[2:], base16)
		}
	} else {
		_, ok = n.SetString(s, base10)
	}
	if !ok {
		return nil, errors.Wrapf(ErrInvalidFelt, "cannot parse %q", s)
	}

	return FeltFromBig(n)
}

// MustParseFelt is ParseFelt for compile-time constants.
func MustParseFelt(s string) *felt.Felt {
	f, err := ParseFelt(s)
	if err != nil {
		panic(err)
	}
	return f
}

// ParseFelts parses every element of values.
func ParseFelts(values []string) ([]*felt.Felt, error) {
	felts := make([]*felt.Felt, 0, len(values))
	for i, v := range values {
		f, err := ParseFelt(v)
		if err != nil {
			return nil, errors.Wrapf(err, "element %d", i)
		}
		felts = append(felts, f)
	}
	return felts, nil
}

// FeltFromUint64 returns v as a field element.
func FeltFromUint64(v uint64) *felt.Felt {
	return new(felt.Felt).SetUint64(v)
}

// FeltFromBig converts a non-negative integer below the field prime.
func FeltFromBig(n *big.Int) (*felt.Felt, error) {
	if n.Sign() < 0 || n.Cmp(FieldPrime) >= 0 {
		return nil, errors.Wrapf(ErrInvalidFelt, "value %s out of range", n.String())
	}
	return new(felt.Felt).SetBigInt(n), nil
}

// FeltFromBytes interprets b as a big-endian integer.
func FeltFromBytes(b []byte) (*felt.Felt, error) {
	return FeltFromBig(new(big.Int).SetBytes(b))
}

// FeltToBig returns the integer value of f.
func FeltToBig(f *felt.Felt) *big.Int {
	b := f.Bytes()
	return new(big.Int).SetBytes(b[:])
}

// FeltToDecimal renders f the way calldata compilers emit it.
func FeltToDecimal(f *felt.Felt) string {
	return FeltToBig(f).Text(base10)
}

// FeltToHex renders f as a minimal 0x-prefixed hex string.
func FeltToHex(f *felt.Felt) string {
	return "0x" + FeltToBig(f).Text(base16)
}

// FeltsToHex renders every element as hex.
func FeltsToHex(felts []*felt.Felt) []string {
	out := make([]string, 0, len(felts))
	for _, f := range felts {
		out = append(out, FeltToHex(f))
	}
	return out
}

// EncodeShortString packs an ASCII string of at most 31 characters into a felt.
func EncodeShortString(s string) (*felt.Felt, error) {
	if len(s) > maxShortStringLength {
		return nil, errors.Wrapf(ErrShortStringTooLong, "%q", s)
	}
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return nil, errors.Errorf("short string %q is not ASCII", s)
		}
	}
	return FeltFromBytes([]byte(s))
}

// MustShortString is EncodeShortString for constants.
func MustShortString(s string) *felt.Felt {
	f, err := EncodeShortString(s)
	if err != nil {
		panic(err)
	}
	return f
}

// DecodeShortString is the inverse of EncodeShortString.
func DecodeShortString(f *felt.Felt) string {
	return string(FeltToBig(f).Bytes())
}

// StarknetKeccak is keccak256 truncated to 250 bits.
func StarknetKeccak(data []byte) *felt.Felt {
	digest := new(big.Int).SetBytes(ethcrypto.Keccak256(data))
	return new(felt.Felt).SetBigInt(digest.And(digest, mask250))
}

// Selector returns the entry point selector for a function name.
func Selector(name string) *felt.Felt {
	return StarknetKeccak([]byte(name))
}

// SplitU256 splits a 256-bit value into its (low, high) 128-bit limbs.
func SplitU256(n *big.Int) (low, high *felt.Felt) {
	lowBig := new(big.Int).Mod(n, Max128)
	highBig := new(big.Int).Rsh(n, 128)
	return new(felt.Felt).SetBigInt(lowBig), new(felt.Felt).SetBigInt(highBig)
}

// JoinU256 rebuilds a 256-bit value from its limbs.
func JoinU256(low, high *felt.Felt) (*big.Int, error) {
	l, h := FeltToBig(low), FeltToBig(high)
	if l.Cmp(Max128) >= 0 || h.Cmp(Max128) >= 0 {
		return nil, errors.New("u256 limb exceeds 128 bits")
	}
	return new(big.Int).Add(l, new(big.Int).Lsh(h, 128)), nil
}
