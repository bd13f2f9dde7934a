package signature

import (
	"math/big"
	"strconv"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/pkg/errors"
	"github/chapool/go-stark-signer/internal/wallet/device"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
)

var (
	ErrUnsupportedIdentity = errors.New("signer identity cannot produce signatures")
	ErrInvalidSignature    = errors.New("invalid signature")
)

const (
	starknetSignatureLen = 4
	secpSignatureLen     = 7

	// legacy Ethereum recovery ids are offset by 27
	legacyVOffset = 27
)

// EncodedSignature is the serialized signer enum: the tag and the signer key followed by the
// signature. Keys are hex, every other element is decimal, as the account's signature parser
// expects.
type EncodedSignature []string

// Felts parses every element, accepting both hex and decimal.
func (e EncodedSignature) Felts() ([]*felt.Felt, error) {
	return starknet.ParseFelts(e)
}

// Hex renders every element as hex for RPC submission.
func (e EncodedSignature) Hex() ([]string, error) {
	felts, err := e.Felts()
	if err != nil {
		return nil, err
	}
	return starknet.FeltsToHex(felts), nil
}

// Encode serializes sig for identity.
func Encode(identity SignerIdentity, sig device.RawSignature) (EncodedSignature, error) {
	switch id := identity.(type) {
	case StarknetSigner:
		if id.PublicKey == nil {
			return nil, errors.Wrap(ErrInvalidSignature, "missing stark public key")
		}
		r, err := starknet.FeltFromBytes(sig.R[:])
		if err != nil {
			return nil, errors.Wrap(ErrInvalidSignature, "r out of range")
		}
		s, err := starknet.FeltFromBytes(sig.S[:])
		if err != nil {
			return nil, errors.Wrap(ErrInvalidSignature, "s out of range")
		}
		return EncodedSignature{
			tag(TagStarknet),
			starknet.FeltToHex(id.PublicKey),
			starknet.FeltToDecimal(r),
			starknet.FeltToDecimal(s),
		}, nil

	case Eip191Signer:
		if id.EthAddress == nil {
			return nil, errors.Wrap(ErrInvalidSignature, "missing eth address")
		}
		return encodeSecp(TagEip191, id.EthAddress, sig)

	case Secp256k1Signer:
		if id.PubkeyHash == nil {
			return nil, errors.Wrap(ErrInvalidSignature, "missing pubkey hash")
		}
		return encodeSecp(TagSecp256k1, id.PubkeyHash, sig)

	case Secp256r1Signer, WebauthnSigner:
		return nil, errors.Wrapf(ErrUnsupportedIdentity, "%s", identity.Tag())

	default:
		return nil, errors.Wrapf(ErrUnsupportedIdentity, "%T", identity)
	}
}

func encodeSecp(t Tag, key *felt.Felt, sig device.RawSignature) (EncodedSignature, error) {
	parity, err := yParity(sig.V)
	if err != nil {
		return nil, err
	}

	rLow, rHigh := starknet.SplitU256(new(big.Int).SetBytes(sig.R[:]))
	sLow, sHigh := starknet.SplitU256(new(big.Int).SetBytes(sig.S[:]))

	return EncodedSignature{
		tag(t),
		starknet.FeltToHex(key),
		starknet.FeltToDecimal(rLow),
		starknet.FeltToDecimal(rHigh),
		starknet.FeltToDecimal(sLow),
		starknet.FeltToDecimal(sHigh),
		strconv.Itoa(int(parity)),
	}, nil
}

func yParity(v byte) (byte, error) {
	if v >= legacyVOffset {
		v -= legacyVOffset
	}
	if v > 1 {
		return 0, errors.Wrapf(ErrInvalidSignature, "recovery id %d", v)
	}
	return v, nil
}

func tag(t Tag) string {
	return strconv.Itoa(int(t))
}

// Decode parses an encoded signature back into the identity and raw signature. It is the
// reference for what the account contract reads.
func Decode(encoded EncodedSignature) (SignerIdentity, device.RawSignature, error) {
	felts, err := encoded.Felts()
	if err != nil {
		return nil, device.RawSignature{}, errors.Wrap(ErrInvalidSignature, err.Error())
	}
	if len(felts) == 0 {
		return nil, device.RawSignature{}, errors.Wrap(ErrInvalidSignature, "empty signature")
	}

	t, err := parseTag(felts[0])
	if err != nil {
		return nil, device.RawSignature{}, err
	}

	switch t {
	case TagStarknet:
		if len(felts) != starknetSignatureLen {
			return nil, device.RawSignature{}, errors.Wrapf(ErrInvalidSignature, "starknet signature has %d elements", len(felts))
		}
		var sig device.RawSignature
		sig.R = felts[2].Bytes()
		sig.S = felts[3].Bytes()
		return StarknetSigner{PublicKey: felts[1]}, sig, nil

	case TagEip191, TagSecp256k1:
		if len(felts) != secpSignatureLen {
			return nil, device.RawSignature{}, errors.Wrapf(ErrInvalidSignature, "%s signature has %d elements", t, len(felts))
		}
		r, err := starknet.JoinU256(felts[2], felts[3])
		if err != nil {
			return nil, device.RawSignature{}, errors.Wrap(ErrInvalidSignature, err.Error())
		}
		s, err := starknet.JoinU256(felts[4], felts[5])
		if err != nil {
			return nil, device.RawSignature{}, errors.Wrap(ErrInvalidSignature, err.Error())
		}
		parity := starknet.FeltToBig(felts[6])
		if !parity.IsUint64() || parity.Uint64() > 1 {
			return nil, device.RawSignature{}, errors.Wrap(ErrInvalidSignature, "y parity is not a bool")
		}

		var sig device.RawSignature
		r.FillBytes(sig.R[:])
		s.FillBytes(sig.S[:])
		sig.V = byte(parity.Uint64())

		if t == TagEip191 {
			return Eip191Signer{EthAddress: felts[1]}, sig, nil
		}
		return Secp256k1Signer{PubkeyHash: felts[1]}, sig, nil

	default:
		return nil, device.RawSignature{}, errors.Wrapf(ErrUnsupportedIdentity, "%s", t)
	}
}

func parseTag(f *felt.Felt) (Tag, error) {
	n := starknet.FeltToBig(f)
	if !n.IsUint64() || n.Uint64() >= variantCount {
		return 0, errors.Wrapf(ErrInvalidSignature, "unknown signer tag %s", n)
	}
	return Tag(n.Uint64()), nil
}

// EncodeSigner serializes identity as a constructor argument: the tag followed by the variant's
// fields.
func EncodeSigner(identity SignerIdentity) ([]*felt.Felt, error) {
	if identity == nil {
		return nil, errors.New("missing signer identity")
	}
	out := []*felt.Felt{starknet.FeltFromUint64(uint64(identity.Tag()))}

	switch id := identity.(type) {
	case StarknetSigner:
		if id.PublicKey == nil {
			return nil, errors.New("missing stark public key")
		}
		return append(out, id.PublicKey), nil

	case Secp256k1Signer:
		if id.PubkeyHash == nil {
			return nil, errors.New("missing pubkey hash")
		}
		return append(out, id.PubkeyHash), nil

	case Eip191Signer:
		if id.EthAddress == nil {
			return nil, errors.New("missing eth address")
		}
		return append(out, id.EthAddress), nil

	case Secp256r1Signer:
		if id.PublicKey == nil {
			return nil, errors.New("missing secp256r1 public key")
		}
		low, high := starknet.SplitU256(id.PublicKey)
		return append(out, low, high), nil

	case WebauthnSigner:
		if id.RPIDHash == nil || id.PublicKey == nil {
			return nil, errors.New("missing webauthn key material")
		}
		out = append(out, starknet.FeltFromUint64(uint64(len(id.Origin))))
		for _, b := range id.Origin {
			out = append(out, starknet.FeltFromUint64(uint64(b)))
		}
		rpLow, rpHigh := starknet.SplitU256(id.RPIDHash)
		pubLow, pubHigh := starknet.SplitU256(id.PublicKey)
		return append(out, rpLow, rpHigh, pubLow, pubHigh), nil

	default:
		return nil, errors.Wrapf(ErrUnsupportedIdentity, "%T", identity)
	}
}
