package ledger

import (
	"context"
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/skythen/apdu"
	"github/chapool/go-stark-signer/internal/wallet/device"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
)

const (
	ethereumCLA             = 0xE0
	ethereumInsGetAddress   = 0x02
	ethereumInsPersonalSign = 0x08

	personalSignFirstChunk = 0x00
	eip155Offset           = 27
)

// EthereumApp drives the Ethereum Ledger app. Hashes are signed as EIP-191 personal messages,
// so the device shows and signs "\x19Ethereum Signed Message:\n32" || hash.
type EthereumApp struct {
	transport Transport
}

var _ device.Device = (*EthereumApp)(nil)

func NewEthereumApp(t Transport) *EthereumApp {
	return &EthereumApp{transport: t}
}

// DerivePublicKey returns the uncompressed 65 byte secp256k1 public key at path.
func (a *EthereumApp) DerivePublicKey(ctx context.Context, path starknet.DerivationPath) ([]byte, error) {
	data, err := exchange(ctx, a.transport, "get_public_key", apdu.Capdu{
		Cla:  ethereumCLA,
		Ins:  ethereumInsGetAddress,
		Data: serializeCountedPath(path),
	})
	if err != nil {
		return nil, err
	}

	if len(data) < 1 || int(data[0]) > len(data)-1 {
		return nil, device.NewError(device.KindMalformedResponse, "get_public_key",
			errors.Errorf("unexpected address response of %d bytes", len(data)))
	}

	size := int(data[0])
	out := make([]byte, size)
	copy(out, data[1:1+size])
	return out, nil
}

// SignHash personal-signs hash. V is normalized to the y parity.
func (a *EthereumApp) SignHash(ctx context.Context, path starknet.DerivationPath, hash [32]byte) (device.RawSignature, error) {
	payload := serializeCountedPath(path)
	payload = binary.BigEndian.AppendUint32(payload, uint32(len(hash)))
	payload = append(payload, hash[:]...)

	data, err := exchange(ctx, a.transport, "sign_hash", apdu.Capdu{
		Cla:  ethereumCLA,
		Ins:  ethereumInsPersonalSign,
		P1:   personalSignFirstChunk,
		Data: payload,
	})
	if err != nil {
		return device.RawSignature{}, err
	}

	if len(data) != signatureSize {
		return device.RawSignature{}, device.NewError(device.KindMalformedResponse, "sign_hash",
			errors.Errorf("unexpected signature response of %d bytes", len(data)))
	}

	var sig device.RawSignature
	sig.V = data[0]
	if sig.V >= eip155Offset {
		sig.V -= eip155Offset
	}
	if sig.V > 1 {
		return device.RawSignature{}, device.NewError(device.KindMalformedResponse, "sign_hash",
			errors.Errorf("invalid recovery id %d", data[0]))
	}
	copy(sig.R[:], data[1:33])
	copy(sig.S[:], data[33:65])
	return sig, nil
}

// serializeCountedPath prefixes the big endian indices with their count.
func serializeCountedPath(path starknet.DerivationPath) []byte {
	return append([]byte{byte(len(path.Indices()))}, serializePath(path)...)
}
