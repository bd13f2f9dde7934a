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
	starknetCLA         = 0x5A
	starknetInsGetPub   = 0x01
	starknetInsSignHash = 0x02

	signP1Path = 0x00
	signP1Hash = 0x01

	uncompressedPrefix = 0x04
	signatureSize      = 65
)

// StarknetApp drives the Starknet Ledger app.
type StarknetApp struct {
	transport Transport
}

var _ device.Device = (*StarknetApp)(nil)

func NewStarknetApp(t Transport) *StarknetApp {
	return &StarknetApp{transport: t}
}

// DerivePublicKey returns X||Y of the stark public key at path.
func (a *StarknetApp) DerivePublicKey(ctx context.Context, path starknet.DerivationPath) ([]byte, error) {
	data, err := exchange(ctx, a.transport, "get_public_key", apdu.Capdu{
		Cla:  starknetCLA,
		Ins:  starknetInsGetPub,
		Data: serializePath(path),
	})
	if err != nil {
		return nil, err
	}

	if len(data) < 1+64 || data[0] != uncompressedPrefix {
		return nil, device.NewError(device.KindMalformedResponse, "get_public_key",
			errors.Errorf("unexpected public key response of %d bytes", len(data)))
	}

	out := make([]byte, 64)
	copy(out, data[1:65])
	return out, nil
}

// SignHash sends the path, then the hash, and waits for the user to approve on the device.
func (a *StarknetApp) SignHash(ctx context.Context, path starknet.DerivationPath, hash [32]byte) (device.RawSignature, error) {
	if _, err := exchange(ctx, a.transport, "sign_hash", apdu.Capdu{
		Cla:  starknetCLA,
		Ins:  starknetInsSignHash,
		P1:   signP1Path,
		Data: serializePath(path),
	}); err != nil {
		return device.RawSignature{}, err
	}

	data, err := exchange(ctx, a.transport, "sign_hash", apdu.Capdu{
		Cla:  starknetCLA,
		Ins:  starknetInsSignHash,
		P1:   signP1Hash,
		Data: hash[:],
	})
	if err != nil {
		return device.RawSignature{}, err
	}

	// some app versions prefix the signature with its length
	if len(data) == signatureSize+1 && data[0] == signatureSize {
		data = data[1:]
	}
	if len(data) != signatureSize {
		return device.RawSignature{}, device.NewError(device.KindMalformedResponse, "sign_hash",
			errors.Errorf("unexpected signature response of %d bytes", len(data)))
	}

	var sig device.RawSignature
	copy(sig.R[:], data[0:32])
	copy(sig.S[:], data[32:64])
	sig.V = data[64]
	return sig, nil
}

// serializePath encodes every index as 4 big endian bytes.
func serializePath(path starknet.DerivationPath) []byte {
	indices := path.Indices()
	out := make([]byte, 4*len(indices))
	for i, idx := range indices {
		binary.BigEndian.PutUint32(out[4*i:], idx)
	}
	return out
}
