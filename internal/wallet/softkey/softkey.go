// Package softkey is a development stand-in for the Ledger Ethereum app. It derives secp256k1 keys
// from a BIP39 mnemonic and personal-signs hashes exactly like the device does.
package softkey

import (
	"context"
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/accounts"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github/chapool/go-stark-signer/internal/wallet/device"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
)

// Device signs with keys held in process memory.
type Device struct {
	seed *seedHolder
}

var _ device.Device = (*Device)(nil)

func New(mnemonic string, passphrase string) (*Device, error) {
	seed, err := newSeedHolder(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	return &Device{seed: seed}, nil
}

// DerivePublicKey returns the uncompressed public key at path.
func (d *Device) DerivePublicKey(ctx context.Context, path starknet.DerivationPath) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	priv, err := d.privateKey(path)
	if err != nil {
		return nil, err
	}

	return ethcrypto.FromECDSAPub(&priv.PublicKey), nil
}

// SignHash signs the EIP-191 personal message digest of hash.
func (d *Device) SignHash(ctx context.Context, path starknet.DerivationPath, hash [32]byte) (device.RawSignature, error) {
	if err := ctx.Err(); err != nil {
		return device.RawSignature{}, err
	}

	priv, err := d.privateKey(path)
	if err != nil {
		return device.RawSignature{}, err
	}

	sig, err := ethcrypto.Sign(accounts.TextHash(hash[:]), priv)
	if err != nil {
		return device.RawSignature{}, errors.Wrap(err, "failed to sign")
	}

	var out device.RawSignature
	copy(out.R[:], sig[0:32])
	copy(out.S[:], sig[32:64])
	out.V = sig[64]
	return out, nil
}

// Close wipes the seed. Later calls fail with ErrSeedCleared.
func (d *Device) Close() error {
	d.seed.clear()
	return nil
}

func (d *Device) privateKey(path starknet.DerivationPath) (*ecdsa.PrivateKey, error) {
	raw, err := d.seed.derivePrivateKey(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		for i := range raw {
			raw[i] = 0
		}
	}()

	priv, err := ethcrypto.ToECDSA(raw)
	if err != nil {
		return nil, errors.Wrap(err, "invalid derived key")
	}
	return priv, nil
}
