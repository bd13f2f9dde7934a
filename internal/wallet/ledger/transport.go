// Package ledger talks to the Starknet and Ethereum Ledger apps over HID or the Speculos emulator.
package ledger

import (
	"context"

	"github.com/pkg/errors"
	"github.com/skythen/apdu"
	"github/chapool/go-stark-signer/internal/wallet/device"
)

// Transport moves one raw command APDU to the device and returns the raw response APDU,
// status word included.
type Transport interface {
	Exchange(ctx context.Context, command []byte) ([]byte, error)
	Close() error
}

// exchange encodes capdu, sends it and returns the response data once the status word is 0x9000.
func exchange(ctx context.Context, t Transport, op string, capdu apdu.Capdu) ([]byte, error) {
	cmd, err := capdu.Bytes()
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode apdu")
	}

	raw, err := t.Exchange(ctx, cmd)
	if err != nil {
		if ctx.Err() != nil {
			return nil, device.NewError(device.KindTimeout, op, ctx.Err())
		}
		return nil, device.NewError(device.KindNotConnected, op, err)
	}

	rapdu, err := apdu.ParseRapdu(raw)
	if err != nil {
		return nil, device.NewError(device.KindMalformedResponse, op, err)
	}

	if err := checkStatus(op, StatusWord(rapdu.SW1)<<8|StatusWord(rapdu.SW2)); err != nil {
		return nil, err
	}

	return rapdu.Data, nil
}
