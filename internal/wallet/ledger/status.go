package ledger

import (
	"fmt"

	"github.com/pkg/errors"
	"github/chapool/go-stark-signer/internal/wallet/device"
)

// StatusWord is the trailing SW1SW2 of a response APDU.
type StatusWord uint16

const (
	StatusOK                     StatusWord = 0x9000
	StatusDenied                 StatusWord = 0x6985
	StatusConditionsNotSatisfied StatusWord = 0x6986
	StatusWrongLength            StatusWord = 0x6700
	StatusInvalidData            StatusWord = 0x6A80
	StatusWrongP1P2              StatusWord = 0x6B00
	StatusInsNotSupported        StatusWord = 0x6D00
	StatusClaNotSupported        StatusWord = 0x6E00
	StatusAppNotOpen             StatusWord = 0x6511
	StatusLocked                 StatusWord = 0x5515
	StatusWrongApp               StatusWord = 0x650F
	StatusNoAppResponse          StatusWord = 0x6A83
)

func (s StatusWord) String() string {
	return fmt.Sprintf("0x%04X", uint16(s))
}

// checkStatus maps a status word onto the device error taxonomy. Rejections on the device are
// UserRejected; a locked device or a closed or wrong app is NotConnected.
func checkStatus(op string, sw StatusWord) error {
	switch sw {
	case StatusOK:
		return nil
	case StatusDenied, StatusConditionsNotSatisfied:
		return device.NewError(device.KindUserRejected, op, errors.Errorf("status %s", sw))
	case StatusClaNotSupported, StatusInsNotSupported, StatusAppNotOpen, StatusWrongApp, StatusNoAppResponse, StatusLocked:
		return device.NewError(device.KindNotConnected, op, errors.Errorf("status %s", sw))
	default:
		return device.NewError(device.KindMalformedResponse, op, errors.Errorf("status %s", sw))
	}
}
