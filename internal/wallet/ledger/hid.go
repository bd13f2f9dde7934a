package ledger

import (
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

const (
	hidPacketSize = 64
	hidChannel    = 0x0101
	hidTagAPDU    = 0x05

	// ledgerVendorID as it appears in HID_ID of a hidraw uevent.
	ledgerVendorID = "00002C97"
)

var (
	ErrNoLedgerFound      = errors.New("no ledger hid device found")
	errInvalidReplyHeader = errors.New("invalid ledger reply header")
	errInvalidReplySeq    = errors.New("unexpected ledger reply sequence")
)

// HIDTransport frames APDUs into 64 byte HID reports.
//
// Each report is laid out as
//
//	channel id (big endian)        | 2 bytes
//	command tag                    | 1 byte
//	packet sequence (big endian)   | 2 bytes
//	payload                        | remaining bytes
//
// and the first payload of a message is prefixed with the 2 byte big endian APDU length.
type HIDTransport struct {
	mu       sync.Mutex
	rw       io.ReadWriteCloser
	reportID bool
}

// NewHIDTransport frames over rw. With reportID set every written report is prefixed with a
// zero report id, as hidraw nodes expect.
func NewHIDTransport(rw io.ReadWriteCloser, reportID bool) *HIDTransport {
	return &HIDTransport{rw: rw, reportID: reportID}
}

// OpenHID opens a hidraw node. An empty path picks the first Ledger found under /sys/class/hidraw.
func OpenHID(path string) (*HIDTransport, error) {
	if path == "" {
		found, err := FindLedgerHID()
		if err != nil {
			return nil, err
		}
		path = found
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}

	return NewHIDTransport(f, true), nil
}

// FindLedgerHID returns the /dev path of the first hidraw node whose vendor is Ledger.
func FindLedgerHID() (string, error) {
	uevents, err := filepath.Glob("/sys/class/hidraw/*/device/uevent")
	if err != nil {
		return "", errors.Wrap(err, "failed to list hidraw devices")
	}

	for _, uevent := range uevents {
		content, err := os.ReadFile(uevent)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(content), "\n") {
			if strings.HasPrefix(line, "HID_ID=") && strings.Contains(strings.ToUpper(line), ":"+ledgerVendorID+":") {
				node := filepath.Base(filepath.Dir(filepath.Dir(uevent)))
				return filepath.Join("/dev", node), nil
			}
		}
	}

	return "", ErrNoLedgerFound
}

// Exchange writes command and blocks until the full reply is read. The underlying read cannot be
// interrupted, so ctx is only checked before the write.
func (h *HIDTransport) Exchange(ctx context.Context, command []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, frame := range wrapAPDU(command) {
		if h.reportID {
			frame = append([]byte{0x00}, frame...)
		}
		if _, err := h.rw.Write(frame); err != nil {
			return nil, errors.Wrap(err, "failed to write hid report")
		}
	}

	return readAPDU(h.rw)
}

func (h *HIDTransport) Close() error {
	return h.rw.Close()
}

// wrapAPDU splits command into zero padded HID reports.
func wrapAPDU(command []byte) [][]byte {
	msg := make([]byte, 2, 2+len(command))
	binary.BigEndian.PutUint16(msg, uint16(len(command)))
	msg = append(msg, command...)

	var frames [][]byte
	for seq := 0; len(msg) > 0; seq++ {
		frame := make([]byte, hidPacketSize)
		binary.BigEndian.PutUint16(frame[0:], hidChannel)
		frame[2] = hidTagAPDU
		binary.BigEndian.PutUint16(frame[3:], uint16(seq))

		n := copy(frame[5:], msg)
		msg = msg[n:]
		frames = append(frames, frame)
	}

	return frames
}

// readAPDU reassembles a reply from HID reports.
func readAPDU(r io.Reader) ([]byte, error) {
	var (
		reply []byte
		total = -1
		chunk = make([]byte, hidPacketSize)
	)

	for seq := 0; total < 0 || len(reply) < total; seq++ {
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, errors.Wrap(err, "failed to read hid report")
		}
		if binary.BigEndian.Uint16(chunk[0:]) != hidChannel || chunk[2] != hidTagAPDU {
			return nil, errInvalidReplyHeader
		}
		if int(binary.BigEndian.Uint16(chunk[3:])) != seq {
			return nil, errInvalidReplySeq
		}

		payload := chunk[5:]
		if seq == 0 {
			total = int(binary.BigEndian.Uint16(payload))
			reply = make([]byte, 0, total)
			payload = payload[2:]
		}

		if left := total - len(reply); left < len(payload) {
			payload = payload[:left]
		}
		reply = append(reply, payload...)
	}

	return reply, nil
}
