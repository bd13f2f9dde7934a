package ledger

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github/chapool/go-stark-signer/internal/util"
)

var ErrTransportClosed = errors.New("speculos transport closed")

type speculosReply struct {
	seq  uint64
	data []byte
	err  error
}

// SpeculosTransport speaks the raw APDU socket of the Speculos emulator: every command is sent
// as a 4 byte big endian length followed by the APDU, every reply is a 4 byte length, the data
// and the 2 byte status word.
//
// Replies are read by a single goroutine and numbered in arrival order. An Exchange that gives
// up leaves its reply behind; the next Exchange discards it and waits for the reply to its own
// command.
type SpeculosTransport struct {
	mu      sync.Mutex
	conn    net.Conn
	sent    uint64
	broken  error
	replies chan speculosReply
	done    chan struct{}
	once    sync.Once
}

// DialSpeculos connects to the emulator APDU port, usually 127.0.0.1:9999.
func DialSpeculos(ctx context.Context, address string) (*SpeculosTransport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial speculos at %s", address)
	}

	return NewSpeculosTransport(conn), nil
}

func NewSpeculosTransport(conn net.Conn) *SpeculosTransport {
	s := &SpeculosTransport{
		conn:    conn,
		replies: make(chan speculosReply),
		done:    make(chan struct{}),
	}
	go s.readLoop()

	return s
}

func (s *SpeculosTransport) Exchange(ctx context.Context, command []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.broken != nil {
		return nil, s.broken
	}
	if err := s.write(ctx, command); err != nil {
		return nil, err
	}
	s.sent++
	want := s.sent

	for {
		select {
		case r, ok := <-s.replies:
			if !ok {
				return nil, ErrTransportClosed
			}
			if r.err != nil {
				s.broken = r.err
				return nil, r.err
			}
			if r.seq < want {
				util.LogFromContext(ctx).Debug().Uint64("seq", r.seq).Msg("Discarding reply of an abandoned exchange")
				continue
			}
			return r.data, nil

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// write sends command. A write cut short leaves a partial frame on the socket, after which the
// emulator can no longer be spoken to.
func (s *SpeculosTransport) write(ctx context.Context, command []byte) error {
	deadline, _ := ctx.Deadline()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return errors.Wrap(err, "failed to set write deadline")
	}
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	msg := make([]byte, 4, 4+len(command))
	binary.BigEndian.PutUint32(msg, uint32(len(command)))
	msg = append(msg, command...)

	n, err := s.conn.Write(msg)
	if err != nil {
		err = errors.Wrap(err, "failed to write apdu")
		if n > 0 {
			s.broken = err
		}
		return err
	}

	return nil
}

func (s *SpeculosTransport) readLoop() {
	defer close(s.replies)

	for seq := uint64(1); ; seq++ {
		data, err := readSpeculosReply(s.conn)
		select {
		case s.replies <- speculosReply{seq: seq, data: data, err: err}:
		case <-s.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func readSpeculosReply(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, errors.Wrap(err, "failed to read reply length")
	}

	reply := make([]byte, int(binary.BigEndian.Uint32(header[:]))+2)
	if _, err := io.ReadFull(r, reply); err != nil {
		return nil, errors.Wrap(err, "failed to read reply")
	}

	return reply, nil
}

func (s *SpeculosTransport) Close() error {
	s.once.Do(func() { close(s.done) })
	return s.conn.Close()
}
