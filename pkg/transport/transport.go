// Package transport defines the abstract byte stream the protocol runs
// over and an in-memory test double for driving the transaction engine
// without real hardware.
package transport

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/paradigmatech/gos3p/internal/fifo"
)

// ErrClosed is returned by operations on a closed Transport.
var ErrClosed = errors.New("transport: closed")

// Transport is the abstract byte stream the protocol consumes. It is
// deliberately narrow: the OS-level serial configuration (baud rate,
// parity, line discipline) lives below this interface, in a concrete
// implementation such as pkg/transport/serial.
type Transport interface {
	// Write is a best-effort push of data onto the wire.
	Write(data []byte) (n int, err error)
	// Read performs a single nonblocking read of up to len(buf) bytes,
	// returning (0, nil) when no byte is currently available.
	Read(buf []byte) (n int, err error)
	// Discard drops any buffered inbound bytes.
	Discard() error
	// Close releases the underlying resource.
	Close() error
}

// Pipe is an in-memory Transport backed by net.Pipe, intended for tests
// that script a fake node against the transaction engine. Reads are
// nonblocking: if no byte is queued, Read returns (0, nil) instead of
// blocking, matching the poll-based contract real transports must honor.
type Pipe struct {
	conn net.Conn

	mu      sync.Mutex
	inbound *fifo.Fifo
	closed  bool
}

// pipeBufferSize bounds the inbound queue; real UART FIFOs overrun when
// the consumer falls behind, and the pipe mimics that by dropping bytes
// that do not fit.
const pipeBufferSize = 64 * 1024

// NewPipePair returns two linked Pipes; bytes written to one are readable
// from the other, mirroring a loopback serial cable.
func NewPipePair() (local, remote *Pipe) {
	a, b := net.Pipe()
	local = newPipe(a)
	remote = newPipe(b)
	return local, remote
}

func newPipe(conn net.Conn) *Pipe {
	p := &Pipe{conn: conn, inbound: fifo.NewFifo(pipeBufferSize)}
	go p.pump()
	return p
}

// pump continuously drains the underlying net.Conn into an internal
// buffer so Read can be nonblocking, since net.Pipe itself has no
// nonblocking read mode.
func (p *Pipe) pump() {
	tmp := make([]byte, 4096)
	for {
		n, err := p.conn.Read(tmp)
		if n > 0 {
			p.mu.Lock()
			p.inbound.Write(tmp[:n])
			p.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

func (p *Pipe) Write(data []byte) (int, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}
	return p.conn.Write(data)
}

func (p *Pipe) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrClosed
	}
	return p.inbound.Read(buf), nil
}

func (p *Pipe) Discard() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inbound.Reset()
	return nil
}

func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	err := p.conn.Close()
	if errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}
