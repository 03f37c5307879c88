// Package serial adapts a real TTY, via github.com/daedaluz/goserial, to
// the pkg/transport.Transport interface.
package serial

import (
	"errors"
	"time"

	goserial "github.com/daedaluz/goserial"
)

// BaudRate enumerates the speeds goserial exposes as termios CFlag
// constants; only the handful a manager realistically dials are named here.
type BaudRate = goserial.CFlag

const (
	Baud9600   BaudRate = goserial.B9600
	Baud115200 BaudRate = goserial.B115200
)

// Port wraps a goserial.Port as a pkg/transport.Transport. Read is
// nonblocking: the zero read timeout configured at Open makes the
// underlying syscall return immediately when no byte is queued.
type Port struct {
	port *goserial.Port
}

// Open opens device at the given baud rate, 8N1, raw mode, with a
// nonblocking read timeout.
func Open(device string, baud BaudRate) (*Port, error) {
	opts := goserial.NewOptions().SetReadTimeout(0)
	p, err := goserial.Open(device, opts)
	if err != nil {
		return nil, err
	}

	attrs, err := p.GetAttr()
	if err != nil {
		p.Close()
		return nil, err
	}
	attrs.MakeRaw()
	attrs.SetSpeed(baud)
	if err := p.SetAttr(goserial.TCSANOW, attrs); err != nil {
		p.Close()
		return nil, err
	}

	return &Port{port: p}, nil
}

func (p *Port) Write(data []byte) (int, error) { return p.port.Write(data) }

// Read performs a timed, effectively-nonblocking read: any byte already
// queued by the driver is returned immediately, otherwise (0, nil) after a
// brief poll window.
func (p *Port) Read(buf []byte) (int, error) {
	n, err := p.port.ReadTimeout(buf, time.Millisecond)
	if err != nil {
		if errors.Is(err, goserial.ErrClosed) {
			return n, err
		}
		// A timeout with nothing queued is the expected "no byte yet"
		// outcome of a poll cycle, not a transport failure.
		return n, nil
	}
	return n, nil
}

func (p *Port) Discard() error { return p.port.Flush(goserial.TCIFLUSH) }

func (p *Port) Close() error { return p.port.Close() }
