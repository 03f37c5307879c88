// Package transaction implements the manager-side request/response engine:
// sequence allocation, response matching, per-operation request assembly,
// and the chunked bulk VMEM transfer loops.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paradigmatech/gos3p/pkg/packet"
	"github.com/paradigmatech/gos3p/pkg/transport"
	log "github.com/sirupsen/logrus"
)

// ResponseTimeout is the fixed per-response ceiling the engine enforces.
// There is no aggregate timeout for bulk transfers; they rely on this
// per-chunk bound alone.
const ResponseTimeout = 10 * time.Second

// PollInterval is the sleep between single-byte transport polls while
// assembling an inbound frame.
const PollInterval = 10 * time.Millisecond

var (
	ErrTimeout          = errors.New("transaction: response timeout")
	ErrSequenceMismatch = errors.New("transaction: response sequence does not match request")
	ErrUnexpectedType   = errors.New("transaction: response type is not the request's twin")
	ErrFrameOverrun     = errors.New("transaction: inbound frame exceeded max size, discarded")
	ErrCanceled         = errors.New("transaction: canceled")
)

// ProtocolError wraps a node-reported ErrorCode so callers can recover it
// with errors.As while still getting a readable message from Error().
type ProtocolError struct {
	Code packet.ErrorCode
}

func (e *ProtocolError) Error() string { return e.Code.Error() }

// Engine owns a Transport and drives the manager side of the protocol. It
// is not safe for concurrent use: the protocol allows exactly one
// outstanding request at a time.
type Engine struct {
	tr       transport.Transport
	managerID uint8
	nodeID    uint8
	seq       uint8
	logger    *log.Logger
}

// New constructs an Engine. logger may be nil, in which case
// logrus.StandardLogger() is used.
func New(tr transport.Transport, managerID, nodeID uint8, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Engine{tr: tr, managerID: managerID, nodeID: nodeID, logger: logger}
}

func (e *Engine) nextSeq() uint8 {
	e.seq = (e.seq + 1) & 0x0F
	return e.seq
}

// Roundtrip sends reqType/data to the node and returns the matching
// response packet, enforcing sequence matching, type-twin matching, and
// the response timeout. It does not retry.
func (e *Engine) Roundtrip(ctx context.Context, reqType packet.Type, data []byte) (packet.Packet, error) {
	seq := e.nextSeq()
	req := packet.Packet{
		SrcID: e.managerID,
		DstID: e.nodeID,
		Seq:   seq,
		Type:  reqType,
		Data:  data,
	}

	if err := e.tr.Discard(); err != nil {
		return packet.Packet{}, err
	}

	frame, err := packet.MakeFrame(req)
	if err != nil {
		return packet.Packet{}, err
	}
	e.logger.Debugf("[TX][x%x] %v seq=%d data=%v", e.nodeID, reqType, seq, data)
	if _, err := e.tr.Write(frame); err != nil {
		return packet.Packet{}, err
	}

	wantType := packet.ResponseOf(reqType)
	for {
		raw, err := e.readFrame(ctx)
		if err != nil {
			return packet.Packet{}, err
		}

		rsp, err := packet.ParseFrame(raw, e.managerID)
		if err != nil {
			if errors.Is(err, packet.ErrNotForUs) {
				continue
			}
			e.logger.Warnf("[RX][x%x] discarded malformed frame: %v", e.nodeID, err)
			return packet.Packet{}, err
		}

		if rsp.Seq != seq {
			e.logger.Warnf("[RX][x%x] sequence mismatch: got %d want %d, discarding", e.nodeID, rsp.Seq, seq)
			return packet.Packet{}, ErrSequenceMismatch
		}
		if rsp.Type != wantType {
			e.logger.Warnf("[RX][x%x] unexpected response type x%x, want x%x", e.nodeID, uint8(rsp.Type), uint8(wantType))
			return packet.Packet{}, ErrUnexpectedType
		}
		e.logger.Debugf("[RX][x%x] %v seq=%d data=%v", e.nodeID, rsp.Type, rsp.Seq, rsp.Data)
		return rsp, nil
	}
}

// readFrame assembles one delimiter-terminated, COBS-encoded frame from
// the transport by polling single bytes, honoring ctx cancellation and
// the response timeout.
func (e *Engine) readFrame(ctx context.Context) ([]byte, error) {
	deadline := time.Now().Add(ResponseTimeout)
	buf := make([]byte, 0, packet.MaxFramedBytes)
	one := make([]byte, 1)

	for {
		select {
		case <-ctx.Done():
			return nil, ErrCanceled
		default:
		}
		if time.Now().After(deadline) {
			e.logger.Warnf("[RX][x%x] no response within %v", e.nodeID, ResponseTimeout)
			return nil, ErrTimeout
		}

		n, err := e.tr.Read(one)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			time.Sleep(PollInterval)
			continue
		}

		if one[0] == 0x00 {
			if len(buf) == 0 {
				continue // tolerate leading/stray delimiters
			}
			return buf, nil
		}

		buf = append(buf, one[0])
		if len(buf) > packet.MaxFramedBytes {
			e.logger.Warnf("[RX][x%x] frame exceeded %d bytes, discarding", e.nodeID, packet.MaxFramedBytes)
			if err := e.tr.Discard(); err != nil {
				return nil, err
			}
			return nil, ErrFrameOverrun
		}
	}
}

func checkCode(data []byte) (packet.ErrorCode, []byte, error) {
	if len(data) < 1 {
		return 0, nil, fmt.Errorf("transaction: response payload empty, missing error code")
	}
	code := packet.ErrorCode(data[0])
	if code != packet.ErrNone {
		return code, nil, &ProtocolError{Code: code}
	}
	return code, data[1:], nil
}
