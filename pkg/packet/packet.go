// Package packet implements the S3P packet header/trailer layer: building
// and parsing a 6-byte header plus payload plus CRC-16 trailer, COBS-framed
// and delimiter-terminated for the wire.
package packet

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/paradigmatech/gos3p/internal/cobs"
	"github.com/paradigmatech/gos3p/internal/crc"
)

// Type is a packet type code. Requests use an even low nibble; a response
// is always request+1.
type Type uint8

const (
	ExecCmdReq   Type = 0x10
	ExecCmdRsp   Type = 0x11
	ReadRegsReq  Type = 0x12
	ReadRegsRsp  Type = 0x13
	WriteRegReq  Type = 0x14
	WriteRegRsp  Type = 0x15
	ReadVmemReq  Type = 0x16
	ReadVmemRsp  Type = 0x17
	WriteVmemReq Type = 0x18
	WriteVmemRsp Type = 0x19
	ReadStrRegReq  Type = 0x1A
	ReadStrRegRsp  Type = 0x1B
	WriteStrRegReq Type = 0x1C
	WriteStrRegRsp Type = 0x1D
	S3PInfoReq   Type = 0x30
	S3PInfoRsp   Type = 0x31
	RegInfoReq   Type = 0x32
	RegInfoRsp   Type = 0x33
	VmemInfoReq  Type = 0x34
	VmemInfoRsp  Type = 0x35
)

// ResponseOf returns the response type code paired with a request type.
func ResponseOf(req Type) Type { return req + 1 }

// IsRequest reports whether t has an even low nibble (a request code).
func IsRequest(t Type) bool { return t&0x01 == 0 }

// ErrorCode is the one-byte node-reported status that begins every
// response payload.
type ErrorCode uint8

const (
	ErrNone       ErrorCode = 0
	ErrVmemXlate  ErrorCode = 100
	ErrNoReg      ErrorCode = 101
	ErrNoLock     ErrorCode = 102
	ErrType       ErrorCode = 103
	ErrSize       ErrorCode = 104
	ErrNoWrite    ErrorCode = 105
	ErrNoVmem     ErrorCode = 106
	ErrNoCmd      ErrorCode = 107
)

// ErrorCodeDescriptionMap gives a short human label for each node-reported
// error code.
var ErrorCodeDescriptionMap = map[ErrorCode]string{
	ErrNone:      "no error",
	ErrVmemXlate: "VMEM address does not translate to backing storage",
	ErrNoReg:     "no such register",
	ErrNoLock:    "register locked by another owner",
	ErrType:      "value tag mismatch",
	ErrSize:      "payload too short for operation",
	ErrNoWrite:   "register is not writable",
	ErrNoVmem:    "no such VMEM row",
	ErrNoCmd:     "no such command",
}

func (e ErrorCode) Error() string {
	if desc, ok := ErrorCodeDescriptionMap[e]; ok {
		return fmt.Sprintf("s3p error %d (%s)", uint8(e), desc)
	}
	return fmt.Sprintf("s3p error %d (unknown)", uint8(e))
}

// Size bounds from the wire contract.
const (
	MaxFramedBytes   = 1024
	MaxUnframedBytes = 1018
	MaxPayloadBytes  = 1010
	MaxChunkBytes    = 1004
	MaxNameBytes     = 32
	headerSize       = 6
	trailerSize      = 2
	// maxUnencodedBeforeCRC is the largest header+payload size make_frame
	// accepts before appending the 2-byte CRC, leaving room so the COBS
	// encoding of header+payload+crc cannot exceed MaxFramedBytes with the
	// trailing delimiter.
	maxUnencodedBeforeCRC = 1016
)

var (
	// ErrReservedNodeID is returned when src or dst equals 0x00 or 0xFF.
	ErrReservedNodeID = errors.New("packet: node id 0x00 and 0xFF are reserved")
	// ErrPayloadTooLarge is returned when a payload exceeds MaxPayloadBytes.
	ErrPayloadTooLarge = errors.New("packet: payload exceeds maximum size")
	// ErrFrameTooLarge is returned when make_frame's output would exceed
	// MaxFramedBytes.
	ErrFrameTooLarge = errors.New("packet: encoded frame exceeds maximum size")
	// ErrTruncated is returned by ParseFrame when the decoded bytes are
	// shorter than a header+CRC.
	ErrTruncated = errors.New("packet: decoded frame shorter than header+crc")
	// ErrCRCMismatch is returned by ParseFrame on a failed integrity check.
	ErrCRCMismatch = errors.New("packet: crc mismatch")
	// ErrNotForUs is returned by ParseFrame when dst_id does not match the
	// caller's expected id; the frame must be discarded silently.
	ErrNotForUs = errors.New("packet: dst_id does not match expected id")
	// ErrDataLenMismatch is returned when the header's data_len disagrees
	// with the actual payload length.
	ErrDataLenMismatch = errors.New("packet: data_len does not match payload size")
)

// Packet is a decoded view over header fields plus payload. The Data of a
// packet returned by ParseFrame is a slice of the buffer ParseFrame decodes
// into, not of the frame it was given; MakeFrame always produces an owned
// byte slice.
type Packet struct {
	SrcID   uint8
	DstID   uint8
	Seq     uint8 // 4-bit sequence, lower nibble only
	Type    Type
	Data    []byte
}

func validNodeID(id uint8) bool { return id != 0x00 && id != 0xFF }

// MakeFrame builds the full wire frame for pkt: header, payload, big-endian
// CRC-16, COBS-encoded, with the 0x00 delimiter appended.
func MakeFrame(pkt Packet) ([]byte, error) {
	if !validNodeID(pkt.SrcID) || !validNodeID(pkt.DstID) {
		return nil, ErrReservedNodeID
	}
	if len(pkt.Data) > MaxPayloadBytes {
		return nil, ErrPayloadTooLarge
	}

	unencoded := make([]byte, headerSize+len(pkt.Data)+trailerSize)
	unencoded[0] = pkt.SrcID
	unencoded[1] = pkt.DstID
	unencoded[2] = pkt.Seq & 0x0F
	unencoded[3] = byte(pkt.Type)
	binary.BigEndian.PutUint16(unencoded[4:6], uint16(len(pkt.Data)))
	copy(unencoded[headerSize:], pkt.Data)

	if headerSize+len(pkt.Data) > maxUnencodedBeforeCRC {
		return nil, ErrFrameTooLarge
	}

	sum := crc.Checksum(unencoded[:headerSize+len(pkt.Data)], crc.StartCCITT1D0F)
	binary.BigEndian.PutUint16(unencoded[headerSize+len(pkt.Data):], uint16(sum))

	encoded := make([]byte, cobs.MaxEncodedLen(len(unencoded))+1)
	n, err := cobs.Encode(encoded, unencoded)
	if err != nil {
		return nil, err
	}
	if n+1 > MaxFramedBytes {
		return nil, ErrFrameTooLarge
	}
	encoded[n] = 0x00
	return encoded[:n+1], nil
}

// ParseFrame decodes a delimiter-free, COBS-encoded frame (the transport
// has already stripped the trailing 0x00) and validates it against
// expectedDstID. A frame addressed to a different node returns ErrNotForUs
// and must be discarded, not treated as a hard failure.
func ParseFrame(frame []byte, expectedDstID uint8) (Packet, error) {
	decoded := make([]byte, cobs.MaxDecodedLen(len(frame)))
	n, err := cobs.Decode(decoded, frame)
	if err != nil {
		return Packet{}, err
	}
	decoded = decoded[:n]

	if len(decoded) < headerSize+trailerSize {
		return Packet{}, ErrTruncated
	}

	body := decoded[:len(decoded)-trailerSize]
	wantCRC := binary.BigEndian.Uint16(decoded[len(decoded)-trailerSize:])
	gotCRC := crc.Checksum(body, crc.StartCCITT1D0F)
	if uint16(gotCRC) != wantCRC {
		return Packet{}, ErrCRCMismatch
	}

	dataLen := binary.BigEndian.Uint16(body[4:6])
	if int(dataLen) != len(body)-headerSize {
		return Packet{}, ErrDataLenMismatch
	}

	pkt := Packet{
		SrcID: body[0],
		DstID: body[1],
		Seq:   body[2] & 0x0F,
		Type:  Type(body[3]),
		Data:  body[headerSize:],
	}
	if pkt.DstID != expectedDstID {
		return Packet{}, ErrNotForUs
	}
	return pkt, nil
}
