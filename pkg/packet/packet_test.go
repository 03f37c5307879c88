package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeFrameRoundTripPing(t *testing.T) {
	// S4 — round-trip PING: src=0x6A, dst=0x2A, seq=1, EXEC_CMD, cmd_id=0x10, arg=0.
	pkt := Packet{
		SrcID: 0x6A,
		DstID: 0x2A,
		Seq:   1,
		Type:  ExecCmdReq,
		Data:  []byte{0x10, 0x00, 0x00, 0x00, 0x00},
	}
	frame, err := MakeFrame(pkt)
	require.NoError(t, err)
	require.True(t, len(frame) > 0)
	assert.Equal(t, byte(0x00), frame[len(frame)-1], "frame must end in the delimiter")

	got, err := ParseFrame(frame[:len(frame)-1], 0x2A)
	require.NoError(t, err)
	assert.Equal(t, pkt.SrcID, got.SrcID)
	assert.Equal(t, pkt.DstID, got.DstID)
	assert.Equal(t, pkt.Seq, got.Seq)
	assert.Equal(t, pkt.Type, got.Type)
	assert.Equal(t, pkt.Data, got.Data)
}

func TestParseFrameDiscardsWrongDst(t *testing.T) {
	frame, err := MakeFrame(Packet{SrcID: 0x6A, DstID: 0x2A, Type: ExecCmdReq, Data: []byte{1}})
	require.NoError(t, err)
	_, err = ParseFrame(frame[:len(frame)-1], 0x99)
	assert.ErrorIs(t, err, ErrNotForUs)
}

func TestParseFrameDetectsBitFlip(t *testing.T) {
	frame, err := MakeFrame(Packet{SrcID: 0x6A, DstID: 0x2A, Type: ExecCmdReq, Data: []byte{1, 2, 3}})
	require.NoError(t, err)
	body := frame[:len(frame)-1]
	flipped := append([]byte(nil), body...)
	flipped[2] ^= 0x01
	_, err = ParseFrame(flipped, 0x2A)
	assert.Error(t, err)
}

func TestMakeFrameRejectsReservedNodeIDs(t *testing.T) {
	_, err := MakeFrame(Packet{SrcID: 0x00, DstID: 0x2A, Type: ExecCmdReq})
	assert.ErrorIs(t, err, ErrReservedNodeID)

	_, err = MakeFrame(Packet{SrcID: 0x6A, DstID: 0xFF, Type: ExecCmdReq})
	assert.ErrorIs(t, err, ErrReservedNodeID)
}

func TestMakeFrameRejectsOversizePayload(t *testing.T) {
	_, err := MakeFrame(Packet{SrcID: 0x6A, DstID: 0x2A, Type: ExecCmdReq, Data: make([]byte, MaxPayloadBytes+1)})
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestParseFrameRejectsTruncated(t *testing.T) {
	_, err := ParseFrame([]byte{0x01, 0x01}, 0x2A)
	assert.Error(t, err)
}

func TestSequenceMismatchRejectsOnCaller(t *testing.T) {
	frame, err := MakeFrame(Packet{SrcID: 0x6A, DstID: 0x2A, Seq: 5, Type: ExecCmdReq, Data: []byte{1}})
	require.NoError(t, err)
	got, err := ParseFrame(frame[:len(frame)-1], 0x2A)
	require.NoError(t, err)
	// The engine, not ParseFrame, enforces sequence matching; here we only
	// confirm the decoded sequence is what was sent so the caller can compare.
	assert.EqualValues(t, 5, got.Seq)
	assert.NotEqual(t, uint8(6), got.Seq)
}

func TestResponseOfAndIsRequest(t *testing.T) {
	assert.Equal(t, ExecCmdRsp, ResponseOf(ExecCmdReq))
	assert.True(t, IsRequest(ExecCmdReq))
	assert.False(t, IsRequest(ExecCmdRsp))
}

func TestErrorCodeDescribesUnknown(t *testing.T) {
	e := ErrorCode(250)
	assert.Contains(t, e.Error(), "unknown")
}
