package transaction

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/paradigmatech/gos3p/pkg/packet"
	"github.com/paradigmatech/gos3p/pkg/transport"
	"github.com/paradigmatech/gos3p/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	managerID uint8 = 0x6A
	nodeID    uint8 = 0x2A
)

// readFrameFromNodeSide polls tr (the node's end of the pipe) for one
// delimiter-terminated frame, the same way the engine assembles inbound
// frames, since a fake node has no engine of its own.
func readFrameFromNodeSide(t *testing.T, tr transport.Transport) []byte {
	t.Helper()
	var buf []byte
	one := make([]byte, 1)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := tr.Read(one)
		require.NoError(t, err)
		if n == 0 {
			time.Sleep(time.Millisecond)
			continue
		}
		if one[0] == 0x00 {
			if len(buf) == 0 {
				continue
			}
			return buf
		}
		buf = append(buf, one[0])
	}
	t.Fatal("timed out waiting for frame")
	return nil
}

func respond(t *testing.T, tr transport.Transport, req packet.Packet, payload []byte) {
	t.Helper()
	rsp := packet.Packet{
		SrcID: req.DstID,
		DstID: req.SrcID,
		Seq:   req.Seq,
		Type:  packet.ResponseOf(req.Type),
		Data:  payload,
	}
	frame, err := packet.MakeFrame(rsp)
	require.NoError(t, err)
	_, err = tr.Write(frame)
	require.NoError(t, err)
}

func recvAndDecode(t *testing.T, node transport.Transport) packet.Packet {
	t.Helper()
	raw := readFrameFromNodeSide(t, node)
	pkt, err := packet.ParseFrame(raw, nodeID)
	require.NoError(t, err)
	return pkt
}

func TestPingRoundTrip(t *testing.T) {
	manager, node := transport.NewPipePair()
	defer manager.Close()
	defer node.Close()

	eng := New(manager, managerID, nodeID, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		req := recvAndDecode(t, node)
		assert.Equal(t, packet.ExecCmdReq, req.Type)
		respond(t, node, req, []byte{byte(packet.ErrNone)})
	}()

	rtt, err := eng.Ping(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rtt, time.Duration(0))
	<-done
}

func TestWriteRegReturnsProtocolError(t *testing.T) {
	manager, node := transport.NewPipePair()
	defer manager.Close()
	defer node.Close()

	eng := New(manager, managerID, nodeID, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		req := recvAndDecode(t, node)
		respond(t, node, req, []byte{byte(packet.ErrNoWrite)})
	}()

	err := eng.WriteReg(context.Background(), 7, value.FromU8(1))
	<-done
	require.Error(t, err)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, packet.ErrNoWrite, protoErr.Code)
}

func TestReadRegsDecodesMultipleRecords(t *testing.T) {
	manager, node := transport.NewPipePair()
	defer manager.Close()
	defer node.Close()

	eng := New(manager, managerID, nodeID, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		req := recvAndDecode(t, node)

		payload := []byte{byte(packet.ErrNone)}
		item1 := make([]byte, value.SerItemSize)
		require.NoError(t, value.EncodeItem(item1, 42, value.FromU8(0x5A)))
		item2 := make([]byte, value.SerItemSize)
		require.NoError(t, value.EncodeItem(item2, 43, value.FromU16(0xBEEF)))
		payload = append(payload, item1...)
		payload = append(payload, item2...)

		respond(t, node, req, payload)
	}()

	records, err := eng.ReadRegs(context.Background(), 42, 2)
	<-done
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.EqualValues(t, 42, records[0].ID)
	v0, _ := records[0].Value.AsU8()
	assert.EqualValues(t, 0x5A, v0)
	assert.EqualValues(t, 43, records[1].ID)
}

func TestSequenceMismatchFailsTransaction(t *testing.T) {
	manager, node := transport.NewPipePair()
	defer manager.Close()
	defer node.Close()

	eng := New(manager, managerID, nodeID, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		req := recvAndDecode(t, node)
		wrong := req
		wrong.Seq = (req.Seq + 1) & 0x0F
		respond(t, node, wrong, []byte{byte(packet.ErrNone)})
	}()

	_, err := eng.Ping(context.Background())
	<-done
	assert.ErrorIs(t, err, ErrSequenceMismatch)
}

func TestDownloadVMEMSplitsIntoChunks(t *testing.T) {
	manager, node := transport.NewPipePair()
	defer manager.Close()
	defer node.Close()

	eng := New(manager, managerID, nodeID, nil)

	// S6 — 2050 bytes split into 1004, 1004, 42-byte chunks.
	total := 2050
	source := make([]byte, total)
	for i := range source {
		source[i] = byte(i)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		served := 0
		var sizes []int
		for served < total {
			req := recvAndDecode(t, node)
			require.Equal(t, packet.ReadVmemReq, req.Type)
			size := int(req.Data[4])<<8 | int(req.Data[5])
			sizes = append(sizes, size)
			chunk := source[served : served+size]
			payload := append([]byte{byte(packet.ErrNone)}, chunk...)
			respond(t, node, req, payload)
			served += size
		}
		assert.Equal(t, []int{1004, 1004, 42}, sizes)
	}()

	var dst bytes.Buffer
	n, err := eng.DownloadVMEM(context.Background(), 0x10000000, total, &dst)
	<-done
	require.NoError(t, err)
	assert.Equal(t, total, n)
	assert.Equal(t, source, dst.Bytes())
}

func TestDownloadVMEMAbortsOnErrorCode(t *testing.T) {
	manager, node := transport.NewPipePair()
	defer manager.Close()
	defer node.Close()

	eng := New(manager, managerID, nodeID, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		req := recvAndDecode(t, node)
		respond(t, node, req, []byte{byte(packet.ErrVmemXlate)})
	}()

	var dst bytes.Buffer
	n, err := eng.DownloadVMEM(context.Background(), 0, 2000, &dst)
	<-done
	require.Error(t, err)
	assert.Less(t, n, 2000)
}

func TestDownloadVMEMCancels(t *testing.T) {
	manager, node := transport.NewPipePair()
	defer manager.Close()
	defer node.Close()

	eng := New(manager, managerID, nodeID, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var dst bytes.Buffer
	_, err := eng.DownloadVMEM(ctx, 0, 2000, &dst)
	assert.ErrorIs(t, err, ErrCanceled)
}
