package metadata

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/paradigmatech/gos3p/pkg/packet"
	"github.com/paradigmatech/gos3p/pkg/transaction"
	"github.com/paradigmatech/gos3p/pkg/transport"
	"github.com/paradigmatech/gos3p/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	managerID uint8 = 0x6A
	nodeID    uint8 = 0x2A
)

func readOneFrame(t *testing.T, tr transport.Transport) []byte {
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
	raw := readOneFrame(t, node)
	pkt, err := packet.ParseFrame(raw, nodeID)
	require.NoError(t, err)
	return pkt
}

func regInfoPayload(id, nextID uint16, tag value.Tag, group uint8, flags uint16, name string) []byte {
	payload := []byte{byte(packet.ErrNone)}
	head := make([]byte, 8)
	binary.BigEndian.PutUint16(head[0:2], id)
	binary.BigEndian.PutUint16(head[2:4], nextID)
	head[4] = byte(tag)
	head[5] = group
	binary.BigEndian.PutUint16(head[6:8], flags)
	payload = append(payload, head...)
	strBuf := make([]byte, len(name)+1)
	n, _ := value.EncodeString(strBuf, name)
	return append(payload, strBuf[:n]...)
}

func s3pInfoPayload(regMin, regMax, regsCount uint16, vmemRows uint8) []byte {
	payload := []byte{byte(packet.ErrNone)}
	body := make([]byte, 8)
	binary.BigEndian.PutUint16(body[0:2], 0x0100)
	binary.BigEndian.PutUint16(body[2:4], regMin)
	binary.BigEndian.PutUint16(body[4:6], regMax)
	binary.BigEndian.PutUint16(body[6:8], regsCount)
	payload = append(payload, body...)
	return append(payload, vmemRows)
}

func TestWalkRegistersFollowsNextIDChain(t *testing.T) {
	manager, node := transport.NewPipePair()
	defer manager.Close()
	defer node.Close()

	eng := transaction.New(manager, managerID, nodeID, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)

		req := recvAndDecode(t, node)
		require.Equal(t, packet.S3PInfoReq, req.Type)
		respond(t, node, req, s3pInfoPayload(1, 10, 3, 0))

		req = recvAndDecode(t, node)
		require.Equal(t, packet.RegInfoReq, req.Type)
		respond(t, node, req, regInfoPayload(1, 2, value.U8, 0, 0, "alpha"))

		req = recvAndDecode(t, node)
		respond(t, node, req, regInfoPayload(2, 4, value.U16, 0, 1, "beta"))

		req = recvAndDecode(t, node)
		respond(t, node, req, regInfoPayload(4, 0, value.FLT, 0, 0, "gamma"))
	}()

	var progressCalls []int
	table, err := WalkRegisters(context.Background(), eng, func(done, total int) {
		progressCalls = append(progressCalls, done)
	})
	<-done
	require.NoError(t, err)
	assert.True(t, table.Complete)
	assert.Len(t, table.All(), 3)
	assert.Equal(t, []int{1, 2, 3}, progressCalls)

	beta, ok := table.Get(2)
	require.True(t, ok)
	assert.Equal(t, "beta", beta.Name)
	assert.True(t, beta.Mutable())
}

func TestWalkVMEMStopsAtNextIdxZero(t *testing.T) {
	manager, node := transport.NewPipePair()
	defer manager.Close()
	defer node.Close()

	eng := transaction.New(manager, managerID, nodeID, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)

		req := recvAndDecode(t, node)
		respond(t, node, req, s3pInfoPayload(0, 0, 0, 2))

		req = recvAndDecode(t, node)
		require.Equal(t, packet.VmemInfoReq, req.Type)
		payload := []byte{byte(packet.ErrNone), 0, 0, byte(MemSNOR)}
		addr := make([]byte, 8)
		binary.BigEndian.PutUint32(addr[0:4], 0x10000000)
		binary.BigEndian.PutUint32(addr[4:8], 4096)
		payload = append(payload, addr...)
		payload = append(payload, VFRead|VFWrite, byte(MemNone))
		nameBuf := make([]byte, 8)
		n, _ := value.EncodeString(nameBuf, "flash0")
		payload = append(payload, nameBuf[:n]...)
		respond(t, node, req, payload)
	}()

	table, err := WalkVMEM(context.Background(), eng, nil)
	<-done
	require.NoError(t, err)
	assert.True(t, table.Complete)
	row, ok := table.Get(0)
	require.True(t, ok)
	assert.Equal(t, "flash0", row.Name)
	assert.True(t, row.Readable())
	assert.True(t, row.Writable())
}
