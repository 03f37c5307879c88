// Package testnode implements an in-process node good enough to exercise
// the manager side of the protocol in tests: a register table, VMEM
// regions, and command dispatch served over a transport.Transport. It is
// test support, not a reference node implementation.
package testnode

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/paradigmatech/gos3p/pkg/packet"
	"github.com/paradigmatech/gos3p/pkg/transport"
	"github.com/paradigmatech/gos3p/pkg/value"
)

const (
	cmdPing   uint32 = 0x10
	cmdReboot uint32 = 0x11
)

// Register is one node-side register cell.
type Register struct {
	ID      uint16
	Tag     value.Tag
	GroupID uint8
	Flags   uint16
	Name    string
	Val     value.Value
	Str     string
}

// Region is one node-side VMEM mapping backed by an in-memory byte slice.
type Region struct {
	Type   uint8
	VStart uint32
	Flags  uint8
	Type2  uint8
	Name   string
	Data   []byte
}

// Node serves the wire contract over tr until Stop is called.
type Node struct {
	tr transport.Transport
	id uint8

	mu      sync.Mutex
	regs    map[uint16]*Register
	order   []uint16
	regions []*Region

	stop chan struct{}
	done chan struct{}
}

func New(tr transport.Transport, id uint8) *Node {
	return &Node{
		tr:   tr,
		id:   id,
		regs: make(map[uint16]*Register),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// AddRegister appends r to the walk chain in insertion order.
func (n *Node) AddRegister(r Register) {
	n.mu.Lock()
	defer n.mu.Unlock()
	reg := r
	n.regs[reg.ID] = &reg
	n.order = append(n.order, reg.ID)
}

// AddRegion appends a VMEM mapping; its row index is its insertion order.
func (n *Node) AddRegion(r Region) {
	n.mu.Lock()
	defer n.mu.Unlock()
	region := r
	n.regions = append(n.regions, &region)
}

// Register returns the live cell for id, for test assertions after writes.
func (n *Node) Register(id uint16) *Register {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.regs[id]
}

// Start launches the serve loop.
func (n *Node) Start() {
	go n.serve()
}

// Stop terminates the serve loop and waits for it to exit.
func (n *Node) Stop() {
	close(n.stop)
	<-n.done
}

func (n *Node) serve() {
	defer close(n.done)
	var buf []byte
	one := make([]byte, 1)
	for {
		select {
		case <-n.stop:
			return
		default:
		}

		cnt, err := n.tr.Read(one)
		if err != nil {
			return
		}
		if cnt == 0 {
			time.Sleep(time.Millisecond)
			continue
		}
		if one[0] != 0x00 {
			buf = append(buf, one[0])
			continue
		}
		if len(buf) == 0 {
			continue
		}

		req, err := packet.ParseFrame(buf, n.id)
		buf = buf[:0]
		if err != nil {
			continue
		}
		n.respond(req, n.handle(req))
	}
}

func (n *Node) respond(req packet.Packet, payload []byte) {
	rsp := packet.Packet{
		SrcID: n.id,
		DstID: req.SrcID,
		Seq:   req.Seq,
		Type:  packet.ResponseOf(req.Type),
		Data:  payload,
	}
	frame, err := packet.MakeFrame(rsp)
	if err != nil {
		return
	}
	n.tr.Write(frame)
}

func errRsp(code packet.ErrorCode) []byte { return []byte{byte(code)} }

func (n *Node) handle(req packet.Packet) []byte {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch req.Type {
	case packet.ExecCmdReq:
		return n.handleExec(req.Data)
	case packet.ReadRegsReq:
		return n.handleReadRegs(req.Data)
	case packet.WriteRegReq:
		return n.handleWriteReg(req.Data)
	case packet.ReadStrRegReq:
		return n.handleReadStr(req.Data)
	case packet.WriteStrRegReq:
		return n.handleWriteStr(req.Data)
	case packet.ReadVmemReq:
		return n.handleReadVmem(req.Data)
	case packet.WriteVmemReq:
		return n.handleWriteVmem(req.Data)
	case packet.S3PInfoReq:
		return n.handleInfo()
	case packet.RegInfoReq:
		return n.handleRegInfo(req.Data)
	case packet.VmemInfoReq:
		return n.handleVmemInfo(req.Data)
	default:
		return errRsp(packet.ErrNoCmd)
	}
}

func (n *Node) handleExec(data []byte) []byte {
	if len(data) < 4 {
		return errRsp(packet.ErrSize)
	}
	switch binary.BigEndian.Uint32(data[0:4]) {
	case cmdPing, cmdReboot:
		return errRsp(packet.ErrNone)
	default:
		return errRsp(packet.ErrNoCmd)
	}
}

func (n *Node) handleReadRegs(data []byte) []byte {
	if len(data) < 4 {
		return errRsp(packet.ErrSize)
	}
	id := binary.BigEndian.Uint16(data[0:2])
	count := binary.BigEndian.Uint16(data[2:4])

	out := errRsp(packet.ErrNone)
	for i := uint16(0); i < count; i++ {
		reg, ok := n.regs[id]
		if !ok {
			break
		}
		if len(out)+value.SerItemSize > packet.MaxPayloadBytes {
			break
		}
		item := make([]byte, value.SerItemSize)
		if err := value.EncodeItem(item, reg.ID, reg.Val); err != nil {
			break
		}
		out = append(out, item...)
		id = n.nextID(reg.ID)
		if id == 0 {
			break
		}
	}
	if len(out) == 1 {
		return errRsp(packet.ErrNoReg)
	}
	return out
}

func (n *Node) handleWriteReg(data []byte) []byte {
	if len(data) < value.SerItemSize {
		return errRsp(packet.ErrSize)
	}
	id, v, err := value.DecodeItem(data)
	if err != nil {
		return errRsp(packet.ErrType)
	}
	reg, ok := n.regs[id]
	if !ok {
		return errRsp(packet.ErrNoReg)
	}
	if v.Tag != reg.Tag {
		return errRsp(packet.ErrType)
	}
	if reg.Flags&0x01 == 0 {
		return errRsp(packet.ErrNoWrite)
	}
	reg.Val = v
	return errRsp(packet.ErrNone)
}

func (n *Node) handleReadStr(data []byte) []byte {
	if len(data) < 2 {
		return errRsp(packet.ErrSize)
	}
	id := binary.BigEndian.Uint16(data[0:2])
	reg, ok := n.regs[id]
	if !ok {
		return errRsp(packet.ErrNoReg)
	}
	if reg.Tag != value.STR {
		return errRsp(packet.ErrType)
	}
	out := errRsp(packet.ErrNone)
	hdr := make([]byte, 3)
	binary.BigEndian.PutUint16(hdr[0:2], reg.ID)
	hdr[2] = byte(reg.Tag)
	out = append(out, hdr...)
	out = append(out, []byte(reg.Str)...)
	out = append(out, 0)
	return out
}

func (n *Node) handleWriteStr(data []byte) []byte {
	if len(data) < 3 {
		return errRsp(packet.ErrSize)
	}
	id := binary.BigEndian.Uint16(data[0:2])
	reg, ok := n.regs[id]
	if !ok {
		return errRsp(packet.ErrNoReg)
	}
	if reg.Tag != value.STR {
		return errRsp(packet.ErrType)
	}
	if reg.Flags&0x01 == 0 {
		return errRsp(packet.ErrNoWrite)
	}
	s, _, err := value.DecodeString(data[2:])
	if err != nil {
		return errRsp(packet.ErrSize)
	}
	reg.Str = s
	return errRsp(packet.ErrNone)
}

func (n *Node) regionAt(addr uint32, size int) *Region {
	for _, r := range n.regions {
		if addr >= r.VStart && addr+uint32(size) <= r.VStart+uint32(len(r.Data)) {
			return r
		}
	}
	return nil
}

func (n *Node) handleReadVmem(data []byte) []byte {
	if len(data) < 6 {
		return errRsp(packet.ErrSize)
	}
	addr := binary.BigEndian.Uint32(data[0:4])
	size := binary.BigEndian.Uint16(data[4:6])
	if size > packet.MaxChunkBytes {
		return errRsp(packet.ErrSize)
	}
	r := n.regionAt(addr, int(size))
	if r == nil {
		return errRsp(packet.ErrVmemXlate)
	}
	off := addr - r.VStart
	out := errRsp(packet.ErrNone)
	return append(out, r.Data[off:off+uint32(size)]...)
}

func (n *Node) handleWriteVmem(data []byte) []byte {
	if len(data) < 4 {
		return errRsp(packet.ErrSize)
	}
	addr := binary.BigEndian.Uint32(data[0:4])
	chunk := data[4:]
	r := n.regionAt(addr, len(chunk))
	if r == nil {
		return errRsp(packet.ErrVmemXlate)
	}
	if r.Flags&0x02 == 0 {
		return errRsp(packet.ErrNoWrite)
	}
	copy(r.Data[addr-r.VStart:], chunk)
	return errRsp(packet.ErrNone)
}

func (n *Node) nextID(id uint16) uint16 {
	for i, cur := range n.order {
		if cur == id {
			if i+1 < len(n.order) {
				return n.order[i+1]
			}
			return 0
		}
	}
	return 0
}

func (n *Node) handleInfo() []byte {
	out := make([]byte, 10)
	out[0] = byte(packet.ErrNone)
	binary.BigEndian.PutUint16(out[1:3], 0x0100)
	var regMin, regMax uint16
	if len(n.order) > 0 {
		regMin = n.order[0]
	}
	for _, id := range n.order {
		if id > regMax {
			regMax = id
		}
	}
	binary.BigEndian.PutUint16(out[3:5], regMin)
	binary.BigEndian.PutUint16(out[5:7], regMax)
	binary.BigEndian.PutUint16(out[7:9], uint16(len(n.order)))
	out[9] = uint8(len(n.regions))
	return out
}

func (n *Node) handleRegInfo(data []byte) []byte {
	if len(data) < 2 {
		return errRsp(packet.ErrSize)
	}
	id := binary.BigEndian.Uint16(data[0:2])
	reg, ok := n.regs[id]
	if !ok {
		return errRsp(packet.ErrNoReg)
	}
	out := make([]byte, 9, 9+len(reg.Name)+1)
	out[0] = byte(packet.ErrNone)
	binary.BigEndian.PutUint16(out[1:3], reg.ID)
	binary.BigEndian.PutUint16(out[3:5], n.nextID(reg.ID))
	out[5] = byte(reg.Tag)
	out[6] = reg.GroupID
	binary.BigEndian.PutUint16(out[7:9], reg.Flags)
	out = append(out, []byte(reg.Name)...)
	return append(out, 0)
}

func (n *Node) handleVmemInfo(data []byte) []byte {
	if len(data) < 1 {
		return errRsp(packet.ErrSize)
	}
	idx := data[0]
	if int(idx) >= len(n.regions) {
		return errRsp(packet.ErrNoVmem)
	}
	r := n.regions[idx]
	nextIdx := uint8(0)
	if int(idx)+1 < len(n.regions) {
		nextIdx = idx + 1
	}
	out := make([]byte, 14, 14+len(r.Name)+1)
	out[0] = byte(packet.ErrNone)
	out[1] = idx
	out[2] = nextIdx
	out[3] = r.Type
	binary.BigEndian.PutUint32(out[4:8], r.VStart)
	binary.BigEndian.PutUint32(out[8:12], uint32(len(r.Data)))
	out[12] = r.Flags
	out[13] = r.Type2
	out = append(out, []byte(r.Name)...)
	return append(out, 0)
}
