// Package metadata implements the client-side register and VMEM-mapping
// caches, populated by walking the node's descriptor chains via repeated
// REG_INFO/VMEM_INFO calls (the "next_id"/"next_idx" linked walk).
package metadata

import (
	"context"
	"errors"

	"github.com/paradigmatech/gos3p/pkg/transaction"
	"github.com/paradigmatech/gos3p/pkg/value"
)

// VMEM backing-memory kinds, carried as opaque bytes on the wire but named
// here since the descriptor's bit layout is part of the protocol.
const (
	MemNone  uint8 = 0
	MemSNOR  uint8 = 1
	MemFRAM  uint8 = 2
	MemMRAM  uint8 = 3
	MemUNOR1 uint8 = 4
	MemUNOR2 uint8 = 5
)

// Register descriptor flag bits.
const (
	FlagMutable uint16 = 1 << 0
	FlagPersist uint16 = 1 << 1
)

// VMEM mapping descriptor flag bits.
const (
	VFRead   uint8 = 1 << 0
	VFWrite  uint8 = 1 << 1
	VFMirror uint8 = 1 << 2
)

// endOfRegisters and endOfVMEM are the client-side end-marker sentinels;
// a real node never reports them as a live id/vstart.
const (
	endOfRegisters uint16 = 0xFFFF
	endOfVMEM      uint32 = 0xFFFFFFFF
)

var ErrIncompleteWalk = errors.New("metadata: walk did not reach the end marker")

// RegisterInfo is one cached register descriptor.
type RegisterInfo struct {
	ID      uint16
	NextID  uint16
	Tag     value.Tag
	GroupID uint8 // opaque grouping label, not interpreted by this package
	Flags   uint16
	Name    string
}

func (r RegisterInfo) Mutable() bool { return r.Flags&FlagMutable != 0 }
func (r RegisterInfo) Persist() bool { return r.Flags&FlagPersist != 0 }

// VMEMMappingInfo is one cached VMEM row descriptor.
type VMEMMappingInfo struct {
	Idx     uint8
	NextIdx uint8
	Type    uint8
	VStart  uint32
	Size    uint32
	Flags   uint8
	Type2   uint8 // mirror target kind, MemNone if no mirror
	Name    string
}

func (v VMEMMappingInfo) Readable() bool { return v.Flags&VFRead != 0 }
func (v VMEMMappingInfo) Writable() bool { return v.Flags&VFWrite != 0 }
func (v VMEMMappingInfo) Mirrored() bool { return v.Flags&VFMirror != 0 }

// RegisterTable is the client-side register descriptor cache, keyed by id
// and kept in insertion (walk) order.
type RegisterTable struct {
	byID  map[uint16]RegisterInfo
	order []uint16
	// Complete is false if the walk stopped early (cap reached or
	// canceled) before finding the chain's end marker.
	Complete bool
}

// VMEMTable is the client-side VMEM row descriptor cache, keyed by idx.
type VMEMTable struct {
	byIdx map[uint8]VMEMMappingInfo
	order []uint8
	Complete bool
}

// ProgressFunc is an optional hook walks report progress through; it
// replaces the original shell's hardcoded progress printf with an
// observable callback.
type ProgressFunc func(done, total int)

// WalkRegisters downloads the full register table starting at s3pInfo's
// RegMin, following next_id chains until the 0xFFFF end marker, the
// regs_cnt cap, or reg_max is reached. The walk is cancellable via ctx;
// a canceled or capped walk returns a usable but Complete=false table.
func WalkRegisters(ctx context.Context, eng *transaction.Engine, progress ProgressFunc) (*RegisterTable, error) {
	info, err := eng.S3PInfo(ctx)
	if err != nil {
		return nil, err
	}

	table := &RegisterTable{byID: make(map[uint16]RegisterInfo)}
	id := info.RegMin
	for i := 0; i < int(info.RegsCount) && id != 0 && id <= info.RegMax; i++ {
		select {
		case <-ctx.Done():
			return table, nil
		default:
		}

		rec, err := eng.RegInfo(ctx, id)
		if err != nil {
			return table, err
		}
		if rec.ID == endOfRegisters {
			table.Complete = true
			break
		}

		entry := RegisterInfo{
			ID:      rec.ID,
			NextID:  rec.NextID,
			Tag:     rec.Tag,
			GroupID: rec.GroupID,
			Flags:   rec.Flags,
			Name:    rec.Name,
		}
		table.byID[entry.ID] = entry
		table.order = append(table.order, entry.ID)
		if progress != nil {
			progress(i+1, int(info.RegsCount))
		}

		if rec.NextID == 0 {
			table.Complete = true
			break
		}
		id = rec.NextID
	}
	return table, nil
}

// WalkVMEM downloads the full VMEM mapping table by following next_idx
// chains starting at row 0, up to vmem_rows entries.
func WalkVMEM(ctx context.Context, eng *transaction.Engine, progress ProgressFunc) (*VMEMTable, error) {
	info, err := eng.S3PInfo(ctx)
	if err != nil {
		return nil, err
	}

	table := &VMEMTable{byIdx: make(map[uint8]VMEMMappingInfo)}
	idx := uint8(0)
	for i := 0; i < int(info.VMEMRows); i++ {
		select {
		case <-ctx.Done():
			return table, nil
		default:
		}

		rec, err := eng.VMEMInfo(ctx, idx)
		if err != nil {
			return table, err
		}
		if rec.VStart == endOfVMEM {
			table.Complete = true
			break
		}

		entry := VMEMMappingInfo{
			Idx:     rec.Idx,
			NextIdx: rec.NextIdx,
			Type:    rec.Type,
			VStart:  rec.VStart,
			Size:    rec.VSize,
			Flags:   rec.Flags,
			Type2:   rec.Type2,
			Name:    rec.Name,
		}
		table.byIdx[entry.Idx] = entry
		table.order = append(table.order, entry.Idx)
		if progress != nil {
			progress(i+1, int(info.VMEMRows))
		}

		if rec.NextIdx == 0 {
			table.Complete = true
			break
		}
		idx = rec.NextIdx
	}
	return table, nil
}

// Get looks up a register by id.
func (t *RegisterTable) Get(id uint16) (RegisterInfo, bool) {
	r, ok := t.byID[id]
	return r, ok
}

// All returns cached registers in walk order.
func (t *RegisterTable) All() []RegisterInfo {
	out := make([]RegisterInfo, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byID[id])
	}
	return out
}

// Get looks up a VMEM row by idx.
func (t *VMEMTable) Get(idx uint8) (VMEMMappingInfo, bool) {
	v, ok := t.byIdx[idx]
	return v, ok
}

// All returns cached VMEM rows in walk order.
func (t *VMEMTable) All() []VMEMMappingInfo {
	out := make([]VMEMMappingInfo, 0, len(t.order))
	for _, idx := range t.order {
		out = append(out, t.byIdx[idx])
	}
	return out
}
