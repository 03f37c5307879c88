// Package s3p is a pure golang implementation of the S3P point-to-point
// node management protocol: a manager inspects and mutates a typed
// register table on an embedded node, transfers byte ranges to and from
// its virtual memory map, executes named commands, and retrieves
// self-describing metadata, all over a byte-oriented serial link.
package s3p

import (
	"context"
	"errors"
	"fmt"

	"github.com/paradigmatech/gos3p/pkg/metadata"
	"github.com/paradigmatech/gos3p/pkg/transaction"
	"github.com/paradigmatech/gos3p/pkg/transport"
	"github.com/paradigmatech/gos3p/pkg/value"
	log "github.com/sirupsen/logrus"
)

// ProtocolVersion is the wire protocol revision, encoded 0xMMmm.
const ProtocolVersion uint16 = 0x0100

// VersionString renders a 0xMMmm protocol version as "M.mm".
func VersionString(v uint16) string {
	return fmt.Sprintf("%d.%02d", v>>8, v&0xFF)
}

var (
	ErrNoMetadata     = errors.New("s3p: metadata not downloaded, call Refresh first")
	ErrUnknownName    = errors.New("s3p: no register with that name")
	ErrNotAString     = errors.New("s3p: register is not a STR register")
	ErrScalarAsString = errors.New("s3p: register is a STR register, use string accessors")
)

// A Manager is the main object of this package. It owns the transport and
// the transaction engine and caches the node's self-describing metadata.
// It is not safe for concurrent use; the protocol allows one outstanding
// request at a time.
type Manager struct {
	*transaction.Engine
	tr     transport.Transport
	logger *log.Logger

	regs *metadata.RegisterTable
	vmem *metadata.VMEMTable
}

// NewManager creates a Manager speaking from managerID to nodeID over tr.
// logger may be nil, in which case logrus.StandardLogger() is used.
func NewManager(tr transport.Transport, managerID, nodeID uint8, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Manager{
		Engine: transaction.New(tr, managerID, nodeID, logger),
		tr:     tr,
		logger: logger,
	}
}

// Close releases the underlying transport.
func (m *Manager) Close() error {
	return m.tr.Close()
}

// Refresh downloads both metadata tables again via the walk-by-next-id
// chains and replaces both caches with them. If either walk fails, the
// error is returned and the previous caches are kept. Progress callbacks
// may be nil.
func (m *Manager) Refresh(ctx context.Context, regProgress, vmemProgress metadata.ProgressFunc) error {
	regs, err := metadata.WalkRegisters(ctx, m.Engine, regProgress)
	if err != nil {
		return err
	}
	vmem, err := metadata.WalkVMEM(ctx, m.Engine, vmemProgress)
	if err != nil {
		return err
	}
	m.regs = regs
	m.vmem = vmem
	return nil
}

// Registers returns the cached register table, downloading it on first use.
func (m *Manager) Registers(ctx context.Context) (*metadata.RegisterTable, error) {
	if m.regs == nil {
		if err := m.Refresh(ctx, nil, nil); err != nil {
			return nil, err
		}
	}
	return m.regs, nil
}

// VMEMRows returns the cached VMEM mapping table, downloading it on first use.
func (m *Manager) VMEMRows(ctx context.Context) (*metadata.VMEMTable, error) {
	if m.vmem == nil {
		if err := m.Refresh(ctx, nil, nil); err != nil {
			return nil, err
		}
	}
	return m.vmem, nil
}

// Lookup resolves a register by its metadata name. Requires a prior
// Refresh (or any call that triggered one).
func (m *Manager) Lookup(name string) (metadata.RegisterInfo, error) {
	if m.regs == nil {
		return metadata.RegisterInfo{}, ErrNoMetadata
	}
	for _, reg := range m.regs.All() {
		if reg.Name == name {
			return reg, nil
		}
	}
	return metadata.RegisterInfo{}, fmt.Errorf("%w: %q", ErrUnknownName, name)
}

// Get reads one register by id, scalar or string, returning a tagged value.
// The register's metadata decides which read operation is used; the table
// is downloaded on first use.
func (m *Manager) Get(ctx context.Context, id uint16) (value.Value, error) {
	regs, err := m.Registers(ctx)
	if err != nil {
		return value.Value{}, err
	}
	reg, ok := regs.Get(id)
	if !ok {
		return value.Value{}, fmt.Errorf("%w: id %d", ErrUnknownName, id)
	}
	if reg.Tag == value.STR {
		s, err := m.ReadStrReg(ctx, id)
		if err != nil {
			return value.Value{}, err
		}
		return value.FromString(s), nil
	}
	records, err := m.ReadRegs(ctx, id, 1)
	if err != nil {
		return value.Value{}, err
	}
	if len(records) == 0 {
		return value.Value{}, fmt.Errorf("s3p: node returned no record for id %d", id)
	}
	return records[0].Value, nil
}

// Set writes one register by id. STR registers take the string write path,
// scalars the 7-byte record path; a tag mismatch against the cached
// metadata fails locally before transmission.
func (m *Manager) Set(ctx context.Context, id uint16, v value.Value) error {
	regs, err := m.Registers(ctx)
	if err != nil {
		return err
	}
	reg, ok := regs.Get(id)
	if !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownName, id)
	}
	if reg.Tag == value.STR {
		if v.Tag != value.STR {
			return ErrNotAString
		}
		return m.WriteStrReg(ctx, id, v.Str)
	}
	if v.Tag == value.STR {
		return ErrScalarAsString
	}
	return m.WriteReg(ctx, id, v)
}
