package http

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	s3p "github.com/paradigmatech/gos3p"
	"github.com/paradigmatech/gos3p/pkg/packet"
	"github.com/paradigmatech/gos3p/pkg/transaction"
	"github.com/paradigmatech/gos3p/pkg/value"
)

// toGatewayError maps transaction failures onto the wire error space:
// node-reported codes land at nodeErrorOffset+code, timeouts at 103,
// anything else at 102.
func toGatewayError(err error) error {
	var protoErr *transaction.ProtocolError
	if errors.As(err, &protoErr) {
		return NewGatewayError(nodeErrorOffset + int(protoErr.Code))
	}
	if errors.Is(err, transaction.ErrTimeout) {
		return ErrGwTimeout
	}
	return ErrGwRequestNotProcessed
}

func (g *GatewayServer) respondJSON(w *doneWriter, v any) error {
	jData, err := json.Marshal(v)
	if err != nil {
		return ErrGwRequestNotProcessed
	}
	_, err = w.Write(jData)
	return err
}

// parseUint parses decimal or 0x-hex URI path components.
func parseUint(s string, bits int) (uint64, error) {
	return strconv.ParseUint(s, 0, bits)
}

// subCommands splits the part of the URI after the matched route name.
func subCommands(req *GatewayRequest) []string {
	parts := strings.Split(req.command, "/")
	return parts[1:]
}

func (g *GatewayServer) handlePing(w *doneWriter, req *GatewayRequest) error {
	rtt, err := g.manager.Ping(req.ctx)
	if err != nil {
		return toGatewayError(err)
	}
	return g.respondJSON(w, &PingResponse{
		GatewayResponseBase: NewResponseBase(int(req.sequence), "OK"),
		RTTMicros:           rtt.Microseconds(),
	})
}

func (g *GatewayServer) handleInfo(w *doneWriter, req *GatewayRequest) error {
	info, err := g.manager.S3PInfo(req.ctx)
	if err != nil {
		return toGatewayError(err)
	}
	return g.respondJSON(w, &InfoResponse{
		GatewayResponseBase: NewResponseBase(int(req.sequence), "OK"),
		Version:             s3p.VersionString(info.Version),
		RegMin:              info.RegMin,
		RegMax:              info.RegMax,
		RegsCount:           info.RegsCount,
		VMEMRows:            info.VMEMRows,
	})
}

func (g *GatewayServer) handleReboot(w *doneWriter, req *GatewayRequest) error {
	if err := g.manager.Reboot(req.ctx); err != nil {
		return toGatewayError(err)
	}
	return nil
}

// handleExec serves exec/<cmd id>/<arg>, both decimal or 0x-hex.
func (g *GatewayServer) handleExec(w *doneWriter, req *GatewayRequest) error {
	sub := subCommands(req)
	if len(sub) != 2 {
		return ErrGwSyntaxError
	}
	cmdID, err := parseUint(sub[0], 32)
	if err != nil {
		return ErrGwSyntaxError
	}
	arg, err := parseUint(sub[1], 32)
	if err != nil {
		return ErrGwSyntaxError
	}
	payload, err := g.manager.ExecCmd(req.ctx, uint32(cmdID), uint32(arg))
	if err != nil {
		return toGatewayError(err)
	}
	return g.respondJSON(w, &ExecResponse{
		GatewayResponseBase: NewResponseBase(int(req.sequence), "OK"),
		Data:                hex.EncodeToString(payload),
	})
}

// handleRead serves read/<reg id>.
func (g *GatewayServer) handleRead(w *doneWriter, req *GatewayRequest) error {
	sub := subCommands(req)
	if len(sub) != 1 {
		return ErrGwSyntaxError
	}
	id, err := parseUint(sub[0], 16)
	if err != nil {
		return ErrGwSyntaxError
	}
	v, err := g.manager.Get(req.ctx, uint16(id))
	if err != nil {
		return toGatewayError(err)
	}
	return g.respondJSON(w, &RegReadResponse{
		GatewayResponseBase: NewResponseBase(int(req.sequence), "OK"),
		Data:                v.String(),
		Datatype:            value.TypeString(v.Tag),
	})
}

// handleWrite serves write/<reg id> with a {"value","datatype"} body.
func (g *GatewayServer) handleWrite(w *doneWriter, req *GatewayRequest) error {
	sub := subCommands(req)
	if len(sub) != 1 {
		return ErrGwSyntaxError
	}
	id, err := parseUint(sub[0], 16)
	if err != nil {
		return ErrGwSyntaxError
	}
	var params RegWriteRequest
	if err := json.Unmarshal(req.parameters, &params); err != nil {
		return ErrGwSyntaxError
	}
	tag := value.ParseType(strings.ToUpper(params.Datatype))
	if tag == value.EMPTY {
		return ErrGwSyntaxError
	}
	v, err := value.Parse(tag, params.Value)
	if err != nil {
		return ErrGwSyntaxError
	}
	if err := g.manager.Set(req.ctx, uint16(id), v); err != nil {
		return toGatewayError(err)
	}
	return nil
}

func (g *GatewayServer) handleRegList(w *doneWriter, req *GatewayRequest) error {
	table, err := g.manager.Registers(req.ctx)
	if err != nil {
		return toGatewayError(err)
	}
	regs := make([]RegDescriptor, 0)
	for _, reg := range table.All() {
		regs = append(regs, RegDescriptor{
			ID:      reg.ID,
			Name:    reg.Name,
			Type:    value.TypeString(reg.Tag),
			GroupID: reg.GroupID,
			Mutable: reg.Mutable(),
			Persist: reg.Persist(),
		})
	}
	return g.respondJSON(w, &RegListResponse{
		GatewayResponseBase: NewResponseBase(int(req.sequence), "OK"),
		Complete:            table.Complete,
		Registers:           regs,
	})
}

// handleVMEM dispatches vmem, vmem/read/<addr>/<size>, vmem/write/<addr>.
func (g *GatewayServer) handleVMEM(w *doneWriter, req *GatewayRequest) error {
	sub := subCommands(req)
	if len(sub) == 0 {
		return g.handleVMEMList(w, req)
	}
	switch sub[0] {
	case "read":
		return g.handleVMEMRead(w, req, sub[1:])
	case "write":
		return g.handleVMEMWrite(w, req, sub[1:])
	default:
		return ErrGwRequestNotSupported
	}
}

func (g *GatewayServer) handleVMEMList(w *doneWriter, req *GatewayRequest) error {
	table, err := g.manager.VMEMRows(req.ctx)
	if err != nil {
		return toGatewayError(err)
	}
	rows := make([]VMEMRowDescriptor, 0)
	for _, row := range table.All() {
		rows = append(rows, VMEMRowDescriptor{
			Idx:    row.Idx,
			Name:   row.Name,
			Type:   row.Type,
			VStart: fmt.Sprintf("0x%08X", row.VStart),
			Size:   row.Size,
			Read:   row.Readable(),
			Write:  row.Writable(),
			Mirror: row.Mirrored(),
		})
	}
	return g.respondJSON(w, &VMEMListResponse{
		GatewayResponseBase: NewResponseBase(int(req.sequence), "OK"),
		Complete:            table.Complete,
		Rows:                rows,
	})
}

func (g *GatewayServer) handleVMEMRead(w *doneWriter, req *GatewayRequest, sub []string) error {
	if len(sub) != 2 {
		return ErrGwSyntaxError
	}
	addr, err := parseUint(sub[0], 32)
	if err != nil {
		return ErrGwSyntaxError
	}
	size, err := parseUint(sub[1], 32)
	if err != nil || size > uint64(packet.MaxChunkBytes) {
		return ErrGwSyntaxError
	}
	data, err := g.manager.ReadVMEM(req.ctx, uint32(addr), uint16(size))
	if err != nil {
		return toGatewayError(err)
	}
	return g.respondJSON(w, &VMEMReadResponse{
		GatewayResponseBase: NewResponseBase(int(req.sequence), "OK"),
		Data:                hex.EncodeToString(data),
		Length:              len(data),
	})
}

func (g *GatewayServer) handleVMEMWrite(w *doneWriter, req *GatewayRequest, sub []string) error {
	if len(sub) != 1 {
		return ErrGwSyntaxError
	}
	addr, err := parseUint(sub[0], 32)
	if err != nil {
		return ErrGwSyntaxError
	}
	var params VMEMWriteRequest
	if err := json.Unmarshal(req.parameters, &params); err != nil {
		return ErrGwSyntaxError
	}
	data, err := hex.DecodeString(params.Data)
	if err != nil || len(data) > packet.MaxChunkBytes {
		return ErrGwSyntaxError
	}
	if err := g.manager.WriteVMEM(req.ctx, uint32(addr), data); err != nil {
		return toGatewayError(err)
	}
	return nil
}
