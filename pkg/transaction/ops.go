package transaction

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/paradigmatech/gos3p/pkg/packet"
	"github.com/paradigmatech/gos3p/pkg/value"
)

const (
	cmdPing   uint32 = 0x10
	cmdReboot uint32 = 0x11
)

// RegisterRecord is one decoded entry from a READ_REGS response.
type RegisterRecord struct {
	ID    uint16
	Value value.Value
}

// S3PInfo is the node's self-description, as returned by S3P_INFO.
type S3PInfo struct {
	Version   uint16 // 0xMMmm
	RegMin    uint16
	RegMax    uint16
	RegsCount uint16
	VMEMRows  uint8
}

// RegInfo is one decoded REG_INFO response record.
type RegInfo struct {
	ID      uint16
	NextID  uint16
	Tag     value.Tag
	GroupID uint8
	Flags   uint16
	Name    string
}

// VMEMInfo is one decoded VMEM_INFO response record.
type VMEMInfo struct {
	Idx     uint8
	NextIdx uint8
	Type    uint8
	VStart  uint32
	VSize   uint32
	Flags   uint8
	Type2   uint8
	Name    string
}

// Ping sends EXEC_CMD(0x10) and returns the observed round-trip latency.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	data := make([]byte, 5)
	binary.BigEndian.PutUint32(data[0:4], cmdPing)
	rsp, err := e.Roundtrip(ctx, packet.ExecCmdReq, data)
	if err != nil {
		return 0, err
	}
	if _, _, err := checkCode(rsp.Data); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Reboot sends EXEC_CMD(0x11). Per the operation's contract, the node
// acknowledges and then resets; the engine does not wait for or expect
// further traffic beyond this single response.
func (e *Engine) Reboot(ctx context.Context) error {
	data := make([]byte, 5)
	binary.BigEndian.PutUint32(data[0:4], cmdReboot)
	rsp, err := e.Roundtrip(ctx, packet.ExecCmdReq, data)
	if err != nil {
		return err
	}
	_, _, err = checkCode(rsp.Data)
	return err
}

// ExecCmd issues an arbitrary EXEC_CMD(cmdID, arg) and returns the
// command-defined payload following the error code.
func (e *Engine) ExecCmd(ctx context.Context, cmdID uint32, arg uint32) ([]byte, error) {
	data := make([]byte, 8)
	binary.BigEndian.PutUint32(data[0:4], cmdID)
	binary.BigEndian.PutUint32(data[4:8], arg)
	rsp, err := e.Roundtrip(ctx, packet.ExecCmdReq, data)
	if err != nil {
		return nil, err
	}
	_, payload, err := checkCode(rsp.Data)
	return payload, err
}

// ReadRegs issues READ_REGS(firstID, count). The node may return fewer
// than count records if it hits its payload cap or an invalid id; the
// caller gets back whatever the payload actually contained.
func (e *Engine) ReadRegs(ctx context.Context, firstID, count uint16) ([]RegisterRecord, error) {
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:2], firstID)
	binary.BigEndian.PutUint16(data[2:4], count)

	rsp, err := e.Roundtrip(ctx, packet.ReadRegsReq, data)
	if err != nil {
		return nil, err
	}
	_, payload, err := checkCode(rsp.Data)
	if err != nil {
		return nil, err
	}

	var records []RegisterRecord
	for len(payload) >= value.SerItemSize {
		id, v, err := value.DecodeItem(payload[:value.SerItemSize])
		if err != nil {
			return records, err
		}
		records = append(records, RegisterRecord{ID: id, Value: v})
		payload = payload[value.SerItemSize:]
	}
	return records, nil
}

// WriteReg issues WRITE_REG(id, v). Error codes: NoReg, Type, NoWrite, Size.
func (e *Engine) WriteReg(ctx context.Context, id uint16, v value.Value) error {
	data := make([]byte, value.SerItemSize)
	if err := value.EncodeItem(data, id, v); err != nil {
		return err
	}
	rsp, err := e.Roundtrip(ctx, packet.WriteRegReq, data)
	if err != nil {
		return err
	}
	_, _, err = checkCode(rsp.Data)
	return err
}

// ReadStrReg issues READ_STR_REG(id).
func (e *Engine) ReadStrReg(ctx context.Context, id uint16) (string, error) {
	data := make([]byte, 2)
	binary.BigEndian.PutUint16(data, id)
	rsp, err := e.Roundtrip(ctx, packet.ReadStrRegReq, data)
	if err != nil {
		return "", err
	}
	_, payload, err := checkCode(rsp.Data)
	if err != nil {
		return "", err
	}
	if len(payload) < 3 {
		return "", fmt.Errorf("transaction: read_str_reg payload too short")
	}
	// id(2) + tag(1) precede the string; both are redundant with the request.
	s, _, err := value.DecodeString(payload[3:])
	return s, err
}

// WriteStrReg issues WRITE_STR_REG(id, s). The string is always sent
// NUL-terminated; a string longer than value.MaxStringLen-1 bytes is
// rejected locally before transmission.
func (e *Engine) WriteStrReg(ctx context.Context, id uint16, s string) error {
	data := make([]byte, 2, 2+len(s)+1)
	binary.BigEndian.PutUint16(data, id)
	strBuf := make([]byte, len(s)+1)
	n, err := value.EncodeString(strBuf, s)
	if err != nil {
		return err
	}
	data = append(data, strBuf[:n]...)

	rsp, err := e.Roundtrip(ctx, packet.WriteStrRegReq, data)
	if err != nil {
		return err
	}
	_, _, err = checkCode(rsp.Data)
	return err
}

// ReadVMEM requests size bytes (size <= packet.MaxChunkBytes) at addr in a
// single request/response and returns the payload after the error code as
// the node sent it; its length is not checked against size. Callers
// transferring more than one chunk use DownloadVMEM.
func (e *Engine) ReadVMEM(ctx context.Context, addr uint32, size uint16) ([]byte, error) {
	if size > packet.MaxChunkBytes {
		return nil, fmt.Errorf("transaction: chunk size %d exceeds max %d", size, packet.MaxChunkBytes)
	}
	data := make([]byte, 6)
	binary.BigEndian.PutUint32(data[0:4], addr)
	binary.BigEndian.PutUint16(data[4:6], size)

	rsp, err := e.Roundtrip(ctx, packet.ReadVmemReq, data)
	if err != nil {
		return nil, err
	}
	_, payload, err := checkCode(rsp.Data)
	return payload, err
}

// WriteVMEM writes up to packet.MaxChunkBytes bytes at addr in a single
// request/response.
func (e *Engine) WriteVMEM(ctx context.Context, addr uint32, chunk []byte) error {
	if len(chunk) > packet.MaxChunkBytes {
		return fmt.Errorf("transaction: chunk size %d exceeds max %d", len(chunk), packet.MaxChunkBytes)
	}
	data := make([]byte, 4+len(chunk))
	binary.BigEndian.PutUint32(data[0:4], addr)
	copy(data[4:], chunk)

	rsp, err := e.Roundtrip(ctx, packet.WriteVmemReq, data)
	if err != nil {
		return err
	}
	_, _, err = checkCode(rsp.Data)
	return err
}

// S3PInfo issues S3P_INFO.
func (e *Engine) S3PInfo(ctx context.Context) (S3PInfo, error) {
	rsp, err := e.Roundtrip(ctx, packet.S3PInfoReq, nil)
	if err != nil {
		return S3PInfo{}, err
	}
	_, payload, err := checkCode(rsp.Data)
	if err != nil {
		return S3PInfo{}, err
	}
	if len(payload) < 9 {
		return S3PInfo{}, fmt.Errorf("transaction: s3p_info payload too short")
	}
	return S3PInfo{
		Version:   binary.BigEndian.Uint16(payload[0:2]),
		RegMin:    binary.BigEndian.Uint16(payload[2:4]),
		RegMax:    binary.BigEndian.Uint16(payload[4:6]),
		RegsCount: binary.BigEndian.Uint16(payload[6:8]),
		VMEMRows:  payload[8],
	}, nil
}

// RegInfo issues REG_INFO(id).
func (e *Engine) RegInfo(ctx context.Context, id uint16) (RegInfo, error) {
	data := make([]byte, 2)
	binary.BigEndian.PutUint16(data, id)
	rsp, err := e.Roundtrip(ctx, packet.RegInfoReq, data)
	if err != nil {
		return RegInfo{}, err
	}
	_, payload, err := checkCode(rsp.Data)
	if err != nil {
		return RegInfo{}, err
	}
	if len(payload) < 8 {
		return RegInfo{}, fmt.Errorf("transaction: reg_info payload too short")
	}
	name, _, err := value.DecodeString(payload[8:])
	if err != nil {
		return RegInfo{}, err
	}
	return RegInfo{
		ID:      binary.BigEndian.Uint16(payload[0:2]),
		NextID:  binary.BigEndian.Uint16(payload[2:4]),
		Tag:     value.Tag(payload[4]),
		GroupID: payload[5],
		Flags:   binary.BigEndian.Uint16(payload[6:8]),
		Name:    name,
	}, nil
}

// VMEMInfo issues VMEM_INFO(rowIdx).
func (e *Engine) VMEMInfo(ctx context.Context, rowIdx uint8) (VMEMInfo, error) {
	rsp, err := e.Roundtrip(ctx, packet.VmemInfoReq, []byte{rowIdx})
	if err != nil {
		return VMEMInfo{}, err
	}
	_, payload, err := checkCode(rsp.Data)
	if err != nil {
		return VMEMInfo{}, err
	}
	if len(payload) < 13 {
		return VMEMInfo{}, fmt.Errorf("transaction: vmem_info payload too short")
	}
	name, _, err := value.DecodeString(payload[13:])
	if err != nil {
		return VMEMInfo{}, err
	}
	return VMEMInfo{
		Idx:     payload[0],
		NextIdx: payload[1],
		Type:    payload[2],
		VStart:  binary.BigEndian.Uint32(payload[3:7]),
		VSize:   binary.BigEndian.Uint32(payload[7:11]),
		Flags:   payload[11],
		Type2:   payload[12],
		Name:    name,
	}, nil
}

// DownloadVMEM reads totalSize bytes starting at addr into dst, splitting
// the transfer into chunks of at most packet.MaxChunkBytes. It aborts on
// the first non-zero response code or on ctx cancellation, returning the
// number of bytes written so far.
func (e *Engine) DownloadVMEM(ctx context.Context, addr uint32, totalSize int, dst io.Writer) (int, error) {
	written := 0
	for written < totalSize {
		select {
		case <-ctx.Done():
			return written, ErrCanceled
		default:
		}

		remaining := totalSize - written
		chunkSize := remaining
		if chunkSize > packet.MaxChunkBytes {
			chunkSize = packet.MaxChunkBytes
		}

		data, err := e.ReadVMEM(ctx, addr+uint32(written), uint16(chunkSize))
		if err != nil {
			return written, err
		}
		if len(data) > chunkSize {
			data = data[:chunkSize]
		}
		n, err := dst.Write(data)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// UploadVMEM writes all bytes read from src to addr, splitting into chunks
// of at most packet.MaxChunkBytes. It aborts on the first error or on ctx
// cancellation.
func (e *Engine) UploadVMEM(ctx context.Context, addr uint32, src io.Reader) (int, error) {
	written := 0
	buf := make([]byte, packet.MaxChunkBytes)
	for {
		select {
		case <-ctx.Done():
			return written, ErrCanceled
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if err := e.WriteVMEM(ctx, addr+uint32(written), buf[:n]); err != nil {
				return written, err
			}
			written += n
		}
		if readErr != nil {
			if readErr == io.EOF {
				return written, nil
			}
			return written, readErr
		}
	}
}
