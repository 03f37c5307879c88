package http

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type GatewayResponse interface {
	GetError() error
	GetSequenceNb() int
}

// HTTP response base
type GatewayResponseBase struct {
	// Sequence number corresponding to a request
	Sequence string `json:"sequence"`
	// Response, "OK" or "ERROR:x"
	Response string `json:"response"`
}

func NewResponseBase(sequence int, response string) *GatewayResponseBase {
	return &GatewayResponseBase{
		Sequence: strconv.Itoa(sequence),
		Response: response,
	}
}

func NewResponseError(sequence int, err error) []byte {
	gwErr, ok := err.(*GatewayError)
	if !ok {
		gwErr = ErrGwRequestNotProcessed
	}
	jData, _ := json.Marshal(map[string]string{"sequence": strconv.Itoa(sequence), "response": gwErr.Error()})
	return jData
}

func NewResponseSuccess(sequence int) []byte {
	jData, _ := json.Marshal(map[string]string{"sequence": strconv.Itoa(sequence), "response": "OK"})
	return jData
}

// Extract error if any inside of response
func (resp *GatewayResponseBase) GetError() error {
	if !strings.HasPrefix(resp.Response, "ERROR:") {
		return nil
	}
	responseSplitted := strings.Split(resp.Response, ":")
	if len(responseSplitted) != 2 {
		return fmt.Errorf("error decoding error field ('ERROR:' : %v)", resp.Response)
	}
	errorCode, err := strconv.ParseUint(responseSplitted[1], 0, 64)
	if err != nil {
		return fmt.Errorf("error decoding error field ('ERROR:' : %v)", err)
	}
	return NewGatewayError(int(errorCode))
}

func (resp *GatewayResponseBase) GetSequenceNb() int {
	sequence, _ := strconv.Atoi(resp.Sequence)
	return sequence
}

// HTTP request to the server, sanitized from the raw URL.
type GatewayRequest struct {
	ctx        context.Context
	command    string // command part of the URI after /s3p/<version>/<sequence>/
	sequence   uint32
	parameters json.RawMessage
}

type RegWriteRequest struct {
	Value    string `json:"value"`
	Datatype string `json:"datatype"`
}

type RegReadResponse struct {
	*GatewayResponseBase
	Data     string `json:"data"`
	Datatype string `json:"datatype"`
}

type PingResponse struct {
	*GatewayResponseBase
	RTTMicros int64 `json:"rtt_us"`
}

type InfoResponse struct {
	*GatewayResponseBase
	Version   string `json:"version"`
	RegMin    uint16 `json:"reg_min"`
	RegMax    uint16 `json:"reg_max"`
	RegsCount uint16 `json:"regs_count"`
	VMEMRows  uint8  `json:"vmem_rows"`
}

type RegDescriptor struct {
	ID      uint16 `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	GroupID uint8  `json:"group_id"`
	Mutable bool   `json:"mutable"`
	Persist bool   `json:"persist"`
}

type RegListResponse struct {
	*GatewayResponseBase
	Complete  bool            `json:"complete"`
	Registers []RegDescriptor `json:"registers"`
}

type VMEMRowDescriptor struct {
	Idx    uint8  `json:"idx"`
	Name   string `json:"name"`
	Type   uint8  `json:"type"`
	VStart string `json:"vstart"`
	Size   uint32 `json:"size"`
	Read   bool   `json:"read"`
	Write  bool   `json:"write"`
	Mirror bool   `json:"mirror"`
}

type VMEMListResponse struct {
	*GatewayResponseBase
	Complete bool                `json:"complete"`
	Rows     []VMEMRowDescriptor `json:"rows"`
}

type VMEMReadResponse struct {
	*GatewayResponseBase
	// Data is the hex encoding of the bytes read.
	Data   string `json:"data"`
	Length int    `json:"length"`
}

type VMEMWriteRequest struct {
	// Data is the hex encoding of the bytes to write.
	Data string `json:"data"`
}

type ExecResponse struct {
	*GatewayResponseBase
	// Data is the hex encoding of the command-defined payload, if any.
	Data string `json:"data,omitempty"`
}
