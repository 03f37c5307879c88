package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// GatewayClient talks to a GatewayServer over HTTP, mostly for tests and
// tooling that cannot reach the serial port directly.
type GatewayClient struct {
	http.Client
	logger            *log.Logger
	baseURL           string
	apiVersion        string
	currentSequenceNb int
}

func NewGatewayClient(baseURL string, apiVersion string, logger *log.Logger) *GatewayClient {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &GatewayClient{
		Client:     http.Client{},
		logger:     logger,
		baseURL:    baseURL,
		apiVersion: apiVersion,
	}
}

// Do sends one gateway request and decodes the JSON response into
// response, checking gateway errors and the sequence number echo.
func (client *GatewayClient) Do(method string, uri string, body io.Reader, response GatewayResponse) error {
	client.currentSequenceNb++
	baseURI := client.baseURL + fmt.Sprintf("/s3p/%s/%d", client.apiVersion, client.currentSequenceNb)
	req, err := http.NewRequest(method, baseURI+uri, body)
	if err != nil {
		return err
	}
	httpResp, err := client.Client.Do(req)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()
	if err := json.NewDecoder(httpResp.Body).Decode(response); err != nil {
		return err
	}
	if err := response.GetError(); err != nil {
		return err
	}
	sequence := response.GetSequenceNb()
	if client.currentSequenceNb != sequence {
		client.logger.Warnf("[GATEWAY client] wrong sequence number %d, expected %d", sequence, client.currentSequenceNb)
		return fmt.Errorf("error in sequence number")
	}
	return nil
}

// Ping returns the node round-trip time in microseconds.
func (client *GatewayClient) Ping() (int64, error) {
	resp := &PingResponse{GatewayResponseBase: &GatewayResponseBase{}}
	if err := client.Do(http.MethodGet, "/ping", nil, resp); err != nil {
		return 0, err
	}
	return resp.RTTMicros, nil
}

// Info returns the node's self-description.
func (client *GatewayClient) Info() (*InfoResponse, error) {
	resp := &InfoResponse{GatewayResponseBase: &GatewayResponseBase{}}
	if err := client.Do(http.MethodGet, "/info", nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ReadReg reads one register, returning its rendered value and datatype.
func (client *GatewayClient) ReadReg(id uint16) (data string, datatype string, err error) {
	resp := &RegReadResponse{GatewayResponseBase: &GatewayResponseBase{}}
	err = client.Do(http.MethodGet, fmt.Sprintf("/read/%d", id), nil, resp)
	if err != nil {
		return
	}
	return resp.Data, resp.Datatype, nil
}

// WriteReg writes one register from its textual value and datatype name.
func (client *GatewayClient) WriteReg(id uint16, val string, datatype string) error {
	jData, err := json.Marshal(&RegWriteRequest{Value: val, Datatype: datatype})
	if err != nil {
		return err
	}
	resp := &GatewayResponseBase{}
	return client.Do(http.MethodPut, fmt.Sprintf("/write/%d", id), bytes.NewBuffer(jData), resp)
}

// ListRegs returns the node's register metadata table.
func (client *GatewayClient) ListRegs() (*RegListResponse, error) {
	resp := &RegListResponse{GatewayResponseBase: &GatewayResponseBase{}}
	if err := client.Do(http.MethodGet, "/regs", nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ListVMEM returns the node's VMEM mapping table.
func (client *GatewayClient) ListVMEM() (*VMEMListResponse, error) {
	resp := &VMEMListResponse{GatewayResponseBase: &GatewayResponseBase{}}
	if err := client.Do(http.MethodGet, "/vmem", nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
