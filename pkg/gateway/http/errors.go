package http

import "fmt"

// Gateway error codes live below 1000; a node-reported protocol error code
// is carried as 1000 plus the wire code so the two spaces cannot collide.
const nodeErrorOffset = 1000

var errorGatewayDescriptionMap = map[int]string{
	100: "Request not supported",
	101: "Syntax error",
	102: "Request not processed due to internal state",
	103: "Time-out (where applicable)",
	107: "Unsupported node",
}

var (
	ErrGwRequestNotSupported = &GatewayError{Code: 100}
	ErrGwSyntaxError         = &GatewayError{Code: 101}
	ErrGwRequestNotProcessed = &GatewayError{Code: 102}
	ErrGwTimeout             = &GatewayError{Code: 103}
	ErrGwUnsupportedNode     = &GatewayError{Code: 107}
)

type GatewayError struct {
	Code int // either a gateway error code or nodeErrorOffset + wire code
}

func NewGatewayError(code int) error {
	return &GatewayError{Code: code}
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("ERROR:%d", e.Code)
}

// Description returns a human readable description of the error.
func (e *GatewayError) Description() string {
	if desc, ok := errorGatewayDescriptionMap[e.Code]; ok {
		return desc
	}
	if e.Code >= nodeErrorOffset {
		return fmt.Sprintf("node error %d", e.Code-nodeErrorOffset)
	}
	return "unknown error"
}
