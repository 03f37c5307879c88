// Package http exposes a Manager as a small REST gateway: register reads
// and writes, VMEM transfers, command execution, and metadata listing over
// JSON. One gateway serves one node; the gateway serializes requests
// because the protocol allows a single outstanding transaction.
package http

import (
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"

	s3p "github.com/paradigmatech/gos3p"
	log "github.com/sirupsen/logrus"
)

const APIVersion = "1.0"
const MaxSequenceNb = 2<<31 - 1

// URIPattern matches /s3p/<api version>/<sequence nb>/<command...>
const URIPattern = `/s3p/(\d+\.\d+)/(\d{1,10})/(.*)`

var regURI = regexp.MustCompile(URIPattern)

// Handle a [GatewayRequest]
type GatewayRequestHandler func(w *doneWriter, req *GatewayRequest) error

// Wrapper around [http.ResponseWriter] but keeps track of any writes
// already done. This allows us to perform default behaviour if handler has
// not already sent a response.
type doneWriter struct {
	http.ResponseWriter
	done bool
}

func (w *doneWriter) WriteHeader(status int) {
	w.done = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *doneWriter) Write(b []byte) (int, error) {
	w.done = true
	return w.ResponseWriter.Write(b)
}

type GatewayServer struct {
	manager  *s3p.Manager
	logger   *log.Logger
	serveMux *http.ServeMux
	routes   map[string]GatewayRequestHandler
	// One transaction at a time on the wire.
	mu sync.Mutex
}

// NewGatewayServer creates a gateway around manager. logger may be nil.
func NewGatewayServer(manager *s3p.Manager, logger *log.Logger) *GatewayServer {
	if logger == nil {
		logger = log.StandardLogger()
	}
	g := &GatewayServer{
		manager:  manager,
		logger:   logger,
		serveMux: http.NewServeMux(),
		routes:   make(map[string]GatewayRequestHandler),
	}
	g.serveMux.HandleFunc("/", g.handleRequest) // This base route handles all the requests

	g.addRoute("ping", g.handlePing)
	g.addRoute("info", g.handleInfo)
	g.addRoute("reboot", g.handleReboot)
	g.addRoute("exec", g.handleExec)
	g.addRoute("read", g.handleRead)
	g.addRoute("write", g.handleWrite)
	g.addRoute("regs", g.handleRegList)
	g.addRoute("vmem", g.handleVMEM)
	return g
}

// ListenAndServe starts the server on the given address and blocks.
func (g *GatewayServer) ListenAndServe(addr string) error {
	g.logger.Infof("[GATEWAY] listening on %s", addr)
	return http.ListenAndServe(addr, g.serveMux)
}

// ServeHTTP implements http.Handler so the gateway can be mounted in tests
// or behind an existing server.
func (g *GatewayServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.serveMux.ServeHTTP(w, r)
}

func (g *GatewayServer) addRoute(command string, handler GatewayRequestHandler) {
	g.routes[command] = handler
}

// Create a new sanitized api request object from raw http request.
func (g *GatewayServer) newRequestFromRaw(r *http.Request) (*GatewayRequest, error) {
	match := regURI.FindStringSubmatch(r.URL.Path)
	if len(match) != 4 {
		g.logger.Warnf("[GATEWAY] request does not match the API pattern: %v", r.URL.Path)
		return nil, ErrGwSyntaxError
	}
	apiVersion := match[1]
	if apiVersion != APIVersion {
		g.logger.Warnf("[GATEWAY] api version %v is not supported", apiVersion)
		return nil, ErrGwRequestNotSupported
	}
	sequence, err := strconv.Atoi(match[2])
	if err != nil || sequence > MaxSequenceNb {
		g.logger.Warnf("[GATEWAY] error processing sequence number %v", match[2])
		return nil, ErrGwSyntaxError
	}

	var parameters json.RawMessage
	err = json.NewDecoder(r.Body).Decode(&parameters)
	if err != nil && err != io.EOF {
		g.logger.Warnf("[GATEWAY] failed to unmarshal request body: %v", err)
		return nil, ErrGwSyntaxError
	}
	return &GatewayRequest{
		ctx:        r.Context(),
		command:    match[3],
		sequence:   uint32(sequence),
		parameters: parameters,
	}, nil
}

// Default handler of any gateway request. A command URI is of the form
// /command/sub-command/...; the full command is looked up first, then the
// part before the first "/", e.g. "vmem/read/0x0/16" falls back to "vmem".
func (g *GatewayServer) handleRequest(w http.ResponseWriter, raw *http.Request) {
	g.logger.Debugf("[GATEWAY] handle incoming request %v", raw.URL)
	req, err := g.newRequestFromRaw(raw)
	if err != nil {
		w.Write(NewResponseError(0, err))
		return
	}
	route, ok := g.routes[req.command]
	if !ok {
		firstCommand := req.command
		if idx := strings.Index(req.command, "/"); idx != -1 {
			firstCommand = req.command[:idx]
		}
		route, ok = g.routes[firstCommand]
		if !ok {
			g.logger.Debugf("[GATEWAY] no handler found for %v", req.command)
			w.Write(NewResponseError(int(req.sequence), ErrGwRequestNotSupported))
			return
		}
	}

	g.mu.Lock()
	dw := &doneWriter{ResponseWriter: w, done: false}
	err = route(dw, req)
	g.mu.Unlock()
	if err != nil {
		g.logger.Warnf("[GATEWAY] command %v failed: %v", req.command, err)
		w.Write(NewResponseError(int(req.sequence), err))
		return
	}
	if !dw.done {
		// Nothing was sent by the handler, send default success response
		w.Write(NewResponseSuccess(int(req.sequence)))
	}
}
