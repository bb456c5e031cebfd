// Package ipc provides a Unix domain socket server for local integration
// with the self-test core: validation tooling, init systems, and status
// dashboards query it without the module exposing a TCP port.
//
// Protocol:
//   - Client connects to the Unix socket (default: /run/fipsmod.sock)
//   - Client sends a JSON request (newline-terminated)
//   - Server responds with a JSON response (newline-terminated)
//   - Connection stays open for multiple request/response cycles
//
// Request format:
//   {"method": "trust.status", "id": 1}
//   {"method": "selftest.run", "id": 2}
//   {"method": "selftest.report", "id": 3}
//   {"method": "runs.list", "id": 4, "params": {"limit": 10}}
//   {"method": "env.status", "id": 5}
//   {"method": "module.info", "id": 6}
//
// Response format:
//   {"id": 1, "result": {...}, "error": null}
package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/fipsmod/fipsmod/internal/envcheck"
	"github.com/fipsmod/fipsmod/internal/selftest"
	"github.com/fipsmod/fipsmod/internal/truststate"
	"github.com/fipsmod/fipsmod/pkg/buildinfo"
	"github.com/fipsmod/fipsmod/pkg/module"
)

// DefaultSocketPath is the default Unix socket path.
const DefaultSocketPath = "/run/fipsmod.sock"

// defaultRunsLimit bounds runs.list responses when the client sends no
// limit.
const defaultRunsLimit = 20

// Request represents a JSON-RPC style request from a local client.
type Request struct {
	Method string          `json:"method"`
	ID     int             `json:"id"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC style response.
type Response struct {
	ID     int         `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *string     `json:"error"`
}

// trustStatus is the result payload of trust.status.
type trustStatus struct {
	State   selftest.State     `json:"state"`
	Trusted bool               `json:"trusted"`
	Record  *truststate.Record `json:"record,omitempty"`
}

// moduleInfo is the result payload of module.info.
type moduleInfo struct {
	Version string           `json:"version"`
	Build   string           `json:"build"`
	Node    string           `json:"node,omitempty"`
	State   selftest.State   `json:"state"`
	Trusted bool             `json:"trusted"`
	Backend envcheck.Backend `json:"backend"`
}

// Server is the IPC Unix socket server.
type Server struct {
	socketPath string
	mod        *module.Module
	env        *envcheck.LiveChecker
	listener   net.Listener
	mu         sync.Mutex
	clients    map[net.Conn]struct{}
}

// NewServer creates a new IPC server fronting mod. env serves env.status
// and may be nil.
func NewServer(socketPath string, mod *module.Module, env *envcheck.LiveChecker) *Server {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	return &Server{
		socketPath: socketPath,
		mod:        mod,
		env:        env,
		clients:    make(map[net.Conn]struct{}),
	}
}

// Start begins listening on the Unix socket. Blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	// Ensure the socket directory exists
	dir := filepath.Dir(s.socketPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}

	// Remove stale socket file
	os.Remove(s.socketPath)

	var err error
	s.listener, err = net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}

	// Set socket permissions (owner + group only)
	os.Chmod(s.socketPath, 0660)

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}

		s.mu.Lock()
		s.clients[conn] = struct{}{}
		s.mu.Unlock()

		go s.handleConn(ctx, conn)
	}
}

// SocketPath returns the configured socket path.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// ActiveConnections returns the number of active client connections.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB max message

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := scanner.Bytes()
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			errMsg := fmt.Sprintf("invalid request: %v", err)
			resp := Response{Error: &errMsg}
			writeResponse(conn, resp)
			continue
		}

		resp := s.dispatch(req)
		writeResponse(conn, resp)
	}
}

func (s *Server) dispatch(req Request) Response {
	resp := Response{ID: req.ID}

	switch req.Method {
	case "trust.status":
		status := trustStatus{State: s.mod.State(), Trusted: s.mod.Trusted()}
		rec, err := s.mod.TrustRecord()
		switch {
		case err == nil:
			status.Record = rec
		case errors.Is(err, truststate.ErrNoRecord):
			// Absent record is a normal first-load condition.
		default:
			errMsg := fmt.Sprintf("load trust record: %v", err)
			resp.Error = &errMsg
			return resp
		}
		resp.Result = status

	case "selftest.run":
		// The report is the result even for a failed run; its State field
		// says how the run ended.
		report, err := s.mod.SelfTest()
		if report == nil {
			errMsg := fmt.Sprintf("self-test run: %v", err)
			resp.Error = &errMsg
		} else {
			resp.Result = report
		}

	case "selftest.report":
		report := s.mod.Report()
		if report == nil {
			errMsg := "no self-test run recorded"
			resp.Error = &errMsg
		} else {
			resp.Result = report
		}

	case "runs.list":
		limit := defaultRunsLimit
		if len(req.Params) > 0 {
			var params struct {
				Limit int `json:"limit"`
			}
			if err := json.Unmarshal(req.Params, &params); err == nil && params.Limit > 0 {
				limit = params.Limit
			}
		}
		entries, err := s.mod.Runs(limit)
		if err != nil {
			errMsg := err.Error()
			resp.Error = &errMsg
		} else {
			resp.Result = entries
		}

	case "env.status":
		if s.env == nil {
			errMsg := "environment checker not configured"
			resp.Error = &errMsg
			break
		}
		checker := envcheck.NewChecker()
		checker.AddSection(s.env.RunCryptoChecks())
		checker.AddSection(s.env.RunStateChecks())
		resp.Result = checker.GenerateReport()

	case "module.info":
		resp.Result = moduleInfo{
			Version: s.mod.Version(),
			Build:   buildinfo.String(),
			Node:    s.mod.Node(),
			State:   s.mod.State(),
			Trusted: s.mod.Trusted(),
			Backend: s.mod.Backend(),
		}

	case "ping":
		resp.Result = map[string]string{
			"status":  "ok",
			"version": buildinfo.Version,
		}

	default:
		errMsg := fmt.Sprintf("unknown method: %s", req.Method)
		resp.Error = &errMsg
	}

	return resp
}

func writeResponse(conn net.Conn, resp Response) {
	data, _ := json.Marshal(resp)
	data = append(data, '\n')
	conn.Write(data)
}
