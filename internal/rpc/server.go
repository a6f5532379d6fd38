package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/LeJamon/goPresale/internal/metrics"
	"github.com/LeJamon/goPresale/internal/rpc/rpc_types"
)

// Config holds the RPC server settings.
type Config struct {
	Timeout time.Duration
	// AdminIPs lists addresses or CIDR ranges allowed to call admin methods.
	AdminIPs          []string
	RequestsPerSecond float64
	Burst             int
	MaxBodyBytes      int64
}

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 1 << 20
	limiterCacheSize    = 4096
)

// Server handles HTTP JSON-RPC requests
type Server struct {
	registry *rpc_types.MethodRegistry
	services *rpc_types.ServiceContainer
	cfg      Config
	admins   []*net.IPNet
	limiters *lru.Cache[string, *rate.Limiter]
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewServer creates the RPC server with every method registered.
func NewServer(cfg Config, services *rpc_types.ServiceContainer, logger *zap.Logger, m *metrics.Metrics) (*Server, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	admins, err := parseAdminIPs(cfg.AdminIPs)
	if err != nil {
		return nil, err
	}
	limiters, err := lru.New[string, *rate.Limiter](limiterCacheSize)
	if err != nil {
		return nil, err
	}

	server := &Server{
		registry: rpc_types.NewMethodRegistry(),
		services: services,
		cfg:      cfg,
		admins:   admins,
		limiters: limiters,
		logger:   logger.With(zap.String("module", "rpc")),
		metrics:  m,
	}
	registerAllMethods(server.registry)
	return server, nil
}

func parseAdminIPs(entries []string) ([]*net.IPNet, error) {
	out := make([]*net.IPNet, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid admin ip %q", entry)
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid admin range %q: %w", entry, err)
		}
		out = append(out, network)
	}
	return out, nil
}

// Methods returns the registered method names.
func (s *Server) Methods() []string {
	return s.registry.List()
}

func (s *Server) isAdmin(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, network := range s.admins {
		if network.Contains(parsed) {
			return true
		}
	}
	return false
}

// allow applies the per-client token bucket. Admin clients are not limited.
func (s *Server) allow(ip string) bool {
	if s.cfg.RequestsPerSecond <= 0 || s.isAdmin(ip) {
		return true
	}
	limiter, ok := s.limiters.Get(ip)
	if !ok {
		burst := s.cfg.Burst
		if burst <= 0 {
			burst = int(s.cfg.RequestsPerSecond) + 1
		}
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), burst)
		s.limiters.Add(ip, limiter)
	}
	return limiter.Allow()
}

// newContext builds the per-request RPC context.
func (s *Server) newContext(ctx context.Context, ip string) *rpc_types.RpcContext {
	rc := &rpc_types.RpcContext{
		Context:    ctx,
		Role:       rpc_types.RoleGuest,
		ApiVersion: rpc_types.DefaultApiVersion,
		ClientIP:   ip,
		Services:   s.services,
	}
	if s.isAdmin(ip) {
		rc.Role = rpc_types.RoleAdmin
		rc.IsAdmin = true
	}
	return rc
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Content-Type", "application/json")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ip := getClientIP(r)
	if !s.allow(ip) {
		s.writeError(w, http.StatusTooManyRequests, "", nil, rpc_types.RpcErrorSlowDown("Too many requests from "+ip))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()
	rc := s.newContext(ctx, ip)

	if r.Method == http.MethodGet {
		// GET /?command=round_list for quick read-only queries
		method := r.URL.Query().Get("command")
		if method == "" {
			method = "server_info"
		}
		result, rpcErr := s.executeMethod(method, nil, rc)
		s.writeResponse(w, method, nil, result, rpcErr)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusOK, "", nil, rpc_types.RpcErrorInternal("Failed to read request body"))
		return
	}
	defer r.Body.Close()

	var request struct {
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params,omitempty"`
	}
	if err := json.Unmarshal(body, &request); err != nil {
		s.writeError(w, http.StatusOK, "", nil, rpc_types.NewRpcError(rpc_types.RpcINVALID_PARAMS, "jsonInvalid", "jsonInvalid", "Invalid JSON: "+err.Error()))
		return
	}
	if request.Method == "" {
		s.writeError(w, http.StatusOK, "", nil, rpc_types.NewRpcError(rpc_types.RpcMISSING_COMMAND, "missingCommand", "missingCommand", "Missing method field"))
		return
	}

	// params is an array with one object
	var params json.RawMessage
	if len(request.Params) > 0 {
		params = request.Params[0]
	}

	var requestObj map[string]interface{}
	if params != nil {
		if err := json.Unmarshal(params, &requestObj); err != nil {
			requestObj = nil
		}
		if v, ok := requestObj["api_version"].(float64); ok {
			rc.ApiVersion = int(v)
		}
	}
	if requestObj == nil {
		requestObj = map[string]interface{}{}
	}
	requestObj["command"] = request.Method

	result, rpcErr := s.executeMethod(request.Method, params, rc)
	s.writeResponse(w, request.Method, requestObj, result, rpcErr)
}

// Call runs method in-process with admin rights. The CLI uses it to drive
// a local store without a listening server.
func (s *Server) Call(ctx context.Context, method string, params interface{}) (interface{}, *rpc_types.RpcError) {
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, rpc_types.RpcErrorInvalidParams("Invalid parameters: " + err.Error())
		}
		raw = data
	}

	rc := &rpc_types.RpcContext{
		Context:    ctx,
		Role:       rpc_types.RoleAdmin,
		ApiVersion: rpc_types.DefaultApiVersion,
		IsAdmin:    true,
		ClientIP:   "127.0.0.1",
		Services:   s.services,
	}
	return s.executeMethod(method, raw, rc)
}

// executeMethod executes an RPC method with the given parameters
func (s *Server) executeMethod(method string, params json.RawMessage, ctx *rpc_types.RpcContext) (interface{}, *rpc_types.RpcError) {
	start := time.Now()
	result, rpcErr := s.dispatch(method, params, ctx)

	status := "success"
	if rpcErr != nil {
		status = rpcErr.ErrorString
	}
	s.metrics.RPC(method, status, time.Since(start))
	if rpcErr != nil && rpcErr.Code == rpc_types.RpcINTERNAL {
		s.logger.Error("rpc method failed", zap.String("method", method), zap.String("client", ctx.ClientIP), zap.String("error", rpcErr.Message))
	} else {
		s.logger.Debug("rpc", zap.String("method", method), zap.String("client", ctx.ClientIP), zap.String("status", status))
	}
	return result, rpcErr
}

func (s *Server) dispatch(method string, params json.RawMessage, ctx *rpc_types.RpcContext) (interface{}, *rpc_types.RpcError) {
	handler, exists := s.registry.Get(method)
	if !exists {
		return nil, rpc_types.RpcErrorMethodNotFound(method)
	}
	if ctx.Role < handler.RequiredRole() {
		return nil, rpc_types.RpcErrorUntrusted(method)
	}

	supported := false
	for _, version := range handler.SupportedApiVersions() {
		if ctx.ApiVersion == version {
			supported = true
			break
		}
	}
	if !supported {
		return nil, rpc_types.RpcErrorInvalidApiVersion(strconv.Itoa(ctx.ApiVersion))
	}

	return handler.Handle(ctx, params)
}

// writeResponse writes a JSON-RPC response. Both success and error put
// the status inside result.
func (s *Server) writeResponse(w http.ResponseWriter, method string, request interface{}, result interface{}, rpcErr *rpc_types.RpcError) {
	if rpcErr != nil {
		s.writeError(w, http.StatusOK, method, request, rpcErr)
		return
	}

	var resultObj map[string]interface{}
	if m, ok := result.(map[string]interface{}); ok {
		resultObj = m
	} else {
		resultObj = map[string]interface{}{"data": result}
	}
	resultObj["status"] = "success"
	s.write(w, http.StatusOK, map[string]interface{}{"result": resultObj})
}

func (s *Server) writeError(w http.ResponseWriter, code int, method string, request interface{}, rpcErr *rpc_types.RpcError) {
	resultObj := map[string]interface{}{
		"status":        "error",
		"error":         rpcErr.ErrorString,
		"error_code":    rpcErr.Code,
		"error_message": rpcErr.Message,
	}
	if request != nil {
		resultObj["request"] = request
	}
	s.write(w, code, map[string]interface{}{"result": resultObj})
}

func (s *Server) write(w http.ResponseWriter, code int, response interface{}) {
	data, err := json.Marshal(response)
	if err != nil {
		s.logger.Error("failed to marshal response", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

// getClientIP returns the peer address of the request. Forwarding headers
// are ignored, since admin rights depend on the result.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
