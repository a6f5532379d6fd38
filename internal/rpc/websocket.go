package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/rpc/rpc_types"
)

const (
	wsReadLimit    = 512 * 1024
	wsPongWait     = 60 * time.Second
	wsPingInterval = 54 * time.Second
	wsWriteWait    = 10 * time.Second
	wsSendBuffer   = 256
)

// WebSocketServer serves RPC calls and settlement subscriptions over
// websocket connections.
type WebSocketServer struct {
	rpc      *Server
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	connections map[string]*WebSocketConnection
}

// WebSocketConnection represents a single WebSocket connection
type WebSocketConnection struct {
	ID       string
	clientIP string
	conn     *websocket.Conn
	send     chan []byte
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once

	mu       sync.RWMutex
	streams  map[rpc_types.SubscriptionType]bool
	accounts map[types.Address]bool
	rounds   map[uint64]bool
}

// NewWebSocketServer shares the method registry and admin list of rpc.
func NewWebSocketServer(rpc *Server) *WebSocketServer {
	return &WebSocketServer{
		rpc: rpc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		connections: make(map[string]*WebSocketConnection),
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (ws *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.rpc.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	// Upgraded connections outlive the request context.
	ctx, cancel := context.WithCancel(context.Background())
	wsConn := &WebSocketConnection{
		ID:       uuid.NewString(),
		clientIP: getClientIP(r),
		conn:     conn,
		send:     make(chan []byte, wsSendBuffer),
		ctx:      ctx,
		cancel:   cancel,
		streams:  make(map[rpc_types.SubscriptionType]bool),
		accounts: make(map[types.Address]bool),
		rounds:   make(map[uint64]bool),
	}

	ws.mu.Lock()
	ws.connections[wsConn.ID] = wsConn
	ws.mu.Unlock()
	ws.rpc.metrics.WebsocketClients(1)

	go ws.readLoop(wsConn)
	go ws.writeLoop(wsConn)
}

// Count returns the number of open connections.
func (ws *WebSocketServer) Count() int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return len(ws.connections)
}

func (ws *WebSocketServer) readLoop(wsConn *WebSocketConnection) {
	defer ws.closeConnection(wsConn)

	wsConn.conn.SetReadLimit(wsReadLimit)
	_ = wsConn.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	wsConn.conn.SetPongHandler(func(string) error {
		return wsConn.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, message, err := wsConn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.rpc.logger.Debug("websocket read failed", zap.String("conn", wsConn.ID), zap.Error(err))
			}
			return
		}
		ws.handleMessage(wsConn, message)
	}
}

func (ws *WebSocketServer) writeLoop(wsConn *WebSocketConnection) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wsConn.ctx.Done():
			return
		case <-ticker.C:
			_ = wsConn.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := wsConn.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				ws.closeConnection(wsConn)
				return
			}
		case message := <-wsConn.send:
			_ = wsConn.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := wsConn.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				ws.closeConnection(wsConn)
				return
			}
		}
	}
}

// handleMessage processes a single message. Commands carry their params at
// the top level next to "command" and "id".
func (ws *WebSocketServer) handleMessage(wsConn *WebSocketConnection, message []byte) {
	var cmdMap map[string]interface{}
	if err := json.Unmarshal(message, &cmdMap); err != nil {
		ws.sendError(wsConn, rpc_types.RpcErrorInvalidParams("Invalid JSON: "+err.Error()), nil)
		return
	}
	command, _ := cmdMap["command"].(string)
	if command == "" {
		ws.sendError(wsConn, rpc_types.NewRpcError(rpc_types.RpcMISSING_COMMAND, "missingCommand", "missingCommand", "Missing command field"), cmdMap["id"])
		return
	}

	cmd := rpc_types.WebSocketCommand{Command: command, ID: cmdMap["id"]}
	delete(cmdMap, "command")
	delete(cmdMap, "id")

	apiVersion := rpc_types.DefaultApiVersion
	if v, ok := cmdMap["api_version"].(float64); ok {
		apiVersion = int(v)
		delete(cmdMap, "api_version")
	}
	if len(cmdMap) > 0 {
		cmd.Params, _ = json.Marshal(cmdMap)
	}

	if !ws.rpc.allow(wsConn.clientIP) {
		ws.sendError(wsConn, rpc_types.RpcErrorSlowDown("Too many requests"), cmd.ID)
		return
	}

	ctx, cancel := context.WithTimeout(wsConn.ctx, ws.rpc.cfg.Timeout)
	defer cancel()
	rc := ws.rpc.newContext(ctx, wsConn.clientIP)
	rc.ApiVersion = apiVersion

	switch cmd.Command {
	case "subscribe":
		ws.handleSubscribe(wsConn, rc, cmd, true)
	case "unsubscribe":
		ws.handleSubscribe(wsConn, rc, cmd, false)
	default:
		result, rpcErr := ws.rpc.executeMethod(cmd.Command, cmd.Params, rc)
		if rpcErr != nil {
			ws.sendError(wsConn, rpcErr, cmd.ID)
			return
		}
		ws.sendResponse(wsConn, rpc_types.WebSocketResponse{
			Type:       "response",
			ID:         cmd.ID,
			Status:     "success",
			Result:     result,
			ApiVersion: rc.ApiVersion,
		})
	}
}

// handleSubscribe adds or removes streams and filters. Account and round
// filters narrow the settlements stream; an account filter alone also
// subscribes the connection to that account's settlements.
func (ws *WebSocketServer) handleSubscribe(wsConn *WebSocketConnection, rc *rpc_types.RpcContext, cmd rpc_types.WebSocketCommand, subscribe bool) {
	var request rpc_types.SubscriptionRequest
	if len(cmd.Params) > 0 {
		if err := json.Unmarshal(cmd.Params, &request); err != nil {
			ws.sendError(wsConn, rpc_types.NewRpcError(rpc_types.RpcSTREAM_MALFORMED, "malformedStream", "malformedStream", "Invalid subscription parameters"), cmd.ID)
			return
		}
	}
	if len(request.Streams) == 0 && len(request.Accounts) == 0 && len(request.Rounds) == 0 {
		ws.sendError(wsConn, rpc_types.RpcErrorInvalidParams("Nothing to subscribe to"), cmd.ID)
		return
	}

	for _, stream := range request.Streams {
		if stream != rpc_types.SubSettlements {
			ws.sendError(wsConn, rpc_types.NewRpcError(rpc_types.RpcSTREAM_MALFORMED, "malformedStream", "malformedStream", "Unknown stream: "+string(stream)), cmd.ID)
			return
		}
	}
	accounts := make([]types.Address, 0, len(request.Accounts))
	for _, raw := range request.Accounts {
		addr, err := types.ParseAddress(raw)
		if err != nil {
			ws.sendError(wsConn, rpc_types.RpcErrorActMalformed(raw), cmd.ID)
			return
		}
		accounts = append(accounts, addr)
	}

	wsConn.mu.Lock()
	for _, stream := range request.Streams {
		wsConn.streams[stream] = subscribe
	}
	for _, addr := range accounts {
		if subscribe {
			wsConn.accounts[addr] = true
		} else {
			delete(wsConn.accounts, addr)
		}
	}
	wsConn.streams[rpc_types.SubAccounts] = len(wsConn.accounts) > 0
	for _, round := range request.Rounds {
		if subscribe {
			wsConn.rounds[uint64(round)] = true
		} else {
			delete(wsConn.rounds, uint64(round))
		}
	}
	wsConn.mu.Unlock()

	key := "subscribed"
	if !subscribe {
		key = "unsubscribed"
	}
	ws.sendResponse(wsConn, rpc_types.WebSocketResponse{
		Type:       "response",
		ID:         cmd.ID,
		Status:     "success",
		Result:     map[string]interface{}{key: true},
		ApiVersion: rc.ApiVersion,
	})
}

// wants reports whether the connection should receive a settlement.
func (c *WebSocketConnection) wants(round uint64, buyer, referrer types.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.rounds) > 0 && !c.rounds[round] {
		return false
	}
	if c.streams[rpc_types.SubSettlements] {
		return true
	}
	if c.streams[rpc_types.SubAccounts] {
		return c.accounts[buyer] || (referrer != types.ZeroAddress && c.accounts[referrer])
	}
	return false
}

func (ws *WebSocketServer) sendResponse(wsConn *WebSocketConnection, response rpc_types.WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		ws.rpc.logger.Error("failed to marshal websocket response", zap.Error(err))
		return
	}
	ws.enqueue(wsConn, data)
}

// sendError sends an error reply with flat error fields.
func (ws *WebSocketServer) sendError(wsConn *WebSocketConnection, rpcErr *rpc_types.RpcError, id interface{}) {
	ws.sendResponse(wsConn, rpc_types.WebSocketResponse{
		Type:         "response",
		Status:       "error",
		ID:           id,
		Error:        rpcErr.ErrorString,
		ErrorCode:    rpcErr.Code,
		ErrorMessage: rpcErr.Message,
	})
}

// enqueue drops the connection when its buffer is full.
func (ws *WebSocketServer) enqueue(wsConn *WebSocketConnection, data []byte) {
	select {
	case wsConn.send <- data:
	case <-wsConn.ctx.Done():
	default:
		ws.rpc.logger.Warn("websocket send buffer full, closing", zap.String("conn", wsConn.ID))
		ws.closeConnection(wsConn)
	}
}

func (ws *WebSocketServer) closeConnection(wsConn *WebSocketConnection) {
	wsConn.once.Do(func() {
		wsConn.cancel()
		ws.mu.Lock()
		delete(ws.connections, wsConn.ID)
		ws.mu.Unlock()
		_ = wsConn.conn.Close()
		ws.rpc.metrics.WebsocketClients(-1)
		ws.rpc.logger.Debug("websocket connection closed", zap.String("conn", wsConn.ID))
	})
}

// Close drops every open connection.
func (ws *WebSocketServer) Close() {
	ws.mu.RLock()
	conns := make([]*WebSocketConnection, 0, len(ws.connections))
	for _, c := range ws.connections {
		conns = append(conns, c)
	}
	ws.mu.RUnlock()
	for _, c := range conns {
		ws.closeConnection(c)
	}
}

// broadcast sends data to every connection matching the settlement. Slow
// connections are skipped.
func (ws *WebSocketServer) broadcast(round uint64, buyer, referrer types.Address, data []byte) int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	sent := 0
	for _, conn := range ws.connections {
		if !conn.wants(round, buyer, referrer) {
			continue
		}
		select {
		case conn.send <- data:
			sent++
		default:
			ws.rpc.logger.Debug("skipping slow websocket connection", zap.String("conn", conn.ID))
		}
	}
	return sent
}
