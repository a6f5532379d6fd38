package rpc_types

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/LeJamon/goPresale/internal/core/eligibility"
	"github.com/LeJamon/goPresale/internal/core/sale"
	"github.com/LeJamon/goPresale/internal/core/types"
)

// API Version constants
const (
	ApiVersion1       = 1
	DefaultApiVersion = ApiVersion1
)

// Role-based access control
type Role int

const (
	RoleGuest Role = iota
	RoleAdmin
)

// RPC Context contains request-specific information
type RpcContext struct {
	Context    context.Context
	Role       Role
	ApiVersion int
	IsAdmin    bool
	ClientIP   string
	Services   *ServiceContainer
}

// Method handler interface - all RPC methods implement this
type MethodHandler interface {
	Handle(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError)
	RequiredRole() Role
	SupportedApiVersions() []int
}

// Method registry for dynamic method registration
type MethodRegistry struct {
	methods map[string]MethodHandler
}

func NewMethodRegistry() *MethodRegistry {
	return &MethodRegistry{
		methods: make(map[string]MethodHandler),
	}
}

func (r *MethodRegistry) Register(name string, handler MethodHandler) {
	r.methods[name] = handler
}

func (r *MethodRegistry) Get(name string) (MethodHandler, bool) {
	handler, exists := r.methods[name]
	return handler, exists
}

// List returns the registered method names in sorted order.
func (r *MethodRegistry) List() []string {
	methods := make([]string, 0, len(r.methods))
	for name := range r.methods {
		methods = append(methods, name)
	}
	sort.Strings(methods)
	return methods
}

// Eligibility is the KYC registry surface used by the kyc_* methods.
type Eligibility interface {
	IsApproved(ctx context.Context, addr types.Address) (bool, error)
	Add(ctx context.Context, addr types.Address) error
	Remove(ctx context.Context, addr types.Address) error
	BatchAdd(ctx context.Context, addrs []types.Address) (int, error)
	BatchRemove(ctx context.Context, addrs []types.Address) (int, error)
	List(ctx context.Context) ([]eligibility.Entry, error)
}

// ServiceContainer holds references to all services needed by RPC handlers
type ServiceContainer struct {
	Sale        *sale.Engine
	Eligibility Eligibility
	Version     string
	StartedAt   time.Time
}

// Uint64 unmarshals from either a JSON number or a decimal string.
type Uint64 uint64

func (u *Uint64) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer %q", s)
		}
		*u = Uint64(v)
		return nil
	}
	var v uint64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("must be a number or string, got: %s", string(data))
	}
	*u = Uint64(v)
	return nil
}

// Common parameter blocks
type AddressParam struct {
	Address string `json:"address"`
}

type RoundParam struct {
	Round *Uint64 `json:"round"`
}

// BuyParams is shared by buy and diagnose_purchase. Amount is in the
// asset's base units.
type BuyParams struct {
	Round    *Uint64 `json:"round"`
	Buyer    string  `json:"buyer"`
	Asset    string  `json:"asset"`
	Amount   string  `json:"amount"`
	Referrer string  `json:"referrer,omitempty"`
}

// WebSocket specific structures
type WebSocketCommand struct {
	Command    string          `json:"command"`
	ID         interface{}     `json:"id,omitempty"`
	ApiVersion *int            `json:"api_version,omitempty"`
	Params     json.RawMessage `json:"-"`
}

// WebSocketResponse is a websocket reply
type WebSocketResponse struct {
	Status       string      `json:"status"`
	Type         string      `json:"type"`
	Result       interface{} `json:"result,omitempty"`
	ID           interface{} `json:"id,omitempty"`
	ApiVersion   int         `json:"api_version,omitempty"`
	Error        string      `json:"error,omitempty"`
	ErrorCode    int         `json:"error_code,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// Subscription types for WebSocket streams
type SubscriptionType string

const (
	SubSettlements SubscriptionType = "settlements"
	SubAccounts    SubscriptionType = "accounts"
)

// SubscriptionRequest is the body of subscribe and unsubscribe.
type SubscriptionRequest struct {
	Streams  []SubscriptionType `json:"streams,omitempty"`
	Accounts []string           `json:"accounts,omitempty"`
	Rounds   []Uint64           `json:"rounds,omitempty"`
}

// SettlementEvent is pushed to settlement stream subscribers.
type SettlementEvent struct {
	Type          string `json:"type"`
	ID            string `json:"id"`
	Round         uint64 `json:"round"`
	Sequence      uint64 `json:"sequence"`
	Buyer         string `json:"buyer"`
	Asset         string `json:"asset"`
	Amount        string `json:"amount"`
	USDValue      string `json:"usd_value"`
	BaseTokens    string `json:"base_tokens"`
	BonusTokens   string `json:"bonus_tokens"`
	Referrer      string `json:"referrer,omitempty"`
	ReferrerBonus string `json:"referrer_bonus,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}
