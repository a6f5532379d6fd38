package rpc_types

import (
	"errors"
	"strings"

	"github.com/LeJamon/goPresale/internal/core/eligibility"
	"github.com/LeJamon/goPresale/internal/core/sale"
)

// RpcError represents an RPC error with code and message
type RpcError struct {
	Code        int    `json:"error_code"`
	ErrorString string `json:"error"`
	Type        string `json:"type"`
	Message     string `json:"error_message,omitempty"`
}

func (e RpcError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.ErrorString
}

// Error codes
const (
	// Universal errors
	RpcUNKNOWN          = -1
	RpcMETHOD_NOT_FOUND = -32601
	RpcINVALID_PARAMS   = -32602
	RpcINTERNAL         = -32603

	// General purpose errors
	RpcGENERAL           = 1
	RpcMISSING_COMMAND   = 2
	RpcCOMMAND_UNTRUSTED = 3
	RpcTOO_BUSY          = 6
	RpcSLOW_DOWN         = 7

	// Account errors
	RpcACT_MALFORMED = 50

	// Subscription errors
	RpcSTREAM_MALFORMED = 26

	RpcINVALID_API_VERSION = 38

	// Settlement errors
	RpcNOT_ELIGIBLE          = 100
	RpcROUND_INACTIVE        = 101
	RpcROUND_PAUSED          = 102
	RpcROUND_NOT_STARTED     = 103
	RpcROUND_ENDED           = 104
	RpcPRICE_UNAVAILABLE     = 105
	RpcTOO_FREQUENT          = 106
	RpcPERIOD_LIMIT_EXCEEDED = 107
	RpcDAILY_CAP_EXCEEDED    = 108
	RpcHARD_CAP_EXCEEDED     = 109
	RpcINSUFFICIENT_FUNDS    = 110
	RpcUNAUTHORIZED          = 111
	RpcNOTHING_TO_CLAIM      = 112
	RpcINVALID_CONFIG        = 113
	RpcNOT_INITIALIZED       = 114
	RpcALREADY_INITIALIZED   = 115
	RpcROUND_NOT_FOUND       = 116
	RpcKYC_ALREADY_APPROVED  = 117
	RpcKYC_NOT_APPROVED      = 118
)

// Standard error constructors
func NewRpcError(code int, error, errorType, message string) *RpcError {
	return &RpcError{
		Code:        code,
		ErrorString: error,
		Type:        errorType,
		Message:     message,
	}
}

func RpcErrorInvalidParams(message string) *RpcError {
	return NewRpcError(RpcINVALID_PARAMS, "invalidParams", "invalidParams", message)
}

func RpcErrorMethodNotFound(method string) *RpcError {
	return NewRpcError(RpcMETHOD_NOT_FOUND, "unknownCmd", "unknownCmd", "Unknown method: "+method)
}

func RpcErrorInternal(message string) *RpcError {
	return NewRpcError(RpcINTERNAL, "internal", "internal", message)
}

func RpcErrorSlowDown(message string) *RpcError {
	return NewRpcError(RpcSLOW_DOWN, "slowDown", "slowDown", message)
}

func RpcErrorInvalidApiVersion(version string) *RpcError {
	return NewRpcError(RpcINVALID_API_VERSION, "invalidApiVersion", "invalidApiVersion", "Invalid API version: "+version)
}

func RpcErrorUntrusted(method string) *RpcError {
	return NewRpcError(RpcCOMMAND_UNTRUSTED, "commandUntrusted", "commandUntrusted",
		"Method '"+method+"' requires admin privileges")
}

// RpcErrorMissingField returns an error for a missing required field
func RpcErrorMissingField(field string) *RpcError {
	return NewRpcError(RpcINVALID_PARAMS, "invalidParams", "invalidParams", "Missing field '"+field+"'.")
}

// RpcErrorInvalidField returns an error for an invalid field value
func RpcErrorInvalidField(field string) *RpcError {
	return NewRpcError(RpcINVALID_PARAMS, "invalidParams", "invalidParams", "Invalid field '"+field+"'.")
}

func RpcErrorActMalformed(field string) *RpcError {
	return NewRpcError(RpcACT_MALFORMED, "actMalformed", "actMalformed", "Malformed address in '"+field+"'.")
}

var reasonCodes = map[string]int{
	"notEligible":                    RpcNOT_ELIGIBLE,
	"roundInactive":                  RpcROUND_INACTIVE,
	"roundPaused":                    RpcROUND_PAUSED,
	"roundNotStarted":                RpcROUND_NOT_STARTED,
	"roundEnded":                     RpcROUND_ENDED,
	"priceUnavailable":               RpcPRICE_UNAVAILABLE,
	"tooFrequent":                    RpcTOO_FREQUENT,
	"periodLimitExceeded":            RpcPERIOD_LIMIT_EXCEEDED,
	"dailyCapExceeded":               RpcDAILY_CAP_EXCEEDED,
	"hardCapExceeded":                RpcHARD_CAP_EXCEEDED,
	"insufficientAllowanceOrBalance": RpcINSUFFICIENT_FUNDS,
	"nothingToClaim":                 RpcNOTHING_TO_CLAIM,
	"invalidConfig":                  RpcINVALID_CONFIG,
	"notInitialized":                 RpcNOT_INITIALIZED,
	"alreadyInitialized":             RpcALREADY_INITIALIZED,
	"roundNotFound":                  RpcROUND_NOT_FOUND,
}

// RpcErrorFromSale maps an engine error onto its reason token, so clients
// see notEligible, hardCapExceeded, unauthorizedVesting and so on.
func RpcErrorFromSale(err error) *RpcError {
	switch {
	case errors.Is(err, eligibility.ErrAlreadyApproved):
		return NewRpcError(RpcKYC_ALREADY_APPROVED, "alreadyApproved", "alreadyApproved", err.Error())
	case errors.Is(err, eligibility.ErrNotApproved):
		return NewRpcError(RpcKYC_NOT_APPROVED, "notApproved", "notApproved", err.Error())
	case errors.Is(err, eligibility.ErrZeroAddress):
		return RpcErrorInvalidParams(err.Error())
	}

	reason := sale.Reason(err)
	if strings.HasPrefix(reason, "unauthorized") {
		return NewRpcError(RpcUNAUTHORIZED, reason, "unauthorized", err.Error())
	}
	if code, ok := reasonCodes[reason]; ok {
		return NewRpcError(code, reason, reason, err.Error())
	}
	return RpcErrorInternal(err.Error())
}
