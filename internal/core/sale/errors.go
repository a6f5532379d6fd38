package sale

import (
	"errors"
	"fmt"

	"github.com/LeJamon/goPresale/internal/core/access"
	"github.com/LeJamon/goPresale/internal/core/assets"
	"github.com/LeJamon/goPresale/internal/core/custody"
	"github.com/LeJamon/goPresale/internal/core/pricing"
	"github.com/LeJamon/goPresale/internal/core/ratelimit"
	"github.com/LeJamon/goPresale/internal/core/referral"
	"github.com/LeJamon/goPresale/internal/core/vesting"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// Settlement failures. The rate limiter, vesting and access sentinels are
// shared with their ledgers so errors.Is works on either name.
var (
	ErrNotEligible                    = errors.New("buyer not eligible")
	ErrRoundInactive                  = errors.New("round inactive")
	ErrRoundPaused                    = errors.New("round paused")
	ErrRoundNotStarted                = errors.New("round not started")
	ErrRoundEnded                     = errors.New("round ended")
	ErrPriceUnavailable               = pricing.ErrPriceUnavailable
	ErrTooFrequent                    = ratelimit.ErrTooFrequent
	ErrPeriodLimitExceeded            = ratelimit.ErrPeriodLimitExceeded
	ErrDailyCapExceeded               = ratelimit.ErrDailyCapExceeded
	ErrHardCapExceeded                = errors.New("hard cap exceeded")
	ErrInsufficientAllowanceOrBalance = errors.New("insufficient allowance or balance")
	ErrUnauthorized                   = access.ErrUnauthorized
	ErrNothingToClaim                 = vesting.ErrNothingToClaim
	ErrInvalidConfig                  = errors.New("invalid config")

	ErrNotInitialized     = errors.New("system not initialized")
	ErrAlreadyInitialized = errors.New("system already initialized")
	ErrRoundNotFound      = relationaldb.ErrRoundNotFound
)

// Error attaches a taxonomy kind to a ledger error, so callers can match
// either the kind or the original cause.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func invalid(format string, args ...interface{}) error {
	return &Error{Kind: ErrInvalidConfig, Err: fmt.Errorf(format, args...)}
}

// classify maps ledger errors onto the settlement taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return err
	}
	switch {
	case errors.Is(err, assets.ErrInsufficientBalance),
		errors.Is(err, assets.ErrInsufficientAllowance),
		errors.Is(err, custody.ErrInsufficientBalance):
		return &Error{Kind: ErrInsufficientAllowanceOrBalance, Err: err}
	case errors.Is(err, ratelimit.ErrInvalidConfig),
		errors.Is(err, referral.ErrInvalidCredit),
		errors.Is(err, vesting.ErrInvalidGrant),
		errors.Is(err, custody.ErrZeroAmount),
		errors.Is(err, assets.ErrZeroAmount),
		errors.Is(err, pricing.ErrUnknownAsset),
		errors.Is(err, pricing.ErrInvalidReference):
		return &Error{Kind: ErrInvalidConfig, Err: err}
	case errors.Is(err, custody.ErrUnbound), errors.Is(err, vesting.ErrUnbound):
		return &Error{Kind: ErrNotInitialized, Err: err}
	}
	return err
}

// Reason returns the stable token clients and metrics use for err.
func Reason(err error) string {
	var unauthorized *access.UnauthorizedError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &unauthorized):
		return "unauthorized" + ledgerToken(unauthorized.Ledger)
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	}

	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.token
		}
	}
	return "internal"
}

var reasons = []struct {
	err   error
	token string
}{
	{ErrNotEligible, "notEligible"},
	{ErrRoundInactive, "roundInactive"},
	{ErrRoundPaused, "roundPaused"},
	{ErrRoundNotStarted, "roundNotStarted"},
	{ErrRoundEnded, "roundEnded"},
	{ErrPriceUnavailable, "priceUnavailable"},
	{ErrTooFrequent, "tooFrequent"},
	{ErrPeriodLimitExceeded, "periodLimitExceeded"},
	{ErrDailyCapExceeded, "dailyCapExceeded"},
	{ErrHardCapExceeded, "hardCapExceeded"},
	{ErrInsufficientAllowanceOrBalance, "insufficientAllowanceOrBalance"},
	{ErrNothingToClaim, "nothingToClaim"},
	{ErrInvalidConfig, "invalidConfig"},
	{ErrNotInitialized, "notInitialized"},
	{ErrAlreadyInitialized, "alreadyInitialized"},
	{ErrRoundNotFound, "roundNotFound"},
}

func ledgerToken(l access.Ledger) string {
	switch l {
	case access.LedgerRateLimiter:
		return "RateLimiter"
	case access.LedgerReferral:
		return "Referral"
	case access.LedgerVesting:
		return "Vesting"
	case access.LedgerCustody:
		return "Custody"
	case access.LedgerRegistry:
		return "Registry"
	}
	return ""
}
