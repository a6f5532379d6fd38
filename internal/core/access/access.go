// Package access implements the capability grants that guard every ledger
// mutation. A Grant value can only be obtained from this package after the
// holder's grant was found in the store, so holding one is proof of
// authorization for the duration of the enclosing transaction.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// Ledger names a guarded component.
type Ledger string

const (
	LedgerRateLimiter Ledger = "rate_limiter"
	LedgerReferral    Ledger = "referral"
	LedgerVesting     Ledger = "vesting"
	LedgerCustody     Ledger = "custody"
	LedgerRegistry    Ledger = "registry"
)

// RoundLedgers are the ledgers a sale round must be able to write.
var RoundLedgers = []Ledger{LedgerRateLimiter, LedgerReferral, LedgerVesting, LedgerCustody}

// Capability is the kind of access held on a ledger.
type Capability string

const (
	// CapRound lets a sale round record purchases (for custody: deposit).
	CapRound Capability = "round"
	// CapAdmin lets the holder configure the ledger and grant CapRound.
	CapAdmin Capability = "admin"
)

// ErrUnauthorized matches every authorization failure.
var ErrUnauthorized = errors.New("unauthorized")

// UnauthorizedError names the ledger and capability that was missing.
type UnauthorizedError struct {
	Ledger     Ledger
	Capability Capability
	Holder     types.Address
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized: %s lacks %s capability on %s ledger", e.Holder.Hex(), e.Capability, e.Ledger)
}

func (e *UnauthorizedError) Is(target error) bool {
	return target == ErrUnauthorized
}

// MissingGrantsError lists every round ledger a round is not authorized on.
type MissingGrantsError struct {
	Round   types.Address
	Ledgers []Ledger
}

func (e *MissingGrantsError) Error() string {
	names := make([]string, len(e.Ledgers))
	for i, l := range e.Ledgers {
		names[i] = string(l)
	}
	return fmt.Sprintf("unauthorized: round %s missing round capability on %s", e.Round.Hex(), strings.Join(names, ", "))
}

func (e *MissingGrantsError) Is(target error) bool {
	return target == ErrUnauthorized
}

// Unwrap exposes the first missing ledger as an *UnauthorizedError.
func (e *MissingGrantsError) Unwrap() error {
	if len(e.Ledgers) == 0 {
		return nil
	}
	return &UnauthorizedError{Ledger: e.Ledgers[0], Capability: CapRound, Holder: e.Round}
}

// Grant is proof that holder has capability on ledger.
type Grant struct {
	ledger     Ledger
	capability Capability
	holder     types.Address
}

func (g Grant) Ledger() Ledger         { return g.ledger }
func (g Grant) Capability() Capability { return g.capability }
func (g Grant) Holder() types.Address  { return g.holder }

// Check is called at the top of every guarded operation. The zero Grant
// never passes.
func (g Grant) Check(ledger Ledger, capability Capability) error {
	if g.ledger != ledger || g.capability != capability || g.holder == types.ZeroAddress {
		return &UnauthorizedError{Ledger: ledger, Capability: capability, Holder: g.holder}
	}
	return nil
}

// Require looks the grant up and returns it, or an *UnauthorizedError.
func Require(ctx context.Context, repos relationaldb.Repositories, ledger Ledger, capability Capability, holder types.Address) (Grant, error) {
	ok, err := repos.Capabilities().Has(ctx, string(ledger), string(capability), holder)
	if err != nil {
		return Grant{}, fmt.Errorf("check %s/%s: %w", ledger, capability, err)
	}
	if !ok {
		return Grant{}, &UnauthorizedError{Ledger: ledger, Capability: capability, Holder: holder}
	}
	return Grant{ledger: ledger, capability: capability, holder: holder}, nil
}

// Bootstrap writes an admin grant without an existing admin. It is only
// valid while the system record is being created.
func Bootstrap(ctx context.Context, repos relationaldb.Repositories, ledger Ledger, holder types.Address, now time.Time) error {
	_, err := repos.Capabilities().Grant(ctx, &relationaldb.CapabilityRow{
		Ledger:     string(ledger),
		Capability: string(CapAdmin),
		Holder:     holder,
		GrantedAt:  now.Unix(),
	})
	return err
}

// Authorize lets an admin of a ledger grant capability on that same ledger.
// It reports whether the grant is new.
func Authorize(ctx context.Context, repos relationaldb.Repositories, admin Grant, holder types.Address, capability Capability, now time.Time) (bool, error) {
	if err := admin.Check(admin.ledger, CapAdmin); err != nil {
		return false, err
	}
	if holder == types.ZeroAddress {
		return false, fmt.Errorf("grant %s on %s: zero address", capability, admin.ledger)
	}
	return repos.Capabilities().Grant(ctx, &relationaldb.CapabilityRow{
		Ledger:     string(admin.ledger),
		Capability: string(capability),
		Holder:     holder,
		GrantedAt:  now.Unix(),
	})
}

// Revoke removes capability from holder on the admin's ledger.
func Revoke(ctx context.Context, repos relationaldb.Repositories, admin Grant, holder types.Address, capability Capability) (bool, error) {
	if err := admin.Check(admin.ledger, CapAdmin); err != nil {
		return false, err
	}
	return repos.Capabilities().Revoke(ctx, string(admin.ledger), string(capability), holder)
}

// RoundCapabilities bundles the four grants a sale round needs to settle a
// purchase. It can only be built by ResolveRound, so a round that has one
// can write to every ledger it touches.
type RoundCapabilities struct {
	RateLimiter Grant
	Referral    Grant
	Vesting     Grant
	Custody     Grant
}

// ResolveRound gathers the round's grants. The error lists every missing
// ledger.
func ResolveRound(ctx context.Context, repos relationaldb.Repositories, round types.Address) (RoundCapabilities, error) {
	var (
		caps    RoundCapabilities
		missing []Ledger
	)
	targets := map[Ledger]*Grant{
		LedgerRateLimiter: &caps.RateLimiter,
		LedgerReferral:    &caps.Referral,
		LedgerVesting:     &caps.Vesting,
		LedgerCustody:     &caps.Custody,
	}
	for _, ledger := range RoundLedgers {
		g, err := Require(ctx, repos, ledger, CapRound, round)
		if errors.Is(err, ErrUnauthorized) {
			missing = append(missing, ledger)
			continue
		}
		if err != nil {
			return RoundCapabilities{}, err
		}
		*targets[ledger] = g
	}
	if len(missing) > 0 {
		return RoundCapabilities{}, &MissingGrantsError{Round: round, Ledgers: missing}
	}
	return caps, nil
}

// Status reports, per round ledger, whether holder has the round capability.
func Status(ctx context.Context, repos relationaldb.Repositories, holder types.Address) (map[Ledger]bool, error) {
	out := make(map[Ledger]bool, len(RoundLedgers))
	for _, ledger := range RoundLedgers {
		ok, err := repos.Capabilities().Has(ctx, string(ledger), string(CapRound), holder)
		if err != nil {
			return nil, err
		}
		out[ledger] = ok
	}
	return out, nil
}
