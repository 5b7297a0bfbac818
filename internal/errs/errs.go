// Package errs defines the error taxonomy shared by every pipeline stage.
//
// Every per-transaction fallible operation returns one of these instead of
// panicking; only invariant violations (Tier) unwind a worker goroutine, by
// panicking with the *Error itself, which the engine's supervisor recovers.
package errs

import "fmt"

// Tier classifies how the engine should react to an Error.
type Tier uint8

const (
	// Transient errors drop the current transaction; the engine continues.
	Transient Tier = iota
	// Config errors are fatal at startup.
	Config
	// Operational errors are recoverable but raise an alarm (a metric, a log
	// line); they do not drop the in-flight transaction by themselves.
	Operational
	// Invariant errors indicate a bug. The worker that hit one unwinds and
	// the engine is marked degraded until the supervisor restarts it.
	Invariant
)

func (t Tier) String() string {
	switch t {
	case Transient:
		return "transient"
	case Config:
		return "config"
	case Operational:
		return "operational"
	case Invariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// Kind is a stable, matchable error identifier. New Kinds are added to this
// block; never reuse a retired one.
type Kind string

const (
	// Transient
	MalformedWire     Kind = "malformed_wire"
	UnknownVariant    Kind = "unknown_variant"
	TruncatedField    Kind = "truncated_field"
	StaleMiss         Kind = "stale_miss"
	PoolUnknown       Kind = "pool_unknown"
	NoProfitableSize  Kind = "no_profitable_size"
	BelowThreshold    Kind = "below_threshold"
	BudgetExceeded    Kind = "budget_exceeded"
	RelayTimeout      Kind = "relay_timeout"
	RelayRejected     Kind = "relay_rejected"
	InvalidSandwich   Kind = "invalid_sandwich_order" // construction-time, Transient at the builder boundary
	FeeCapExceeded    Kind = "fee_cap_exceeded"

	// Config
	InvalidConfig                 Kind = "invalid_config"
	SandwichWithoutSimulationOnly Kind = "sandwich_without_simulation_only"

	// Operational
	QueueOverflow      Kind = "queue_overflow"
	PoolCacheTimeout   Kind = "pool_cache_timeout"
	RelayUnhealthy     Kind = "relay_unhealthy"
	EngineDegraded     Kind = "engine_degraded"

	// Invariant
	InvalidSandwichOrder Kind = "invalid_sandwich_order_invariant"
	DuplicateDispatch    Kind = "duplicate_dispatch"
	SignerContractBreak  Kind = "signer_contract_break"
)

// Stage names the pipeline stage an Error originated in. Defined here
// (rather than imported from internal/pipeline) so every package can
// construct an Error without depending on the orchestrator.
type Stage string

const (
	StageIngest    Stage = "ingest"
	StageFilter    Stage = "filter"
	StageSimulate  Stage = "simulate"
	StageSize      Stage = "size"
	StageViability Stage = "viability"
	StageBuild     Stage = "build"
	StageSubmit    Stage = "submit"
	StageStartup   Stage = "startup"
)

// Error is the single error type every fallible operation in this module
// returns. It is never used for control flow via panic/recover on the happy
// or transient path — only Invariant-tier violations unwind a goroutine, with
// the *Error as the panic value; the recovering supervisor logs any other
// panic value as-is, without wrapping it.
type Error struct {
	Stage Stage
	Kind  Kind
	Tier  Tier
	Err   error // optional wrapped cause
}

func New(stage Stage, kind Kind, tier Tier) *Error {
	return &Error{Stage: stage, Kind: kind, Tier: tier}
}

func Wrap(stage Stage, kind Kind, tier Tier, cause error) *Error {
	return &Error{Stage: stage, Kind: kind, Tier: tier, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s[%s]: %v", e.Stage, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s[%s]", e.Stage, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, errs.StaleMiss)-style matching against a bare Kind
// by wrapping it as a sentinel comparison. Kind itself is not an error type,
// so callers use Is(err, kind) rather than the standard errors.Is(err, Kind).
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}

// As unwraps err looking for an *Error, the same way Is does for a Kind.
func As(err error) (*Error, bool) {
	for err != nil {
		if ae, ok := err.(*Error); ok {
			return ae, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
