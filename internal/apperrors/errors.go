// Package apperrors defines the sentinel error kinds that cross component
// boundaries in the feedback engine, per the error handling design: upstream
// classifier failures are always recovered locally, while validation and
// store-unavailability errors are the only ones that reach the HTTP caller.
package apperrors

import "github.com/go-faster/errors"

// Sentinel errors. Use errors.Is against these, never string matching.
var (
	// ErrValidation means the caller's input failed a bounds check (e.g.
	// raw_content length). Surfaced to the caller as 422; no row is written.
	ErrValidation = errors.New("validation error")

	// ErrRaceTimeout means the race deadline elapsed before the LLM path
	// returned. Recovered locally by the orchestrator; never leaves it.
	ErrRaceTimeout = errors.New("race deadline exceeded")

	// ErrUpstreamUnavailable means the LLM transport failed, rate-limited,
	// or the breaker was open. Recovered locally into the fallback path.
	ErrUpstreamUnavailable = errors.New("llm upstream unavailable")

	// ErrUpstreamBadFormat means the LLM replied but its JSON could not be
	// parsed or validated into a classification. Recovered locally.
	ErrUpstreamBadFormat = errors.New("llm upstream returned malformed response")

	// ErrUniqueConflict means an insert lost a race against another
	// writer on the content_hash unique index. Recovered locally by
	// re-reading and returning the existing row as a duplicate.
	ErrUniqueConflict = errors.New("unique constraint conflict")

	// ErrStoreUnavailable means a store read or commit failed for reasons
	// other than a unique conflict. Surfaced to the caller as 5xx.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrAlertFailure means the webhook POST failed. Always logged and
	// swallowed; never propagated to the ingest caller.
	ErrAlertFailure = errors.New("alert delivery failed")

	// ErrNotFound means a lookup by id found no row.
	ErrNotFound = errors.New("record not found")
)

// Wrap attaches context to an error while preserving its sentinel identity
// for errors.Is checks upstream.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}
