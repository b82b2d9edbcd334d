package cert

import (
	"errors"
	"fmt"
)

// Kind classifies an extraction failure precisely enough for operators to
// decide between re-running a task, fixing enrichment data, or checking the
// challenge-solving provider.
type Kind string

const (
	// KindSessionEstablishFailed means the portal landing page was
	// unreachable or answered with a non-success status.
	KindSessionEstablishFailed Kind = "SESSION_ESTABLISH_FAILED"

	// KindChallengeKeyNotFound means no sitekey extraction strategy matched
	// the landing page markup.
	KindChallengeKeyNotFound Kind = "CHALLENGE_KEY_NOT_FOUND"

	// KindChallengeSubmitFailed means the solving service did not accept the
	// challenge submission.
	KindChallengeSubmitFailed Kind = "CHALLENGE_SUBMIT_FAILED"

	// KindChallengeRejected means the solving service reported a permanent
	// failure for the challenge.
	KindChallengeRejected Kind = "CHALLENGE_REJECTED"

	// KindChallengeTimeout means the poll attempt ceiling was exhausted
	// without a token.
	KindChallengeTimeout Kind = "CHALLENGE_TIMEOUT"

	// KindResponseNotDocument means the portal answered with something other
	// than the expected PDF.
	KindResponseNotDocument Kind = "RESPONSE_NOT_DOCUMENT"

	// KindPreconditionMissing marks planner-level exclusions; it never comes
	// out of a running task.
	KindPreconditionMissing Kind = "PRECONDITION_MISSING"

	// KindCancelled marks tasks aborted by run-level cancellation.
	KindCancelled Kind = "CANCELLED"

	// KindUnknown is the fallback for errors produced outside this package.
	KindUnknown Kind = "UNKNOWN"
)

// Error is the failure type produced by the session clients and the
// challenge solver. Detail carries operator-facing context (observed
// content type, byte counts, provider messages).
type Error struct {
	Kind   Kind
	Op     string
	Detail string
	Err    error

	// Markup holds the raw landing page when the sitekey extraction failed,
	// kept for diagnostics.
	Markup []byte
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match on the kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds an Error. Err may be nil.
func NewError(kind Kind, op, detail string, err error) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail, Err: err}
}

// KindOf extracts the failure kind from any error in a chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
