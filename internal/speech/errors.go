package speech

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingCredential is a precondition failure, not a retryable error:
// the user must supply an API key before generation can proceed.
var ErrMissingCredential = errors.New("api credential not configured")

// Kind classifies a synthesis failure for the retry policy.
type Kind int

const (
	// KindTransient covers network errors, 5xx responses, malformed
	// payloads and timeouts. Retried with short exponential backoff.
	KindTransient Kind = iota
	// KindQuota is a rate or usage limit rejection. Retried after a
	// long cooldown to clear the provider's rate window.
	KindQuota
	// KindAuth is an authentication or permission rejection. Never
	// retried.
	KindAuth
)

func (k Kind) String() string {
	switch k {
	case KindQuota:
		return "quota"
	case KindAuth:
		return "auth"
	default:
		return "transient"
	}
}

// Error is a classified synthesis failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage is the text surfaced on a failed section.
func (e *Error) UserMessage() string {
	if e.Kind == KindQuota {
		return "Quota exceeded (429). If retries keep failing you have likely hit the daily limit; try again later."
	}
	return e.Message
}

// Classify maps an HTTP status and provider error text onto the failure
// taxonomy. Quota signals take precedence, then auth; everything else is
// transient.
func Classify(status int, message string, err error) *Error {
	lower := strings.ToLower(message)
	switch {
	case status == 429,
		strings.Contains(lower, "resource_exhausted"),
		strings.Contains(lower, "quota"):
		return &Error{Kind: KindQuota, Message: message, Err: err}
	case status == 401, status == 403,
		strings.Contains(lower, "api key"),
		strings.Contains(lower, "permission"),
		strings.Contains(lower, "unauthenticated"):
		return &Error{Kind: KindAuth, Message: message, Err: err}
	default:
		return &Error{Kind: KindTransient, Message: message, Err: err}
	}
}

// AsError extracts a classified error, defaulting to transient.
func AsError(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return &Error{Kind: KindTransient, Message: err.Error(), Err: err}
}
