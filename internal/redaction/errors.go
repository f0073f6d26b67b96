package redaction

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures by the operation they are fatal to
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindLoad
	KindDetectionConfig
	KindRateLimit
	KindMalformedResponse
	KindExport
	KindBusy
	KindAborted
)

// String returns a string representation of the ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case KindLoad:
		return "LOAD"
	case KindDetectionConfig:
		return "DETECTION_CONFIG"
	case KindRateLimit:
		return "RATE_LIMIT"
	case KindMalformedResponse:
		return "MALFORMED_RESPONSE"
	case KindExport:
		return "EXPORT"
	case KindBusy:
		return "BUSY"
	case KindAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the kind by name
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name; unrecognized names decode as KindUnknown
func (k *ErrorKind) UnmarshalText(text []byte) error {
	*k = KindUnknown
	for c := KindLoad; c <= KindAborted; c++ {
		if c.String() == string(text) {
			*k = c
			break
		}
	}
	return nil
}

// IsFatalToRun reports whether an error of this kind stops an anonymization run
func (k ErrorKind) IsFatalToRun() bool {
	return k != KindMalformedResponse
}

// Error carries the failure kind, the operation and the page it happened on
type Error struct {
	Kind ErrorKind
	Op   string
	Page int
	Err  error
}

func (e *Error) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("[%s] %s failed on page %d: %v", e.Kind, e.Op, e.Page, e.Err)
	}
	return fmt.Sprintf("[%s] %s failed: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and operation name
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Common error variables
var (
	ErrNoDocument    = errors.New("no document loaded")
	ErrBusy          = &Error{Kind: KindBusy, Op: "session", Err: errors.New("another operation is in progress")}
	ErrRunAborted    = &Error{Kind: KindAborted, Op: "run", Err: errors.New("run aborted")}
	ErrMissingAPIKey = &Error{Kind: KindDetectionConfig, Op: "detect", Err: errors.New("no API key configured")}
)

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether the user can simply repeat the operation later
// without changing configuration
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimit, KindExport, KindAborted, KindBusy:
		return true
	default:
		return false
	}
}
