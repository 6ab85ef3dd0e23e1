package modem

import "fmt"

// Kind classifies a modem client error along transport/application/parse
// lines, so callers can decide whether to retry without string-matching.
type Kind string

const (
	KindCircuitOpen Kind = "circuit-open"
	KindHTTP        Kind = "http"
	KindTimeout     Kind = "timeout"
	KindParse       Kind = "parse"
	KindModemCode   Kind = "modem-code"
)

// Error is the classified error every public Client operation returns
// on failure. Worker-facing code switches on Kind and Code rather than
// string-matching.
type Error struct {
	Kind       Kind
	HTTPStatus int  // set when Kind == KindHTTP
	Code       int  // set when Kind == KindModemCode
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("modem: http %d: %s", e.HTTPStatus, e.Message)
	case KindModemCode:
		return fmt.Sprintf("modem: code %d: %s", e.Code, e.Message)
	default:
		if e.Message != "" {
			return fmt.Sprintf("modem: %s: %s", e.Kind, e.Message)
		}
		return fmt.Sprintf("modem: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the worker should retry against its attempt
// budget. Circuit-open is handled separately by the dispatcher (snooze,
// not retry) and is never retryable here.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindCircuitOpen:
		return false
	case KindHTTP:
		return e.HTTPStatus >= 500 || e.HTTPStatus == 0
	case KindTimeout:
		return true
	case KindParse:
		return false
	case KindModemCode:
		switch e.Code {
		case 114, 117:
			return false
		default:
			return true // 113, 115, 118, and any unknown code (fail-safe default)
		}
	default:
		return true
	}
}

func errCircuitOpen() *Error {
	return &Error{Kind: KindCircuitOpen, Message: "circuit breaker is open"}
}

func errHTTP(status int, msg string) *Error {
	return &Error{Kind: KindHTTP, HTTPStatus: status, Message: msg}
}

func errTimeout(cause error) *Error {
	return &Error{Kind: KindTimeout, Message: "request timed out", Cause: cause}
}

func errParse(msg string, cause error) *Error {
	return &Error{Kind: KindParse, Message: msg, Cause: cause}
}

func errModemCode(code int, msg string) *Error {
	return &Error{Kind: KindModemCode, Code: code, Message: msg}
}
