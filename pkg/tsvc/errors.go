package tsvc

import "fmt"

// ResultCode is a protocol-level outcome, the unit a ClientError carries back
// to a caller. Values line up with spec §6/§7's named exit codes.
type ResultCode int32

const (
	ResultOK ResultCode = iota
	ResultFailUnknown
	ResultFailNamespace
	ResultFailParameter
	ResultFailTimeout
	ResultFailUnavailable
)

func (c ResultCode) String() string {
	switch c {
	case ResultOK:
		return "OK"
	case ResultFailUnknown:
		return "FAIL_UNKNOWN"
	case ResultFailNamespace:
		return "FAIL_NAMESPACE"
	case ResultFailParameter:
		return "FAIL_PARAMETER"
	case ResultFailTimeout:
		return "FAIL_TIMEOUT"
	case ResultFailUnavailable:
		return "FAIL_UNAVAILABLE"
	default:
		return fmt.Sprintf("FAIL_CODE(%d)", int32(c))
	}
}

// ClientError is a result code destined for a protocol reply. It is the
// "client_error" kind from spec §7: the dispatcher's decision to send one
// is always paired with exactly one reply and one message-buffer release.
type ClientError struct {
	Code ResultCode
}

func (e *ClientError) Error() string { return "tsvc: " + e.Code.String() }

// ErrorForCode is the direct analogue of the teacher's kerr.ErrorForCode:
// OK maps to a nil error, everything else to a *ClientError.
func ErrorForCode(code ResultCode) error {
	if code == ResultOK {
		return nil
	}
	return &ClientError{Code: code}
}

// mustNotHappen aborts the process for a violated invariant: a reservation
// call that returns success with a zero destination node, an executor
// returning a status outside the known quadruple, a queue worker whose pop
// failed. These are "programmer_error" per spec §7 — there is no recovery,
// so the idiomatic Go analogue of the source's cf_crash is a panic from a
// function that is documented to never return.
func mustNotHappen(format string, args ...any) {
	panic(fmt.Sprintf("tsvc: invariant violated: "+format, args...))
}
