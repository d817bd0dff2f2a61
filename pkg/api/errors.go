package api

// ErrorCode classifies a failure reported through the error sink.
type ErrorCode int

const (
	// InvalidContext reports an unknown or released context handle.
	InvalidContext ErrorCode = iota + 1
	// InvalidArgument reports malformed input such as a degenerate ray.
	InvalidArgument
	// Unknown covers every other failure, including I/O and parse errors.
	Unknown
)

func (c ErrorCode) String() string {
	switch c {
	case InvalidContext:
		return "invalid_context"
	case InvalidArgument:
		return "invalid_argument"
	case Unknown:
		return "unknown"
	default:
		return "unrecognized"
	}
}

// ErrorSink receives failures from Library operations. It is called
// synchronously on the goroutine that made the failing call.
type ErrorSink interface {
	ReportError(code ErrorCode, message string)
}

// ErrorFunc adapts a function to ErrorSink.
type ErrorFunc func(code ErrorCode, message string)

// ReportError calls f.
func (f ErrorFunc) ReportError(code ErrorCode, message string) {
	f(code, message)
}
