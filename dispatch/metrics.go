package dispatch

import "time"

// Violation kinds reported through Metrics.RecordViolation.
const (
	ViolationDoubleCompletion = "double_completion"
	ViolationMissingPayload   = "missing_payload"
	ViolationInvalidPayload   = "invalid_payload"
	ViolationCountOutOfRange  = "count_out_of_range"
	ViolationPanic            = "panic"
)

// Metrics provides observability for dispatched operations.
//
// Implementations are optional; a nil Metrics disables collection.
//
// Example usage:
//
//	m := prometheus.NewDispatchMetrics(reg)
//	d := dispatch.New(registry, dispatch.WithMetrics(m))
type Metrics interface {
	// RecordRequestStart increments the in-flight gauge for op.
	RecordRequestStart(op string)

	// RecordRequestEnd decrements the in-flight gauge for op. It is not
	// called for requests whose handler never completes.
	RecordRequestEnd(op string)

	// RecordRequest records a replied request.
	//
	// Parameters:
	//   - op: operation name (e.g., "getattr", "read")
	//   - duration: time from dispatch to reply
	//   - result: "OK" or the errno name (e.g., "ENOENT")
	RecordRequest(op string, duration time.Duration, result string)

	// RecordBytes records bytes moved by read or write.
	//
	// Parameters:
	//   - op: "read" or "write"
	//   - bytes: bytes transferred
	RecordBytes(op string, bytes uint64)

	// RecordViolation counts a handler contract violation.
	RecordViolation(op string, kind string)
}
