package logger

import "log/slog"

// Standard field keys for structured logging. Use these consistently
// across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Request
	// ========================================================================
	KeyRequestID = "request_id" // HTTP request correlation ID
	KeyClientIP  = "client_ip"  // Client IP address
	KeyMethod    = "method"     // HTTP method
	KeyPath      = "path"       // Request path
	KeyStatus    = "status"     // HTTP status code

	// ========================================================================
	// Domain
	// ========================================================================
	KeyKey     = "key"     // ID key name
	KeyIDType  = "id_type" // increment, snowflake, formatted
	KeySize    = "size"    // Requested batch size
	KeyDelta   = "delta"   // Step between values
	KeyCount   = "count"   // Number of values in a reservation
	KeyWorker  = "worker"  // Leased snowflake worker id
	KeyWitness = "witness" // Reset scope witness

	// ========================================================================
	// Storage
	// ========================================================================
	KeyBackend = "backend" // Storage backend name
	KeyVersion = "version" // Schema or row version
	KeyAttempt = "attempt" // Retry attempt number
	KeyCursor  = "cursor"  // Pagination cursor

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // API error code
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// RequestID returns a slog.Attr for the request correlation ID.
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// ClientIP returns a slog.Attr for the client IP address.
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// Status returns a slog.Attr for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// Key returns a slog.Attr for an ID key name.
func Key(k string) slog.Attr {
	return slog.String(KeyKey, k)
}

// IDType returns a slog.Attr for a key's ID type.
func IDType(t string) slog.Attr {
	return slog.String(KeyIDType, t)
}

// Size returns a slog.Attr for a requested batch size.
func Size(n int64) slog.Attr {
	return slog.Int64(KeySize, n)
}

// Delta returns a slog.Attr for a value step.
func Delta(d int64) slog.Attr {
	return slog.Int64(KeyDelta, d)
}

// Worker returns a slog.Attr for a leased worker id.
func Worker(id int) slog.Attr {
	return slog.Int(KeyWorker, id)
}

// Backend returns a slog.Attr for the storage backend name.
func Backend(name string) slog.Attr {
	return slog.String(KeyBackend, name)
}

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// DurationMs returns a slog.Attr for duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for an API error code.
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}
