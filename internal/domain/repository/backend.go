package repository

// Backend selects where ingested bars are routed.
type Backend string

const (
	BackendKafka      Backend = "kafka"
	BackendClickHouse Backend = "clickhouse"
)

// IsValidBackend returns true if b is a supported backend.
func IsValidBackend(b Backend) bool {
	switch b {
	case BackendKafka, BackendClickHouse:
		return true
	default:
		return false
	}
}

// DefaultBackend returns the default backend.
func DefaultBackend() Backend { return BackendClickHouse }

// NormalizeBackend converts raw string to a valid backend (or default).
func NormalizeBackend(s string) Backend {
	if s == "" {
		return DefaultBackend()
	}
	b := Backend(s)
	if IsValidBackend(b) {
		return b
	}
	return DefaultBackend()
}
