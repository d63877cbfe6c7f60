package model

// Shared defaults used by the entrypoint and the control surfaces.
const (
	DefaultUDPHost  = "0.0.0.0"
	DefaultUDPPort  = 8888
	DefaultRedisURL = "redis://localhost:6379"

	// MaxDatagramSize is the largest datagram the ingestion worker reads.
	// Longer datagrams are truncated by the socket and fail to parse.
	MaxDatagramSize = 512
)
