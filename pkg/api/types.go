package api

import (
	"time"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/hermesportal/pkg/storage"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the status server
type ServerConfig struct {
	Addr   string
	APIKey string // empty disables the X-API-Key check on /api/v1
}

// CodecStatus mirrors codec.Stats for JSON output.
type CodecStatus struct {
	Calls       uint64 `json:"calls"`
	Attempts    uint64 `json:"attempts"`
	CacheHits   uint64 `json:"cache_hits"`
	CacheMisses uint64 `json:"cache_misses"`
	Failures    uint64 `json:"failures"`
	LastStep    string `json:"last_step"`
	Locus       string `json:"locus"`
}

// Status is the payload of /api/v1/stats.
type Status struct {
	Feed               string      `json:"feed"`
	StartedAt          time.Time   `json:"started_at"`
	Packets            uint64      `json:"packets"`
	Records            uint64      `json:"records"`
	Failures           uint64      `json:"failures"`
	UnknownCodes       uint64      `json:"unknown_codes"`
	ChecksumMismatches uint64      `json:"checksum_mismatches"`
	ShortPackets       uint64      `json:"short_packets"`
	Codec              CodecStatus `json:"codec"`
	CapturedFrames     uint64      `json:"captured_frames"`
	CaptureErrors      uint64      `json:"capture_errors"`
	BlobsStored        uint64      `json:"blobs_stored"`
	BlobsDropped       uint64      `json:"blobs_dropped"`
}

// StatusSource supplies the current pipeline status.
type StatusSource interface {
	Status() Status
}

// BlobSource is the read side of the diagnostics store.
type BlobSource interface {
	List(limit int) ([]storage.Blob, error)
	Get(id ksuid.KSUID) (storage.Blob, error)
}

// BlobSummary describes a stored payload without its bytes.
type BlobSummary struct {
	ID     string    `json:"id"`
	Feed   string    `json:"feed"`
	Stage  string    `json:"stage"`
	Reason string    `json:"reason"`
	Time   time.Time `json:"time"`
	Size   int       `json:"size"`
}
