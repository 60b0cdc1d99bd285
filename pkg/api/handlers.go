package api

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/hermesportal/pkg/storage"
)

const defaultBlobLimit = 100

// handleHealth godoc
//
//	@Summary		Health check
//	@Description	Get the health status of the pipeline
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	APIResponse
//	@Router			/health [get]
//	@Security		ApiKeyAuth
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handleStats godoc
//
//	@Summary		Pipeline counters
//	@Description	Get packet, record, codec and diagnostics counters
//	@Tags			diagnostics
//	@Produce		json
//	@Success		200	{object}	Status
//	@Router			/stats [get]
//	@Security		ApiKeyAuth
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, s.status.Status())
}

// handleListBlobs godoc
//
//	@Summary		List diagnostic blobs
//	@Description	List stored diagnostic payloads, newest first
//	@Tags			diagnostics
//	@Produce		json
//	@Param			limit	query		int	false	"Maximum number of blobs"
//	@Success		200		{array}		BlobSummary
//	@Failure		400		{object}	APIResponse
//	@Failure		404		{object}	APIResponse
//	@Router			/blobs [get]
//	@Security		ApiKeyAuth
func (s *Server) handleListBlobs(w http.ResponseWriter, r *http.Request) {
	if s.blobs == nil {
		sendError(w, "Diagnostics store is disabled", http.StatusNotFound)
		return
	}
	limit := defaultBlobLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			sendError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	blobs, err := s.blobs.List(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("list blobs")
		sendError(w, "Failed to list blobs", http.StatusInternalServerError)
		return
	}
	out := make([]BlobSummary, 0, len(blobs))
	for _, b := range blobs {
		out = append(out, summarize(b))
	}
	sendSuccess(w, out)
}

// handleGetBlob godoc
//
//	@Summary		Get a diagnostic blob
//	@Description	Get one diagnostic payload with its bytes hex encoded
//	@Tags			diagnostics
//	@Produce		json
//	@Param			id	path		string	true	"Blob KSUID"
//	@Success		200	{object}	BlobSummary
//	@Failure		400	{object}	APIResponse
//	@Failure		404	{object}	APIResponse
//	@Router			/blobs/{id} [get]
//	@Security		ApiKeyAuth
func (s *Server) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	if s.blobs == nil {
		sendError(w, "Diagnostics store is disabled", http.StatusNotFound)
		return
	}
	id, err := ksuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, "Invalid blob id", http.StatusBadRequest)
		return
	}
	b, err := s.blobs.Get(id)
	if errors.Is(err, storage.ErrBlobNotFound) {
		sendError(w, "Blob not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("id", id.String()).Msg("get blob")
		sendError(w, "Failed to read blob", http.StatusInternalServerError)
		return
	}
	sendSuccess(w, struct {
		BlobSummary
		Payload string `json:"payload_hex"`
	}{summarize(b), hex.EncodeToString(b.Payload)})
}

func summarize(b storage.Blob) BlobSummary {
	return BlobSummary{
		ID:     b.ID.String(),
		Feed:   b.Feed.String(),
		Stage:  b.Stage,
		Reason: b.Reason,
		Time:   b.Time,
		Size:   len(b.Payload),
	}
}
