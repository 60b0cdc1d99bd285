package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/hermesportal/pkg/codec"
	"github.com/ssargent/hermesportal/pkg/market"
	"github.com/ssargent/hermesportal/pkg/parser"
	"github.com/ssargent/hermesportal/pkg/storage"
)

type fixedStatus Status

func (f fixedStatus) Status() Status { return Status(f) }

type memBlobs struct {
	blobs []storage.Blob
}

func (m *memBlobs) List(limit int) ([]storage.Blob, error) {
	if limit > 0 && limit < len(m.blobs) {
		return m.blobs[:limit], nil
	}
	return m.blobs, nil
}

func (m *memBlobs) Get(id ksuid.KSUID) (storage.Blob, error) {
	for _, b := range m.blobs {
		if b.ID == id {
			return b, nil
		}
	}
	return storage.Blob{}, storage.ErrBlobNotFound
}

func newTestServer(cfg ServerConfig, blobs BlobSource) (*Server, *Metrics) {
	m := NewMetrics()
	status := fixedStatus{Feed: "fo", Packets: 12, Records: 30, Codec: CodecStatus{Locus: "zlib@0"}}
	return NewServer(cfg, status, blobs, m, nil), m
}

func get(t *testing.T, h http.Handler, path string, header ...string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp APIResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestServer_Health(t *testing.T) {
	s, _ := newTestServer(ServerConfig{}, nil)
	w, resp := get(t, s.Router(), "/api/v1/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, map[string]interface{}{"status": "healthy"}, resp.Data)
}

func TestServer_Stats(t *testing.T) {
	s, _ := newTestServer(ServerConfig{}, nil)
	w, resp := get(t, s.Router(), "/api/v1/stats")

	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "fo", data["feed"])
	assert.Equal(t, float64(12), data["packets"])
	assert.Equal(t, "zlib@0", data["codec"].(map[string]interface{})["locus"])
}

func TestServer_APIKey(t *testing.T) {
	s, _ := newTestServer(ServerConfig{APIKey: "k"}, nil)
	router := s.Router()

	w, _ := get(t, router, "/api/v1/stats")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = get(t, router, "/api/v1/stats", "X-API-Key", "k")
	assert.Equal(t, http.StatusOK, w.Code)

	// scraping stays open
	w, _ = get(t, router, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_Blobs(t *testing.T) {
	id := ksuid.New()
	blobs := &memBlobs{blobs: []storage.Blob{
		{ID: id, Feed: market.FeedCM, Stage: "decompress", Reason: "bad", Time: time.Unix(100, 0), Payload: []byte{0xAB, 0xCD}},
		{ID: ksuid.New(), Stage: "frame", Payload: []byte{1}},
	}}
	s, _ := newTestServer(ServerConfig{}, blobs)
	router := s.Router()

	w, resp := get(t, router, "/api/v1/blobs?limit=1")
	require.Equal(t, http.StatusOK, w.Code)
	list := resp.Data.([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, id.String(), list[0].(map[string]interface{})["id"])

	w, resp = get(t, router, "/api/v1/blobs/"+id.String())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abcd", resp.Data.(map[string]interface{})["payload_hex"])
	assert.Equal(t, "cm", resp.Data.(map[string]interface{})["feed"])

	w, _ = get(t, router, "/api/v1/blobs/"+ksuid.New().String())
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = get(t, router, "/api/v1/blobs/not-a-ksuid")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = get(t, router, "/api/v1/blobs?limit=-3")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_BlobsDisabled(t *testing.T) {
	s, _ := newTestServer(ServerConfig{}, nil)
	w, _ := get(t, s.Router(), "/api/v1/blobs")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_Swagger(t *testing.T) {
	s, _ := newTestServer(ServerConfig{APIKey: "k"}, nil)
	router := s.Router()

	w, _ := get(t, router, "/swagger/doc.json")
	require.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		Info     map[string]interface{}            `json:"info"`
		BasePath string                            `json:"basePath"`
		Paths    map[string]map[string]interface{} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "Hermes Portal status API", doc.Info["title"])
	assert.Equal(t, "/api/v1", doc.BasePath)
	for _, path := range []string{"/health", "/stats", "/blobs", "/blobs/{id}", "/metrics"} {
		assert.Contains(t, doc.Paths, path)
		assert.Contains(t, doc.Paths[path], "get", path)
	}

	w, _ = get(t, router, "/swagger/index.html")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/swagger/doc.json")

	w, _ = get(t, router, "/swagger/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetrics_Exposition(t *testing.T) {
	s, m := newTestServer(ServerConfig{}, nil)

	c := codec.New(codec.Config{})
	m.WatchCodec(c)
	m.WatchDropped("blobs", func() uint64 { return 3 })

	var obs parser.Observer = m
	obs.PacketDecoded(market.FeedFO, time.Millisecond)
	obs.RecordsEmitted(market.CodeOrderBook, 4)
	obs.DecodeFailed(market.FeedFO, parser.StageDecompress)
	obs.ChecksumMismatch(market.FeedCM)

	router := s.Router()
	get(t, router, "/api/v1/health")

	w, _ := get(t, router, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	for _, want := range []string{
		`hermes_packets_total{feed="fo"} 1`,
		`hermes_records_emitted_total{code="7208"} 4`,
		`hermes_decode_failures_total{stage="decompress"} 1`,
		`hermes_checksum_mismatch_total{feed="cm"} 1`,
		`hermes_codec_lookups_total{result="hit"} 0`,
		`hermes_dropped_total{queue="blobs"} 3`,
		`hermes_http_requests_total{endpoint="/api/v1/health",method="GET",status_code="200"} 1`,
	} {
		assert.Contains(t, body, want)
	}
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	s, _ := newTestServer(ServerConfig{}, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/api/v1/health")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.True(t, err == nil || errors.Is(err, http.ErrServerClosed))
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
