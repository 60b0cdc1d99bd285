package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/hermesportal/pkg/market"
	"github.com/ssargent/hermesportal/pkg/parser"
)

func openTestStore(t *testing.T) *BlobStore {
	t.Helper()
	s, err := OpenBlobStore(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBlobStore_PutGetDelete(t *testing.T) {
	s := openTestStore(t)
	at := time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC)

	id, err := s.Put(Blob{
		Feed:    market.FeedCM,
		Stage:   "decompress",
		Reason:  "no offset/variant decompresses input",
		Time:    at,
		Payload: []byte{0xFF, 0x78, 0x9C},
	})
	require.NoError(t, err)
	assert.Equal(t, at.Unix(), id.Time().Unix())

	b, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, b.ID)
	assert.Equal(t, market.FeedCM, b.Feed)
	assert.Equal(t, "decompress", b.Stage)
	assert.Equal(t, "no offset/variant decompresses input", b.Reason)
	assert.True(t, at.Equal(b.Time))
	assert.Equal(t, []byte{0xFF, 0x78, 0x9C}, b.Payload)

	require.NoError(t, s.Delete(id))
	_, err = s.Get(id)
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestBlobStore_ListOldestFirst(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := s.Put(Blob{Stage: "frame", Time: base.Add(time.Duration(i) * time.Minute), Payload: []byte{byte(i)}})
		require.NoError(t, err)
	}

	all, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, b := range all {
		assert.Equal(t, []byte{byte(i)}, b.Payload)
	}

	some, err := s.List(2)
	require.NoError(t, err)
	assert.Len(t, some, 2)
}

func TestBlobStore_GetUnknown(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(ksuid.New())
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestDecodeBlob_Corrupt(t *testing.T) {
	_, err := decodeBlob([]byte{1, 2})
	assert.ErrorIs(t, err, ErrCorruptBlob)

	good := encodeBlob(Blob{Stage: "frame", Reason: "short", Time: time.Unix(1, 0)})
	good[0] = 9
	_, err = decodeBlob(good)
	assert.ErrorIs(t, err, ErrCorruptBlob)

	truncated := encodeBlob(Blob{Stage: "frame", Reason: "short", Time: time.Unix(1, 0)})
	_, err = decodeBlob(truncated[:blobHeaderSize+3])
	assert.ErrorIs(t, err, ErrCorruptBlob)
}

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte("blob0"), prefixEnd([]byte("blob/")))
	assert.Equal(t, []byte{0x02}, prefixEnd([]byte{0x01, 0xFF}))
	assert.Nil(t, prefixEnd([]byte{0xFF}))
}

func TestRecorder_StoresFailures(t *testing.T) {
	s := openTestStore(t)
	r := NewRecorder(s, 8, nil)

	r.Report(parser.Failure{Feed: market.FeedFO, Stage: parser.StageDecompress, Reason: "bad", Payload: []byte{1}})
	r.Report(parser.Failure{Feed: market.FeedFO, Stage: parser.StageFrame, Reason: "short", Payload: []byte{2}})
	r.Close()

	assert.Equal(t, uint64(2), r.Stored())
	blobs, err := s.List(0)
	require.NoError(t, err)
	assert.Len(t, blobs, 2)

	r.Report(parser.Failure{})
	assert.Equal(t, uint64(1), r.Dropped())
}

var _ parser.Diagnostics = (*Recorder)(nil)
