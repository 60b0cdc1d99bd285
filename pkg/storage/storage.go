// Package storage persists payloads the parser could not decode so they can
// be inspected and replayed later.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/hermesportal/pkg/market"
)

var (
	ErrBlobNotFound = errors.New("storage: blob not found")
	ErrCorruptBlob  = errors.New("storage: corrupt blob")
)

const (
	blobVersion = 1
	// version u8, feed u8, unix nanos i64, stage len u8, reason len u16
	blobHeaderSize = 1 + 1 + 8 + 1 + 2
)

var blobPrefix = []byte("blob/")

// Blob is one stored payload with the context it failed in.
type Blob struct {
	ID      ksuid.KSUID
	Feed    market.Feed
	Stage   string
	Reason  string
	Time    time.Time
	Payload []byte
}

// BlobStore keeps blobs in a pebble database keyed by KSUID, so iteration
// order is capture order.
type BlobStore struct {
	db *pebble.DB
}

func OpenBlobStore(path string) (*BlobStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open blob store %s: %w", path, err)
	}
	return &BlobStore{db: db}, nil
}

func blobKey(id ksuid.KSUID) []byte {
	return append(append([]byte{}, blobPrefix...), id.Bytes()...)
}

// Put stores b under a new ID derived from b.Time and returns the ID.
func (s *BlobStore) Put(b Blob) (ksuid.KSUID, error) {
	if b.Time.IsZero() {
		b.Time = time.Now()
	}
	id, err := ksuid.NewRandomWithTime(b.Time)
	if err != nil {
		return ksuid.Nil, err
	}
	if err := s.db.Set(blobKey(id), encodeBlob(b), pebble.NoSync); err != nil {
		return ksuid.Nil, err
	}
	return id, nil
}

func (s *BlobStore) Get(id ksuid.KSUID) (Blob, error) {
	data, closer, err := s.db.Get(blobKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return Blob{}, fmt.Errorf("%w: %s", ErrBlobNotFound, id)
	}
	if err != nil {
		return Blob{}, err
	}
	defer closer.Close()

	b, err := decodeBlob(data)
	if err != nil {
		return Blob{}, err
	}
	b.ID = id
	return b, nil
}

// List returns up to limit blobs, oldest first. limit <= 0 returns all.
func (s *BlobStore) List(limit int) ([]Blob, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: blobPrefix,
		UpperBound: prefixEnd(blobPrefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Blob
	for iter.First(); iter.Valid(); iter.Next() {
		id, err := ksuid.FromBytes(iter.Key()[len(blobPrefix):])
		if err != nil {
			return nil, fmt.Errorf("%w: bad key: %v", ErrCorruptBlob, err)
		}
		b, err := decodeBlob(iter.Value())
		if err != nil {
			return nil, err
		}
		b.ID = id
		out = append(out, b)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, iter.Error()
}

func (s *BlobStore) Delete(id ksuid.KSUID) error {
	return s.db.Delete(blobKey(id), pebble.NoSync)
}

func (s *BlobStore) Close() error {
	if err := s.db.Flush(); err != nil {
		_ = s.db.Close()
		return err
	}
	return s.db.Close()
}

func prefixEnd(p []byte) []byte {
	end := append([]byte{}, p...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func encodeBlob(b Blob) []byte {
	stage := truncate(b.Stage, 0xFF)
	reason := truncate(b.Reason, 0xFFFF)

	buf := make([]byte, blobHeaderSize, blobHeaderSize+len(stage)+len(reason)+len(b.Payload))
	buf[0] = blobVersion
	buf[1] = byte(b.Feed)
	binary.BigEndian.PutUint64(buf[2:], uint64(b.Time.UnixNano()))
	buf[10] = byte(len(stage))
	binary.BigEndian.PutUint16(buf[11:], uint16(len(reason)))
	buf = append(buf, stage...)
	buf = append(buf, reason...)
	return append(buf, b.Payload...)
}

func decodeBlob(data []byte) (Blob, error) {
	if len(data) < blobHeaderSize || data[0] != blobVersion {
		return Blob{}, ErrCorruptBlob
	}
	stageLen := int(data[10])
	reasonLen := int(binary.BigEndian.Uint16(data[11:]))
	rest := data[blobHeaderSize:]
	if len(rest) < stageLen+reasonLen {
		return Blob{}, ErrCorruptBlob
	}
	return Blob{
		Feed:    market.Feed(data[1]),
		Time:    time.Unix(0, int64(binary.BigEndian.Uint64(data[2:]))),
		Stage:   string(rest[:stageLen]),
		Reason:  string(rest[stageLen : stageLen+reasonLen]),
		Payload: append([]byte(nil), rest[stageLen+reasonLen:]...),
	}, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
