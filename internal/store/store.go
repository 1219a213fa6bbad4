// Package store durably persists BuildRecords across two key spaces,
// queued/<id> and result/<id>, per spec.md §4.2. It is a facade over a
// generic key->object Cache; the facade owns the encode/decode and the
// two-phase write-then-delete discipline, the Cache implementation owns
// only durability.
package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io/ioutil"
	"sort"
	"strconv"
	"strings"

	"github.com/forgeci/forge/internal/record"
	"github.com/klauspost/pgzip"
	"golang.org/x/xerrors"
)

const (
	queuedPrefix = "queued/"
	resultPrefix = "result/"
)

// Cache is the blob-cache collaborator spec.md names: a durable
// key->object store. It is deliberately minimal so that any key-value
// backend (Redis, a local file tree, ...) can implement it.
type Cache interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	// List returns every key with the given prefix, in no particular
	// order; RecordStore sorts by id itself.
	List(ctx context.Context, prefix string) ([]string, error)
}

// RecordStore is spec.md's C2, durable record store.
type RecordStore struct {
	cache Cache
}

func New(cache Cache) *RecordStore {
	return &RecordStore{cache: cache}
}

func (s *RecordStore) PutQueued(ctx context.Context, r record.Build) error {
	return s.put(ctx, queuedPrefix, r)
}

func (s *RecordStore) PutResult(ctx context.Context, r record.Build) error {
	return s.put(ctx, resultPrefix, r)
}

func (s *RecordStore) InvalidateQueued(ctx context.Context, id uint64) error {
	if err := s.cache.Delete(ctx, queuedPrefix+key(id)); err != nil {
		return xerrors.Errorf("invalidating queued/%d: %w", id, err)
	}
	return nil
}

func (s *RecordStore) GetQueued(ctx context.Context, id uint64) (record.Build, bool, error) {
	return s.get(ctx, queuedPrefix, id)
}

func (s *RecordStore) GetResult(ctx context.Context, id uint64) (record.Build, bool, error) {
	return s.get(ctx, resultPrefix, id)
}

// ListQueued returns every queued record, in ascending build_id order,
// so recovery replay (spec.md §4.4) preserves submission order.
func (s *RecordStore) ListQueued(ctx context.Context) ([]record.Build, error) {
	keys, err := s.cache.List(ctx, queuedPrefix)
	if err != nil {
		return nil, xerrors.Errorf("listing queued records: %w", err)
	}
	ids := make([]uint64, 0, len(keys))
	for _, k := range keys {
		id, err := strconv.ParseUint(strings.TrimPrefix(k, queuedPrefix), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	records := make([]record.Build, 0, len(ids))
	for _, id := range ids {
		r, ok, err := s.GetQueued(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue // deleted between List and Get; tolerate the race
		}
		records = append(records, r)
	}
	return records, nil
}

// MaxID scans both key prefixes for the largest build_id present,
// seeding the id allocator (spec.md §4.1) across restarts. Returns 0,
// false when the store is empty.
func (s *RecordStore) MaxID(ctx context.Context) (uint64, bool, error) {
	var max uint64
	var found bool
	for _, prefix := range []string{queuedPrefix, resultPrefix} {
		keys, err := s.cache.List(ctx, prefix)
		if err != nil {
			return 0, false, xerrors.Errorf("listing %s: %w", prefix, err)
		}
		for _, k := range keys {
			id, err := strconv.ParseUint(strings.TrimPrefix(k, prefix), 10, 64)
			if err != nil {
				continue
			}
			if !found || id > max {
				max, found = id, true
			}
		}
	}
	return max, found, nil
}

func key(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func (s *RecordStore) put(ctx context.Context, prefix string, r record.Build) error {
	blob, err := encode(r)
	if err != nil {
		return xerrors.Errorf("encoding build %d: %w", r.BuildID, err)
	}
	if err := s.cache.Put(ctx, prefix+key(r.BuildID), blob); err != nil {
		return xerrors.Errorf("writing %s%d: %w", prefix, r.BuildID, err)
	}
	return nil
}

func (s *RecordStore) get(ctx context.Context, prefix string, id uint64) (record.Build, bool, error) {
	blob, ok, err := s.cache.Get(ctx, prefix+key(id))
	if err != nil {
		return record.Build{}, false, xerrors.Errorf("reading %s%d: %w", prefix, id, err)
	}
	if !ok {
		return record.Build{}, false, nil
	}
	r, err := decode(blob)
	if err != nil {
		return record.Build{}, false, xerrors.Errorf("decoding %s%d: %w", prefix, id, err)
	}
	return r, true, nil
}

// encode serializes a Build as gzip-compressed JSON. JSON (rather than
// the teacher's golang/protobuf) is used here; see DESIGN.md for why.
// Compression follows the teacher's own use of klauspost/pgzip for bulk
// artifact data, since accumulated_output can be large.
func encode(r record.Build) ([]byte, error) {
	plain, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	zw := pgzip.NewWriter(&buf)
	if _, err := zw.Write(plain); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(blob []byte) (record.Build, error) {
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return record.Build{}, err
	}
	defer zr.Close()
	plain, err := ioutil.ReadAll(zr)
	if err != nil {
		return record.Build{}, err
	}
	var r record.Build
	if err := json.Unmarshal(plain, &r); err != nil {
		return record.Build{}, err
	}
	return r, nil
}
