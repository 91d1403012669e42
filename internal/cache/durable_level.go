package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const levelPrefix = "e:"

// levelRecord is the gob payload stored per key.
type levelRecord struct {
	Value     []byte
	ExpiresAt time.Time
}

// LevelStore is a [DurableCache] kept in a LevelDB directory.
type LevelStore struct {
	db *leveldb.DB
}

// OpenLevelStore opens or creates the LevelDB directory at path.
func OpenLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb cache: %w", err)
	}
	return &LevelStore{db: db}, nil
}

func (s *LevelStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}

	b, err := s.db.Get([]byte(levelPrefix+key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var rec levelRecord
	if err := decodeGob(b, &rec); err != nil {
		return Entry{}, false, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return Entry{Key: key, Value: rec.Value, ExpiresAt: rec.ExpiresAt}, true, nil
}

func (s *LevelStore) Set(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b, err := encodeGob(levelRecord{Value: entry.Value, ExpiresAt: entry.ExpiresAt})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := s.db.Put([]byte(levelPrefix+entry.Key), b, nil); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (s *LevelStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Delete([]byte(levelPrefix+key), nil); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

func (s *LevelStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return s.deleteWhere(ctx, func(rec levelRecord) bool {
		return Entry{ExpiresAt: rec.ExpiresAt}.Expired(now)
	})
}

func (s *LevelStore) Clear(ctx context.Context) error {
	_, err := s.deleteWhere(ctx, func(levelRecord) bool { return true })
	return err
}

// deleteWhere removes, in one batch, every record for which match holds. Undecodable records are dropped too.
func (s *LevelStore) deleteWhere(ctx context.Context, match func(levelRecord) bool) (int, error) {
	it := s.db.NewIterator(util.BytesPrefix([]byte(levelPrefix)), nil)
	defer it.Release()

	batch := new(leveldb.Batch)
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		var rec levelRecord
		if err := decodeGob(it.Value(), &rec); err != nil || match(rec) {
			batch.Delete(append([]byte(nil), it.Key()...))
		}
	}
	if err := it.Error(); err != nil {
		return 0, fmt.Errorf("failed to scan cache entries: %w", err)
	}

	if batch.Len() == 0 {
		return 0, nil
	}
	if err := s.db.Write(batch, nil); err != nil {
		return 0, fmt.Errorf("failed to delete cache entries: %w", err)
	}
	return batch.Len(), nil
}

func (s *LevelStore) Close() error {
	return s.db.Close()
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
