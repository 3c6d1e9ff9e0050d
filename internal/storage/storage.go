package storage

import (
	"encoding/binary"

	"github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"

	"github.com/corvidchess/corvid/internal/tablebase"
)

const (
	probeCachePrefix     = "tb:"
	correctionHistoryKey = "corr:v1"
)

// Cache wraps BadgerDB as a persistent, restart-surviving cache for
// tablebase probe results and the correction-history table. It complements
// (never replaces) the engine's in-memory transposition table and the
// in-process tablebase.CachedProber.
type Cache struct {
	db  *badger.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// OpenDefault opens the cache at the platform-specific default data directory.
func OpenDefault() (*Cache, error) {
	dbDir, err := GetDatabaseDir()
	if err != nil {
		return nil, err
	}
	return Open(dbDir)
}

// Open opens the cache at the given directory.
func Open(dir string) (*Cache, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		enc.Close()
		return nil, err
	}

	return &Cache{db: db, enc: enc, dec: dec}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	c.enc.Close()
	c.dec.Close()
	return c.db.Close()
}

// StoreProbe persists a tablebase probe result keyed by position hash.
func (c *Cache) StoreProbe(hash uint64, result tablebase.ProbeResult) error {
	if c == nil {
		return nil
	}
	buf := make([]byte, 10)
	if result.Found {
		buf[0] = 1
	}
	buf[1] = byte(int8(result.WDL))
	binary.LittleEndian.PutUint64(buf[2:], uint64(int64(result.DTZ)))

	key := probeKey(hash)
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf)
	})
}

// LoadProbe looks up a previously cached tablebase probe result.
func (c *Cache) LoadProbe(hash uint64) (tablebase.ProbeResult, bool) {
	if c == nil {
		return tablebase.ProbeResult{}, false
	}

	var result tablebase.ProbeResult
	found := false
	key := probeKey(hash)
	_ = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 10 {
				return nil
			}
			result.Found = val[0] == 1
			result.WDL = tablebase.WDL(int8(val[1]))
			result.DTZ = int(int64(binary.LittleEndian.Uint64(val[2:])))
			found = true
			return nil
		})
	})
	return result, found
}

// SaveCorrectionHistory persists a correction-history snapshot so a restarted
// process can warm-start instead of relearning static-eval bias from scratch.
// The snapshot is zstd-compressed before being written.
func (c *Cache) SaveCorrectionHistory(snapshot []byte) error {
	if c == nil {
		return nil
	}
	compressed := c.enc.EncodeAll(snapshot, nil)
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(correctionHistoryKey), compressed)
	})
}

// LoadCorrectionHistory returns a previously saved snapshot, if any.
func (c *Cache) LoadCorrectionHistory() ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	var compressed []byte
	_ = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(correctionHistoryKey))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			compressed = append([]byte(nil), val...)
			return nil
		})
	})
	if compressed == nil {
		return nil, false
	}
	data, err := c.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, false
	}
	return data, true
}

func probeKey(hash uint64) []byte {
	key := make([]byte, len(probeCachePrefix)+8)
	copy(key, probeCachePrefix)
	binary.LittleEndian.PutUint64(key[len(probeCachePrefix):], hash)
	return key
}
