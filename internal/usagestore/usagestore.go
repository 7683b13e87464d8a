// Package usagestore is the persisted desktop-id -> UsageRecord launch
// log that feeds the ranker's personalized boosts, directly grounded on
// the teacher's internal/runindex package (same bbolt-backed single
// bucket keyed by identifier), generalized from a bare uint64 counter to
// a {count, last_launch_ns} record.
package usagestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/dskidx/dskidx/internal/model"
)

// FileName is the usage store's on-disk file name; the version is the
// suffix, per SPEC_FULL.md §6.
const FileName = "usage.v1"

const bucketName = "usage"

// Store is a bbolt-backed, single-writer usage log.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the usage store at dir/FileName.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating usage store dir: %w", err)
	}
	path := filepath.Join(dir, FileName)

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening usage store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating usage bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// RecordLaunch increments count and sets last_launch_ns for desktopID.
// The read-modify-write happens inside a single bbolt write transaction,
// which is bbolt's own single-writer guarantee — no extra lock is
// layered on top, matching how the teacher already serializes writers in
// internal/runindex.
func (s *Store) RecordLaunch(desktopID string, nowNS int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		rec := model.UsageRecord{DesktopID: desktopID}
		if raw := b.Get([]byte(desktopID)); raw != nil {
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("decoding usage record for %s: %w", desktopID, err)
			}
		}
		rec.Count++
		rec.LastLaunchNS = nowNS

		encoded, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(desktopID), encoded)
	})
}

// Get returns the usage record for desktopID, or the zero record if none
// has been recorded yet.
func (s *Store) Get(desktopID string) model.UsageRecord {
	rec := model.UsageRecord{DesktopID: desktopID}
	_ = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		raw := b.Get([]byte(desktopID))
		if raw == nil {
			return nil
		}
		return json.Unmarshal(raw, &rec)
	})
	return rec
}

// All snapshots every usage record under the read lock bbolt's View
// transaction provides.
func (s *Store) All() map[string]model.UsageRecord {
	out := make(map[string]model.UsageRecord)
	_ = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		return b.ForEach(func(k, v []byte) error {
			var rec model.UsageRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil // skip a corrupt record rather than fail the whole snapshot
			}
			out[string(k)] = rec
			return nil
		})
	})
	return out
}

// Close releases the underlying bbolt file handle.
func (s *Store) Close() error {
	return s.db.Close()
}
