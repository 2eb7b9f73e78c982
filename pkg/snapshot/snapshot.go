package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"

	"opschat/pkg/logger"
	"opschat/pkg/models"
)

// Store persists the last-known room directory and per-room message tails in
// a local Pebble database so a restarted client can render immediately,
// before its first poll. Poll results are always authoritative; the snapshot
// is only ever read to warm empty caches.
//
// Key layout:
//
//	directory                      -> JSON array of rooms (whole-list replace)
//	room:<id>:msg:<padded-ts>-<seq> -> JSON message
type Store struct {
	db   *pebble.DB
	path string
}

const directoryKey = "directory"

// Open opens (or creates) the snapshot database at the given path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("snapshot_open_failed", "path", path, "error", err)
		return nil, err
	}
	logger.Info("snapshot_opened", "path", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the snapshot database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// SaveRooms replaces the stored directory with the given list.
func (s *Store) SaveRooms(rooms []models.Room) error {
	if s == nil || s.db == nil {
		return nil
	}
	b, err := json.Marshal(rooms)
	if err != nil {
		return fmt.Errorf("failed to marshal directory: %w", err)
	}
	return s.db.Set([]byte(directoryKey), b, pebble.Sync)
}

// LoadRooms returns the stored directory, or nil when none was saved yet.
func (s *Store) LoadRooms() ([]models.Room, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	v, closer, err := s.db.Get([]byte(directoryKey))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	defer closer.Close()
	var rooms []models.Room
	if err := json.Unmarshal(v, &rooms); err != nil {
		return nil, fmt.Errorf("corrupt directory snapshot: %w", err)
	}
	return rooms, nil
}

func msgPrefix(roomID string) []byte {
	return []byte("room:" + roomID + ":msg:")
}

func msgKey(roomID string, ts int64, seq int) []byte {
	return []byte(fmt.Sprintf("room:%s:msg:%020d-%06d", roomID, ts, seq))
}

func upperBound(prefix []byte) []byte {
	up := append([]byte(nil), prefix...)
	return append(up, 0xff)
}

// SaveMessages replaces the stored tail for one room with the given list.
// Optimistic entries are provisional and never persisted.
func (s *Store) SaveMessages(roomID string, msgs []models.Message) error {
	if s == nil || s.db == nil {
		return nil
	}
	prefix := msgPrefix(roomID)
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.DeleteRange(prefix, upperBound(prefix), nil); err != nil {
		return err
	}
	for i, m := range msgs {
		if m.IsOptimistic {
			continue
		}
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal message %s: %w", m.ID, err)
		}
		if err := batch.Set(msgKey(roomID, m.CreatedAt.UTC().UnixNano(), i), b, nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

// LoadMessages returns the stored tail for one room in key order, which by
// construction is CreatedAt ascending.
func (s *Store) LoadMessages(roomID string) ([]models.Message, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	prefix := msgPrefix(roomID)
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []models.Message
	for it.First(); it.Valid(); it.Next() {
		var m models.Message
		if err := json.Unmarshal(it.Value(), &m); err != nil {
			logger.Warn("snapshot_skip_corrupt_message", "key", string(it.Key()), "error", err)
			continue
		}
		out = append(out, m)
	}
	return out, it.Error()
}

// PruneOlderThan deletes message entries whose embedded timestamp precedes
// the cutoff and returns the number removed. The directory entry is never
// pruned.
func (s *Store) PruneOlderThan(cutoff time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	lower := []byte("room:")
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upperBound(lower)})
	if err != nil {
		return 0, err
	}
	var stale [][]byte
	cut := cutoff.UTC().UnixNano()
	for it.First(); it.Valid(); it.Next() {
		ts, ok := parseKeyTS(string(it.Key()))
		if !ok || ts >= cut {
			continue
		}
		stale = append(stale, append([]byte(nil), it.Key()...))
	}
	if err := it.Close(); err != nil {
		return 0, err
	}
	for _, k := range stale {
		if err := s.db.Delete(k, pebble.Sync); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

// parseKeyTS extracts the padded nanosecond timestamp from a message key.
func parseKeyTS(key string) (int64, bool) {
	i := strings.LastIndex(key, ":msg:")
	if i < 0 {
		return 0, false
	}
	rest := key[i+len(":msg:"):]
	j := strings.IndexByte(rest, '-')
	if j < 0 {
		return 0, false
	}
	ts, err := strconv.ParseInt(rest[:j], 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// Dump writes every key with its value size, for the inspect tool.
func (s *Store) Dump(w io.Writer) error {
	if s == nil || s.db == nil {
		return nil
	}
	it, err := s.db.NewIter(nil)
	if err != nil {
		return err
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		fmt.Fprintf(w, "%s\t%d bytes\n", it.Key(), len(it.Value()))
	}
	return it.Error()
}
