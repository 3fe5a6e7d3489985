package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/dlq"
	"github.com/xraph/volshift/id"
)

// PushDLQ adds an entry.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("volshift/bolt: marshal dlq: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, dlqBucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(entry.ID.String()), payload)
	})
}

// ListDLQ returns entries matching opts, newest first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	all, err := s.scanDLQ(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]*dlq.Entry, 0, len(all))
	for _, e := range all {
		if opts.Stage != "" && e.Stage != opts.Stage {
			continue
		}
		if opts.Unresolved && e.Resolved() {
			continue
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].FailedAt.After(entries[j].FailedAt)
	})

	if opts.Offset >= len(entries) {
		return nil, nil
	}
	entries = entries[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(entries) {
		entries = entries[:opts.Limit]
	}
	return entries, nil
}

// GetDLQ retrieves an entry by ID.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var e dlq.Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, dlqBucket)
		if err != nil {
			return err
		}
		v := b.Get([]byte(entryID.String()))
		if v == nil {
			return volshift.ErrDLQNotFound
		}
		return json.Unmarshal(v, &e)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ResolveDLQ marks an entry handled.
func (s *Store) ResolveDLQ(ctx context.Context, entryID id.DLQID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, dlqBucket)
		if err != nil {
			return err
		}
		k := []byte(entryID.String())
		v := b.Get(k)
		if v == nil {
			return volshift.ErrDLQNotFound
		}
		var e dlq.Entry
		if err := json.Unmarshal(v, &e); err != nil {
			return fmt.Errorf("volshift/bolt: unmarshal dlq: %w", err)
		}
		t := s.now()
		e.ResolvedAt = &t
		payload, err := json.Marshal(&e)
		if err != nil {
			return fmt.Errorf("volshift/bolt: marshal dlq: %w", err)
		}
		return b.Put(k, payload)
	})
}

// PurgeDLQ removes entries with FailedAt before the given time.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var purged int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, dlqBucket)
		if err != nil {
			return err
		}
		var stale [][]byte
		err = b.ForEach(func(k, v []byte) error {
			var e dlq.Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("volshift/bolt: unmarshal dlq: %w", err)
			}
			if e.FailedAt.Before(before) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			purged++
		}
		return nil
	})
	return purged, err
}

// CountDLQ returns the number of entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, dlqBucket)
		if err != nil {
			return err
		}
		n = int64(b.Stats().KeyN)
		return nil
	})
	return n, err
}

func (s *Store) scanDLQ(ctx context.Context) ([]*dlq.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*dlq.Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, dlqBucket)
		if err != nil {
			return err
		}
		return b.ForEach(func(_, v []byte) error {
			var e dlq.Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("volshift/bolt: unmarshal dlq: %w", err)
			}
			out = append(out, &e)
			return nil
		})
	})
	return out, err
}
