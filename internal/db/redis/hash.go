package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/listbot/internal/db"
)

// HSet sets hash fields.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if err := s.do(ctx, s.hsetCmd(key, fields)).Error(); err != nil {
		return db.Wrap(db.OpHSet, key, err)
	}
	return nil
}

// HSetMulti writes several hashes in one DoMulti round-trip.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make(rueidis.Commands, len(items))
	for i, item := range items {
		cmds[i] = s.hsetCmd(item.Key, item.Fields)
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return db.Wrap(db.OpHSet, items[i].Key, err)
		}
	}
	return nil
}

func (s *Store) hsetCmd(key string, fields map[string]string) rueidis.Completed {
	cmd := s.b().Hset().Key(key).FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	return cmd.Build()
}

// Del deletes a key.
func (s *Store) Del(ctx context.Context, key string) error {
	if err := s.do(ctx, s.b().Del().Key(key).Build()).Error(); err != nil {
		return db.Wrap(db.OpDel, key, err)
	}
	return nil
}

const scanBatch = 500

// DeleteByPrefix unlinks every key starting with prefix, one SCAN page at a
// time, and returns how many keys were removed.
func (s *Store) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		cmd := s.b().Scan().Cursor(cursor).Match(prefix + "*").Count(scanBatch).Build()
		page, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return deleted, db.Wrap(db.OpScan, prefix, err)
		}

		if len(page.Elements) > 0 {
			n, err := s.do(ctx, s.b().Unlink().Key(page.Elements...).Build()).AsInt64()
			if err != nil {
				return deleted, db.Wrap(db.OpUnlink, prefix, err)
			}
			deleted += int(n)
		}

		cursor = page.Cursor
		if cursor == 0 {
			return deleted, nil
		}
	}
}
