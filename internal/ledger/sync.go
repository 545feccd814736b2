package ledger

import (
	"context"
	"log/slog"
	"path"

	"github.com/yourview/yourview/internal/checksum"
	"github.com/yourview/yourview/internal/media"
	"github.com/yourview/yourview/internal/models"
	"github.com/yourview/yourview/internal/storage"
)

// EventCallback is called after a ledger change driven by the media
// directory. kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, key string)

// Sync walks the media store and brings the ledger up to date:
//   - image files missing from the ledger or changed on disk are recorded
//   - rows whose file no longer exists are removed
func Sync(ctx context.Context, db *DB, store storage.Provider, logger *slog.Logger) error {
	objects, err := store.List("")
	if err != nil {
		return err
	}

	etags, err := db.AllETags(ctx)
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(objects))
	for _, o := range objects {
		if !media.IsImageKey(o.Key) {
			continue
		}
		disk[o.Key] = struct{}{}

		if etags[o.Key] == o.Checksum {
			continue
		}
		if _, err := recordFile(ctx, db, store, o.Key); err != nil {
			logger.Warn("sync: record failed", slog.String("key", o.Key), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: recorded", slog.String("key", o.Key))
		}
	}

	for k := range etags {
		if _, ok := disk[k]; ok {
			continue
		}
		if err := db.Delete(ctx, k); err != nil {
			logger.Warn("sync: delete failed", slog.String("key", k), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("key", k))
		}
	}

	return nil
}

// recordFile reads key from the store and records it. changed is false when
// the ledger already held the same content.
func recordFile(ctx context.Context, db *DB, store storage.Provider, key string) (changed bool, err error) {
	data, err := store.Read(key)
	if err != nil {
		return false, err
	}
	etag := checksum.Sum(data)

	existing, err := db.Get(ctx, key)
	if err == nil && existing.ETag == etag {
		return false, nil
	}

	ct := media.Detect(data)
	if ct == "" {
		return false, errUnrecognised
	}
	u := models.Upload{
		Key:              key,
		ContentType:      ct,
		Size:             int64(len(data)),
		ETag:             etag,
		OriginalFilename: path.Base(key),
	}
	if existing != nil {
		u.CreatedAt = existing.CreatedAt
		u.OriginalFilename = existing.OriginalFilename
	}
	return true, db.Record(ctx, u)
}
