package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/frankmarazita/yt-subscription-cli/infrastructure/logger"

	"github.com/google/uuid"
)

const WatchLaterListName = "Watch Later"

var baseTables = []string{
	`CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		channel TEXT NOT NULL,
		link TEXT NOT NULL,
		published BIGINT NOT NULL,
		is_short BOOLEAN NOT NULL DEFAULT FALSE,
		cached_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS playlists (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS playlist_videos (
		playlist_id TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
		video_id TEXT NOT NULL,
		added_at BIGINT NOT NULL,
		PRIMARY KEY (playlist_id, video_id)
	)`,
	`CREATE TABLE IF NOT EXISTS watch_history (
		video_id TEXT PRIMARY KEY,
		watched_at BIGINT NOT NULL
	)`,
}

var indexes = []struct{ name, ddl string }{
	{"idx_videos_published", `CREATE INDEX IF NOT EXISTS idx_videos_published ON videos(published)`},
	{"idx_videos_cached_at", `CREATE INDEX IF NOT EXISTS idx_videos_cached_at ON videos(cached_at)`},
	{"idx_videos_is_short", `CREATE INDEX IF NOT EXISTS idx_videos_is_short ON videos(is_short)`},
	{"idx_playlist_videos_video", `CREATE INDEX IF NOT EXISTS idx_playlist_videos_video ON playlist_videos(video_id)`},
}

// additive columns appear in later versions of the videos table
var additiveColumns = []struct{ table, column, ddl string }{
	{"videos", "thumbnail_url", "ALTER TABLE videos ADD COLUMN thumbnail_url TEXT"},
	{"videos", "view_count", "ALTER TABLE videos ADD COLUMN view_count BIGINT"},
	{"videos", "like_count", "ALTER TABLE videos ADD COLUMN like_count BIGINT"},
	{"videos", "description", "ALTER TABLE videos ADD COLUMN description TEXT"},
}

// EnsureVideoCacheSchema creates or upgrades every table and returns the watch-later list id.
// It is idempotent; existing rows are never touched.
func EnsureVideoCacheSchema(ctx context.Context, db *sql.DB, d Dialect) (string, error) {
	for _, ddl := range baseTables {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return "", fmt.Errorf("create table: %w", err)
		}
	}

	for _, c := range additiveColumns {
		exists, err := columnExists(ctx, db, d, c.table, c.column)
		if err != nil {
			return "", err
		}
		if !exists {
			if _, err := db.ExecContext(ctx, c.ddl); err != nil {
				// another process may have added it between check and alter
				if added, _ := columnExists(ctx, db, d, c.table, c.column); added {
					continue
				}
				return "", fmt.Errorf("adding column %s.%s failed: %w", c.table, c.column, err)
			}
			logger.GetLogger().WithField("column", c.table+"."+c.column).Info("Added column")
		}
	}

	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx.ddl); err != nil {
			logger.GetLogger().WithField("error", err).Warn("failed creating " + idx.name)
		}
	}

	return ensureWatchLaterList(ctx, db, d)
}

func ensureWatchLaterList(ctx context.Context, db *sql.DB, d Dialect) (string, error) {
	_, err := db.ExecContext(ctx,
		rebind(d, `INSERT INTO playlists(id, name, created_at) VALUES (?, ?, ?) ON CONFLICT (name) DO NOTHING`),
		uuid.NewString(), WatchLaterListName, time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("bootstrap watch later list: %w", err)
	}
	var id string
	if err := db.QueryRowContext(ctx, rebind(d, `SELECT id FROM playlists WHERE name = ?`), WatchLaterListName).Scan(&id); err != nil {
		return "", fmt.Errorf("read watch later list: %w", err)
	}
	return id, nil
}

func columnExists(ctx context.Context, db *sql.DB, d Dialect, table, column string) (bool, error) {
	q := `SELECT 1 FROM pragma_table_info(?) WHERE name = ?`
	if d == DialectPostgres {
		q = `SELECT 1 FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2`
	}
	var one int
	if err := db.QueryRowContext(ctx, q, table, column).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check column %s.%s: %w", table, column, err)
	}
	return true, nil
}
