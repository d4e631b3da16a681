package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/frankmarazita/yt-subscription-cli/domain/model"
	"github.com/frankmarazita/yt-subscription-cli/domain/repository"
)

const videoColumns = `id, title, channel, link, published, is_short, cached_at, thumbnail_url, view_count, like_count, description`

// VideoCacheRepository stores feed videos and watch state in SQLite or Postgres.
type VideoCacheRepository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time

	mu           sync.Mutex
	watchLaterID string
}

func NewVideoCacheRepository(db *sql.DB, d Dialect) *VideoCacheRepository {
	return &VideoCacheRepository{db: db, dialect: d, now: time.Now}
}

// WithClock replaces the time source, used by tests.
func (r *VideoCacheRepository) WithClock(now func() time.Time) *VideoCacheRepository {
	r.now = now
	return r
}

func (r *VideoCacheRepository) EnsureSchema(ctx context.Context) error {
	id, err := EnsureVideoCacheSchema(ctx, r.db, r.dialect)
	if err != nil {
		return &repository.StorageError{Op: "schema", Entity: "video", Err: err}
	}
	r.mu.Lock()
	r.watchLaterID = id
	r.mu.Unlock()
	return nil
}

// LoadFresh returns videos cached at or after now-maxAge ordered by publication, oldest first.
func (r *VideoCacheRepository) LoadFresh(ctx context.Context, maxAge time.Duration) ([]model.Video, error) {
	cutoff := r.now().Add(-maxAge).UnixMilli()
	rows, err := r.db.QueryContext(ctx,
		rebind(r.dialect, `SELECT `+videoColumns+` FROM videos WHERE cached_at >= ? ORDER BY published ASC, id ASC`),
		cutoff)
	if err != nil {
		return nil, &repository.StorageError{Op: "load", Entity: "video", Err: err}
	}
	defer rows.Close()

	out := make([]model.Video, 0)
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, &repository.StorageError{Op: "load", Entity: "video", Err: err}
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, &repository.StorageError{Op: "load", Entity: "video", Err: err}
	}
	return out, nil
}

func scanVideo(rows *sql.Rows) (model.Video, error) {
	var (
		v                    model.Video
		published, cachedAt  int64
		thumb, description   sql.NullString
		viewCount, likeCount sql.NullInt64
	)
	if err := rows.Scan(&v.VideoID, &v.Title, &v.Channel, &v.Link, &published, &v.IsShort, &cachedAt,
		&thumb, &viewCount, &likeCount, &description); err != nil {
		return v, err
	}
	v.Published = time.UnixMilli(published).UTC()
	v.CachedAt = time.UnixMilli(cachedAt).UTC()
	if thumb.Valid {
		v.ThumbnailURL = &thumb.String
	}
	if description.Valid {
		v.Description = &description.String
	}
	if viewCount.Valid {
		v.ViewCount = &viewCount.Int64
	}
	if likeCount.Valid {
		v.LikeCount = &likeCount.Int64
	}
	return v, nil
}

// UpsertAll replaces every given video in one transaction; a failure leaves the table untouched.
func (r *VideoCacheRepository) UpsertAll(ctx context.Context, videos []model.Video) (err error) {
	if len(videos) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &repository.StorageError{Op: "upsert", Entity: "video", Err: err}
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			err = &repository.StorageError{Op: "upsert", Entity: "video", Err: err}
		}
	}()

	q := rebind(r.dialect, `INSERT INTO videos(`+videoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET title=excluded.title, channel=excluded.channel, link=excluded.link,
		published=excluded.published, is_short=excluded.is_short, cached_at=excluded.cached_at,
		thumbnail_url=excluded.thumbnail_url, view_count=excluded.view_count, like_count=excluded.like_count,
		description=excluded.description`)
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := r.now().UnixMilli()
	for i := range videos {
		v := &videos[i]
		if _, err = stmt.ExecContext(ctx, v.VideoID, v.Title, v.Channel, v.Link, v.Published.UnixMilli(), v.IsShort, now,
			nullString(v.ThumbnailURL), nullInt(v.ViewCount), nullInt(v.LikeCount), nullString(v.Description)); err != nil {
			return fmt.Errorf("video %s: %w", v.VideoID, err)
		}
	}
	return tx.Commit()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

func (r *VideoCacheRepository) LoadWatchLaterSet(ctx context.Context) (model.VideoIDSet, error) {
	listID, err := r.listID(ctx)
	if err != nil {
		return nil, &repository.StorageError{Op: "load", Entity: "watch_later", Err: err}
	}
	set, err := r.loadSet(ctx, `SELECT video_id FROM playlist_videos WHERE playlist_id = ?`, listID)
	if err != nil {
		return nil, &repository.StorageError{Op: "load", Entity: "watch_later", Err: err}
	}
	return set, nil
}

func (r *VideoCacheRepository) LoadWatchedSet(ctx context.Context) (model.VideoIDSet, error) {
	set, err := r.loadSet(ctx, `SELECT video_id FROM watch_history`)
	if err != nil {
		return nil, &repository.StorageError{Op: "load", Entity: "watch_history", Err: err}
	}
	return set, nil
}

func (r *VideoCacheRepository) loadSet(ctx context.Context, q string, args ...interface{}) (model.VideoIDSet, error) {
	rows, err := r.db.QueryContext(ctx, rebind(r.dialect, q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	set := model.NewVideoIDSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set[id] = struct{}{}
	}
	return set, rows.Err()
}

// ToggleWatchLater adds the video to the watch-later list or removes it, returning the new membership.
func (r *VideoCacheRepository) ToggleWatchLater(ctx context.Context, videoID string) (bool, error) {
	listID, err := r.listID(ctx)
	if err != nil {
		return false, &repository.StorageError{Op: "toggle", Entity: "watch_later", ID: videoID, Err: err}
	}
	added, err := r.toggle(ctx,
		`SELECT 1 FROM playlist_videos WHERE playlist_id = ? AND video_id = ?`,
		`DELETE FROM playlist_videos WHERE playlist_id = ? AND video_id = ?`,
		`INSERT INTO playlist_videos(playlist_id, video_id, added_at) VALUES (?, ?, ?)`,
		[]interface{}{listID, videoID})
	if err != nil {
		return false, &repository.StorageError{Op: "toggle", Entity: "watch_later", ID: videoID, Err: err}
	}
	return added, nil
}

// ToggleWatched flips the watch history row for videoID, returning whether it is now watched.
func (r *VideoCacheRepository) ToggleWatched(ctx context.Context, videoID string) (bool, error) {
	added, err := r.toggle(ctx,
		`SELECT 1 FROM watch_history WHERE video_id = ?`,
		`DELETE FROM watch_history WHERE video_id = ?`,
		`INSERT INTO watch_history(video_id, watched_at) VALUES (?, ?)`,
		[]interface{}{videoID})
	if err != nil {
		return false, &repository.StorageError{Op: "toggle", Entity: "watch_history", ID: videoID, Err: err}
	}
	return added, nil
}

// toggle deletes the row matched by key if present, otherwise inserts key plus the current time.
func (r *VideoCacheRepository) toggle(ctx context.Context, selectQ, deleteQ, insertQ string, key []interface{}) (added bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var one int
	err = tx.QueryRowContext(ctx, rebind(r.dialect, selectQ), key...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		args := append(append([]interface{}{}, key...), r.now().UnixMilli())
		if _, err = tx.ExecContext(ctx, rebind(r.dialect, insertQ), args...); err != nil {
			return false, err
		}
		added = true
	case err != nil:
		return false, err
	default:
		if _, err = tx.ExecContext(ctx, rebind(r.dialect, deleteQ), key...); err != nil {
			return false, err
		}
	}
	if err = tx.Commit(); err != nil {
		return false, err
	}
	return added, nil
}

// MarkWatched records a watch, refreshing the timestamp when one exists.
func (r *VideoCacheRepository) MarkWatched(ctx context.Context, videoID string) error {
	_, err := r.db.ExecContext(ctx,
		rebind(r.dialect, `INSERT INTO watch_history(video_id, watched_at) VALUES (?, ?)
		ON CONFLICT (video_id) DO UPDATE SET watched_at=excluded.watched_at`),
		videoID, r.now().UnixMilli())
	if err != nil {
		return &repository.StorageError{Op: "mark", Entity: "watch_history", ID: videoID, Err: err}
	}
	return nil
}

func (r *VideoCacheRepository) listID(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watchLaterID != "" {
		return r.watchLaterID, nil
	}
	id, err := ensureWatchLaterList(ctx, r.db, r.dialect)
	if err != nil {
		return "", err
	}
	r.watchLaterID = id
	return id, nil
}

var _ repository.IVideoCache = (*VideoCacheRepository)(nil)
