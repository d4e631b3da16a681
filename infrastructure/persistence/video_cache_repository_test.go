package persistence

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frankmarazita/yt-subscription-cli/domain/model"
	"github.com/frankmarazita/yt-subscription-cli/domain/repository"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestRepository(t *testing.T) (*VideoCacheRepository, *fakeClock, *sql.DB) {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	repo := NewVideoCacheRepository(db, DialectSQLite).WithClock(clock.Now)
	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo, clock, db
}

func strPtr(s string) *string { return &s }
func intPtr(n int64) *int64   { return &n }

func sampleVideo(id string, published time.Time) model.Video {
	return model.Video{
		VideoID:   id,
		Title:     "Video " + id,
		Channel:   "Channel",
		Link:      "https://www.youtube.com/watch?v=" + id,
		Published: published,
	}
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	repo, _, db := newTestRepository(t)
	ctx := context.Background()
	first := repo.watchLaterID

	require.NoError(t, repo.EnsureSchema(ctx))
	require.NoError(t, repo.EnsureSchema(ctx))

	assert.NotEmpty(t, first)
	assert.Equal(t, first, repo.watchLaterID)

	var lists int
	require.NoError(t, db.QueryRow(`SELECT COUNT(1) FROM playlists WHERE name = ?`, WatchLaterListName).Scan(&lists))
	assert.Equal(t, 1, lists)
}

func TestEnsureSchema_AddsColumnsToOldTable(t *testing.T) {
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "old.db"))
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	_, err = db.Exec(`CREATE TABLE videos (id TEXT PRIMARY KEY, title TEXT NOT NULL, channel TEXT NOT NULL,
		link TEXT NOT NULL, published BIGINT NOT NULL, is_short BOOLEAN NOT NULL DEFAULT FALSE, cached_at BIGINT NOT NULL)`)
	require.NoError(t, err)
	now := time.Now()
	_, err = db.Exec(`INSERT INTO videos VALUES ('old1', 'Old', 'Chan', 'https://www.youtube.com/watch?v=old1', ?, 0, ?)`,
		now.Add(-time.Hour).UnixMilli(), now.UnixMilli())
	require.NoError(t, err)

	repo := NewVideoCacheRepository(db, DialectSQLite)
	require.NoError(t, repo.EnsureSchema(ctx))

	for _, col := range []string{"thumbnail_url", "view_count", "like_count", "description"} {
		exists, err := columnExists(ctx, db, DialectSQLite, "videos", col)
		require.NoError(t, err)
		assert.True(t, exists, col)
	}

	videos, err := repo.LoadFresh(ctx, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "old1", videos[0].VideoID)
	assert.Nil(t, videos[0].ThumbnailURL)
	assert.Nil(t, videos[0].ViewCount)
}

func TestUpsertAll_LoadFresh(t *testing.T) {
	repo, _, _ := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)

	newer := sampleVideo("b", base.Add(2*time.Hour))
	newer.IsShort = true
	newer.Link = "https://www.youtube.com/shorts/b"
	older := sampleVideo("a", base)
	older.ThumbnailURL = strPtr("https://i.ytimg.com/vi/a/hqdefault.jpg")
	older.ViewCount = intPtr(1234)
	older.LikeCount = intPtr(56)
	older.Description = strPtr("about a")

	require.NoError(t, repo.UpsertAll(ctx, []model.Video{newer, older}))

	videos, err := repo.LoadFresh(ctx, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "a", videos[0].VideoID)
	assert.Equal(t, "b", videos[1].VideoID)
	assert.True(t, videos[0].Published.Equal(base))
	assert.Equal(t, "https://i.ytimg.com/vi/a/hqdefault.jpg", *videos[0].ThumbnailURL)
	assert.Equal(t, int64(1234), *videos[0].ViewCount)
	assert.Equal(t, int64(56), *videos[0].LikeCount)
	assert.Equal(t, "about a", *videos[0].Description)
	assert.True(t, videos[1].IsShort)
	assert.Nil(t, videos[1].ThumbnailURL)

	renamed := older
	renamed.Title = "Renamed"
	renamed.ViewCount = nil
	require.NoError(t, repo.UpsertAll(ctx, []model.Video{renamed}))

	videos, err = repo.LoadFresh(ctx, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "Renamed", videos[0].Title)
	assert.Nil(t, videos[0].ViewCount)
}

func TestLoadFresh_BoundaryIsInclusive(t *testing.T) {
	repo, clock, _ := newTestRepository(t)
	ctx := context.Background()
	start := clock.t

	require.NoError(t, repo.UpsertAll(ctx, []model.Video{sampleVideo("a", start.Add(-time.Hour))}))

	clock.t = start.Add(30 * time.Minute)
	videos, err := repo.LoadFresh(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Len(t, videos, 1)

	clock.t = start.Add(30*time.Minute + time.Millisecond)
	videos, err = repo.LoadFresh(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, videos)

	// A refresh 40 minutes in re-stamps the stale row.
	clock.t = start.Add(40 * time.Minute)
	videos, err = repo.LoadFresh(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, videos)

	require.NoError(t, repo.UpsertAll(ctx, []model.Video{sampleVideo("a", start.Add(-time.Hour))}))
	videos, err = repo.LoadFresh(ctx, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "a", videos[0].VideoID)
}

func TestUpsertAll_Empty(t *testing.T) {
	repo, _, _ := newTestRepository(t)
	assert.NoError(t, repo.UpsertAll(context.Background(), nil))
}

func TestToggleWatchLater(t *testing.T) {
	repo, _, _ := newTestRepository(t)
	ctx := context.Background()

	added, err := repo.ToggleWatchLater(ctx, "a")
	require.NoError(t, err)
	assert.True(t, added)

	set, err := repo.LoadWatchLaterSet(ctx)
	require.NoError(t, err)
	assert.True(t, set.Contains("a"))

	added, err = repo.ToggleWatchLater(ctx, "a")
	require.NoError(t, err)
	assert.False(t, added)

	set, err = repo.LoadWatchLaterSet(ctx)
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestToggleWatched_And_MarkWatched(t *testing.T) {
	repo, _, _ := newTestRepository(t)
	ctx := context.Background()

	watched, err := repo.ToggleWatched(ctx, "a")
	require.NoError(t, err)
	assert.True(t, watched)

	require.NoError(t, repo.MarkWatched(ctx, "a"))
	require.NoError(t, repo.MarkWatched(ctx, "b"))
	require.NoError(t, repo.MarkWatched(ctx, "b"))

	set, err := repo.LoadWatchedSet(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.NewVideoIDSet("a", "b"), set)

	watched, err = repo.ToggleWatched(ctx, "a")
	require.NoError(t, err)
	assert.False(t, watched)
}

func TestWatchStateSurvivesCacheReplacement(t *testing.T) {
	repo, clock, _ := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertAll(ctx, []model.Video{sampleVideo("a", clock.t)}))
	_, err := repo.ToggleWatchLater(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, repo.MarkWatched(ctx, "gone"))

	clock.t = clock.t.Add(2 * time.Hour)
	require.NoError(t, repo.UpsertAll(ctx, []model.Video{sampleVideo("z", clock.t)}))

	later, err := repo.LoadWatchLaterSet(ctx)
	require.NoError(t, err)
	watched, err := repo.LoadWatchedSet(ctx)
	require.NoError(t, err)
	assert.True(t, later.Contains("a"))
	assert.True(t, watched.Contains("gone"))
}

func TestUpsertAll_RollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewVideoCacheRepository(db, DialectSQLite)
	now := time.Now()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO videos(` + videoColumns + `)`))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = repo.UpsertAll(context.Background(), []model.Video{sampleVideo("a", now), sampleVideo("b", now)})

	require.Error(t, err)
	var storErr *repository.StorageError
	require.True(t, errors.As(err, &storErr))
	assert.Equal(t, "upsert", storErr.Op)
	assert.Contains(t, err.Error(), "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadFresh_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewVideoCacheRepository(db, DialectPostgres)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + videoColumns + ` FROM videos WHERE cached_at >= $1 ORDER BY published ASC, id ASC`)).
		WillReturnError(sql.ErrConnDone)

	_, err = repo.LoadFresh(context.Background(), time.Minute)

	assert.ErrorIs(t, err, sql.ErrConnDone)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleWatchLater_RollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewVideoCacheRepository(db, DialectSQLite)
	repo.watchLaterID = "list-1"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM playlist_videos WHERE playlist_id = ? AND video_id = ?`)).
		WithArgs("list-1", "a").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO playlist_videos(playlist_id, video_id, added_at)`)).
		WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	added, err := repo.ToggleWatchLater(context.Background(), "a")

	assert.False(t, added)
	var storErr *repository.StorageError
	require.True(t, errors.As(err, &storErr))
	assert.Equal(t, "a", storErr.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRebind(t *testing.T) {
	q := `SELECT 1 FROM t WHERE a = ? AND b = ?`
	assert.Equal(t, q, rebind(DialectSQLite, q))
	assert.Equal(t, `SELECT 1 FROM t WHERE a = $1 AND b = $2`, rebind(DialectPostgres, q))
}

func TestColumnExists_PostgresScopesToCurrentSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	q := regexp.QuoteMeta(`SELECT 1 FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2`)
	mock.ExpectQuery(q).WithArgs("videos", "view_count").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(q).WithArgs("videos", "description").WillReturnRows(sqlmock.NewRows([]string{"1"}))

	exists, err := columnExists(context.Background(), db, DialectPostgres, "videos", "view_count")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = columnExists(context.Background(), db, DialectPostgres, "videos", "description")
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
