package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	var cfg Config
	v := viper.New()

	require.NoError(t, loadInto(v, filepath.Join(t.TempDir(), "missing.json"), &cfg))

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 50, cfg.Feed.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Feed.BatchPause)
	assert.Equal(t, 30*time.Minute, cfg.Cache.MaxAge)
	assert.Equal(t, 100, cfg.Thumbnail.Capacity)
	assert.Equal(t, 3, cfg.Thumbnail.PrefetchLimit)
	assert.Equal(t, 2, cfg.Thumbnail.GroupSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Thumbnail.GroupPause)
	assert.True(t, cfg.UserPreferences.ThumbnailPreview)
	assert.True(t, cfg.UserPreferences.AutoRefresh)
	assert.Equal(t, 5*time.Minute, cfg.UserPreferences.AutoRefreshInterval)
	assert.False(t, cfg.RedisClient.Enabled())
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	writeFile(t, path, `{
		"app": {"dataDir": "`+filepath.ToSlash(dir)+`"},
		"feed": {"batchSize": 10, "batchPause": "250ms"},
		"cache": {"maxAge": "1h"},
		"redisClient": {"host": "localhost"}
	}`)
	t.Setenv("YTSUB_THUMBNAIL_CAPACITY", "7")

	var cfg Config
	require.NoError(t, loadInto(viper.New(), path, &cfg))

	assert.Equal(t, 10, cfg.Feed.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Feed.BatchPause)
	assert.Equal(t, time.Hour, cfg.Cache.MaxAge)
	assert.Equal(t, 7, cfg.Thumbnail.Capacity)
	assert.True(t, cfg.RedisClient.Enabled())
	assert.Equal(t, "localhost:6379", cfg.RedisClient.Addr())
	assert.Equal(t, filepath.Join(dir, "subscriptions.csv"), cfg.App.SubscriptionsFile)
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"feed": `)

	var cfg Config
	err := loadInto(viper.New(), path, &cfg)
	assert.Error(t, err)
}

func TestNormalize_RepairsInvalidNumbers(t *testing.T) {
	cfg := Config{App: App{DataDir: "/data"}}
	cfg.Feed.BatchSize = -1
	cfg.Feed.BatchPause = -time.Second

	normalize(&cfg)

	assert.Equal(t, 50, cfg.Feed.BatchSize)
	assert.Equal(t, time.Duration(0), cfg.Feed.BatchPause)
	assert.Equal(t, 100, cfg.Thumbnail.Capacity)
	assert.Equal(t, 2, cfg.Thumbnail.GroupSize)
}

func TestParseFlags_OverridesConfig(t *testing.T) {
	v := viper.New()
	flags, _, err := ParseFlags(v, []string{"--no-cache", "--limit", "5", "--add", "https://www.youtube.com/@x"})
	require.NoError(t, err)

	var cfg Config
	require.NoError(t, loadInto(v, filepath.Join(t.TempDir(), "none.json"), &cfg))

	assert.Equal(t, "https://www.youtube.com/@x", flags.AddURL)
	assert.True(t, cfg.Cache.Disabled)
	assert.Equal(t, 5, cfg.Feed.MaxChannels)
}

func TestParseFlags_Unknown(t *testing.T) {
	_, _, err := ParseFlags(viper.New(), []string{"--bogus"})
	assert.Error(t, err)
}

func TestDatabase_PsqlDSN(t *testing.T) {
	d := Database{Psql: Db{Name: "yt", Host: "db", Port: "5432", User: "u", Password: "p", SSLMode: "disable"}}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=yt sslmode=disable", d.PsqlDSN())
}

func TestLoadEnvFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	writeFile(t, path, "# comment\n\nYTSUB_TEST_A=\"one\"\nexport YTSUB_TEST_B=two\nbroken\nYTSUB_TEST_C=keep\n")
	t.Setenv("YTSUB_TEST_C", "original")
	os.Unsetenv("YTSUB_TEST_A")
	os.Unsetenv("YTSUB_TEST_B")
	defer os.Unsetenv("YTSUB_TEST_A")
	defer os.Unsetenv("YTSUB_TEST_B")

	loaded := LoadEnvFromFile(path, filepath.Join(t.TempDir(), "missing.env"))

	assert.ElementsMatch(t, []string{"YTSUB_TEST_A", "YTSUB_TEST_B"}, loaded)
	assert.Equal(t, "one", os.Getenv("YTSUB_TEST_A"))
	assert.Equal(t, "two", os.Getenv("YTSUB_TEST_B"))
	assert.Equal(t, "original", os.Getenv("YTSUB_TEST_C"))
}
