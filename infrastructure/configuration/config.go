package configuration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/frankmarazita/yt-subscription-cli/infrastructure/logger"

	"github.com/spf13/viper"
)

const AppName = "yt-subscription-cli"

type Config struct {
	App             App             `json:"app"`
	Database        Database        `json:"database"`
	Feed            Feed            `json:"feed"`
	Cache           Cache           `json:"cache"`
	Thumbnail       Thumbnail       `json:"thumbnail"`
	RedisClient     RedisClient     `json:"redisClient"`
	Logger          Logger          `json:"logger"`
	UserPreferences UserPreferences `json:"userPreferences"`
}

type App struct {
	DataDir           string `json:"dataDir"`
	SubscriptionsFile string `json:"subscriptionsFile"`
}

type Database struct {
	// Driver is "sqlite" or "postgres".
	Driver string `json:"driver"`
	Path   string `json:"path"`
	Psql   Db     `json:"psql"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	SSLMode  string `json:"sslMode"`
}

type Feed struct {
	BaseURL     string        `json:"baseURL"`
	BatchSize   int           `json:"batchSize"`
	BatchPause  time.Duration `json:"batchPause"`
	MaxChannels int           `json:"maxChannels"`
	Timeout     time.Duration `json:"timeout"`
	UserAgent   string        `json:"userAgent"`
}

type Cache struct {
	MaxAge time.Duration `json:"maxAge"`
	// Disabled skips the freshness check so every start refetches.
	Disabled bool `json:"disabled"`
}

type Thumbnail struct {
	Capacity          int           `json:"capacity"`
	PrefetchLimit     int           `json:"prefetchLimit"`
	GroupSize         int           `json:"groupSize"`
	GroupPause        time.Duration `json:"groupPause"`
	RequestsPerSecond float64       `json:"requestsPerSecond"`
	Burst             int           `json:"burst"`
	RedisTTL          time.Duration `json:"redisTTL"`
	SmallBreakpoint   int           `json:"smallBreakpoint"`
	MediumBreakpoint  int           `json:"mediumBreakpoint"`
	LargeBreakpoint   int           `json:"largeBreakpoint"`
	MaxWidth          int           `json:"maxWidth"`
	MaxHeight         int           `json:"maxHeight"`
}

type RedisClient struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// Enabled reports whether a second tier cache was configured.
func (r RedisClient) Enabled() bool { return r.Host != "" }

func (r RedisClient) Addr() string {
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return fmt.Sprintf("%s:%s", r.Host, port)
}

type Logger struct {
	Level  string `json:"level"`
	Output string `json:"output"`
}

type UserPreferences struct {
	ThumbnailPreview    bool          `json:"thumbnailPreview"`
	AutoRefresh         bool          `json:"autoRefresh"`
	AutoRefreshInterval time.Duration `json:"autoRefreshInterval"`
}

var C Config

// DefaultDataDir is ~/.config/yt-subscription-cli, or the working directory when the home is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", AppName)
}

// SetDefaults registers every key so env overrides work for keys absent from the file.
func SetDefaults(v *viper.Viper) {
	dataDir := DefaultDataDir()
	v.SetDefault("app.dataDir", dataDir)
	v.SetDefault("app.subscriptionsFile", "subscriptions.csv")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", filepath.Join(dataDir, "app.db"))
	v.SetDefault("database.psql.name", "")
	v.SetDefault("database.psql.host", "")
	v.SetDefault("database.psql.port", "5432")
	v.SetDefault("database.psql.user", "")
	v.SetDefault("database.psql.password", "")
	v.SetDefault("database.psql.sslMode", "disable")

	v.SetDefault("feed.baseURL", "https://www.youtube.com/feeds/videos.xml")
	v.SetDefault("feed.batchSize", 50)
	v.SetDefault("feed.batchPause", 500*time.Millisecond)
	v.SetDefault("feed.maxChannels", 0)
	v.SetDefault("feed.timeout", 15*time.Second)
	v.SetDefault("feed.userAgent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")

	v.SetDefault("cache.maxAge", 30*time.Minute)
	v.SetDefault("cache.disabled", false)

	v.SetDefault("thumbnail.capacity", 100)
	v.SetDefault("thumbnail.prefetchLimit", 3)
	v.SetDefault("thumbnail.groupSize", 2)
	v.SetDefault("thumbnail.groupPause", 100*time.Millisecond)
	v.SetDefault("thumbnail.requestsPerSecond", 8.0)
	v.SetDefault("thumbnail.burst", 4)
	v.SetDefault("thumbnail.redisTTL", 24*time.Hour)
	v.SetDefault("thumbnail.smallBreakpoint", 30)
	v.SetDefault("thumbnail.mediumBreakpoint", 45)
	v.SetDefault("thumbnail.largeBreakpoint", 70)
	v.SetDefault("thumbnail.maxWidth", 60)
	v.SetDefault("thumbnail.maxHeight", 20)

	v.SetDefault("redisClient.host", "")
	v.SetDefault("redisClient.port", "6379")
	v.SetDefault("redisClient.password", "")
	v.SetDefault("redisClient.username", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output", "file")

	v.SetDefault("userPreferences.thumbnailPreview", true)
	v.SetDefault("userPreferences.autoRefresh", true)
	v.SetDefault("userPreferences.autoRefreshInterval", 5*time.Minute)
}

// LoadConfig reads config.json (or config-<ENV>.json, or an explicit file) into C.
// A missing file is not an error; defaults and YTSUB_* variables still apply.
func LoadConfig(explicitFile string) error {
	return loadInto(viper.GetViper(), explicitFile, &C)
}

func loadInto(v *viper.Viper, explicitFile string, out *Config) error {
	SetDefaults(v)
	name := getConfig()
	if explicitFile != "" {
		v.SetConfigFile(explicitFile)
	} else {
		v.SetConfigName(name)
		v.SetConfigType("json")
		v.AddConfigPath(".")
		v.AddConfigPath(DefaultDataDir())
	}
	v.SetEnvPrefix("YTSUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			logger.GetLogger().WithField("config", name).Debug("Config file not found, using defaults")
		} else {
			return fmt.Errorf("read config: %w", err)
		}
	} else {
		logger.GetLogger().WithField("config", v.ConfigFileUsed()).Debug("Config set up successfully")
	}

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	normalize(out)
	return nil
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

// normalize resolves relative paths against the data dir and repairs invalid numbers.
func normalize(c *Config) {
	if c.App.DataDir == "" {
		c.App.DataDir = DefaultDataDir()
	}
	if c.App.SubscriptionsFile != "" && !filepath.IsAbs(c.App.SubscriptionsFile) {
		if _, err := os.Stat(c.App.SubscriptionsFile); err != nil {
			c.App.SubscriptionsFile = filepath.Join(c.App.DataDir, c.App.SubscriptionsFile)
		}
	}
	if c.Feed.BatchSize <= 0 {
		c.Feed.BatchSize = 50
	}
	if c.Feed.BatchPause < 0 {
		c.Feed.BatchPause = 0
	}
	if c.Thumbnail.Capacity <= 0 {
		c.Thumbnail.Capacity = 100
	}
	if c.Thumbnail.GroupSize <= 0 {
		c.Thumbnail.GroupSize = 2
	}
	if c.UserPreferences.AutoRefreshInterval <= 0 {
		c.UserPreferences.AutoRefreshInterval = 5 * time.Minute
	}
}

// PsqlDSN builds the lib/pq connection string.
func (d Database) PsqlDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Psql.Host, d.Psql.Port, d.Psql.User, d.Psql.Password, d.Psql.Name, d.Psql.SSLMode)
}
