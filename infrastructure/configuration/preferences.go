package configuration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/frankmarazita/yt-subscription-cli/infrastructure/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Preferences are the toggles a user flips from inside the session.
type Preferences struct {
	ThumbnailPreview bool `json:"thumbnailPreview"`
	AutoRefresh      bool `json:"autoRefresh"`
}

// PreferenceStore persists Preferences in <dir>/config.json under "userPreferences".
// It owns its own viper instance so saving never rewrites the main configuration.
type PreferenceStore struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
}

func NewPreferenceStore(dir string, defaults Preferences) *PreferenceStore {
	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, "config.json"))
	v.SetConfigType("json")
	v.SetDefault("userPreferences.thumbnailPreview", defaults.ThumbnailPreview)
	v.SetDefault("userPreferences.autoRefresh", defaults.AutoRefresh)
	return &PreferenceStore{v: v, path: filepath.Join(dir, "config.json")}
}

// Load reads the file, creating it with defaults when it does not exist.
func (s *PreferenceStore) Load() (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				logger.GetLogger().WithField("error", err).Warn("Invalid preferences file, using defaults")
			}
		}
		if err := s.writeLocked(); err != nil {
			return s.currentLocked(), err
		}
	}
	return s.currentLocked(), nil
}

// Save writes p, replacing the previous values.
func (s *PreferenceStore) Save(p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set("userPreferences.thumbnailPreview", p.ThumbnailPreview)
	s.v.Set("userPreferences.autoRefresh", p.AutoRefresh)
	return s.writeLocked()
}

// Watch calls fn with the new values whenever the file changes on disk.
func (s *PreferenceStore) Watch(fn func(Preferences)) {
	s.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		s.mu.Lock()
		p := s.currentLocked()
		s.mu.Unlock()
		logger.GetLogger().WithField("file", e.Name).Debug("Preferences changed on disk")
		fn(p)
	})
	s.v.WatchConfig()
}

func (s *PreferenceStore) currentLocked() Preferences {
	return Preferences{
		ThumbnailPreview: s.v.GetBool("userPreferences.thumbnailPreview"),
		AutoRefresh:      s.v.GetBool("userPreferences.autoRefresh"),
	}
}

func (s *PreferenceStore) writeLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}
	s.v.Set("userPreferences.thumbnailPreview", s.v.GetBool("userPreferences.thumbnailPreview"))
	s.v.Set("userPreferences.autoRefresh", s.v.GetBool("userPreferences.autoRefresh"))
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}
