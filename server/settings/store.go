package settings

import (
	"encoding/json"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"downpour/server/config"
)

var (
	bucket = []byte("settings")
	key    = []byte("current")
)

// Settings are the user-mutable preferences, persisted on every change.
// A single writer (the HTTP handler) mutates them.
type Settings struct {
	DownloadDir string `json:"download_dir"`
	Preset      string `json:"preset"`
	Concurrency int    `json:"concurrency"`
	AutoOpen    bool   `json:"auto_open"`
}

func Defaults() Settings {
	dir := config.Instance().Paths.DownloadPath
	if dir == "" || dir == "." {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dir = filepath.Join(home, "Downloads")
	}

	concurrency := config.Instance().Queue.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}

	return Settings{
		DownloadDir: dir,
		Preset:      "best",
		Concurrency: concurrency,
	}
}

// clamp mirrors the sanitizing the desktop app applied on load.
func clamp(s Settings) Settings {
	if s.Concurrency < 1 {
		s.Concurrency = 1
	}
	if s.Concurrency > 5 {
		s.Concurrency = 5
	}
	if s.DownloadDir == "" {
		s.DownloadDir = Defaults().DownloadDir
	}
	if s.Preset == "" {
		s.Preset = Defaults().Preset
	}
	return s
}

type Store struct {
	db *bolt.DB
}

func NewStore(db *bolt.DB) (*Store, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Load returns the persisted settings, falling back to defaults for a
// fresh database or an unreadable payload.
func (s *Store) Load() Settings {
	current := Defaults()

	s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get(key)
		if v == nil {
			return nil
		}
		json.Unmarshal(v, &current)
		return nil
	})

	return clamp(current)
}

func (s *Store) Save(settings Settings) (Settings, error) {
	settings = clamp(settings)

	data, err := json.Marshal(settings)
	if err != nil {
		return settings, err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(key, data)
	})

	return settings, err
}
