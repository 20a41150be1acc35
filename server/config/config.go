package config

import (
	"path/filepath"
	"sync"
	"time"
)

type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Paths   PathsConfig   `yaml:"paths" mapstructure:"paths"`
	Queue   QueueConfig   `yaml:"queue" mapstructure:"queue"`
	path    string
}

type ServerConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Host    string `yaml:"host" mapstructure:"host"`
	Port    int    `yaml:"port" mapstructure:"port"`
}

type LoggingConfig struct {
	LogPath           string `yaml:"log_path" mapstructure:"log_path"`
	EnableFileLogging bool   `yaml:"enable_file_logging" mapstructure:"enable_file_logging"`
}

type PathsConfig struct {
	DownloadPath      string `yaml:"download_path" mapstructure:"download_path"`
	DownloaderPath    string `yaml:"downloader_path" mapstructure:"downloader_path"`
	FFmpegPath        string `yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	ToolsPath         string `yaml:"tools_path" mapstructure:"tools_path"`
	PresetsPath       string `yaml:"presets_path" mapstructure:"presets_path"`
	LocalDatabasePath string `yaml:"local_database_path" mapstructure:"local_database_path"`
	SessionFilePath   string `yaml:"session_file_path" mapstructure:"session_file_path"`
}

type QueueConfig struct {
	Concurrency int           `yaml:"concurrency" mapstructure:"concurrency"`
	KillGrace   time.Duration `yaml:"kill_grace" mapstructure:"kill_grace"`
}

var (
	instance     *Config
	instanceOnce sync.Once
)

func Instance() *Config {
	if instance == nil {
		instanceOnce.Do(func() {
			instance = &Config{}
			instance.Queue.KillGrace = time.Second * 5
		})
	}
	return instance
}

func (c *Config) SetPath(path string) { c.path = path }

// Path of the directory containing the config file
func (c *Config) Dir() string { return filepath.Dir(c.path) }

// Absolute path of the config file
func (c *Config) Path() string { return c.path }
