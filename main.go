package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/viper"

	"downpour/server"
	"downpour/server/config"
)

func main() {
	// Parse optional config path from flag
	var configFile string
	flag.StringVar(&configFile, "conf", "./config.yml", "Config file path")
	flag.Parse()

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 3055)
	v.SetDefault("paths.download_path", ".")
	v.SetDefault("paths.downloader_path", "yt-dlp")
	v.SetDefault("paths.ffmpeg_path", "ffmpeg")
	v.SetDefault("paths.tools_path", "")
	v.SetDefault("paths.presets_path", "")
	v.SetDefault("paths.local_database_path", ".")
	v.SetDefault("paths.session_file_path", ".")
	v.SetDefault("logging.log_path", "downpour.log")
	v.SetDefault("logging.enable_file_logging", false)
	v.SetDefault("queue.concurrency", 2)
	v.SetDefault("queue.kill_grace", "5s")

	// Env binding, DOWNPOUR_SERVER_PORT and friends
	v.SetEnvPrefix("DOWNPOUR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load YAML file if exists
	if err := v.ReadInConfig(); err != nil {
		slog.Debug("using defaults")
	}

	cfg := config.Instance()
	if err := v.Unmarshal(cfg); err != nil {
		slog.Error("failed to load config", "error", err)
	}
	cfg.SetPath(v.ConfigFileUsed())

	if cfg.Queue.Concurrency <= 0 {
		cfg.Queue.Concurrency = runtime.NumCPU()
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"concurrency", cfg.Queue.Concurrency,
	)

	if err := server.Run(ctx); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited cleanly")
}
