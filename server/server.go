package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/rpc"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/sync/errgroup"

	"downpour/server/archive"
	"downpour/server/config"
	"downpour/server/feed"
	"downpour/server/internal/downloader"
	"downpour/server/internal/events"
	"downpour/server/internal/kv"
	"downpour/server/internal/queue"
	"downpour/server/logging"
	"downpour/server/presets"
	"downpour/server/rest"
	downloadRPC "downpour/server/rpc"
	"downpour/server/settings"
	"downpour/server/status"
)

type serverConfig struct {
	db      *bolt.DB
	mdb     *kv.Store
	queue   *queue.Manager
	hub     *feed.Hub
	service *rest.Service
	args    *rest.ContainerArgs
}

func Run(ctx context.Context) error {
	conf := config.Instance()

	// ---- LOGGING ---------------------------------------------------
	logWriters := []io.Writer{os.Stdout}

	if conf.Logging.EnableFileLogging {
		logger, err := logging.NewRotatableLogger(conf.Logging.LogPath)
		if err != nil {
			return err
		}

		defer logger.Rotate()

		go func() {
			for {
				time.Sleep(time.Hour * 24)
				logger.Rotate()
			}
		}()

		logWriters = append(logWriters, logger)
	}

	logger := slog.New(slog.NewTextHandler(io.MultiWriter(logWriters...), &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	slog.SetDefault(logger)
	// ----------------------------------------------------------------

	dbPath := filepath.Join(conf.Paths.LocalDatabasePath, "downpour.db")

	boltdb, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return err
	}

	settingsStore, err := settings.NewStore(boltdb)
	if err != nil {
		return err
	}
	current := settingsStore.Load()

	archiveService, err := archive.Open(filepath.Join(conf.Paths.LocalDatabasePath, "history.db"))
	if err != nil {
		return err
	}

	// external tools, PATH first then the application-local directory
	downloaderBin, err := downloader.ResolveTool(conf.Paths.DownloaderPath, conf.Paths.ToolsPath)
	if err != nil {
		slog.Warn("downloader executable not found, downloads will fail until it appears",
			slog.String("name", conf.Paths.DownloaderPath),
		)
	}

	ffmpegBin, err := downloader.ResolveTool(conf.Paths.FFmpegPath, conf.Paths.ToolsPath)
	if err != nil {
		slog.Warn("ffmpeg not found, audio extraction disabled")
	}

	presetList, err := presets.Load(conf.Paths.PresetsPath)
	if err != nil {
		return err
	}

	bus := events.NewBus()
	mdb := kv.NewStore()

	if err := archiveService.Attach(bus); err != nil {
		return err
	}

	runner := downloader.NewRunner(downloaderBin, ffmpegBin, conf.Queue.KillGrace, bus)

	manager, err := queue.NewManager(current.Concurrency, runner.Start, bus)
	if err != nil {
		return err
	}

	if err := mdb.Restore(conf.Paths.SessionFilePath, manager.Submit); err != nil {
		slog.Warn("failed restoring previous session", slog.Any("err", err))
	}

	hub, err := feed.NewHub(bus)
	if err != nil {
		return err
	}

	args := &rest.ContainerArgs{
		MDB:           mdb,
		Queue:         manager,
		Settings:      settingsStore,
		Archive:       archiveService,
		Presets:       presetList,
		DownloaderBin: downloaderBin,
		FFmpegBin:     ffmpegBin,
	}

	scfg := serverConfig{
		db:      boltdb,
		mdb:     mdb,
		queue:   manager,
		hub:     hub,
		service: rest.ProvideService(args),
		args:    args,
	}

	srv := newServer(scfg)

	var (
		network = "tcp"
		address = fmt.Sprintf("%s:%d", conf.Server.Host, conf.Server.Port)
	)

	// support unix sockets
	if strings.HasPrefix(conf.Server.Host, "/") {
		network = "unix"
		address = conf.Server.Host
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		slog.Error("failed to listen", slog.String("err", err.Error()))
		return err
	}

	slog.Info("downpour started", slog.String("address", address))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		archiveService.Consume(gctx)
		return nil
	})

	g.Go(func() error {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		gracefulShutdown(srv, &scfg)
		return nil
	})

	return g.Wait()
}

func newServer(c serverConfig) *http.Server {
	service := downloadRPC.Container(c.service)
	rpc.Register(service)

	r := chi.NewRouter()

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	r.Use(corsMiddleware.Handler)

	// RPC handlers
	r.Route("/rpc", downloadRPC.ApplyRouter())

	// REST API handlers
	r.Route("/api/v1", rest.ApplyRouter(c.args))

	// Live progress feed
	r.Get("/feed", c.hub.Handler())

	// Status
	r.Route("/status", status.ApplyRouter(c.mdb, c.service))

	return &http.Server{Handler: r}
}

func gracefulShutdown(srv *http.Server, cfg *serverConfig) {
	slog.Info("shutdown signal received")

	cfg.queue.Stop()

	if err := cfg.mdb.Persist(config.Instance().Paths.SessionFilePath); err != nil {
		slog.Error("failed persisting session", slog.Any("err", err))
	}

	cfg.db.Close()
	cfg.args.Archive.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}
