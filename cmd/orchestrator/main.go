// Copyright 2025 James Ross
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/reelvault/mediaserver/internal/actors"
	"github.com/reelvault/mediaserver/internal/adminapi"
	"github.com/reelvault/mediaserver/internal/config"
	"github.com/reelvault/mediaserver/internal/cursor"
	"github.com/reelvault/mediaserver/internal/dispatcher"
	"github.com/reelvault/mediaserver/internal/events"
	"github.com/reelvault/mediaserver/internal/ids"
	"github.com/reelvault/mediaserver/internal/library"
	"github.com/reelvault/mediaserver/internal/mediaio"
	"github.com/reelvault/mediaserver/internal/obs"
	"github.com/reelvault/mediaserver/internal/queue"
	"github.com/reelvault/mediaserver/internal/ratelimit"
	"github.com/reelvault/mediaserver/internal/reaper"
	"github.com/reelvault/mediaserver/internal/redisclient"
	"github.com/reelvault/mediaserver/internal/store"
	"github.com/reelvault/mediaserver/internal/watcher"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Exit codes follow BSD sysexits.h, as the teacher's CLI does for fatal
// startup errors.
const (
	exitUsage       = 64
	exitUnavailable = 69
	exitSoftware    = 70
)

var version = "dev"

func main() {
	var role, configPath, adminCmd, adminJobID string
	var showVersion bool
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&role, "role", "orchestrator", "Role to run: orchestrator|admin")
	fs.StringVar(&configPath, "config", "config/config.yaml", "Path to YAML config")
	fs.StringVar(&adminCmd, "admin-cmd", "", "Admin command: stats|get|cancel|requeue-dead-letter")
	fs.StringVar(&adminJobID, "job", "", "Job id for admin get|cancel|requeue-dead-letter")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	_ = fs.Parse(os.Args[1:])

	if showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(exitUsage)
	}

	log, err := obs.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(exitUsage)
	}
	defer log.Sync()

	tp, err := obs.MaybeInitTracing(cfg)
	if err != nil {
		log.Warn("tracing init failed", obs.Err(err))
	}
	if tp != nil {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	rdb := redisclient.New(cfg)
	defer rdb.Close()

	st := store.NewRedisStore(rdb, cfg.Redis.KeyPrefix)
	q := queue.NewService(st, cfg, log)

	if role == "admin" {
		runAdmin(context.Background(), q, log, adminCmd, adminJobID)
		return
	}

	if role != "orchestrator" {
		log.Fatal("unknown role", obs.String("role", role))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	readyCheck := func(c context.Context) error { return redisclient.Ping(c, rdb) }
	httpSrv := obs.StartHTTPServer(cfg, readyCheck)
	defer func() { _ = httpSrv.Shutdown(context.Background()) }()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("signal received, shutting down", obs.String("signal", sig.String()))
		cancel()
		select {
		case sig2 := <-sigCh:
			log.Warn("second signal received, exiting immediately", obs.String("signal", sig2.String()))
			os.Exit(1)
		case <-time.After(5 * time.Second):
		}
	}()

	obs.StartQueueSnapshotUpdater(ctx, cfg, st, log)

	bus := events.NewBus()
	defer bus.Close()
	if cfg.Observability.Tracing.Enabled {
		jobEvents, unsubscribe := bus.SubscribeJobs()
		defer unsubscribe()
		sink := events.NewRedisStreamSink(rdb, cfg.Redis.KeyPrefix+":events", 10000, log)
		go sink.Run(ctx, jobEvents)
	}

	collaborators, err := buildCollaborators(cfg, rdb)
	if err != nil {
		log.Fatal("failed to build collaborators", obs.Err(err))
	}
	table := actors.NewTable(collaborators, cfg.Budget.ScanBatchSize, cfg.Budget.LibraryScanLimit)

	mgr := dispatcher.NewManager(cfg, q, table, bus, log)
	go mgr.Run(ctx)

	rep := reaper.New(st, q, cfg.Lease.SweepInterval, log)
	go rep.Run(ctx)

	libs := library.NewRegistry(cfg.Libraries)

	w, err := watcher.New(q, cfg.Watch.DebounceWindow, cfg.Watch.MaxBatchEvents, log)
	if err != nil {
		log.Fatal("failed to start watcher", obs.Err(err))
	}
	defer w.Close()
	for _, lib := range libs.Enabled() {
		for _, root := range lib.RootPaths {
			if err := w.AddLibrary(lib.ID, root); err != nil {
				log.Warn("failed to watch library root",
					obs.String("library_id", lib.ID), obs.String("root", root), obs.Err(err))
			}
		}
	}
	go w.Run(ctx)

	admin, err := adminapi.NewServer(cfg, q, libs, log)
	if err != nil {
		log.Fatal("failed to build admin api", obs.Err(err))
	}
	go func() {
		if err := admin.Start(); err != nil && err != http.ErrServerClosed {
			log.Error("admin api error", obs.Err(err))
			cancel()
		}
	}()
	defer func() { _ = admin.Shutdown(context.Background()) }()

	log.Info("orchestrator running", obs.String("version", version))
	<-ctx.Done()
	log.Info("orchestrator stopped")
}

// buildCollaborators wires the real actors.Collaborators bundle: a local
// filesystem walker, an ffprobe-backed technical probe, a TMDB-shaped
// metadata provider, a Redis-hash catalog writer, and a content-addressed
// disk image cache.
func buildCollaborators(cfg *config.Config, rdb *redis.Client) (actors.Collaborators, error) {
	probeBin := mediaio.ResolveFFprobeBin(cfg.MediaIO.FFprobeBin, cfg.MediaIO.FFmpegBin)
	images, err := mediaio.NewDiskImageCache(cfg.MediaIO.ImageCacheDir, nil, "")
	if err != nil {
		return actors.Collaborators{}, err
	}
	return actors.Collaborators{
		Walker:      mediaio.NewWalker(),
		Probe:       mediaio.NewFFProbe(probeBin, cfg.MediaIO.ProbeTimeout),
		Metadata:    mediaio.NewTMDBProvider(cfg.MetadataLimits.BaseURL, cfg.MetadataLimits.APIKey, cfg.MetadataLimits.RequestTimeout),
		Catalog:     mediaio.NewRedisCatalogWriter(rdb, cfg.Redis.KeyPrefix),
		Images:      images,
		Cursors:     cursor.NewRepository(rdb, cfg.Redis.KeyPrefix),
		MetaLimit:   ratelimit.New(cfg.MetadataLimits.MaxQPS, cfg.MetadataLimits.MaxConcurrency),
		SeriesLimit: ratelimit.New(0, cfg.Concurrency.MaxParallelSeriesResolve),
		DeviceLimit: ratelimit.NewKeyedGate(cfg.Concurrency.MaxParallelScansPerDevice),
	}, nil
}

func runAdmin(ctx context.Context, q queue.Service, log *zap.Logger, cmd, jobIDStr string) {
	switch cmd {
	case "stats":
		snap, err := q.Snapshot(ctx)
		if err != nil {
			log.Error("admin stats error", obs.Err(err))
			os.Exit(exitUnavailable)
		}
		printJSON(snap)
	case "get", "cancel", "requeue-dead-letter":
		if jobIDStr == "" {
			fmt.Fprintln(os.Stderr, "admin", cmd, "requires --job")
			os.Exit(exitUsage)
		}
		jobID, err := ids.Parse(jobIDStr)
		if err != nil {
			fmt.Fprintln(os.Stderr, "invalid job id:", err)
			os.Exit(exitUsage)
		}
		runJobAdmin(ctx, q, log, cmd, jobID)
	default:
		fmt.Fprintln(os.Stderr, "unknown admin command:", cmd)
		os.Exit(exitUsage)
	}
}

func runJobAdmin(ctx context.Context, q queue.Service, log *zap.Logger, cmd string, id uuid.UUID) {
	switch cmd {
	case "get":
		job, err := q.GetJob(ctx, id)
		if err != nil {
			log.Error("admin get error", obs.Err(err))
			os.Exit(exitSoftware)
		}
		printJSON(job)
	case "cancel":
		if err := q.CancelJob(ctx, id); err != nil {
			log.Error("admin cancel error", obs.Err(err))
			os.Exit(exitSoftware)
		}
		fmt.Println("job cancelled")
	case "requeue-dead-letter":
		if err := q.RequeueDeadLetter(ctx, id); err != nil {
			log.Error("admin requeue-dead-letter error", obs.Err(err))
			os.Exit(exitSoftware)
		}
		fmt.Println("job requeued")
	}
}

func printJSON(v interface{}) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
