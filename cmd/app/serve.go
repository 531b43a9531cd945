package main

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "os"
    "path/filepath"
    "time"

    "github.com/rs/zerolog/log"
    "github.com/spf13/cobra"

    "github.com/local/bookletizer/internal/dispatcher"
    "github.com/local/bookletizer/internal/metrics"
    "github.com/local/bookletizer/internal/orchestrator"
    "github.com/local/bookletizer/internal/pipeline"
    "github.com/local/bookletizer/internal/queue"
    "github.com/local/bookletizer/internal/statuscheck"
    "github.com/local/bookletizer/internal/storage"
    "github.com/local/bookletizer/internal/store"
)

func newServeCmd(a *app) *cobra.Command {
    var (
        port     string
        noWorker bool
    )

    cmd := &cobra.Command{
        Use:   "serve",
        Short: "Run the HTTP API and the imposition workers",
        Long: `Accepts booklet jobs over HTTP, queues them in Redis and processes them with
WORKER_CONCURRENCY workers. Finished booklets are served from WORK_DIR and,
when S3_BUCKET is set, uploaded to S3.`,
        Args: cobra.NoArgs,
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg := a.cfg
            if port != "" { cfg.Server.Port = port }
            ctx := cmd.Context()

            rq, err := queue.NewRedisQueue(cfg.Queue.RedisURL, cfg.Queue.Stream, cfg.Queue.Group, cfg.Queue.PollInterval)
            if err != nil { return fmt.Errorf("queue: %w", err) }
            defer rq.Close()
            rs, err := store.NewRedisStatus(cfg.Queue.RedisURL, cfg.Queue.StatusTTL)
            if err != nil { return fmt.Errorf("status store: %w", err) }
            defer rs.Close()

            metrics.Init()

            jobsDir := filepath.Join(cfg.Worker.WorkDir, "jobs")
            uploadsDir := filepath.Join(cfg.Worker.WorkDir, "uploads")

            template := pipeline.Request{
                Render:         cfg.Render,
                Output:         cfg.Output,
                GroupParallel:  cfg.Worker.GroupParallel,
                Creator:        a.creator(),
                MaxSourceBytes: int64(cfg.Server.MaxUploadMB) << 20,
            }
            checks := statuscheck.Options{Redis: rq, WorkDir: cfg.Worker.WorkDir}
            if cfg.Storage.Bucket != "" {
                s3c, err := storage.NewS3Client(ctx, cfg.Storage)
                if err != nil { return fmt.Errorf("storage: %w", err) }
                template.Fetcher = s3c
                template.Uploader = s3c
                checks.Storage = s3c
            } else {
                log.Warn().Msg("S3_BUCKET not set: s3:// sources and uploads are disabled")
            }

            var worker *dispatcher.Worker
            if !noWorker {
                consumer, _ := os.Hostname()
                if consumer == "" { consumer = appName }
                proc := dispatcher.NewBookletProcessor(template, jobsDir)
                worker = dispatcher.New(dispatcher.ConfigFrom(cfg, consumer), rq, rs, proc)
                if template.Uploader != nil {
                    worker.WithBreaker(dispatcher.NewCircuitBreaker(rq.Client(), 30*time.Second, 5*time.Minute))
                }
                worker.Start()
            }

            orch := orchestrator.New(orchestrator.Dependencies{
                Queue:          rq,
                Status:         rs,
                Ready:          statuscheck.New(checks),
                Defaults:       cfg.Imposition,
                UploadDir:      uploadsDir,
                MaxUploadBytes: template.MaxSourceBytes,
                TokenHash:      cfg.Server.APITokenHash,
                LinkSecret:     []byte(cfg.Server.LinkSecret),
                LinkTTL:        cfg.Server.LinkTTL,
                StorageEnabled: template.Uploader != nil,
            })
            mux := http.NewServeMux()
            orch.RegisterRoutes(mux)

            bg, stopBg := context.WithCancel(ctx)
            defer stopBg()
            go orchestrator.RunJanitor(bg, 10*time.Minute, cfg.Queue.StatusTTL, jobsDir, uploadsDir)
            go reportDepths(bg, rq, 15*time.Second)

            srv := &http.Server{
                Addr:         ":" + cfg.Server.Port,
                Handler:      mux,
                ReadTimeout:  cfg.Server.ReadTimeout,
                WriteTimeout: cfg.Server.WriteTimeout,
            }
            errc := make(chan error, 1)
            go func() {
                log.Info().Str("port", cfg.Server.Port).Bool("worker", worker != nil).Msg("HTTP server listening")
                if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
                    errc <- err
                }
                close(errc)
            }()

            var serveErr error
            select {
            case <-ctx.Done():
                log.Info().Msg("shutting down")
            case serveErr = <-errc:
                if serveErr != nil {
                    log.Error().Err(serveErr).Msg("HTTP server failed")
                }
            }

            shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
            defer cancel()
            _ = srv.Shutdown(shutdownCtx)
            if worker != nil {
                if err := worker.Stop(shutdownCtx); err != nil {
                    log.Warn().Err(err).Msg("workers did not stop in time")
                }
            }
            return serveErr
        },
    }
    cmd.Flags().StringVarP(&port, "port", "p", "", "Listen port (overrides PORT)")
    cmd.Flags().BoolVar(&noWorker, "no-worker", false, "Serve the API only; jobs are processed elsewhere")
    return cmd
}

// reportDepths publishes queue backlog gauges until ctx ends.
func reportDepths(ctx context.Context, rq *queue.RedisQueue, every time.Duration) {
    t := time.NewTicker(every)
    defer t.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-t.C:
            stream, delayed, dlq, err := rq.Depths(ctx)
            if err != nil {
                log.Debug().Err(err).Msg("queue depth unavailable")
                continue
            }
            metrics.SetQueueDepth("stream", stream)
            metrics.SetQueueDepth("delayed", delayed)
            metrics.SetQueueDepth("dlq", dlq)
        }
    }
}
