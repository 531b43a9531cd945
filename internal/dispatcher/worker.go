package dispatcher

import (
    "context"
    "errors"
    "fmt"
    "maps"
    "sync"
    "sync/atomic"
    "time"

    "github.com/rs/zerolog/log"

    cfgpkg "github.com/local/bookletizer/internal/config"
    "github.com/local/bookletizer/internal/logger"
    "github.com/local/bookletizer/internal/metrics"
    "github.com/local/bookletizer/internal/pipeline"
    "github.com/local/bookletizer/internal/queue"
    "github.com/local/bookletizer/internal/store"
)

type Queue interface {
    Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, *queue.Job, error)
    Ack(ctx context.Context, msgID string) error
    IsCancelled(ctx context.Context, jobID string) (bool, error)
    IsDone(ctx context.Context, jobID string) (bool, error)
    MarkDone(ctx context.Context, jobID string, ttl time.Duration) error
    EnqueueDelayed(ctx context.Context, job queue.Job, executeAt time.Time) error
    AddDLQ(ctx context.Context, job queue.Job, reason string) error
}

type StatusStore interface {
    Set(ctx context.Context, jobID string, st store.Status) error
    Get(ctx context.Context, jobID string) (store.Status, bool, error)
}

// Outcome is what a successful job produced.
type Outcome struct {
    Pages    int
    Booklets int
    Files    []string
    Uploaded []string
}

// Processor runs one job. progress reports finished booklets.
type Processor interface {
    Process(ctx context.Context, job queue.Job, progress func(done, total int)) (Outcome, error)
}

type Config struct {
    Concurrency    int
    Consumer       string
    PollTimeout    time.Duration
    JobTimeout     time.Duration
    MaxAttempts    int
    RetryBaseDelay time.Duration
    MaxRetryDelay  time.Duration
    CancelPoll     time.Duration
    DoneTTL        time.Duration
}

// ConfigFrom derives worker settings from the service configuration.
func ConfigFrom(c cfgpkg.Config, consumer string) Config {
    return Config{
        Concurrency:    c.Worker.Concurrency,
        Consumer:       consumer,
        PollTimeout:    2 * time.Second,
        JobTimeout:     c.Worker.JobTimeout,
        MaxAttempts:    c.Worker.JobMaxAttempts,
        RetryBaseDelay: c.Worker.RetryBaseDelay,
        MaxRetryDelay:  5 * time.Minute,
        CancelPoll:     c.Queue.PollInterval,
        DoneTTL:        c.Queue.StatusTTL,
    }
}

type Worker struct {
    cfg     Config
    q       Queue
    status  StatusStore
    proc    Processor
    breaker Breaker
    now     func() time.Time

    stop       chan struct{}
    stopOnce   sync.Once
    wg         sync.WaitGroup
    base       context.Context
    cancelBase context.CancelFunc
}

func New(cfg Config, q Queue, status StatusStore, proc Processor) *Worker {
    if cfg.Concurrency <= 0 { cfg.Concurrency = 2 }
    if cfg.Consumer == "" { cfg.Consumer = "worker" }
    if cfg.PollTimeout <= 0 { cfg.PollTimeout = 2 * time.Second }
    if cfg.JobTimeout <= 0 { cfg.JobTimeout = 15 * time.Minute }
    if cfg.MaxAttempts <= 0 { cfg.MaxAttempts = 1 }
    if cfg.RetryBaseDelay <= 0 { cfg.RetryBaseDelay = 2 * time.Second }
    if cfg.MaxRetryDelay <= 0 { cfg.MaxRetryDelay = 5 * time.Minute }
    if cfg.CancelPoll <= 0 { cfg.CancelPoll = 500 * time.Millisecond }
    base, cancel := context.WithCancel(context.Background())
    return &Worker{cfg: cfg, q: q, status: status, proc: proc, now: time.Now,
        stop: make(chan struct{}), base: base, cancelBase: cancel}
}

// WithBreaker defers upload jobs while the storage breaker is open.
func (w *Worker) WithBreaker(b Breaker) *Worker {
    w.breaker = b
    return w
}

func (w *Worker) Start() {
    for i := 0; i < w.cfg.Concurrency; i++ {
        w.wg.Add(1)
        go w.loop(i)
    }
}

// Stop waits for in-flight jobs. When ctx expires first they are cancelled
// and re-queued.
func (w *Worker) Stop(ctx context.Context) error {
    w.stopOnce.Do(func() { close(w.stop) })
    done := make(chan struct{})
    go func() { w.wg.Wait(); close(done) }()
    select {
    case <-done:
        w.cancelBase()
        return nil
    case <-ctx.Done():
        w.cancelBase()
        <-done
        return ctx.Err()
    }
}

func (w *Worker) loop(id int) {
    defer w.wg.Done()
    consumer := fmt.Sprintf("%s-%d", w.cfg.Consumer, id)
    log.Info().Int("worker", id).Str("consumer", consumer).Msg("dispatcher worker started")
    for {
        select {
        case <-w.stop:
            log.Info().Int("worker", id).Msg("dispatcher worker stopped")
            return
        default:
        }

        msgID, job, err := w.q.Dequeue(w.base, consumer, w.cfg.PollTimeout)
        if err != nil {
            if w.base.Err() != nil { return }
            log.Error().Err(err).Msg("queue dequeue error")
            time.Sleep(500 * time.Millisecond)
            continue
        }
        if job == nil { continue }

        w.handle(w.base, *job)
        // retries go back through the delayed set as new messages
        if err := w.q.Ack(context.WithoutCancel(w.base), msgID); err != nil {
            log.Error().Err(err).Str("job_id", job.ID).Str("msg_id", msgID).Msg("ack failed")
        }
    }
}

// handle runs one job to a terminal state or schedules its retry.
func (w *Worker) handle(ctx context.Context, job queue.Job) {
    lg := logger.Job(job.ID)
    // bookkeeping must survive a shutdown that cancels ctx
    bg := context.WithoutCancel(ctx)

    if done, _ := w.q.IsDone(bg, job.ID); done {
        lg.Info().Msg("job already completed; skipping duplicate")
        return
    }

    prev, _, err := w.status.Get(bg, job.ID)
    if err != nil {
        lg.Warn().Err(err).Msg("status lookup failed")
    }

    if cancelled, _ := w.q.IsCancelled(bg, job.ID); cancelled {
        lg.Warn().Msg("job cancelled before processing; skipping")
        w.terminal(bg, job, prev, store.StateCancelled, "cancelled before processing", nil)
        metrics.IncProcessed("cancelled")
        return
    }

    if job.Upload && w.breaker != nil {
        if open, retryAt := w.breaker.IsOpen(bg, breakerStorage); open {
            lg.Warn().Time("retry_at", retryAt).Msg("storage breaker open; deferring job")
            w.requeue(bg, job, prev, retryAt, "storage unavailable")
            return
        }
    }

    st := prev
    st.Status = store.StateProcessing
    st.Progress = 0
    st.Message = fmt.Sprintf("attempt %d of %d", job.Attempt, w.cfg.MaxAttempts)
    if st.Start == nil {
        start := w.now()
        st.Start = &start
    }
    st.Metadata = withMeta(st.Metadata, map[string]any{"attempt": job.Attempt})
    if err := w.status.Set(bg, job.ID, st); err != nil {
        lg.Warn().Err(err).Msg("status update failed")
    }
    lg.Info().Int("attempt", job.Attempt).Str("source", job.Source).Msg("job started")

    jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
    defer cancel()
    var cancelled atomic.Bool
    stopWatch := w.watchCancel(jobCtx, job.ID, &cancelled, cancel)

    began := w.now()
    out, err := w.proc.Process(jobCtx, job, func(done, total int) {
        // a cancel request owns the status from here on
        if cancelled.Load() || jobCtx.Err() != nil { return }
        if c, _ := w.q.IsCancelled(bg, job.ID); c {
            cancelled.Store(true)
            cancel()
            return
        }
        p := st
        if total > 0 { p.Progress = min(99, done*100/total) }
        p.Message = fmt.Sprintf("booklet %d of %d written", done, total)
        _ = w.status.Set(bg, job.ID, p)
    })
    stopWatch()

    switch {
    case err == nil:
        meta := map[string]any{"pages": out.Pages, "booklets": out.Booklets}
        if len(out.Uploaded) > 0 { meta["uploaded"] = out.Uploaded }
        st.Files = out.Files
        st.Metadata = withMeta(st.Metadata, meta)
        w.terminal(bg, job, st, store.StateSuccess, fmt.Sprintf("%d booklets written", out.Booklets), nil)
        if err := w.q.MarkDone(bg, job.ID, w.cfg.DoneTTL); err != nil {
            lg.Warn().Err(err).Msg("mark done failed")
        }
        if job.Upload && w.breaker != nil { w.breaker.Close(bg, breakerStorage) }
        metrics.IncProcessed("success")
        lg.Info().Int("booklets", out.Booklets).Dur("took", w.now().Sub(began)).Msg("job completed")

    case cancelled.Load():
        lg.Warn().Msg("job cancelled while processing")
        w.terminal(bg, job, st, store.StateCancelled, "cancelled", nil)
        metrics.IncProcessed("cancelled")

    case ctx.Err() != nil:
        // worker shutdown: same attempt, picked up again after restart
        lg.Warn().Err(err).Msg("job interrupted by shutdown; re-queueing")
        w.requeue(bg, job, st, w.now(), "interrupted by shutdown")

    default:
        var upErr *pipeline.UploadError
        if errors.As(err, &upErr) && w.breaker != nil { w.breaker.Open(bg, breakerStorage) }
        w.fail(bg, job, st, classify(job.ID, job.Attempt, err))
    }
}

func (w *Worker) fail(ctx context.Context, job queue.Job, st store.Status, jerr *JobError) {
    lg := logger.Job(job.ID)
    if !jerr.Fatal && job.Attempt < w.cfg.MaxAttempts {
        delay := w.retryDelay(job.Attempt, jerr.Err)
        next := job
        next.Attempt++
        lg.Warn().Err(jerr.Err).Int("attempt", job.Attempt).Dur("delay", delay).Msg("job failed; retry scheduled")
        w.requeue(ctx, next, st, w.now().Add(delay), jerr.Err.Error())
        metrics.IncRetry()
        return
    }
    lg.Error().Err(jerr.Err).Bool("fatal", jerr.Fatal).Int("attempt", job.Attempt).Msg("job failed")
    w.terminal(ctx, job, st, store.StateFailed, jerr.Error(), jerr)
    if err := w.q.AddDLQ(ctx, job, jerr.Error()); err != nil {
        lg.Error().Err(err).Msg("dlq write failed")
    }
    metrics.IncProcessed("failed")
}

// retryDelay grows linearly for transient errors and exponentially otherwise.
func (w *Worker) retryDelay(attempt int, err error) time.Duration {
    d := w.cfg.RetryBaseDelay * time.Duration(attempt)
    if !isTransientError(err) { d = cooldown(w.cfg.RetryBaseDelay, w.cfg.MaxRetryDelay, attempt+1) }
    return min(d, w.cfg.MaxRetryDelay)
}

func (w *Worker) requeue(ctx context.Context, job queue.Job, st store.Status, at time.Time, reason string) {
    if err := w.q.EnqueueDelayed(ctx, job, at); err != nil {
        logger.Job(job.ID).Error().Err(err).Msg("re-queue failed")
        w.terminal(ctx, job, st, store.StateFailed, "re-queue failed: "+err.Error(), err)
        metrics.IncProcessed("failed")
        return
    }
    st.Status = store.StateQueued
    st.Message = fmt.Sprintf("attempt %d scheduled for %s: %s", job.Attempt, at.UTC().Format(time.RFC3339), reason)
    _ = w.status.Set(ctx, job.ID, st)
}

func (w *Worker) terminal(ctx context.Context, job queue.Job, st store.Status, state, msg string, err error) {
    end := w.now()
    st.Status = state
    st.Message = msg
    st.End = &end
    if state == store.StateSuccess { st.Progress = 100 }
    if err != nil { st.Metadata = withMeta(st.Metadata, map[string]any{"error": err.Error()}) }
    if serr := w.status.Set(ctx, job.ID, st); serr != nil {
        logger.Job(job.ID).Warn().Err(serr).Str("state", state).Msg("status update failed")
    }
}

// watchCancel polls the cancel set and cancels the job context when the job
// shows up there. The returned func stops the poller.
func (w *Worker) watchCancel(ctx context.Context, jobID string, flag *atomic.Bool, cancel context.CancelFunc) func() {
    done := make(chan struct{})
    exited := make(chan struct{})
    go func() {
        defer close(exited)
        t := time.NewTicker(w.cfg.CancelPoll)
        defer t.Stop()
        for {
            select {
            case <-done:
                return
            case <-ctx.Done():
                return
            case <-t.C:
                if c, err := w.q.IsCancelled(ctx, jobID); err == nil && c {
                    flag.Store(true)
                    cancel()
                    return
                }
            }
        }
    }()
    var once sync.Once
    return func() {
        once.Do(func() { close(done) })
        <-exited
    }
}

func withMeta(m map[string]any, add map[string]any) map[string]any {
    out := make(map[string]any, len(m)+len(add))
    maps.Copy(out, m)
    maps.Copy(out, add)
    return out
}
