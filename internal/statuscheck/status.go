package statuscheck

import (
    "context"
    "errors"
    "os"
    "path/filepath"
    "time"
)

// Pinger models the minimal capability we need from a backend.
type Pinger interface {
    Ping(ctx context.Context) error
}

// Checker aggregates readiness checks for the service's dependencies.
type Checker struct {
    redis   Pinger
    storage Pinger
    workDir string
}

// Options configures the Checker. A nil Storage means uploads are disabled.
type Options struct {
    Redis   Pinger
    Storage Pinger
    WorkDir string
}

// Status represents the readiness of a subsystem.
type Status struct {
    OK      bool   `json:"ok"`
    Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
    Ready   bool   `json:"ready"`
    Redis   Status `json:"redis"`
    S3      Status `json:"s3"`
    WorkDir Status `json:"work_dir"`
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
    return &Checker{redis: opts.Redis, storage: opts.Storage, workDir: opts.WorkDir}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
    s := Summary{
        Redis:   c.ping(ctx, c.redis, 2*time.Second, "client unavailable"),
        WorkDir: c.checkWorkDir(),
    }
    if c.storage == nil {
        s.S3 = Status{OK: true, Message: "Not configured"}
    } else {
        s.S3 = c.ping(ctx, c.storage, 5*time.Second, "")
    }
    s.Ready = s.Redis.OK && s.S3.OK && s.WorkDir.OK
    return s
}

func (c *Checker) ping(ctx context.Context, p Pinger, timeout time.Duration, missing string) Status {
    if p == nil {
        return Status{OK: false, Message: missing}
    }
    ctx, cancel := context.WithTimeout(ctx, timeout)
    defer cancel()
    if err := p.Ping(ctx); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Connected"}
}

// checkWorkDir verifies booklets can be written where workers put them.
func (c *Checker) checkWorkDir() Status {
    if c.workDir == "" {
        return Status{OK: false, Message: "Not configured"}
    }
    if err := os.MkdirAll(c.workDir, 0o755); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    f, err := os.CreateTemp(c.workDir, ".ready-*")
    if err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    name := f.Name()
    _ = f.Close()
    _ = os.Remove(name)
    return Status{OK: true, Message: filepath.Clean(c.workDir)}
}

func trimError(err error) string {
    if err == nil {
        return ""
    }
    var netErr interface{ Timeout() bool }
    if errors.As(err, &netErr) && netErr.Timeout() {
        return "timeout"
    }
    msg := err.Error()
    if len(msg) > 120 {
        return msg[:120]
    }
    return msg
}
