package config

import (
    "fmt"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/local/bookletizer/internal/imposition"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// ImpositionConfig is the booklet layout requested for a run.
type ImpositionConfig struct {
    SheetsPerBooklet int
    Binding          string // "middle"|"edge"
    HasCover         bool
    KeepCover        bool
}

// RenderConfig controls page rasterization.
type RenderConfig struct {
    TargetWidth int
    MaxHeight   int
    JPEGQuality int
}

// OutputConfig controls where booklets are written.
type OutputConfig struct {
    Dir       string // empty means "<input dir>/out"
    MarginMM  float64
    FoldGuide bool
    Labels    bool
    Validate  bool
}

// StorageConfig is the optional S3 target for finished booklets.
type StorageConfig struct {
    Bucket   string
    Prefix   string
    Region   string
    Password string // encrypts uploads and decrypts encrypted sources; empty stores plain
}

// WorkerConfig defines worker behavior and limits.
type WorkerConfig struct {
    Concurrency    int
    GroupParallel  int
    JobTimeout     time.Duration
    JobMaxAttempts int
    RetryBaseDelay time.Duration
    WorkDir        string
}

// QueueConfig defines queue connectivity and names.
type QueueConfig struct {
    RedisURL     string
    Stream       string
    Group        string
    PollInterval time.Duration
    StatusTTL    time.Duration
}

// ServerConfig is the HTTP surface of serve mode.
type ServerConfig struct {
    Port           string
    APITokenHash   string // bcrypt hash; empty disables auth
    LinkSecret     string // signs download links; empty disables signed links
    LinkTTL        time.Duration
    MaxUploadMB    int
    ReadTimeout    time.Duration
    WriteTimeout   time.Duration
}

// Config is the top-level configuration.
type Config struct {
    Logging    LoggingConfig
    Axiom      AxiomConfig
    Imposition ImpositionConfig
    Render     RenderConfig
    Output     OutputConfig
    Storage    StorageConfig
    Worker     WorkerConfig
    Queue      QueueConfig
    Server     ServerConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    // Logging defaults
    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", ""),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    // Axiom defaults
    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_bookletizer",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    cfg.Imposition = ImpositionConfig{
        SheetsPerBooklet: parseInt(getEnv("SHEETS_PER_BOOKLET", "10"), 10),
        Binding:          strings.ToLower(getEnv("BINDING", "middle")),
        HasCover:         parseBool(getEnv("HAS_COVER", "false")),
        KeepCover:        parseBool(getEnv("KEEP_COVER", "false")),
    }

    cfg.Render = RenderConfig{
        TargetWidth: parseInt(getEnv("RENDER_TARGET_WIDTH", "2000"), 2000),
        MaxHeight:   parseInt(getEnv("RENDER_MAX_HEIGHT", "2000"), 2000),
        JPEGQuality: parseInt(getEnv("RENDER_JPEG_QUALITY", "85"), 85),
    }

    cfg.Output = OutputConfig{
        Dir:       getEnv("OUTPUT_DIR", ""),
        MarginMM:  parseFloat(getEnv("OUTPUT_MARGIN_MM", "3"), 3),
        FoldGuide: parseBool(getEnv("OUTPUT_FOLD_GUIDE", "true")),
        Labels:    parseBool(getEnv("OUTPUT_LABELS", "true")),
        Validate:  parseBool(getEnv("OUTPUT_VALIDATE", "false")),
    }

    cfg.Storage = StorageConfig{
        Bucket:   getEnv("S3_BUCKET", ""),
        Prefix:   getEnv("S3_PREFIX", "booklets"),
        Region:   getEnv("AWS_REGION", "us-east-1"),
        Password: getEnv("S3_ENCRYPTION_PASSWORD", ""),
    }

    // Worker defaults
    cfg.Worker = WorkerConfig{
        Concurrency:    parseInt(getEnv("WORKER_CONCURRENCY", "2"), 2),
        GroupParallel:  parseInt(getEnv("GROUP_PARALLEL", "4"), 4),
        JobTimeout:     parseDuration(getEnv("JOB_TIMEOUT", "15m"), 15*time.Minute),
        JobMaxAttempts: parseInt(getEnv("JOB_MAX_ATTEMPTS", "3"), 3),
        RetryBaseDelay: parseDuration(getEnv("RETRY_BASE_DELAY", "2s"), 2*time.Second),
        WorkDir:        getEnv("WORK_DIR", os.TempDir()),
    }

    // Queue defaults
    cfg.Queue = QueueConfig{
        RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
        Stream:       getEnv("QUEUE_STREAM", "jobs:booklets"),
        Group:        getEnv("QUEUE_GROUP", "workers:booklets"),
        PollInterval: parseDuration(getEnv("QUEUE_POLL_INTERVAL", "500ms"), 500*time.Millisecond),
        StatusTTL:    parseDuration(getEnv("STATUS_TTL", "24h"), 24*time.Hour),
    }

    cfg.Server = ServerConfig{
        Port:         getEnv("PORT", "8080"),
        APITokenHash: getEnv("API_TOKEN_HASH", ""),
        LinkSecret:   getEnv("DOWNLOAD_LINK_SECRET", ""),
        LinkTTL:      parseDuration(getEnv("DOWNLOAD_LINK_TTL", "1h"), time.Hour),
        MaxUploadMB:  parseInt(getEnv("MAX_UPLOAD_MB", "200"), 200),
        ReadTimeout:  parseDuration(getEnv("SERVER_READ_TIMEOUT", "60s"), 60*time.Second),
        WriteTimeout: parseDuration(getEnv("SERVER_WRITE_TIMEOUT", "120s"), 120*time.Second),
    }

    return cfg
}

// Layout converts the imposition section into the core configuration.
func (c ImpositionConfig) Layout() (imposition.Config, error) {
    b, err := imposition.ParseBinding(c.Binding)
    if err != nil {
        return imposition.Config{}, err
    }
    if c.SheetsPerBooklet <= 0 {
        return imposition.Config{}, &imposition.ConfigError{
            Field:  "sheets_per_booklet",
            Reason: fmt.Sprintf("must be positive, got %d", c.SheetsPerBooklet),
        }
    }
    return imposition.Config{
        SheetsPerBooklet: c.SheetsPerBooklet,
        Binding:          b,
        HasCover:         c.HasCover,
        KeepCover:        c.KeepCover,
    }, nil
}

// MarginPoints converts the margin to PDF points.
func (c OutputConfig) MarginPoints() float64 { return c.MarginMM * 72 / 25.4 }

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseFloat(s string, def float64) float64 {
    if s == "" { return def }
    if f, err := strconv.ParseFloat(s, 64); err == nil { return f }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}
