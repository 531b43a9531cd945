package logger

import (
    "encoding/json"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "strings"
    "time"

    "github.com/axiomhq/axiom-go/axiom"
    "github.com/axiomhq/axiom-go/axiom/ingest"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
    lumberjack "gopkg.in/natefinch/lumberjack.v2"

    "github.com/local/bookletizer/internal/config"
)

// Options selects the sinks Init wires up.
type Options struct {
    config.LoggingConfig
    Axiom config.AxiomConfig
    // Service tags every event shipped to Axiom.
    Service string
}

// FromConfig maps the logging and axiom sections onto Options.
func FromConfig(cfg config.Config, service string) Options {
    return Options{LoggingConfig: cfg.Logging, Axiom: cfg.Axiom, Service: service}
}

var (
    global  zerolog.Logger
    shipper *axiomShipper
)

// Init replaces the global logger. Events always go to stderr, to a rotating
// file when File is set, and to Axiom when shipping is enabled.
func Init(opts Options) error {
    Close()

    sinks := []io.Writer{consoleSink(opts.Pretty)}
    if opts.File != "" {
        fw, err := fileSink(opts.LoggingConfig)
        if err != nil { return err }
        sinks = append(sinks, fw)
    }
    if opts.Axiom.Send && opts.Axiom.APIKey != "" {
        s, err := newAxiomShipper(opts.Axiom)
        if err != nil {
            fmt.Fprintf(os.Stderr, "axiom disabled: %v\n", err)
        } else {
            shipper = s
            sinks = append(sinks, &axiomSink{ship: s, service: serviceName(opts.Service)})
        }
    }

    zerolog.TimeFieldFormat = time.RFC3339
    global = zerolog.New(zerolog.MultiLevelWriter(sinks...)).Level(parseLevel(opts.Level)).With().Timestamp().Logger()
    log.Logger = global
    return nil
}

// Close drains the Axiom shipper, if any.
func Close() {
    if shipper != nil {
        shipper.close()
        shipper = nil
    }
}

// Get returns the global logger.
func Get() *zerolog.Logger { return &global }

// Job returns a child logger carrying the job id.
func Job(id string) zerolog.Logger { return global.With().Str("job_id", id).Logger() }

func parseLevel(s string) zerolog.Level {
    lvl, err := zerolog.ParseLevel(s)
    if err != nil || s == "" { return zerolog.InfoLevel }
    return lvl
}

func serviceName(s string) string {
    if s == "" { return "bookletizer" }
    return s
}

// consoleSink writes to stderr; stdout carries command output such as plan dumps.
func consoleSink(pretty bool) io.Writer {
    if pretty { return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339} }
    return os.Stderr
}

func fileSink(c config.LoggingConfig) (io.Writer, error) {
    if err := os.MkdirAll(filepath.Dir(c.File), 0o755); err != nil {
        return nil, fmt.Errorf("create log dir: %w", err)
    }
    return &lumberjack.Logger{
        Filename:   c.File,
        MaxSize:    c.MaxSizeMB,
        MaxBackups: c.MaxBackups,
        MaxAge:     c.MaxAgeDays,
        Compress:   c.Compress,
    }, nil
}

// axiomSink turns zerolog lines at info and above into Axiom events.
type axiomSink struct {
    ship    *axiomShipper
    service string
}

func (s *axiomSink) Write(p []byte) (int, error) { return s.WriteLevel(zerolog.InfoLevel, p) }

func (s *axiomSink) WriteLevel(l zerolog.Level, p []byte) (int, error) {
    if l < zerolog.InfoLevel { return len(p), nil }
    ev := axiom.Event{}
    if err := json.Unmarshal(p, &ev); err != nil {
        ev = axiom.Event{zerolog.MessageFieldName: strings.TrimSpace(string(p))}
    }
    ev["service"] = s.service
    if _, ok := ev[ingest.TimestampField]; !ok { ev[ingest.TimestampField] = time.Now() }
    s.ship.add(ev)
    return len(p), nil
}
