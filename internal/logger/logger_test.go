package logger

import (
    "context"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/axiomhq/axiom-go/axiom"
    "github.com/axiomhq/axiom-go/axiom/ingest"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
)

func TestInitWritesToRotatingFile(t *testing.T) {
    file := filepath.Join(t.TempDir(), "logs", "bookletizer.log")
    if err := Init(Options{Level: "warn", File: file, MaxSizeMB: 1}); err != nil {
        t.Fatalf("Init(): %v", err)
    }
    defer Close()

    log.Info().Msg("dropped by level")
    Job("job-42").Warn().Int("booklet", 3).Msg("booklet finished")

    raw, err := os.ReadFile(file)
    if err != nil {
        t.Fatalf("read log: %v", err)
    }
    out := string(raw)
    if strings.Contains(out, "dropped by level") {
        t.Errorf("info line written at warn level: %s", out)
    }
    if !strings.Contains(out, `"job_id":"job-42"`) || !strings.Contains(out, `"booklet":3`) {
        t.Errorf("missing fields in %s", out)
    }
    if Get().GetLevel() != zerolog.WarnLevel {
        t.Errorf("level = %v", Get().GetLevel())
    }
}

func TestInitFallsBackToInfo(t *testing.T) {
    if err := Init(Options{Level: "chatty"}); err != nil {
        t.Fatalf("Init(): %v", err)
    }
    if Get().GetLevel() != zerolog.InfoLevel {
        t.Errorf("level = %v, want info", Get().GetLevel())
    }
}

type batches struct {
    mu   sync.Mutex
    sent [][]axiom.Event
}

func (b *batches) ingest(_ context.Context, events []axiom.Event) error {
    b.mu.Lock(); defer b.mu.Unlock()
    b.sent = append(b.sent, append([]axiom.Event(nil), events...))
    return nil
}

func (b *batches) all() []axiom.Event {
    b.mu.Lock(); defer b.mu.Unlock()
    var out []axiom.Event
    for _, s := range b.sent { out = append(out, s...) }
    return out
}

func TestAxiomSinkShipsInfoAndAbove(t *testing.T) {
    var got batches
    ship := startShipper(got.ingest, time.Hour)
    lg := zerolog.New(zerolog.MultiLevelWriter(&axiomSink{ship: ship, service: "bookletizer-test"})).Level(zerolog.DebugLevel)

    lg.Debug().Msg("not shipped")
    lg.Info().Str("job_id", "j1").Msg("job started")
    lg.Warn().Msg("slow render")
    ship.close()

    events := got.all()
    if len(events) != 2 {
        t.Fatalf("shipped %d events: %v", len(events), events)
    }
    if events[0]["message"] != "job started" || events[0]["job_id"] != "j1" || events[1]["level"] != "warn" {
        t.Errorf("events = %v", events)
    }
    for _, ev := range events {
        if ev["service"] != "bookletizer-test" || ev[ingest.TimestampField] == nil {
            t.Errorf("event missing service or timestamp: %v", ev)
        }
    }
}

func TestShipperBatchesAndDrainsOnClose(t *testing.T) {
    var got batches
    ship := startShipper(got.ingest, time.Hour)
    for i := 0; i < 2*shipBatch+50; i++ {
        ship.add(axiom.Event{"n": i})
    }
    ship.close()

    if n := len(got.all()); n != 2*shipBatch+50 {
        t.Errorf("shipped %d events", n)
    }
    got.mu.Lock(); defer got.mu.Unlock()
    for _, b := range got.sent {
        if len(b) > shipBatch {
            t.Errorf("batch of %d events", len(b))
        }
    }
}
