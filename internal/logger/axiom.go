package logger

import (
    "context"
    "fmt"
    "os"
    "sync"
    "time"

    "github.com/axiomhq/axiom-go/axiom"

    "github.com/local/bookletizer/internal/config"
)

const (
    shipBatch      = 200
    shipMaxPending = 5000
)

type ingestFunc func(ctx context.Context, events []axiom.Event) error

// axiomShipper buffers events and ingests them in batches on a timer, when a
// batch fills up, and on close. Events past shipMaxPending are dropped.
type axiomShipper struct {
    ingest ingestFunc

    mu      sync.Mutex
    pending []axiom.Event

    kick chan struct{}
    stop chan struct{}
    done chan struct{}
}

func newAxiomShipper(c config.AxiomConfig) (*axiomShipper, error) {
    opts := []axiom.Option{axiom.SetToken(c.APIKey)}
    if c.OrgID != "" { opts = append(opts, axiom.SetOrganizationID(c.OrgID)) }
    client, err := axiom.NewClient(opts...)
    if err != nil { return nil, err }
    dataset := c.Dataset
    if dataset == "" { dataset = "dev_bookletizer" }
    return startShipper(func(ctx context.Context, events []axiom.Event) error {
        _, err := client.IngestEvents(ctx, dataset, events)
        return err
    }, c.FlushInterval), nil
}

func startShipper(fn ingestFunc, every time.Duration) *axiomShipper {
    if every <= 0 { every = 10 * time.Second }
    s := &axiomShipper{
        ingest: fn,
        kick:   make(chan struct{}, 1),
        stop:   make(chan struct{}),
        done:   make(chan struct{}),
    }
    go s.run(every)
    return s
}

func (s *axiomShipper) add(ev axiom.Event) {
    s.mu.Lock()
    if len(s.pending) < shipMaxPending { s.pending = append(s.pending, ev) }
    full := len(s.pending) >= shipBatch
    s.mu.Unlock()
    if full {
        select {
        case s.kick <- struct{}{}:
        default:
        }
    }
}

func (s *axiomShipper) run(every time.Duration) {
    defer close(s.done)
    t := time.NewTicker(every)
    defer t.Stop()
    for {
        select {
        case <-s.stop:
            s.flush()
            return
        case <-t.C:
            s.flush()
        case <-s.kick:
            s.flush()
        }
    }
}

func (s *axiomShipper) flush() {
    s.mu.Lock()
    batch := s.pending
    s.pending = nil
    s.mu.Unlock()

    for len(batch) > 0 {
        n := min(shipBatch, len(batch))
        ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
        if err := s.ingest(ctx, batch[:n]); err != nil {
            fmt.Fprintf(os.Stderr, "axiom ingest: %v\n", err)
        }
        cancel()
        batch = batch[n:]
    }
}

func (s *axiomShipper) close() {
    close(s.stop)
    <-s.done
}
