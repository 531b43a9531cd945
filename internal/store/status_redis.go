package store

import (
    "context"
    "encoding/json"
    "fmt"
    "strconv"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// Job states.
const (
    StateQueued     = "queued"
    StateProcessing = "processing"
    StateSuccess    = "success"
    StateFailed     = "failed"
    StateCancelled  = "cancelled"
)

type Status struct {
    Status   string         `json:"status"`
    Progress int            `json:"progress"`
    Message  string         `json:"message"`
    Start    *time.Time     `json:"start_time,omitempty"`
    End      *time.Time     `json:"end_time,omitempty"`
    Files    []string       `json:"files,omitempty"`
    Metadata map[string]any `json:"metadata,omitempty"`
}

// Terminal reports whether the job will not change state again.
func (s Status) Terminal() bool {
    return s.Status == StateSuccess || s.Status == StateFailed || s.Status == StateCancelled
}

type RedisStatus struct {
    client *redis.Client
    keyNS  string
    ttl    time.Duration
}

func NewRedisStatus(redisURL string, ttl time.Duration) (*RedisStatus, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil { return nil, err }
    c := redis.NewClient(opt)
    if err := c.Ping(context.Background()).Err(); err != nil { return nil, err }
    return &RedisStatus{client: c, keyNS: "booklet", ttl: ttl}, nil
}

func (s *RedisStatus) key(jobID string) string { return fmt.Sprintf("%s:%s:status", s.keyNS, jobID) }

func (s *RedisStatus) Set(ctx context.Context, jobID string, st Status) error {
    m := encodeStatus(st)
    pipe := s.client.TxPipeline()
    pipe.HSet(ctx, s.key(jobID), m)
    if s.ttl > 0 { pipe.Expire(ctx, s.key(jobID), s.ttl) }
    _, err := pipe.Exec(ctx)
    return err
}

func (s *RedisStatus) Get(ctx context.Context, jobID string) (Status, bool, error) {
    res, err := s.client.HGetAll(ctx, s.key(jobID)).Result()
    if err != nil { return Status{}, false, err }
    if len(res) == 0 { return Status{}, false, nil }
    return decodeStatus(res), true, nil
}

func (s *RedisStatus) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *RedisStatus) Close() error { return s.client.Close() }

func encodeStatus(st Status) map[string]any {
    m := map[string]any{
        "status":   st.Status,
        "progress": st.Progress,
        "message":  st.Message,
    }
    if st.Start != nil { m["start"] = st.Start.Format(time.RFC3339Nano) }
    if st.End != nil { m["end"] = st.End.Format(time.RFC3339Nano) }
    if st.Files != nil {
        b, _ := json.Marshal(st.Files)
        m["files"] = string(b)
    }
    if st.Metadata != nil {
        b, _ := json.Marshal(st.Metadata)
        m["metadata"] = string(b)
    }
    return m
}

func decodeStatus(res map[string]string) Status {
    st := Status{Status: res["status"], Message: res["message"]}
    // ignore parse error; default 0
    st.Progress, _ = strconv.Atoi(res["progress"])
    if v := res["start"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { st.Start = &t }
    }
    if v := res["end"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { st.End = &t }
    }
    if v := res["files"]; v != "" {
        _ = json.Unmarshal([]byte(v), &st.Files)
    }
    if v := res["metadata"]; v != "" {
        _ = json.Unmarshal([]byte(v), &st.Metadata)
    }
    return st
}
