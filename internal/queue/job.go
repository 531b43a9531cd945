package queue

import (
    "encoding/json"
    "errors"
    "fmt"

    "github.com/local/bookletizer/internal/config"
)

// Layout is the imposition request carried by a job.
type Layout struct {
    SheetsPerBooklet int    `json:"sheets_per_booklet"`
    Binding          string `json:"binding"`
    HasCover         bool   `json:"has_cover"`
    KeepCover        bool   `json:"keep_cover"`
}

// Imposition converts the layout to the config section it came from.
func (l Layout) Imposition() config.ImpositionConfig {
    return config.ImpositionConfig{
        SheetsPerBooklet: l.SheetsPerBooklet,
        Binding:          l.Binding,
        HasCover:         l.HasCover,
        KeepCover:        l.KeepCover,
    }
}

// LayoutFrom copies a config section into a job layout.
func LayoutFrom(c config.ImpositionConfig) Layout {
    return Layout{SheetsPerBooklet: c.SheetsPerBooklet, Binding: c.Binding, HasCover: c.HasCover, KeepCover: c.KeepCover}
}

// Job is one document to impose.
type Job struct {
    ID      string `json:"job_id"`
    Source  string `json:"source"`          // local path, file://, http(s):// or s3:// ref
    Name    string `json:"name,omitempty"`  // original file name, used for booklet names
    Layout  Layout `json:"layout"`
    Upload  bool   `json:"upload,omitempty"`
    Attempt int    `json:"attempt"`
}

func (j Job) Marshal() ([]byte, error) {
    if j.ID == "" {
        return nil, errors.New("job without id")
    }
    return json.Marshal(j)
}

// UnmarshalJob decodes a stream payload.
func UnmarshalJob(data []byte) (Job, error) {
    if len(data) == 0 {
        return Job{}, errors.New("empty job payload")
    }
    var j Job
    if err := json.Unmarshal(data, &j); err != nil {
        return Job{}, fmt.Errorf("decode job: %w", err)
    }
    if j.ID == "" || j.Source == "" {
        return Job{}, fmt.Errorf("job payload missing job_id or source")
    }
    if j.Attempt <= 0 {
        j.Attempt = 1
    }
    return j, nil
}
