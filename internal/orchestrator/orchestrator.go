package orchestrator

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "os"
    "path/filepath"
    "strconv"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/rs/zerolog/log"
    "golang.org/x/crypto/bcrypt"

    "github.com/local/bookletizer/internal/config"
    "github.com/local/bookletizer/internal/filetype"
    "github.com/local/bookletizer/internal/imposition"
    "github.com/local/bookletizer/internal/metrics"
    "github.com/local/bookletizer/internal/queue"
    "github.com/local/bookletizer/internal/statuscheck"
    "github.com/local/bookletizer/internal/store"
)

type Queue interface {
    Enqueue(ctx context.Context, job queue.Job) error
    CancelJob(ctx context.Context, jobID string) error
}

type StatusStore interface {
    Set(ctx context.Context, jobID string, st store.Status) error
    Get(ctx context.Context, jobID string) (store.Status, bool, error)
}

// Readiness reports whether backends are reachable.
type Readiness interface {
    Summary(ctx context.Context) statuscheck.Summary
}

type Dependencies struct {
    Queue  Queue
    Status StatusStore
    Ready  Readiness
    // Defaults fill layout options a request leaves out.
    Defaults       config.ImpositionConfig
    UploadDir      string
    MaxUploadBytes int64
    // TokenHash is a bcrypt hash of the API token; empty disables auth.
    TokenHash      string
    // LinkSecret signs download links in status responses; empty leaves them unsigned.
    LinkSecret     []byte
    LinkTTL        time.Duration
    StorageEnabled bool
}

type Orchestrator struct {
    deps Dependencies
}

func New(deps Dependencies) *Orchestrator {
    if deps.UploadDir == "" { deps.UploadDir = "uploads" }
    if deps.MaxUploadBytes <= 0 { deps.MaxUploadBytes = 200 << 20 }
    if deps.LinkTTL <= 0 { deps.LinkTTL = time.Hour }
    return &Orchestrator{deps: deps}
}

func (o *Orchestrator) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request){ w.WriteHeader(http.StatusOK); _, _ = w.Write([]byte("ok")) })
    mux.HandleFunc("GET /ready", o.handleReady)
    mux.Handle("GET /metrics", metrics.Handler())
    mux.HandleFunc("GET /plan", o.requireToken(o.handlePlan))
    mux.HandleFunc("POST /booklets", o.requireToken(o.handleCreate))
    mux.HandleFunc("GET /booklets/{id}", o.requireToken(o.handleStatus))
    mux.HandleFunc("GET /booklets/{id}/files/{n}", o.requireTokenOrLink(o.handleFile))
    mux.HandleFunc("POST /booklets/{id}/cancel", o.requireToken(o.handleCancel))
}

// requireToken checks a bearer token against the configured bcrypt hash.
func (o *Orchestrator) requireToken(next http.HandlerFunc) http.HandlerFunc {
    return func(w http.ResponseWriter, r *http.Request) {
        if o.deps.TokenHash == "" {
            next(w, r)
            return
        }
        token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
        if !ok || token == "" || bcrypt.CompareHashAndPassword([]byte(o.deps.TokenHash), []byte(token)) != nil {
            w.Header().Set("WWW-Authenticate", `Bearer realm="bookletizer"`)
            writeError(w, http.StatusUnauthorized, "invalid or missing token")
            return
        }
        next(w, r)
    }
}

type createReq struct {
    Source string       `json:"source"`
    Name   string       `json:"name"`
    Layout *queue.Layout `json:"layout"`
    Upload bool         `json:"upload"`
}

type createResp struct {
    Status  string         `json:"status"`
    JobID   string         `json:"job_id"`
    Message string         `json:"message"`
    Links   map[string]any `json:"links,omitempty"`
}

// handleCreate accepts either a multipart upload (field "file") or a JSON
// body naming a remote source, and enqueues one imposition job.
func (o *Orchestrator) handleCreate(w http.ResponseWriter, r *http.Request) {
    jobID := uuid.NewString()
    var job queue.Job
    var err error
    if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
        job, err = o.jobFromUpload(w, r, jobID)
    } else {
        job, err = o.jobFromJSON(r, jobID)
    }
    if err != nil {
        var herr *httpError
        if errors.As(err, &herr) {
            writeError(w, herr.code, herr.msg)
        } else {
            writeError(w, http.StatusBadRequest, err.Error())
        }
        return
    }
    if job.Upload && !o.deps.StorageEnabled {
        o.discardUpload(job)
        writeError(w, http.StatusBadRequest, "upload requested but storage is not configured")
        return
    }

    start := time.Now()
    _ = o.deps.Status.Set(r.Context(), jobID, store.Status{Status: store.StateQueued, Message: "queued", Start: &start,
        Metadata: map[string]any{"source": job.Source, "name": job.Name, "sheets_per_booklet": job.Layout.SheetsPerBooklet,
            "binding": job.Layout.Binding, "has_cover": job.Layout.HasCover, "keep_cover": job.Layout.KeepCover, "upload": job.Upload}})
    if err := o.deps.Queue.Enqueue(r.Context(), job); err != nil {
        log.Error().Err(err).Str("job_id", jobID).Msg("enqueue failed")
        end := time.Now()
        _ = o.deps.Status.Set(r.Context(), jobID, store.Status{Status: store.StateFailed, Message: "queue unavailable", Start: &start, End: &end})
        o.discardUpload(job)
        writeError(w, http.StatusServiceUnavailable, "queue unavailable")
        return
    }
    log.Info().Str("job_id", jobID).Str("source", job.Source).Int("sheets", job.Layout.SheetsPerBooklet).
        Str("binding", job.Layout.Binding).Msg("job created")

    writeJSON(w, http.StatusCreated, createResp{Status: "ok", JobID: jobID, Message: "Booklet job created",
        Links: map[string]any{"status": "/booklets/" + jobID, "cancel": "/booklets/" + jobID + "/cancel"}})
}

func (o *Orchestrator) jobFromJSON(r *http.Request, jobID string) (queue.Job, error) {
    defer r.Body.Close()
    var req createReq
    if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
        return queue.Job{}, errors.New("invalid json")
    }
    src := strings.TrimSpace(req.Source)
    if !strings.HasPrefix(src, "s3://") && !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
        return queue.Job{}, errors.New("source must be an s3:// or http(s):// reference")
    }
    layout := queue.LayoutFrom(o.deps.Defaults)
    if req.Layout != nil { layout = *req.Layout }
    if _, err := layout.Imposition().Layout(); err != nil {
        return queue.Job{}, err
    }
    name := req.Name
    if name == "" { name = filepath.Base(strings.SplitN(src, "?", 2)[0]) }
    return queue.Job{ID: jobID, Source: src, Name: name, Layout: layout, Upload: req.Upload, Attempt: 1}, nil
}

func (o *Orchestrator) jobFromUpload(w http.ResponseWriter, r *http.Request, jobID string) (queue.Job, error) {
    r.Body = http.MaxBytesReader(w, r.Body, o.deps.MaxUploadBytes)
    if err := r.ParseMultipartForm(32 << 20); err != nil {
        var tooBig *http.MaxBytesError
        if errors.As(err, &tooBig) {
            return queue.Job{}, &httpError{code: http.StatusRequestEntityTooLarge, msg: "upload too large"}
        }
        return queue.Job{}, errors.New("invalid multipart form")
    }
    layout, err := o.layoutFromForm(r)
    if err != nil {
        return queue.Job{}, err
    }
    file, hdr, err := r.FormFile("file")
    if err != nil {
        return queue.Job{}, errors.New("missing file")
    }
    defer file.Close()

    if err := os.MkdirAll(o.deps.UploadDir, 0o755); err != nil {
        return queue.Job{}, &httpError{code: http.StatusInternalServerError, msg: "cannot create upload dir"}
    }
    name := filepath.Base(hdr.Filename)
    if name == "." || name == string(filepath.Separator) || name == "" { name = "upload.pdf" }
    localPath := filepath.Join(o.deps.UploadDir, fmt.Sprintf("%s_%s", jobID, name))
    out, err := os.Create(localPath)
    if err != nil {
        return queue.Job{}, &httpError{code: http.StatusInternalServerError, msg: "cannot save upload"}
    }
    if _, err := io.Copy(out, file); err != nil {
        out.Close()
        _ = os.Remove(localPath)
        return queue.Job{}, &httpError{code: http.StatusInternalServerError, msg: "write failed"}
    }
    _ = out.Close()

    if err := filetype.New().RequirePDF(localPath); err != nil {
        _ = os.Remove(localPath)
        return queue.Job{}, &httpError{code: http.StatusUnsupportedMediaType, msg: err.Error()}
    }
    upload, _ := strconv.ParseBool(r.FormValue("upload"))
    abs, err := filepath.Abs(localPath)
    if err != nil { abs = localPath }
    return queue.Job{ID: jobID, Source: abs, Name: name, Layout: layout, Upload: upload, Attempt: 1}, nil
}

// layoutFromForm overlays form values on the configured defaults.
func (o *Orchestrator) layoutFromForm(r *http.Request) (queue.Layout, error) {
    return layoutFromValues(o.deps.Defaults, r.FormValue)
}

func layoutFromValues(def config.ImpositionConfig, get func(string) string) (queue.Layout, error) {
    c := def
    if v := get("sheets_per_booklet"); v != "" {
        n, err := strconv.Atoi(v)
        if err != nil {
            return queue.Layout{}, &imposition.ConfigError{Field: "sheets_per_booklet", Reason: fmt.Sprintf("not a number: %q", v)}
        }
        c.SheetsPerBooklet = n
    }
    if v := get("binding"); v != "" { c.Binding = v }
    for key, dst := range map[string]*bool{"has_cover": &c.HasCover, "keep_cover": &c.KeepCover} {
        if v := get(key); v != "" {
            b, err := strconv.ParseBool(v)
            if err != nil {
                return queue.Layout{}, &imposition.ConfigError{Field: key, Reason: fmt.Sprintf("not a boolean: %q", v)}
            }
            *dst = b
        }
    }
    if _, err := c.Layout(); err != nil {
        return queue.Layout{}, err
    }
    return queue.LayoutFrom(c), nil
}

func (o *Orchestrator) discardUpload(job queue.Job) {
    // only uploads are local; remote sources are references
    if filepath.IsAbs(job.Source) { _ = os.Remove(job.Source) }
}

type statusResp struct {
    JobID    string         `json:"job_id"`
    Status   string         `json:"status"`
    Success  bool           `json:"success"`
    Progress int            `json:"progress"`
    Message  string         `json:"message"`
    Start    *time.Time     `json:"start_time,omitempty"`
    End      *time.Time     `json:"end_time,omitempty"`
    Files    []string       `json:"files,omitempty"`
    Metadata map[string]any `json:"metadata,omitempty"`
}

func (o *Orchestrator) handleStatus(w http.ResponseWriter, r *http.Request) {
    id := r.PathValue("id")
    st, ok, err := o.deps.Status.Get(r.Context(), id)
    if err != nil { writeError(w, http.StatusInternalServerError, "status unavailable"); return }
    if !ok { writeError(w, http.StatusNotFound, "not found"); return }
    resp := statusResp{JobID: id, Status: st.Status, Success: st.Status == store.StateSuccess, Progress: st.Progress,
        Message: st.Message, Start: st.Start, End: st.End, Metadata: st.Metadata}
    for i := range st.Files {
        resp.Files = append(resp.Files, o.fileURL(id, i+1))
    }
    writeJSON(w, http.StatusOK, resp)
}

// handleFile streams the n-th booklet (1-based) of a finished job.
func (o *Orchestrator) handleFile(w http.ResponseWriter, r *http.Request) {
    id := r.PathValue("id")
    n, err := strconv.Atoi(r.PathValue("n"))
    if err != nil || n < 1 { writeError(w, http.StatusBadRequest, "invalid file number"); return }
    st, ok, err := o.deps.Status.Get(r.Context(), id)
    if err != nil { writeError(w, http.StatusInternalServerError, "status unavailable"); return }
    if !ok { writeError(w, http.StatusNotFound, "not found"); return }
    if st.Status != store.StateSuccess { writeError(w, http.StatusConflict, "not ready"); return }
    if n > len(st.Files) { writeError(w, http.StatusNotFound, "no such file"); return }
    path := st.Files[n-1]
    if _, err := os.Stat(path); err != nil { writeError(w, http.StatusGone, "file no longer available"); return }
    w.Header().Set("Content-Type", "application/pdf")
    w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
    http.ServeFile(w, r, path)
}

type cancelReq struct {
    Reason string `json:"reason,omitempty"`
}

func (o *Orchestrator) handleCancel(w http.ResponseWriter, r *http.Request) {
    id := r.PathValue("id")
    var req cancelReq
    if r.ContentLength > 0 {
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid json"); return }
    }
    st, ok, err := o.deps.Status.Get(r.Context(), id)
    if err != nil { writeError(w, http.StatusInternalServerError, "status unavailable"); return }
    if !ok { writeError(w, http.StatusNotFound, "not found"); return }
    if st.Terminal() {
        writeError(w, http.StatusConflict, "job already "+st.Status)
        return
    }
    if err := o.deps.Queue.CancelJob(r.Context(), id); err != nil {
        writeError(w, http.StatusInternalServerError, "cancel failed"); return
    }
    st.Status = store.StateCancelled
    if req.Reason != "" { st.Message = fmt.Sprintf("Cancelled: %s", req.Reason) } else { st.Message = "Cancelled" }
    now := time.Now(); st.End = &now
    _ = o.deps.Status.Set(r.Context(), id, st)
    log.Info().Str("job_id", id).Str("reason", req.Reason).Msg("job cancelled")
    writeJSON(w, http.StatusOK, map[string]any{"success": true, "job_id": id, "status": store.StateCancelled})
}

// handlePlan describes the booklet layout for a page count without rendering.
func (o *Orchestrator) handlePlan(w http.ResponseWriter, r *http.Request) {
    q := r.URL.Query()
    pages, err := strconv.Atoi(q.Get("pages"))
    if err != nil { writeError(w, http.StatusBadRequest, "pages must be a number"); return }
    layout, err := layoutFromValues(o.deps.Defaults, q.Get)
    if err != nil { writeError(w, http.StatusBadRequest, err.Error()); return }
    cfg, err := layout.Imposition().Layout()
    if err != nil { writeError(w, http.StatusBadRequest, err.Error()); return }
    d, err := imposition.Describe(pages, cfg)
    if err != nil { writeError(w, http.StatusBadRequest, err.Error()); return }
    writeJSON(w, http.StatusOK, d)
}

func (o *Orchestrator) handleReady(w http.ResponseWriter, r *http.Request) {
    if o.deps.Ready == nil { writeJSON(w, http.StatusOK, map[string]any{"ready": true}); return }
    s := o.deps.Ready.Summary(r.Context())
    code := http.StatusOK
    if !s.Ready { code = http.StatusServiceUnavailable }
    writeJSON(w, code, s)
}

type httpError struct {
    code int
    msg  string
}

func (e *httpError) Error() string { return e.msg }

func writeJSON(w http.ResponseWriter, code int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(code)
    _ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
    writeJSON(w, code, map[string]any{"success": false, "error": msg})
}
