package source

import (
    "context"
    "errors"
    "fmt"
    "io"
    "net/http"
    "os"
    "strings"
)

// DefaultMaxDownloadBytes caps http(s) sources when the caller sets no limit.
const DefaultMaxDownloadBytes int64 = 200 << 20

// ErrTooLarge reports a remote source larger than the download limit.
var ErrTooLarge = errors.New("source exceeds the size limit")

// S3Fetcher downloads an object to a local temp file.
type S3Fetcher interface {
    Download(ctx context.Context, bucket, key string) (string, error)
}

// Resolve returns a local path for the PDF referenced by ref.
// Supports:
// - file://path or absolute/relative filesystem paths
// - http(s):// URLs (downloads to temp)
// - s3://bucket/key (downloads to temp through fetcher)
// The cleanup func removes any temp file and is never nil. maxBytes caps
// http(s) downloads; zero or less means DefaultMaxDownloadBytes.
func Resolve(ctx context.Context, ref string, fetcher S3Fetcher, maxBytes int64) (string, func(), error) {
    noop := func() {}
    // Strip optional #page fragment if present
    if i := strings.Index(ref, "#"); i >= 0 {
        ref = ref[:i]
    }

    switch {
    case strings.HasPrefix(ref, "s3://"):
        bucket, key, err := ParseS3URL(ref)
        if err != nil {
            return "", noop, err
        }
        if fetcher == nil {
            return "", noop, fmt.Errorf("s3 source %s: storage is not configured", ref)
        }
        p, err := fetcher.Download(ctx, bucket, key)
        if err != nil {
            return "", noop, err
        }
        return p, func() { os.Remove(p) }, nil
    case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
        if maxBytes <= 0 { maxBytes = DefaultMaxDownloadBytes }
        p, err := downloadHTTPToTemp(ctx, ref, maxBytes)
        if err != nil {
            return "", noop, err
        }
        return p, func() { os.Remove(p) }, nil
    case strings.HasPrefix(ref, "file://"):
        return strings.TrimPrefix(ref, "file://"), noop, nil
    default:
        // treat as filesystem path
        return ref, noop, nil
    }
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(s3url string) (string, string, error) {
    path := strings.TrimPrefix(s3url, "s3://")
    slash := strings.Index(path, "/")
    if slash <= 0 || slash == len(path)-1 { return "", "", fmt.Errorf("invalid s3 url: %s", s3url) }
    return path[:slash], path[slash+1:], nil
}

func downloadHTTPToTemp(ctx context.Context, url string, limit int64) (string, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
    if err != nil { return "", err }
    resp, err := http.DefaultClient.Do(req)
    if err != nil { return "", err }
    defer resp.Body.Close()
    if resp.StatusCode != http.StatusOK { return "", fmt.Errorf("download %s: http %d", url, resp.StatusCode) }
    if resp.ContentLength > limit {
        return "", fmt.Errorf("download %s: %d bytes: %w", url, resp.ContentLength, ErrTooLarge)
    }
    f, err := os.CreateTemp("", "pdfdl-*.pdf")
    if err != nil { return "", err }
    n, err := io.Copy(f, io.LimitReader(resp.Body, limit+1))
    if err == nil && n > limit {
        err = fmt.Errorf("download %s: more than %d bytes: %w", url, limit, ErrTooLarge)
    }
    if cerr := f.Close(); err == nil { err = cerr }
    if err != nil {
        os.Remove(f.Name())
        return "", err
    }
    return f.Name(), nil
}
