package orchestrator

import (
    "errors"
    "fmt"
    "net/http"
    "strconv"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

const linkIssuer = "bookletizer"

// linkClaims bind a download token to one booklet of one job.
type linkClaims struct {
    File int `json:"file"`
    jwt.RegisteredClaims
}

// signLink issues an HS256 token that opens /booklets/{jobID}/files/{n}
// without the API token until it expires.
func (o *Orchestrator) signLink(jobID string, n int, now time.Time) (string, error) {
    claims := linkClaims{
        File: n,
        RegisteredClaims: jwt.RegisteredClaims{
            Issuer:    linkIssuer,
            Subject:   jobID,
            IssuedAt:  jwt.NewNumericDate(now),
            ExpiresAt: jwt.NewNumericDate(now.Add(o.deps.LinkTTL)),
        },
    }
    return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(o.deps.LinkSecret)
}

func (o *Orchestrator) verifyLink(token, jobID string, n int) error {
    var c linkClaims
    _, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
        }
        return o.deps.LinkSecret, nil
    }, jwt.WithIssuer(linkIssuer), jwt.WithExpirationRequired())
    if err != nil { return err }
    if c.Subject != jobID || c.File != n {
        return errors.New("link does not match this file")
    }
    return nil
}

// fileURL is the download path of the n-th booklet, signed when links are enabled.
func (o *Orchestrator) fileURL(jobID string, n int) string {
    u := fmt.Sprintf("/booklets/%s/files/%d", jobID, n)
    if len(o.deps.LinkSecret) == 0 { return u }
    sig, err := o.signLink(jobID, n, time.Now())
    if err != nil { return u }
    return u + "?sig=" + sig
}

// requireTokenOrLink lets a valid signed link stand in for the API token.
func (o *Orchestrator) requireTokenOrLink(next http.HandlerFunc) http.HandlerFunc {
    withToken := o.requireToken(next)
    return func(w http.ResponseWriter, r *http.Request) {
        sig := r.URL.Query().Get("sig")
        if sig == "" || len(o.deps.LinkSecret) == 0 {
            withToken(w, r)
            return
        }
        n, _ := strconv.Atoi(r.PathValue("n"))
        if err := o.verifyLink(sig, r.PathValue("id"), n); err != nil {
            writeError(w, http.StatusUnauthorized, "invalid or expired link")
            return
        }
        next(w, r)
    }
}
