package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"sevadesk/config"
	"sevadesk/internal/logger"
	"sevadesk/internal/syncerr"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the immutable per-call credential bundle. The login flow owns
// its lifecycle; the sync core only reads it. No ambient globals.
type Session struct {
	AccessToken string
	StaffID     string
}

// Request is one REST call against the remote store, PostgREST style:
// a resource collection per record kind, filters as query parameters.
type Request struct {
	Method         string
	Table          string
	Query          url.Values
	Body           any
	IdempotencyKey string
}

type Response struct {
	Status int
	Body   []byte
}

// TransportClient issues authenticated HTTP requests to the remote store.
// One shared http.Client gives connection reuse; the per-call timeout is
// enforced by the client itself on top of whatever deadline is on ctx.
type TransportClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
	log     logger.Logger
}

func NewTransportClient(cfg config.Config) *TransportClient {
	return &TransportClient{
		client: &http.Client{
			Timeout: cfg.RequestTimeout(),
		},
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		apiKey:  cfg.APIKey,
		log:     logger.New("TransportClient"),
	}
}

// Execute performs one network attempt. It never retries; that is the
// retry policy's job. Errors come back classified as TransportError so the
// policy can tell transient from fatal.
func (t *TransportClient) Execute(ctx context.Context, session Session, req Request) (*Response, error) {
	log := t.log.Function("Execute")

	token := session.AccessToken
	if token == "" {
		token = t.apiKey
	}

	if err := t.checkTokenExpiry(token); err != nil {
		log.Warn("Session token expired, skipping network call", "table", req.Table)
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/rest/v1/%s", t.baseURL, req.Table)
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, log.Err("failed to encode request body", err, "table", req.Table)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, body)
	if err != nil {
		return nil, log.Err("failed to create request", err, "table", req.Table)
	}

	httpReq.Header.Set("apikey", t.apiKey)
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		httpReq.Header.Set("Prefer", "return=representation")
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, t.classifyDialError(err, req.Table)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &syncerr.TransportError{Kind: syncerr.TransportConnectionRefused, Err: err}
	}

	if statusErr := classifyStatus(resp.StatusCode); statusErr != nil {
		log.Warn("Remote store returned error status",
			"table", req.Table, "method", req.Method, "status", resp.StatusCode)
		return nil, statusErr
	}

	return &Response{Status: resp.StatusCode, Body: payload}, nil
}

// Ping reports reachability of the remote store. Any HTTP response at all
// counts as online; only a transport-level failure means offline.
func (t *TransportClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodHead, t.baseURL+"/rest/v1/", nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("apikey", t.apiKey)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return t.classifyDialError(err, "")
	}
	_ = resp.Body.Close()
	return nil
}

// checkTokenExpiry decodes the bearer token without verifying its
// signature; verification is the server's job. A token already past exp
// fails locally instead of burning a doomed network round trip.
func (t *TransportClient) checkTokenExpiry(token string) error {
	if strings.Count(token, ".") != 2 {
		return nil // opaque token, let the server decide
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if exp.Before(time.Now()) {
		return &syncerr.TransportError{
			Kind: syncerr.TransportUnauthorized,
			Err:  errors.New("session token expired"),
		}
	}
	return nil
}

func (t *TransportClient) classifyDialError(err error, table string) error {
	kind := syncerr.TransportConnectionRefused

	var netErr interface{ Timeout() bool }
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = syncerr.TransportTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = syncerr.TransportTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		kind = syncerr.TransportConnectionRefused
	}

	t.log.Debug("Transport attempt failed", "table", table, "kind", kind, "error", err)
	return &syncerr.TransportError{Kind: kind, Err: err}
}

func classifyStatus(status int) error {
	switch {
	case status < 400:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &syncerr.TransportError{Kind: syncerr.TransportUnauthorized, Status: status}
	default:
		return &syncerr.TransportError{Kind: syncerr.TransportServerError, Status: status}
	}
}
