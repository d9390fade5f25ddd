// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package export

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gogpu/reel"
	"github.com/gogpu/reel/media"
)

// Remote job states reported by the render server.
const (
	RemoteProcessing = "processing"
	RemoteComplete   = "complete"
	RemoteError      = "error"
	RemoteCancelled  = "cancelled"
)

// RemoteStatus is one poll result from the render server.
type RemoteStatus struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Error    string  `json:"error,omitempty"`
}

// UploadError is a non-2xx response from the render server. Client
// errors are permanent; server errors are worth retrying.
type UploadError struct {
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("render server: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx). Client errors
// (4xx) are considered permanent.
func (e *UploadError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// Client talks to a delegated render server: create a job from the
// timeline document, upload the assets it references, poll until done,
// download the result.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

type ClientOption func(*Client)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default client, which has a 60 second
// timeout. Asset uploads and result downloads inherit it.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpc = h }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateJob registers a render job and returns its id.
func (c *Client) CreateJob(ctx context.Context, tl *reel.Timeline, cfg Config) (string, error) {
	doc, err := reel.EncodeTimeline(tl)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(struct {
		Timeline json.RawMessage `json:"timeline"`
		Config   Config          `json:"config"`
	}{doc, cfg})
	if err != nil {
		return "", fmt.Errorf("export: marshal job: %w", err)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, http.MethodPost, "/jobs", "application/json", bytes.NewReader(body), &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("export: render server returned no job id")
	}
	return out.ID, nil
}

// UploadAsset streams one referenced media file to the job.
func (c *Client) UploadAsset(ctx context.Context, jobID, ref string, r io.Reader) error {
	path := "/jobs/" + url.PathEscape(jobID) + "/assets?ref=" + url.QueryEscape(ref)
	return c.call(ctx, http.MethodPost, path, "application/octet-stream", r, nil)
}

// Status polls the job.
func (c *Client) Status(ctx context.Context, jobID string) (RemoteStatus, error) {
	var st RemoteStatus
	err := c.call(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID), "", nil, &st)
	return st, err
}

// Result downloads the finished file.
func (c *Client) Result(ctx context.Context, jobID string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID)+"/result", "", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("export: render server: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &UploadError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return io.ReadAll(resp.Body)
}

// Cancel asks the server to stop the job. Best effort; a job already
// finished is not an error.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	return c.call(ctx, http.MethodDelete, "/jobs/"+url.PathEscape(jobID), "", nil, nil)
}

// call performs one JSON request. A non-2xx response comes back as an
// *UploadError with the body capped at 4 KiB.
func (c *Client) call(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := c.newRequest(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("export: render server: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UploadError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("export: render server response: %w", err)
		}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("export: create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Reel-Request-Id", requestID())
	return req, nil
}

func requestID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}

// RemoteEncoder delegates a whole render to the server. It is not a
// frame Encoder: the server re-renders from the timeline document, so
// no frames cross the wire, only the assets and the finished file.
type RemoteEncoder struct {
	client *Client
	poll   time.Duration
}

func NewRemoteEncoder(client *Client) *RemoteEncoder {
	return &RemoteEncoder{client: client, poll: 500 * time.Millisecond}
}

// Render runs the delegation: create, upload, poll, download to
// outPath. Progress percentages from the server land in onProgress.
// Server-side failure or an unreachable server comes back wrapped in
// ErrUnavailable so the job can fall back to a local render; a
// cancelled context comes back as ErrCancelled after a best effort
// server-side cancel.
func (r *RemoteEncoder) Render(ctx context.Context, tl *reel.Timeline, cfg Config, store media.Store, outPath string, onProgress func(pct float64)) (string, error) {
	log := reel.Logger()

	jobID, err := r.client.CreateJob(ctx, tl, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return "", ErrCancelled
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	log.Info("export: delegated render created", "job", jobID)

	for _, ref := range assetRefs(tl) {
		f, err := store.Open(ref)
		if err != nil {
			// The server degrades a missing asset the same way a
			// local render does, so upload what exists.
			log.Warn("export: asset not uploaded", "ref", ref, "error", err)
			continue
		}
		err = r.client.UploadAsset(ctx, jobID, ref, f)
		f.Close()
		if err != nil {
			if ctx.Err() != nil {
				r.cancelJob(jobID)
				return "", ErrCancelled
			}
			return "", fmt.Errorf("%w: upload %s: %v", ErrUnavailable, ref, err)
		}
	}

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()
	misses := 0
	for {
		select {
		case <-ctx.Done():
			r.cancelJob(jobID)
			return "", ErrCancelled
		case <-ticker.C:
		}

		st, err := r.client.Status(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				r.cancelJob(jobID)
				return "", ErrCancelled
			}
			var ue *UploadError
			if errors.As(err, &ue) && ue.IsRetryable() && misses < 3 {
				misses++
				continue
			}
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		misses = 0

		switch st.Status {
		case RemoteProcessing:
			if onProgress != nil {
				onProgress(st.Progress)
			}
		case RemoteComplete:
			data, err := r.client.Result(ctx, jobID)
			if err != nil {
				return "", fmt.Errorf("%w: download result: %v", ErrUnavailable, err)
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return "", err
			}
			log.Info("export: delegated render complete", "job", jobID, "bytes", len(data))
			return outPath, nil
		case RemoteCancelled:
			return "", ErrCancelled
		case RemoteError:
			return "", fmt.Errorf("%w: server: %s", ErrUnavailable, st.Error)
		default:
			return "", fmt.Errorf("%w: unknown job status %q", ErrUnavailable, st.Status)
		}
	}
}

// cancelJob tells the server to stop, detached from the caller's
// already-cancelled context.
func (r *RemoteEncoder) cancelJob(jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Cancel(ctx, jobID); err != nil {
		reel.Logger().Warn("export: server-side cancel failed", "job", jobID, "error", err)
	}
}

// assetRefs returns the distinct media references of a timeline, in
// first-use order.
func assetRefs(tl *reel.Timeline) []string {
	seen := make(map[string]bool)
	var refs []string
	for _, tr := range tl.Tracks {
		for _, c := range tr.Clips {
			switch c.Kind {
			case reel.MediaVideo, reel.MediaImage, reel.MediaAudio:
			default:
				continue
			}
			if c.Source == "" || seen[c.Source] {
				continue
			}
			seen[c.Source] = true
			refs = append(refs, c.Source)
		}
	}
	return refs
}
