// Package adminapi is an HTTP client for a remote admin API. It implements
// every collaborator of the grid editor so sessions can edit documents
// held by another server.
package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/matthewbaird/gridedit/internal/contenttype"
	"github.com/matthewbaird/gridedit/internal/grid"
	"github.com/matthewbaird/gridedit/internal/logger"
)

// optionPageSize bounds the relation targets offered per field.
const optionPageSize = 100

type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries int
}

// Client talks to the content manager and bulk editor endpoints.
type Client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

var (
	_ grid.SchemaSource = (*Client)(nil)
	_ grid.OptionSource = (*Client)(nil)
	_ grid.Populator    = (*Client)(nil)
	_ grid.Saver        = (*Client)(nil)
)

func New(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("missing admin API base URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{
		log:        log.With("client", "AdminAPIClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Deps returns editor collaborators backed by c.
func (c *Client) Deps() grid.Deps {
	return grid.Deps{Schemas: c, Options: c, Populator: c, Saver: c, Log: c.log}
}

func (c *Client) Schema(ctx context.Context, uid string) (*contenttype.Schema, error) {
	var resp struct {
		Data *contenttype.Schema `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/content-manager/content-types/"+url.PathEscape(uid), nil, &resp); err != nil {
		return nil, err
	}
	s := resp.Data
	if s == nil || s.Attributes == nil {
		return nil, fmt.Errorf("schema of %s: empty response", uid)
	}
	if s.UID == "" {
		s.UID = uid
	}
	if len(s.FieldOrder) == 0 {
		for name := range s.Attributes {
			s.FieldOrder = append(s.FieldOrder, name)
		}
		sort.Strings(s.FieldOrder)
	}
	for name, f := range s.Attributes {
		if f != nil && f.Name == "" {
			f.Name = name
		}
	}
	return s, nil
}

func (c *Client) RelationTargets(ctx context.Context, uid string) ([]grid.Record, error) {
	q := url.Values{}
	q.Set("page", "1")
	q.Set("pageSize", fmt.Sprint(optionPageSize))
	var resp struct {
		Results []grid.Record `json:"results"`
	}
	path := "/content-manager/collection-types/" + url.PathEscape(uid) + "?" + q.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *Client) GetPopulated(ctx context.Context, contentType string, documentIDs []string) ([]grid.Record, error) {
	body := map[string]any{"contentType": contentType, "documentIds": documentIDs}
	var resp struct {
		Success   bool          `json:"success"`
		Documents []grid.Record `json:"documents"`
	}
	if err := c.do(ctx, http.MethodPost, "/bulk-editor/get-populated", body, &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

func (c *Client) BulkUpdate(ctx context.Context, req grid.SaveRequest) (grid.SaveResult, error) {
	var resp grid.SaveResult
	if err := c.doOnce(ctx, http.MethodPost, "/bulk-editor/bulk-update", req, &resp); err != nil {
		return grid.SaveResult{}, err
	}
	return resp, nil
}

// Records fetches the documents a session is opened over, fully populated.
func (c *Client) Records(ctx context.Context, contentType string, documentIDs []string) ([]grid.Record, error) {
	recs, err := c.GetPopulated(ctx, contentType, documentIDs)
	if err != nil {
		return nil, err
	}
	if len(recs) != len(documentIDs) {
		return nil, fmt.Errorf("loading %s: %d of %d documents found", contentType, len(recs), len(documentIDs))
	}
	return recs, nil
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 4000 {
		msg = msg[:4000] + "..."
	}
	return fmt.Sprintf("admin api http %d: %s", e.StatusCode, msg)
}

func isRetryable(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode == http.StatusTooManyRequests || he.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// do retries idempotent reads. Saves go through doOnce.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	backoff := 200 * time.Millisecond
	for attempt := 0; ; attempt++ {
		err := c.doOnce(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		if !isRetryable(err) || attempt >= c.cfg.MaxRetries {
			return err
		}
		c.log.Warn("admin api request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.cfg.MaxRetries,
			"sleep", backoff.String(),
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		he := &HTTPError{StatusCode: resp.StatusCode, Message: string(raw)}
		var env struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(raw, &env) == nil && env.Error != "" {
			he.Message, he.Code = env.Error, env.Code
		}
		return he
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}
