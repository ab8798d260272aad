package todoist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// Config configures a Client.
type Config struct {
	APIURL  string        // REST base, e.g. https://api.todoist.com/rest/v2/
	SyncURL string        // Sync endpoint, e.g. https://api.todoist.com/sync/v9/sync
	Timeout time.Duration // per request, including the wait for the rate limiter

	// RequestsPerSecond <= 0 disables client-side rate limiting.
	RequestsPerSecond float64
	Burst             int
}

// Client talks to Todoist on behalf of any number of users; the access token
// is passed per call, so one Client is shared by the whole process.
//
// RATE LIMITING:
// Todoist allows a few hundred requests per user per 15 minutes. The daily
// readout issues one fetch plus one update per open task for every user, so a
// token bucket (x/time/rate) paces outbound calls instead of tripping 429s.
type Client struct {
	http    *http.Client
	apiURL  string
	syncURL string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests point it at httptest servers).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client.
func New(cfg Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, errors.New("todoist: API URL is required")
	}
	if _, err := url.Parse(cfg.APIURL); err != nil {
		return nil, fmt.Errorf("todoist: parsing API URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		http:    http.DefaultClient,
		apiURL:  strings.TrimRight(cfg.APIURL, "/") + "/",
		syncURL: cfg.SyncURL,
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchTasks returns the open tasks matching filter.
func (c *Client) FetchTasks(ctx context.Context, token string, filter Filter) ([]Task, error) {
	query := url.Values{}
	if !filter.IsZero() {
		query.Set("filter", filter.String())
	}

	body, err := c.do(ctx, token, http.MethodGet, "tasks", query, nil)
	if err != nil {
		return nil, fmt.Errorf("todoist: fetching tasks: %w", err)
	}

	var tasks []Task
	if err := decodeList(body, &tasks); err != nil {
		return nil, &ProtocolError{Op: "fetch tasks", Err: err}
	}
	for i := range tasks {
		if tasks[i].ID == "" {
			return nil, &ProtocolError{Op: "fetch tasks", Err: fmt.Errorf("task %d has no id", i)}
		}
	}
	return tasks, nil
}

// FetchLabels returns the user's personal labels.
func (c *Client) FetchLabels(ctx context.Context, token string) ([]Label, error) {
	body, err := c.do(ctx, token, http.MethodGet, "labels", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("todoist: fetching labels: %w", err)
	}

	var labels []Label
	if err := decodeList(body, &labels); err != nil {
		return nil, &ProtocolError{Op: "fetch labels", Err: err}
	}
	return labels, nil
}

// CreateLabel creates a personal label. The shame label gets its own colour.
func (c *Client) CreateLabel(ctx context.Context, token, name string) (*Label, error) {
	req := map[string]string{"name": name}
	if name == ShameLabel {
		req["color"] = ShameLabelColor
	}

	body, err := c.do(ctx, token, http.MethodPost, "labels", nil, req)
	if err != nil {
		return nil, fmt.Errorf("todoist: creating label %q: %w", name, err)
	}

	var label Label
	if err := json.Unmarshal(body, &label); err != nil {
		return nil, &ProtocolError{Op: "create label", Err: err}
	}
	return &label, nil
}

// EnsureLabel makes sure a label called name exists, creating it if needed.
// Failures are logged, not returned: a missing label only means tasks go
// unlabelled this run. The result reports whether the label is known to exist.
func (c *Client) EnsureLabel(ctx context.Context, token, name string) bool {
	labels, err := c.FetchLabels(ctx, token)
	if err != nil {
		c.logger.Error("listing labels failed", slog.String("label", name), slog.String("error", err.Error()))
		return false
	}
	for _, l := range labels {
		if l.Name == name {
			return true
		}
	}

	if _, err := c.CreateLabel(ctx, token, name); err != nil {
		c.logger.Error("creating label failed", slog.String("label", name), slog.String("error", err.Error()))
		return false
	}
	c.logger.Info("label created", slog.String("label", name))
	return true
}

// ApplyLabel adds name to the task's labels. If the task already carries it,
// no request is made. On success task.Labels reflects the new label set.
func (c *Client) ApplyLabel(ctx context.Context, token string, task *Task, name string) error {
	if task.HasLabel(name) {
		return nil
	}

	labels := append(append([]string{}, task.Labels...), name)
	if err := c.UpdateTask(ctx, token, task.ID, TaskPatch{Labels: labels}); err != nil {
		return err
	}
	task.Labels = labels
	return nil
}

// LabelTasks ensures the label exists and applies it to every task.
// A failure on one task is logged and does not stop the others.
// It returns how many tasks now carry the label.
func (c *Client) LabelTasks(ctx context.Context, token string, tasks []Task, name string) int {
	c.EnsureLabel(ctx, token, name)

	labelled := 0
	for i := range tasks {
		if err := c.ApplyLabel(ctx, token, &tasks[i], name); err != nil {
			c.logger.Error("applying label failed",
				slog.String("task_id", tasks[i].ID),
				slog.String("label", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		labelled++
	}
	return labelled
}

// GetTask fetches one task. A task that does not exist (or was deleted) yields nil, nil.
func (c *Client) GetTask(ctx context.Context, token, id string) (*Task, error) {
	body, err := c.do(ctx, token, http.MethodGet, "tasks/"+url.PathEscape(id), nil, nil)
	if err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("todoist: getting task %s: %w", id, err)
	}

	var task Task
	if err := json.Unmarshal(body, &task); err != nil {
		return nil, &ProtocolError{Op: "get task", Err: err}
	}
	if task.ID == "" {
		return nil, &ProtocolError{Op: "get task", Err: errors.New("task has no id")}
	}
	return &task, nil
}

// UpdateTask applies patch to the task with the given id.
func (c *Client) UpdateTask(ctx context.Context, token, id string, patch TaskPatch) error {
	if patch.Labels == nil {
		patch.Labels = []string{}
	}
	if _, err := c.do(ctx, token, http.MethodPost, "tasks/"+url.PathEscape(id), nil, patch); err != nil {
		return fmt.Errorf("todoist: updating task %s: %w", id, err)
	}
	return nil
}

// RemoveLabel drops name from the task's labels. It reports whether an update
// was made; a missing task or a task without the label is not an error.
func (c *Client) RemoveLabel(ctx context.Context, token, id, name string) (bool, error) {
	task, err := c.GetTask(ctx, token, id)
	if err != nil {
		return false, err
	}
	if task == nil || !task.HasLabel(name) {
		return false, nil
	}

	kept := make([]string, 0, len(task.Labels))
	for _, l := range task.Labels {
		if l != name {
			kept = append(kept, l)
		}
	}
	if err := c.UpdateTask(ctx, token, id, TaskPatch{Labels: kept}); err != nil {
		return false, err
	}
	return true, nil
}

// Identity returns the account behind token, read from the Sync API's user resource.
func (c *Client) Identity(ctx context.Context, token string) (*Identity, error) {
	if c.syncURL == "" {
		return nil, errors.New("todoist: sync URL is not configured")
	}

	form := url.Values{}
	form.Set("sync_token", "*")
	form.Set("resource_types", `["user"]`)

	body, err := c.send(ctx, token, http.MethodPost, c.syncURL,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return nil, fmt.Errorf("todoist: fetching identity: %w", err)
	}

	var resp struct {
		User *Identity `json:"user"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProtocolError{Op: "fetch identity", Err: err}
	}
	if resp.User == nil {
		return nil, &ProtocolError{Op: "fetch identity", Err: errors.New("response has no user")}
	}
	return resp.User, nil
}

// do issues a JSON request against the REST API.
func (c *Client) do(ctx context.Context, token, method, path string, query url.Values, in any) ([]byte, error) {
	target := c.apiURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.send(ctx, token, method, target, body, contentType)
}

// send performs one authenticated request and returns the body of a 2xx response.
//
// AUTHENTICATION:
// oauth2.NewClient wraps our HTTP client's transport so every request carries
// "Authorization: Bearer <token>". The token comes from a StaticTokenSource
// because Todoist access tokens do not expire and have no refresh token.
//
// oauth2.NewClient ignores the base client's Timeout, so the deadline is put
// on the context instead.
func (c *Client) send(ctx context.Context, token, method, target string, body io.Reader, contentType string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	authed := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, c.http),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
	)

	start := time.Now()
	c.logger.Debug("todoist request", slog.String("method", method), slog.String("url", redact(target)))

	resp, err := authed.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	attrs := []any{
		slog.String("method", method),
		slog.String("url", redact(target)),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	}
	switch {
	case resp.StatusCode >= 500:
		c.logger.Error("todoist response", attrs...)
	default:
		c.logger.Debug("todoist response", attrs...)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &RequestError{Status: resp.StatusCode, Message: msg}
	}
	return data, nil
}

// decodeList decodes a JSON array into out. Anything other than an array
// (including null) is rejected.
func decodeList(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return errors.New("expected a JSON list")
	}
	return json.Unmarshal(trimmed, out)
}

// redact drops the query string; filters can contain personal label names.
func redact(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}
