// ABOUTME: HTTP client for the cradle server API, used by devices to pull and push.
// ABOUTME: Maps HTTP failures onto the shared error taxonomy so the queue can classify them.
package remote

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
	"time"

	"github.com/harperreed/cradle/internal/errs"
	"github.com/harperreed/cradle/internal/logger"
	"github.com/harperreed/cradle/internal/models"
	"github.com/patrickmn/go-cache"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 30 * time.Second

const (
	apiPrefix       = "/api/v1"
	defaultProbeTTL = 5 * time.Second
	probeKey        = "online"
	maxErrorBody    = 64 << 10
)

// Client talks to one server as one owner.
type Client struct {
	baseURL  string
	token    string
	owner    int64
	http     *http.Client
	probe    *cache.Cache
	probeTTL time.Duration
	log      *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithProbeTTL sets how long a connectivity probe result is reused.
func WithProbeTTL(d time.Duration) Option {
	return func(c *Client) { c.probeTTL = d }
}

// New creates a client for baseURL authenticating with a bearer token
// issued for owner.
func New(baseURL, token string, owner int64, opts ...Option) *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		owner:    owner,
		http:     &http.Client{Transport: transport, Timeout: DefaultTimeout},
		probeTTL: defaultProbeTTL,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.probe = cache.New(c.probeTTL, 2*c.probeTTL)
	c.log = c.log.With("component", "remote", "server", c.baseURL)
	return c
}

// Ping checks the server health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Online reports whether the server answered a recent ping. Results are
// cached briefly so a drain does not probe per entry.
func (c *Client) Online(ctx context.Context) bool {
	if v, ok := c.probe.Get(probeKey); ok {
		return v.(bool)
	}
	err := c.Ping(ctx)
	online := err == nil
	if !online {
		c.log.Debug("server unreachable", "error", err)
	}
	c.probe.Set(probeKey, online, cache.DefaultExpiration)
	return online
}

// Snapshot fetches the owner's full synced state.
func (c *Client) Snapshot(ctx context.Context, owner int64) (*models.Snapshot, error) {
	if err := c.checkOwner(owner); err != nil {
		return nil, err
	}
	var snap models.Snapshot
	if err := c.do(ctx, http.MethodGet, "/snapshot", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Execute performs one mutation.
func (c *Client) Execute(ctx context.Context, owner int64, m models.Mutation) error {
	if err := c.checkOwner(owner); err != nil {
		return err
	}
	method, path, body, err := route(m)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, body, nil)
}

// Export downloads the owner's export document.
func (c *Client) Export(ctx context.Context) (*models.Document, error) {
	var doc models.Document
	if err := c.do(ctx, http.MethodGet, "/export", nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ImportResult is the server's import summary.
type ImportResult struct {
	Activities       int  `json:"activities"`
	CustomActivities int  `json:"customActivities"`
	GrowthRecords    int  `json:"growthRecords"`
	Schedules        int  `json:"schedules"`
	Skipped          int  `json:"skipped"`
	Profile          bool `json:"profile"`
	Settings         bool `json:"settings"`
}

// Import replaces the owner's account with doc.
func (c *Client) Import(ctx context.Context, doc *models.Document) (*ImportResult, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, errs.Validation("encode document: %v", err)
	}
	var res ImportResult
	if err := c.do(ctx, http.MethodPost, "/import", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteAccount removes every record the owner has on the server.
func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/account", nil, nil)
}

// ListSchedules returns the owner's notification schedules.
func (c *Client) ListSchedules(ctx context.Context) ([]models.NotificationSchedule, error) {
	var out []models.NotificationSchedule
	if err := c.do(ctx, http.MethodGet, "/schedules", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveSchedule creates or replaces a schedule.
func (c *Client) SaveSchedule(ctx context.Context, s *models.NotificationSchedule) (*models.NotificationSchedule, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return nil, errs.Validation("encode schedule: %v", err)
	}
	var saved models.NotificationSchedule
	if err := c.do(ctx, http.MethodPut, "/schedules/"+url.PathEscape(s.ID), body, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// DeleteSchedule removes a schedule.
func (c *Client) DeleteSchedule(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/schedules/"+url.PathEscape(id), nil, nil)
}

func (c *Client) checkOwner(owner int64) error {
	if c.owner != 0 && owner != c.owner {
		return errs.Validation("client is authenticated as owner %d, not %d", c.owner, owner)
	}
	return nil
}

// route maps a mutation to its HTTP request.
func route(m models.Mutation) (method, path string, body []byte, err error) {
	switch m.Action {
	case models.ActionSaveProfile:
		return http.MethodPut, "/profile", m.Payload, nil
	case models.ActionSaveSettings:
		return http.MethodPut, "/settings", m.Payload, nil
	}

	var collection string
	switch m.Action.Family() {
	case "activity":
		collection = "/activities/"
	case "custom_activity":
		collection = "/custom-activities/"
	case "growth_record":
		collection = "/growth-records/"
	default:
		return "", "", nil, errs.Validation("unknown action %q", m.Action)
	}
	id, err := m.RecordID()
	if err != nil {
		return "", "", nil, err
	}
	path = collection + url.PathEscape(id)
	if m.Action.IsDelete() {
		return http.MethodDelete, path, nil, nil
	}
	return http.MethodPut, path, m.Payload, nil
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	op := method + " " + path
	target := c.baseURL + path
	if path != "/healthz" {
		target = c.baseURL + apiPrefix + path
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return errs.Validation("build request %s: %v", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts, refused connections, DNS failures, and cancellation all
		// mean "try again later".
		return errs.Transient(op, err)
	}
	defer resp.Body.Close()
	c.log.Debug("remote call", "method", method, "path", path, "status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errs.Transient(op, fmt.Errorf("decode response: %w", err))
		}
		return nil
	}
	return classify(op, resp)
}

// classify turns a non-2xx response into a taxonomy error.
func classify(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(data))
	var env errorEnvelope
	if json.Unmarshal(data, &env) == nil && env.Error.Message != "" {
		msg = env.Error.Message
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	detail := &StatusError{Op: op, Status: resp.StatusCode, Message: msg}

	switch {
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %w", errs.ErrValidation, detail)
	case resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %w", errs.ErrOwnershipConflict, detail)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w", errs.ErrNotFound, detail)
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode >= 500:
		// An expired token is fixed by the user, not by discarding writes.
		return errs.Transient(op, detail)
	default:
		return fmt.Errorf("%w: %w", errs.ErrValidation, detail)
	}
}

// StatusError is a non-2xx response from the server.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
}

// IsUnauthorized reports whether err came from a 401 response.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusUnauthorized
}
