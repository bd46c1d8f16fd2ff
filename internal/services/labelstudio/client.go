package labelstudio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"labelreel/internal/config"
	"labelreel/internal/logging"
	"labelreel/internal/services"
)

// DefaultPageSize is the task page size requested from the API.
const DefaultPageSize = 100

// HTTPDoer describes the HTTP client used by the Label Studio client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a minimal Label Studio REST client bound to one project.
type Client struct {
	baseURL   string
	apiKey    string
	projectID int
	pageSize  int
	client    HTTPDoer
	logger    *slog.Logger
}

// New constructs a client. A nil doer uses http.DefaultClient.
func New(baseURL, apiKey string, projectID int, client HTTPDoer, logger *slog.Logger) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:    strings.TrimSpace(apiKey),
		projectID: projectID,
		pageSize:  DefaultPageSize,
		client:    client,
		logger:    logging.NewComponentLogger(logger, "labelstudio"),
	}
}

// NewFromConfig builds a client from the [label_studio] section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "labelstudio", "configure", "config is nil", nil)
	}
	ls := cfg.LabelStudio
	if strings.TrimSpace(ls.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "labelstudio", "configure",
			"label_studio.api_key is not set (or export LABEL_STUDIO_API_KEY)", nil)
	}
	if ls.ProjectID <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "labelstudio", "configure",
			"label_studio.project_id must be positive", nil)
	}
	httpClient := &http.Client{Timeout: time.Duration(ls.RequestTimeout) * time.Second}
	return New(ls.URL, ls.APIKey, ls.ProjectID, httpClient, logger), nil
}

// BaseURL returns the server root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ProjectID returns the project the client is bound to.
func (c *Client) ProjectID() int {
	return c.projectID
}

// Export is an export snapshot created on the server.
type Export struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// CreateExport asks the server to build a new export snapshot.
func (c *Client) CreateExport(ctx context.Context, title string, interpolateKeyframes bool) (Export, error) {
	payload := map[string]any{
		"title":                  title,
		"interpolate_key_frames": interpolateKeyframes,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Export{}, fmt.Errorf("encode export request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/api/projects/%d/exports", c.baseURL, c.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Export{}, fmt.Errorf("build export request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req, "create export")
	if err != nil {
		return Export{}, err
	}
	defer resp.Body.Close()

	var export Export
	if err := json.NewDecoder(resp.Body).Decode(&export); err != nil {
		return Export{}, services.Wrap(services.ErrExternalTool, "labelstudio", "create export", "decode response", err)
	}
	if export.ID == 0 {
		return Export{}, services.Wrap(services.ErrExternalTool, "labelstudio", "create export", "response has no export id", nil)
	}
	c.logger.Info("export snapshot created",
		logging.Int("export_id", export.ID),
		logging.String("status", export.Status),
	)
	return export, nil
}

// DownloadExport streams export exportID in JSON_MIN form to w.
func (c *Client) DownloadExport(ctx context.Context, exportID int, w io.Writer) (int64, error) {
	endpoint := fmt.Sprintf("%s/api/projects/%d/exports/%d/download?exportType=JSON_MIN", c.baseURL, c.projectID, exportID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build export download request: %w", err)
	}
	resp, err := c.do(req, "download export")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, services.Wrap(services.ErrTransient, "labelstudio", "download export", "read body", err)
	}
	return n, nil
}

// Task is the subset of a Label Studio task used for video download.
type Task struct {
	ID   int            `json:"id"`
	Data map[string]any `json:"data"`
}

// VideoURL returns the task's data.video value, or "" when absent.
func (t Task) VideoURL() string {
	if t.Data == nil {
		return ""
	}
	value, ok := t.Data["video"].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

type taskPage struct {
	Tasks []Task `json:"tasks"`
	Total int    `json:"total"`
}

// ListTasks pages through every task in the project.
func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	var tasks []Task
	for page := 1; ; page++ {
		batch, done, err := c.taskPage(ctx, page)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, batch...)
		if done || len(batch) < c.pageSize {
			break
		}
	}
	c.logger.Debug("listed project tasks", logging.Int("tasks", len(tasks)))
	return tasks, nil
}

func (c *Client) taskPage(ctx context.Context, page int) ([]Task, bool, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(c.pageSize))
	endpoint := fmt.Sprintf("%s/api/projects/%d/tasks?%s", c.baseURL, c.projectID, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build task list request: %w", err)
	}
	resp, err := c.send(req, "list tasks")
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	// Pages past the end answer 404.
	if resp.StatusCode == http.StatusNotFound && page > 1 {
		return nil, true, nil
	}
	if err := statusError(resp, "list tasks"); err != nil {
		return nil, false, err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, services.Wrap(services.ErrTransient, "labelstudio", "list tasks", "read body", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var tasks []Task
		if err := json.Unmarshal(raw, &tasks); err != nil {
			return nil, false, services.Wrap(services.ErrExternalTool, "labelstudio", "list tasks", "decode task list", err)
		}
		return tasks, false, nil
	}
	var wrapped taskPage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, false, services.Wrap(services.ErrExternalTool, "labelstudio", "list tasks", "decode task page", err)
	}
	done := wrapped.Total > 0 && (page-1)*c.pageSize+len(wrapped.Tasks) >= wrapped.Total
	return wrapped.Tasks, done, nil
}

// ResolveURL turns a task's media reference into an absolute URL.
func (c *Client) ResolveURL(ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "/") {
		return c.baseURL + ref
	}
	return ref
}

func (c *Client) send(req *http.Request, operation string) (*http.Response, error) {
	req.Header.Set("Authorization", "Token "+c.apiKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "labelstudio", operation, "request failed", err)
	}
	return resp, nil
}

// do sends req and rejects non-2xx responses.
func (c *Client) do(req *http.Request, operation string) (*http.Response, error) {
	resp, err := c.send(req, operation)
	if err != nil {
		return nil, err
	}
	if err := statusError(resp, operation); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func statusError(resp *http.Response, operation string) error {
	if resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	message := fmt.Sprintf("server returned %d", resp.StatusCode)
	if text := strings.TrimSpace(string(snippet)); text != "" {
		message += ": " + text
	}
	marker := services.ErrExternalTool
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		marker = services.ErrConfiguration
	case http.StatusNotFound:
		marker = services.ErrNotFound
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		marker = services.ErrTimeout
	}
	return services.Wrap(marker, "labelstudio", operation, message, nil)
}
