// Package pulseboardsdk is a minimal Go client for the Pulseboard HTTP API.
package pulseboardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Pulseboard HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}
}

// HealthVector mirrors the per-dimension project health.
type HealthVector struct {
	Schedule string `json:"schedule"`
	Scope    string `json:"scope"`
	Quality  string `json:"quality"`
	Resource string `json:"resource"`
}

// Risk is one risk register entry.
type Risk struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Mitigation  string `json:"mitigation"`
}

// ActionItem is one tracked follow-up.
type ActionItem struct {
	ID      string `json:"id"`
	Task    string `json:"task"`
	Owner   string `json:"owner"`
	DueDate string `json:"dueDate"`
	Status  string `json:"status"`
}

// Workload is one per-owner workload row.
type Workload struct {
	Owner          string  `json:"owner"`
	LoadPercentage float64 `json:"loadPercentage"`
	TaskCount      int     `json:"taskCount"`
}

// Dependency is one external dependency entry.
type Dependency struct {
	ID         string `json:"id"`
	Dependency string `json:"dependency"`
	Impact     string `json:"impact"`
	Status     string `json:"status"`
}

// Report is the API report model.
type Report struct {
	ID                string       `json:"id"`
	Title             string       `json:"title"`
	ProjectName       string       `json:"projectName"`
	ReportDate        string       `json:"reportDate"`
	OverallStatus     string       `json:"overallStatus"`
	DeliverySentiment int          `json:"deliverySentiment"`
	Summary           string       `json:"summary"`
	Health            HealthVector `json:"health"`
	Highlights        []string     `json:"highlights"`
	UpcomingWork      []string     `json:"upcomingWork"`
	Risks             []Risk       `json:"risks"`
	ActionItems       []ActionItem `json:"actionItems"`
	Workload          []Workload   `json:"workload"`
	Dependencies      []Dependency `json:"dependencies"`
	CreatedAt         int64        `json:"createdAt"`
}

// User is the API identity model.
type User struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Edit names one report mutation. Op selects the operation; the
// remaining fields carry its arguments. Set Save to persist the result.
type Edit struct {
	Op         string      `json:"op"`
	Value      string      `json:"value,omitempty"`
	Sentiment  *int        `json:"sentiment,omitempty"`
	Dimension  string      `json:"dimension,omitempty"`
	Index      *int        `json:"index,omitempty"`
	Risk       *Risk       `json:"risk,omitempty"`
	ActionItem *ActionItem `json:"action_item,omitempty"`
	Dependency *Dependency `json:"dependency,omitempty"`
	Workload   *Workload   `json:"workload,omitempty"`
	Save       bool        `json:"save,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login exchanges an identity for a bearer token and stores it on the
// client for subsequent calls.
func (c *Client) Login(ctx context.Context, email, name string) (User, error) {
	body := map[string]any{"email": email, "name": name}
	var resp struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "auth/login", body, &resp); err != nil {
		return User{}, err
	}
	c.BearerToken = resp.Token
	return resp.User, nil
}

// Me returns the authenticated identity.
func (c *Client) Me(ctx context.Context) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "me", nil, &resp)
	return resp, err
}

// Ingest generates a report from raw project data. The result is not
// saved; call SaveReport to persist it.
func (c *Client) Ingest(ctx context.Context, content string) (Report, error) {
	body := map[string]any{"content": content}
	var resp Report
	err := c.do(ctx, http.MethodPost, "reports/ingest", body, &resp)
	return resp, err
}

// ListReports returns saved reports, most recently saved first.
func (c *Client) ListReports(ctx context.Context) ([]Report, error) {
	var resp struct {
		Items []Report `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "reports", nil, &resp)
	return resp.Items, err
}

// GetReport fetches a saved report by id.
func (c *Client) GetReport(ctx context.Context, id string) (Report, error) {
	var resp Report
	err := c.do(ctx, http.MethodGet, c.reportPath(id, ""), nil, &resp)
	return resp, err
}

// SaveReport upserts a report. A report that already exists moves to
// the front of the listing.
func (c *Client) SaveReport(ctx context.Context, r Report) (Report, error) {
	var resp Report
	err := c.do(ctx, http.MethodPut, c.reportPath(r.ID, ""), r, &resp)
	return resp, err
}

// DeleteReport removes a saved report. Deleting an absent id is not an
// error.
func (c *Client) DeleteReport(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.reportPath(id, ""), nil, nil)
}

// EditReport applies one named edit and returns the edited report.
func (c *Client) EditReport(ctx context.Context, id string, edit Edit) (Report, error) {
	var resp Report
	err := c.do(ctx, http.MethodPost, c.reportPath(id, "edits"), edit, &resp)
	return resp, err
}

// ExportReport renders a report as plain text.
func (c *Client) ExportReport(ctx context.Context, id string) (string, error) {
	var resp struct {
		Text string `json:"text"`
	}
	err := c.do(ctx, http.MethodGet, c.reportPath(id, "export"), nil, &resp)
	return resp.Text, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) reportPath(id, suffix string) string {
	p := "reports/" + url.PathEscape(id)
	if suffix != "" {
		p += "/" + suffix
	}
	return p
}

// base joins BaseURL and the API version prefix.
func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/") + "/v0"
}
