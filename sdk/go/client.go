package esgtracksdk

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

// Client is a minimal esgtrack HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	// ActorID is sent as X-Actor-Id when no bearer token is set; servers accept it only in dev mode.
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

type Meter struct {
	Number   string `json:"number"`
	Type     string `json:"type"`
	Provider string `json:"provider,omitempty"`
	Location string `json:"location,omitempty"`
}

// Company represents the API company model.
type Company struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Sector       string         `json:"sector"`
	Emirate      string         `json:"emirate,omitempty"`
	EmployeeSize string         `json:"employee_size,omitempty"`
	Answers      map[string]any `json:"answers,omitempty"`
	Meters       []Meter        `json:"meters,omitempty"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
}

// CompanyInput is the body for CreateCompany.
type CompanyInput struct {
	ID           string         `json:"id,omitempty"`
	Name         string         `json:"name"`
	Sector       string         `json:"sector"`
	Emirate      string         `json:"emirate,omitempty"`
	EmployeeSize string         `json:"employee_size,omitempty"`
	Answers      map[string]any `json:"answers,omitempty"`
}

// Task represents the API task model (partial).
type Task struct {
	ID                    string    `json:"id"`
	CompanyID             string    `json:"company_id"`
	Title                 string    `json:"title"`
	Description           string    `json:"description"`
	ActionRequired        string    `json:"action_required"`
	Category              string    `json:"category"`
	Priority              string    `json:"priority"`
	Status                string    `json:"status"`
	DueDate               time.Time `json:"due_date"`
	FrameworkTags         []string  `json:"framework_tags"`
	RequiredEvidenceCount int       `json:"required_evidence_count"`
	EvidenceType          string    `json:"evidence_type"`
	Source                string    `json:"source"`
	SourceKey             string    `json:"source_key"`
	Progress              float64   `json:"progress"`
}

// ApplyResult counts what a generation run changed.
type ApplyResult struct {
	Created   int    `json:"created"`
	Refreshed int    `json:"refreshed"`
	Unchanged int    `json:"unchanged"`
	Removed   int    `json:"removed"`
	Kept      int    `json:"kept"`
	Tasks     []Task `json:"tasks"`
}

type Generation struct {
	CompanyID string       `json:"company_id"`
	DryRun    bool         `json:"dry_run"`
	Tasks     []Task       `json:"tasks"`
	Applied   *ApplyResult `json:"applied,omitempty"`
}

// Evidence represents an attached file reference or data point.
type Evidence struct {
	ID        string   `json:"id"`
	TaskID    string   `json:"task_id"`
	Kind      string   `json:"kind"`
	Filename  string   `json:"filename,omitempty"`
	MimeType  string   `json:"mime_type,omitempty"`
	Value     *float64 `json:"value,omitempty"`
	Unit      string   `json:"unit,omitempty"`
	Note      string   `json:"note,omitempty"`
	CreatedBy string   `json:"created_by"`
	CreatedAt string   `json:"created_at"`
}

// EvidenceInput is the body for AddEvidence.
type EvidenceInput struct {
	Kind     string   `json:"kind"`
	Filename string   `json:"filename,omitempty"`
	MimeType string   `json:"mime_type,omitempty"`
	Value    *float64 `json:"value,omitempty"`
	Unit     string   `json:"unit,omitempty"`
	Note     string   `json:"note,omitempty"`
}

type EvidenceResult struct {
	Evidence Evidence `json:"evidence"`
	Task     Task     `json:"task"`
}

type Compliance struct {
	CompanyID            string  `json:"company_id"`
	Framework            string  `json:"framework"`
	Status               string  `json:"status"`
	CompliancePercentage float64 `json:"compliance_percentage"`
	RequiredQuestions    int     `json:"required_questions"`
	AnsweredQuestions    int     `json:"answered_questions"`
	MissingQuestions     []struct {
		ID       string `json:"id"`
		Question string `json:"question"`
		Category string `json:"category"`
	} `json:"missing_questions"`
	Tasks           int      `json:"tasks"`
	CompletedTasks  int      `json:"completed_tasks"`
	TaskProgress    float64  `json:"task_progress"`
	Recommendations []string `json:"recommendations"`
}

// Stats mirrors the dashboard statistics (partial).
type Stats struct {
	CompanyID      string         `json:"company_id"`
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	Overdue        int            `json:"overdue"`
	CompletionRate float64        `json:"completion_rate"`
	HoursRemaining float64        `json:"hours_remaining"`
}

type NextStep struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Action   string `json:"action"`
	Priority string `json:"priority"`
	TaskID   string `json:"task_id"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	CompanyID  string `json:"company_id"`
	EntityID   string `json:"entity_id"`
	EntityKind string `json:"entity_kind"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// CreateCompany registers a company.
func (c *Client) CreateCompany(ctx context.Context, in CompanyInput) (Company, error) {
	var resp Company
	err := c.do(ctx, http.MethodPost, "v0/companies", in, &resp)
	return resp, err
}

func (c *Client) GetCompany(ctx context.Context, companyID string) (Company, error) {
	var resp Company
	err := c.do(ctx, http.MethodGet, c.companyPath(companyID, ""), nil, &resp)
	return resp, err
}

// SetAnswers merges answers into the company's questionnaire, or replaces them.
func (c *Client) SetAnswers(ctx context.Context, companyID string, answers map[string]any, replace bool) (Company, error) {
	body := map[string]any{"answers": answers, "replace": replace}
	var resp Company
	err := c.do(ctx, http.MethodPut, c.companyPath(companyID, "answers"), body, &resp)
	return resp, err
}

func (c *Client) AddMeter(ctx context.Context, companyID string, m Meter) (Company, error) {
	var resp Company
	err := c.do(ctx, http.MethodPost, c.companyPath(companyID, "meters"), m, &resp)
	return resp, err
}

// Generate runs task generation; dryRun returns tasks without storing them.
func (c *Client) Generate(ctx context.Context, companyID string, dryRun bool) (Generation, error) {
	endpoint := c.companyPath(companyID, "generate")
	if dryRun {
		endpoint += "?dry_run=true"
	}
	var resp Generation
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// Tasks lists tasks; filters map to query parameters such as status or category.
func (c *Client) Tasks(ctx context.Context, companyID string, filters map[string]string) ([]Task, error) {
	endpoint := c.companyPath(companyID, "tasks")
	if len(filters) > 0 {
		q := url.Values{}
		for k, v := range filters {
			q.Set(k, v)
		}
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Items []Task `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// UpdateTaskStatus moves a task to status.
func (c *Client) UpdateTaskStatus(ctx context.Context, companyID, taskID, status string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPatch, c.companyPath(companyID, "tasks/"+url.PathEscape(taskID)), map[string]any{"status": status}, &resp)
	return resp, err
}

func (c *Client) CompleteTask(ctx context.Context, companyID, taskID string, force bool) (Task, error) {
	var resp Task
	endpoint := c.companyPath(companyID, fmt.Sprintf("tasks/%s/complete", url.PathEscape(taskID)))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"force": force}, &resp)
	return resp, err
}

// AddEvidence attaches evidence to a task.
func (c *Client) AddEvidence(ctx context.Context, companyID, taskID string, in EvidenceInput) (EvidenceResult, error) {
	var resp EvidenceResult
	endpoint := c.companyPath(companyID, fmt.Sprintf("tasks/%s/evidence", url.PathEscape(taskID)))
	err := c.do(ctx, http.MethodPost, endpoint, in, &resp)
	return resp, err
}

func (c *Client) ListEvidence(ctx context.Context, companyID, taskID string) ([]Evidence, error) {
	var resp struct {
		Items []Evidence `json:"items"`
	}
	endpoint := c.companyPath(companyID, fmt.Sprintf("tasks/%s/evidence", url.PathEscape(taskID)))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) Stats(ctx context.Context, companyID string) (Stats, error) {
	var resp Stats
	err := c.do(ctx, http.MethodGet, c.companyPath(companyID, "stats"), nil, &resp)
	return resp, err
}

func (c *Client) Compliance(ctx context.Context, companyID, framework string) (Compliance, error) {
	var resp Compliance
	err := c.do(ctx, http.MethodGet, c.companyPath(companyID, "compliance/"+url.PathEscape(framework)), nil, &resp)
	return resp, err
}

func (c *Client) NextSteps(ctx context.Context, companyID string) ([]NextStep, error) {
	var resp struct {
		Items []NextStep `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, c.companyPath(companyID, "next-steps"), nil, &resp)
	return resp.Items, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, companyID string, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, companyID, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, companyID string, limit int, cursor string) (PaginatedEvents, error) {
	endpoint := c.companyPath(companyID, "events")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
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
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) companyPath(companyID, p string) string {
	company := url.PathEscape(companyID)
	if p == "" {
		return "v0/companies/" + company
	}
	return fmt.Sprintf("v0/companies/%s/%s", company, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
