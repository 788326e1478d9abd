package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"segbridge/labels"
	"segbridge/models"
	"segbridge/service"
)

// Client is the HTTP client for talking to the SegBridge server
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new HTTP client. token may be empty when the server
// runs without auth.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// envelope mirrors the server's response wrapper.
type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// doRequest executes an HTTP request
func (c *Client) doRequest(method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %v", err)
		}
		bodyReader = bytes.NewBuffer(jsonData)
	}

	url := c.baseURL + path
	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}

	return resp, nil
}

// call executes a request and unwraps the response envelope into result.
// The server's message is returned so callers can echo it.
func (c *Client) call(method, path string, body, result interface{}) (string, error) {
	resp, err := c.doRequest(method, path, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", fmt.Errorf("HTTP %d: failed to decode response: %v", resp.StatusCode, err)
	}

	// Decode data even on errors; some failures (validation) carry a
	// payload the caller wants to show.
	if result != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil && resp.StatusCode < 300 {
			return env.Message, fmt.Errorf("failed to decode response data: %v", err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := env.Message
		var payload struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(env.Data, &payload) == nil && payload.Detail != "" {
			detail = fmt.Sprintf("%s (%s)", env.Message, payload.Detail)
		}
		return env.Message, fmt.Errorf("HTTP %d %s: %s", resp.StatusCode, env.Code, detail)
	}
	return env.Message, nil
}

// Health pings the health endpoint. The health payload is flat JSON, not the
// envelope.
func (c *Client) Health() (map[string]interface{}, error) {
	resp, err := c.doRequest("GET", "/api/health", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var health map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("server unhealthy: HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode != 200 {
		return health, fmt.Errorf("server unhealthy: HTTP %d", resp.StatusCode)
	}
	return health, nil
}

// Version fetches server build metadata
func (c *Client) Version() (map[string]string, error) {
	var v map[string]string
	_, err := c.call("GET", "/api/version", nil, &v)
	return v, err
}

// ConfigInfo is the toolkit configuration as the server reports it.
type ConfigInfo struct {
	SynthSegPath string `json:"synthseg_path"`
	PythonPath   string `json:"python_path"`
	Configured   bool   `json:"configured"`
}

// GetConfig fetches the toolkit configuration
func (c *Client) GetConfig() (*ConfigInfo, error) {
	var info ConfigInfo
	_, err := c.call("GET", "/api/config", nil, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// SetConfig saves toolkit paths. Returns the validation report and the
// server's message.
func (c *Client) SetConfig(req models.ToolkitUpdate, force bool) (*service.ValidationReport, string, error) {
	path := "/api/config"
	if force {
		path += "?force=true"
	}
	var report service.ValidationReport
	msg, err := c.call("PUT", path, req, &report)
	return &report, msg, err
}

// ValidateConfig runs both validators server-side
func (c *Client) ValidateConfig() (*service.ValidationReport, error) {
	var report service.ValidationReport
	_, err := c.call("POST", "/api/config/validate", nil, &report)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// CreateRun starts a segmentation run
func (c *Client) CreateRun(req models.RunCreate) (*models.Run, error) {
	var run models.Run
	_, err := c.call("POST", "/api/runs", req, &run)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// RunPage is one page of the run listing.
type RunPage struct {
	Runs     []models.RunRead `json:"runs"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// ListRuns fetches one page of runs, newest first
func (c *Client) ListRuns(page int) (*RunPage, error) {
	var runs RunPage
	_, err := c.call("GET", fmt.Sprintf("/api/runs?page=%d", page), nil, &runs)
	if err != nil {
		return nil, err
	}
	return &runs, nil
}

// GetRun fetches a single run with captured output
func (c *Client) GetRun(id uint) (*models.Run, error) {
	var run models.Run
	_, err := c.call("GET", fmt.Sprintf("/api/runs/%d", id), nil, &run)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// StopRun cancels an active run
func (c *Client) StopRun(id uint) (string, error) {
	return c.call("POST", fmt.Sprintf("/api/runs/%d/stop", id), nil, nil)
}

// DeleteRun removes a finished run record
func (c *Client) DeleteRun(id uint) (string, error) {
	return c.call("DELETE", fmt.Sprintf("/api/runs/%d", id), nil, nil)
}

// Progress is one poll of an active run's output feed.
type Progress struct {
	Active  bool     `json:"active"`
	Status  string   `json:"status"`
	Lines   []string `json:"lines"`
	Next    uint64   `json:"next"`
	Dropped uint64   `json:"dropped"`
}

// GetProgress polls the progress feed starting at line index from
func (c *Client) GetProgress(id uint, from uint64) (*Progress, error) {
	var p Progress
	_, err := c.call("GET", fmt.Sprintf("/api/runs/%d/progress?from=%d", id, from), nil, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Volumes is the parsed region-volume payload of a finished run.
type Volumes struct {
	Subject string                `json:"subject"`
	Regions []VolumeRegion        `json:"regions"`
	Summary *VolumeSummaryDisplay `json:"summary"`
}

// VolumeRegion is one region row.
type VolumeRegion struct {
	Column string       `json:"column"`
	Volume float64      `json:"volume_mm3"`
	Label  labels.Label `json:"label"`
	Known  bool         `json:"known"`
}

// GetVolumes fetches the parsed volumes of a finished run
func (c *Client) GetVolumes(id uint) (*Volumes, error) {
	var v Volumes
	_, err := c.call("GET", fmt.Sprintf("/api/runs/%d/volumes", id), nil, &v)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// VolumeSummaryDisplay mirrors the server's summary statistics block.
type VolumeSummaryDisplay struct {
	Regions int                `json:"regions"`
	Total   float64            `json:"total_volume"`
	Mean    float64            `json:"mean"`
	StdDev  float64            `json:"std_dev"`
	Min     float64            `json:"min"`
	Max     float64            `json:"max"`
	ByClass map[string]float64 `json:"by_class"`
}

// GetErrorLogs fetches recent error feed entries
func (c *Client) GetErrorLogs() ([]models.ErrorLog, error) {
	var logs []models.ErrorLog
	_, err := c.call("GET", "/api/error-logs", nil, &logs)
	return logs, err
}
