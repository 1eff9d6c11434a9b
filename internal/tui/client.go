package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fentz26/studyplan/internal/models"
	"github.com/fentz26/studyplan/internal/planstate"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// RebalanceTimeout bounds a rebalance request, which waits on the generator.
const RebalanceTimeout = 5 * time.Minute

// Client wraps HTTP calls to the studyplan API
type Client struct {
	baseURL    string
	httpClient *http.Client
	slowClient *http.Client
}

// NewClient creates a new API client with timeout
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultClientTimeout},
		slowClient: &http.Client{Timeout: RebalanceTimeout},
	}
}

// Plan fetches the current plan snapshot.
func (c *Client) Plan() (*planstate.Snapshot, error) {
	var snap planstate.Snapshot
	if err := c.do(c.httpClient, http.MethodGet, "/plan", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Health reports whether the daemon answers its health check.
func (c *Client) Health() bool {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// SetStatus changes a task's status.
func (c *Client) SetStatus(taskID string, status models.TaskStatus) error {
	body := map[string]string{"status": string(status)}
	return c.do(c.httpClient, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/status", body, nil)
}

// DeleteTask removes a task from the plan.
func (c *Client) DeleteTask(taskID string) error {
	return c.do(c.httpClient, http.MethodDelete, "/tasks/"+url.PathEscape(taskID), nil, nil)
}

// Rebalance asks the daemon to rebalance and waits for the result.
func (c *Client) Rebalance() (*planstate.Snapshot, error) {
	var snap planstate.Snapshot
	if err := c.do(c.slowClient, http.MethodPost, "/plan/rebalance", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// SelectVariant switches the plan option.
func (c *Client) SelectVariant(index int) (*planstate.Snapshot, error) {
	return c.selectIndex("/plan/variant", index)
}

// SelectWeek moves the week cursor. The daemon clamps the index.
func (c *Client) SelectWeek(index int) (*planstate.Snapshot, error) {
	return c.selectIndex("/plan/week", index)
}

func (c *Client) selectIndex(path string, index int) (*planstate.Snapshot, error) {
	var snap planstate.Snapshot
	if err := c.do(c.httpClient, http.MethodPost, path, map[string]int{"index": index}, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// AddTask adds a task to the given session. It reports false when the
// position no longer exists.
func (c *Client) AddTask(weekIndex, sessionIndex int, task models.Task) (models.Task, bool, error) {
	req := map[string]interface{}{
		"week_index":    weekIndex,
		"session_index": sessionIndex,
		"task":          task,
	}
	var result struct {
		Added bool        `json:"added"`
		Task  models.Task `json:"task"`
	}
	if err := c.do(c.httpClient, http.MethodPost, "/plan/tasks", req, &result); err != nil {
		return models.Task{}, false, err
	}
	return result.Task, result.Added, nil
}

// Logs fetches the rebalance log.
func (c *Client) Logs() ([]models.RebalanceLog, error) {
	var entries []models.RebalanceLog
	if err := c.do(c.httpClient, http.MethodGet, "/plan/log", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) do(hc *http.Client, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("API error: %s", apiErr.Error)
		}
		return fmt.Errorf("API error: %s", string(data))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
