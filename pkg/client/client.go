package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pmaffi/jira-flow-metrics/internal/domain"
)

// Client is the API client for jira-flow-metrics
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Collect triggers a collection run for a project window and returns the
// resulting snapshot
func (c *Client) Collect(project string, start, end time.Time) (*domain.MetricsSnapshot, error) {
	path := fmt.Sprintf("/api/v1/projects/%s/collect", url.PathEscape(project))
	params := c.buildWindowParams(start, end)

	var response struct {
		Data *domain.MetricsSnapshot `json:"data"`
	}
	if err := c.do(http.MethodPost, path, params, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetLatestSnapshot retrieves the most recent snapshot for a project
func (c *Client) GetLatestSnapshot(project string) (*domain.MetricsSnapshot, error) {
	path := fmt.Sprintf("/api/v1/projects/%s/snapshots/latest", url.PathEscape(project))

	var response struct {
		Data *domain.MetricsSnapshot `json:"data"`
	}
	if err := c.do(http.MethodGet, path, nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// ListSnapshots retrieves recent snapshots for a project
func (c *Client) ListSnapshots(project string, limit int) ([]*domain.MetricsSnapshot, error) {
	path := fmt.Sprintf("/api/v1/projects/%s/snapshots", url.PathEscape(project))
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var response struct {
		Data []*domain.MetricsSnapshot `json:"data"`
	}
	if err := c.do(http.MethodGet, path, params, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetSnapshot retrieves one snapshot by id
func (c *Client) GetSnapshot(id string) (*domain.MetricsSnapshot, error) {
	path := fmt.Sprintf("/api/v1/snapshots/%s", url.PathEscape(id))

	var response struct {
		Data *domain.MetricsSnapshot `json:"data"`
	}
	if err := c.do(http.MethodGet, path, nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetForecast retrieves a completion forecast for a project.
// remainingHours <= 0 lets the server use the latest snapshot's value; a zero
// deadline lets the server apply its default sprint length.
func (c *Client) GetForecast(project string, remainingHours float64, deadline time.Time) (*domain.Forecast, error) {
	path := fmt.Sprintf("/api/v1/projects/%s/forecast", url.PathEscape(project))
	params := url.Values{}
	if remainingHours > 0 {
		params.Set("remaining_hours", strconv.FormatFloat(remainingHours, 'f', -1, 64))
	}
	if !deadline.IsZero() {
		params.Set("deadline", deadline.Format("2006-01-02"))
	}

	var response struct {
		Data *domain.Forecast `json:"data"`
	}
	if err := c.do(http.MethodGet, path, params, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetSprintHistory retrieves recent sprint records for a project
func (c *Client) GetSprintHistory(project string, limit int) ([]domain.HistoricalSprintRecord, error) {
	path := fmt.Sprintf("/api/v1/projects/%s/history", url.PathEscape(project))
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var response struct {
		Data []domain.HistoricalSprintRecord `json:"data"`
	}
	if err := c.do(http.MethodGet, path, params, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// HealthCheck checks if the API is healthy
func (c *Client) HealthCheck() error {
	var response struct {
		Status string `json:"status"`
	}
	if err := c.do(http.MethodGet, "/health", nil, &response); err != nil {
		return err
	}
	if response.Status != "ok" {
		return fmt.Errorf("unhealthy status: %s", response.Status)
	}
	return nil
}

func (c *Client) buildWindowParams(start, end time.Time) url.Values {
	params := url.Values{}
	if !start.IsZero() {
		params.Set("start", start.Format("2006-01-02"))
	}
	if !end.IsZero() {
		params.Set("end", end.Format("2006-01-02"))
	}
	return params
}

func (c *Client) do(method, path string, params url.Values, result interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequest(method, u.String(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: %s - %s", resp.Status, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(result)
}
