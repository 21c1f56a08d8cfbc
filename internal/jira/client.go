package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/pmaffi/jira-flow-metrics/internal/domain"
	apperrors "github.com/pmaffi/jira-flow-metrics/internal/errors"
)

// QueryClient issues single requests against the Jira REST API. Each call is
// one attempt bound by the caller's deadline; retry policy lives upstream.
type QueryClient interface {
	SearchPage(ctx context.Context, req SearchRequest) (*SearchPage, error)
	// Changelog fetches all status transitions for an issue. readTimeout
	// bounds each page request; zero means the client default.
	Changelog(ctx context.Context, issueKey string, readTimeout time.Duration) ([]domain.StatusTransition, error)
}

// SearchRequest describes one page of a JQL search.
type SearchRequest struct {
	JQL        string
	StartAt    int
	MaxResults int
	// ReadTimeout bounds this single attempt. Zero means the client default.
	ReadTimeout time.Duration
}

// SearchPage is one page of search results.
type SearchPage struct {
	StartAt    int
	MaxResults int
	Total      int
	Issues     []*domain.Issue
}

type client struct {
	baseURL     string
	httpClient  *http.Client
	readTimeout time.Duration
	log         zerolog.Logger
}

// NewClient creates a Jira query client authenticated with a bearer token.
func NewClient(baseURL, token string, connectTimeout, readTimeout time.Duration, log zerolog.Logger) QueryClient {
	dialer := &net.Dialer{Timeout: connectTimeout}
	base := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: connectTimeout,
		MaxIdleConns:        10,
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	transport := &oauth2.Transport{Source: ts, Base: base}
	return &client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Transport: transport},
		readTimeout: readTimeout,
		log:         log,
	}
}

const searchFields = "key,summary,status,created,updated,resolutiondate,assignee,priority,issuetype,project,timeoriginalestimate"

func (c *client) SearchPage(ctx context.Context, req SearchRequest) (*SearchPage, error) {
	params := url.Values{}
	params.Set("jql", req.JQL)
	params.Set("startAt", strconv.Itoa(req.StartAt))
	params.Set("maxResults", strconv.Itoa(req.MaxResults))
	params.Set("fields", searchFields)

	var resp searchResponse
	if err := c.getJSON(ctx, "/rest/api/2/search", params, req.ReadTimeout, &resp); err != nil {
		return nil, err
	}

	page := &SearchPage{
		StartAt:    resp.StartAt,
		MaxResults: resp.MaxResults,
		Total:      resp.Total,
		Issues:     make([]*domain.Issue, 0, len(resp.Issues)),
	}
	for _, raw := range resp.Issues {
		issue, err := raw.toDomain()
		if err != nil {
			return nil, apperrors.NewMalformedResponseError(
				fmt.Sprintf("issue %s has an unparseable payload", raw.Key), err)
		}
		page.Issues = append(page.Issues, issue)
	}
	return page, nil
}

func (c *client) Changelog(ctx context.Context, issueKey string, readTimeout time.Duration) ([]domain.StatusTransition, error) {
	var transitions []domain.StatusTransition
	startAt := 0
	for {
		params := url.Values{}
		params.Set("startAt", strconv.Itoa(startAt))
		params.Set("maxResults", "100")

		var resp changelogResponse
		path := fmt.Sprintf("/rest/api/2/issue/%s/changelog", url.PathEscape(issueKey))
		if err := c.getJSON(ctx, path, params, readTimeout, &resp); err != nil {
			return nil, err
		}
		for _, h := range resp.Values {
			at, err := parseJiraTime(h.Created)
			if err != nil {
				return nil, apperrors.NewMalformedResponseError(
					fmt.Sprintf("changelog entry for %s has an unparseable timestamp", issueKey), err)
			}
			for _, item := range h.Items {
				if item.Field != "status" {
					continue
				}
				transitions = append(transitions, domain.StatusTransition{
					From: item.FromString,
					To:   item.ToString,
					At:   at,
				})
			}
		}
		startAt += len(resp.Values)
		if resp.IsLast || len(resp.Values) == 0 || startAt >= resp.Total {
			break
		}
	}
	return transitions, nil
}

// getJSON performs one GET attempt and decodes the body, translating failures
// into the typed error taxonomy.
func (c *client) getJSON(ctx context.Context, path string, params url.Values, readTimeout time.Duration, out interface{}) error {
	if readTimeout <= 0 {
		readTimeout = c.readTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return apperrors.NewInternalError("building request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized:
		return apperrors.NewAuthError("jira rejected the credentials")
	case resp.StatusCode == http.StatusForbidden:
		return apperrors.NewPermissionError(fmt.Sprintf("access denied for %s", path))
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NewNotFoundError(path)
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperrors.NewRateLimitedError("jira rate limit hit", parseRetryAfter(resp))
	case resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.NewInternalError(
			fmt.Sprintf("jira returned %d for %s: %s", resp.StatusCode, path, strings.TrimSpace(string(body))), nil)
	default:
		return apperrors.NewBadRequestError(fmt.Sprintf("jira returned %d for %s", resp.StatusCode, path))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewMalformedResponseError(fmt.Sprintf("decoding response from %s", path), err)
	}
	return nil
}

// classifyTransportError separates connection setup failures from mid-request
// timeouts so the fetch policy can react differently to each.
func classifyTransportError(path string, err error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return apperrors.NewConnectTimeoutError(fmt.Sprintf("connecting for %s", path), err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.NewReadTimeoutError(fmt.Sprintf("request timed out for %s", path), err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewReadTimeoutError(fmt.Sprintf("request timed out for %s", path), err)
	}
	return apperrors.NewConnectTimeoutError(fmt.Sprintf("transport failure for %s", path), err)
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

type searchResponse struct {
	StartAt    int        `json:"startAt"`
	MaxResults int        `json:"maxResults"`
	Total      int        `json:"total"`
	Issues     []rawIssue `json:"issues"`
}

type rawIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Status  struct {
			Name string `json:"name"`
		} `json:"status"`
		Created        string `json:"created"`
		Updated        string `json:"updated"`
		ResolutionDate string `json:"resolutiondate"`
		Assignee       *struct {
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
		Priority *struct {
			Name string `json:"name"`
		} `json:"priority"`
		IssueType struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Project struct {
			Key string `json:"key"`
		} `json:"project"`
		// Seconds; Jira reports original estimates in seconds.
		TimeOriginalEstimate *int64 `json:"timeoriginalestimate"`
	} `json:"fields"`
}

func (r *rawIssue) toDomain() (*domain.Issue, error) {
	created, err := parseJiraTime(r.Fields.Created)
	if err != nil {
		return nil, err
	}
	issue := &domain.Issue{
		Key:       r.Key,
		Summary:   r.Fields.Summary,
		Project:   r.Fields.Project.Key,
		Type:      r.Fields.IssueType.Name,
		Status:    r.Fields.Status.Name,
		CreatedAt: created,
	}
	if r.Fields.Priority != nil {
		issue.Priority = r.Fields.Priority.Name
	}
	if r.Fields.Assignee != nil {
		issue.Assignee = r.Fields.Assignee.DisplayName
	}
	if r.Fields.ResolutionDate != "" {
		resolved, err := parseJiraTime(r.Fields.ResolutionDate)
		if err != nil {
			return nil, err
		}
		issue.ResolvedAt = &resolved
	}
	if r.Fields.Updated != "" {
		updated, err := parseJiraTime(r.Fields.Updated)
		if err != nil {
			return nil, err
		}
		issue.UpdatedAt = &updated
	}
	if r.Fields.TimeOriginalEstimate != nil {
		hours := float64(*r.Fields.TimeOriginalEstimate) / 3600
		issue.EstimateHours = &hours
	}
	return issue, nil
}

type changelogResponse struct {
	StartAt    int  `json:"startAt"`
	MaxResults int  `json:"maxResults"`
	Total      int  `json:"total"`
	IsLast     bool `json:"isLast"`
	Values     []struct {
		Created string `json:"created"`
		Items   []struct {
			Field      string `json:"field"`
			FromString string `json:"fromString"`
			ToString   string `json:"toString"`
		} `json:"items"`
	} `json:"values"`
}

var jiraTimeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
}

// parseJiraTime accepts the timestamp layouts Jira emits and normalizes to UTC.
func parseJiraTime(s string) (time.Time, error) {
	for _, layout := range jiraTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
