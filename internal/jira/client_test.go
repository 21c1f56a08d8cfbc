package jira

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pmaffi/jira-flow-metrics/internal/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) QueryClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "token", time.Second, 5*time.Second, zerolog.Nop())
}

func searchReq() SearchRequest {
	return SearchRequest{JQL: "project = DEMO", StartAt: 0, MaxResults: 50}
}

func TestSearchPageParsesIssues(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/search", r.URL.Path)
		assert.Equal(t, "project = DEMO", r.URL.Query().Get("jql"))
		assert.Equal(t, "50", r.URL.Query().Get("maxResults"))
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"startAt": 0, "maxResults": 50, "total": 1,
			"issues": [{
				"key": "DEMO-1",
				"fields": {
					"summary": "Fix login",
					"status": {"name": "In Progress"},
					"created": "2025-03-01T09:30:00.000+0100",
					"resolutiondate": "2025-03-11T09:30:00.000+0100",
					"assignee": {"displayName": "Dana"},
					"priority": {"name": "High"},
					"issuetype": {"name": "Bug"},
					"project": {"key": "DEMO"},
					"timeoriginalestimate": 14400
				}
			}]
		}`))
	})

	page, err := client.SearchPage(context.Background(), searchReq())
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Issues, 1)

	issue := page.Issues[0]
	assert.Equal(t, "DEMO-1", issue.Key)
	assert.Equal(t, "In Progress", issue.Status)
	assert.Equal(t, "Bug", issue.Type)
	assert.Equal(t, "Dana", issue.Assignee)
	require.NotNil(t, issue.EstimateHours)
	assert.InDelta(t, 4, *issue.EstimateHours, 0.001)

	// Timestamps are normalized to UTC.
	assert.Equal(t, time.UTC, issue.CreatedAt.Location())
	assert.Equal(t, time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC), issue.CreatedAt)
	require.NotNil(t, issue.ResolvedAt)
}

func TestSearchPageAuthError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.SearchPage(context.Background(), searchReq())
	require.Error(t, err)
	assert.True(t, apperrors.IsAuth(err))
}

func TestSearchPageRateLimitedCarriesRetryAfter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "17")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.SearchPage(context.Background(), searchReq())
	require.Error(t, err)
	assert.True(t, apperrors.IsRateLimited(err))
	assert.Equal(t, 17*time.Second, apperrors.RetryAfterOf(err))
}

func TestSearchPageMalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"issues": [`))
	})

	_, err := client.SearchPage(context.Background(), searchReq())
	require.Error(t, err)
	assert.True(t, apperrors.IsMalformed(err))
}

func TestSearchPageUnparseableTimestampIsMalformed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"total": 1,
			"issues": [{"key": "DEMO-1", "fields": {"created": "not-a-date", "status": {"name": "To Do"}, "issuetype": {"name": "Task"}, "project": {"key": "DEMO"}}}]
		}`))
	})

	_, err := client.SearchPage(context.Background(), searchReq())
	require.Error(t, err)
	assert.True(t, apperrors.IsMalformed(err))
}

func TestSearchPageReadTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	req := searchReq()
	req.ReadTimeout = 50 * time.Millisecond
	_, err := client.SearchPage(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperrors.IsReadTimeout(err), "got %v", err)
}

func TestChangelogCollectsStatusItemsAcrossPages(t *testing.T) {
	page := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/issue/DEMO-1/changelog", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if page == 0 {
			page++
			w.Write([]byte(`{
				"startAt": 0, "maxResults": 1, "total": 2, "isLast": false,
				"values": [{
					"created": "2025-03-02T10:00:00.000+0000",
					"items": [
						{"field": "assignee", "fromString": "", "toString": "Dana"},
						{"field": "status", "fromString": "To Do", "toString": "In Progress"}
					]
				}]
			}`))
			return
		}
		w.Write([]byte(`{
			"startAt": 1, "maxResults": 1, "total": 2, "isLast": true,
			"values": [{
				"created": "2025-03-09T10:00:00.000+0000",
				"items": [{"field": "status", "fromString": "In Progress", "toString": "Done"}]
			}]
		}`))
	})

	transitions, err := client.Changelog(context.Background(), "DEMO-1", 0)
	require.NoError(t, err)
	require.Len(t, transitions, 2)
	assert.Equal(t, "In Progress", transitions[0].To)
	assert.Equal(t, "Done", transitions[1].To)
}

func TestChangelogHonorsReadTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	_, err := client.Changelog(context.Background(), "DEMO-1", 50*time.Millisecond)
	require.Error(t, err)
	assert.True(t, apperrors.IsReadTimeout(err), "got %v", err)
}

func TestChangelogPermissionDenied(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.Changelog(context.Background(), "DEMO-1", 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsPermission(err))
}

func TestConnectFailureClassifiedAsConnectTimeout(t *testing.T) {
	// Nothing listens on this port.
	client := NewClient("http://127.0.0.1:1", "token", 200*time.Millisecond, time.Second, zerolog.Nop())

	_, err := client.SearchPage(context.Background(), searchReq())
	require.Error(t, err)
	assert.True(t, apperrors.IsConnectTimeout(err), "got %v", err)
}
