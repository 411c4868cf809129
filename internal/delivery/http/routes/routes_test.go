package routes_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"feedsync/internal/delivery/http/handler"
	"feedsync/internal/delivery/http/middleware"
	"feedsync/internal/delivery/http/routes"
	v1 "feedsync/internal/delivery/http/routes/v1"
	"feedsync/internal/domain"
	"feedsync/internal/domain/listing"
	"feedsync/internal/domain/run"
	"feedsync/internal/pkg/jwt"
	"feedsync/internal/repository"
	"feedsync/internal/scraper"
	"feedsync/internal/usecase"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScrape struct {
	got usecase.ScrapeParams
	err error
}

func (s *stubScrape) Scrape(ctx context.Context, p usecase.ScrapeParams) (usecase.ScrapeSummary, error) {
	s.got = p
	if s.err != nil {
		return usecase.ScrapeSummary{}, s.err
	}
	return usecase.ScrapeSummary{Kind: p.Kind, Found: 2, Message: "Job scraping completed successfully. Found 2 jobs."}, nil
}

func (s *stubScrape) ListRuns(ctx context.Context, f repository.RunFilter) ([]run.Run, error) {
	return []run.Run{{ID: 7, ScraperName: f.ScraperName, Status: run.StatusSuccess}}, nil
}

func (s *stubScrape) Sources() []scraper.SourceInfo {
	return []scraper.SourceInfo{{Name: "lilly", Kind: listing.KindJob}}
}

type stubListings struct {
	jobs  usecase.JobListParams
	event usecase.EventListParams
	err   error
}

func (s *stubListings) ListJobs(ctx context.Context, p usecase.JobListParams) ([]listing.Job, error) {
	s.jobs = p
	return []listing.Job{{ID: 1, Title: "Nurse", Company: "IU Health", URL: "https://x/1", DatePosted: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)}}, s.err
}

func (s *stubListings) ListEvents(ctx context.Context, p usecase.EventListParams) ([]listing.Event, error) {
	s.event = p
	if s.err != nil {
		return nil, s.err
	}
	return nil, nil
}

type stubStatus struct{ err error }

func (s *stubStatus) Report(ctx context.Context) (*domain.StatusReport, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.StatusReport{
		ListingCounts:   domain.ListingCounts{TotalJobs: 5, ActiveJobs: 4},
		FailingAdapters: []string{"parks"},
		DatabaseHealthy: true,
	}, nil
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type fixture struct {
	app      *fiber.App
	scrape   *stubScrape
	listings *stubListings
	status   *stubStatus
	jwt      *jwt.HMACService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	f := &fixture{
		scrape:   &stubScrape{},
		listings: &stubListings{},
		status:   &stubStatus{},
		jwt:      jwt.NewHMACService("test-secret", "feedsync", time.Hour),
	}

	app := fiber.New()
	app.Use(middleware.NewErrorMiddleware(logger).Middleware())
	routes.NewRegistry(v1.Handlers{
		Listings: handler.NewListingsHandler(f.listings),
		Scrape:   handler.NewScrapeHandler(f.scrape, logger),
		Status:   handler.NewStatusHandler(f.status),
		Auth:     middleware.NewAuthMiddleware(f.jwt),
	}, nil).Register(app)
	f.app = app
	return f
}

func (f *fixture) do(t *testing.T, method, target, role string) (*http.Response, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if role != "" {
		tok, err := f.jwt.GenerateToken("ops", role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	return resp, env
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp, env := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", env.Message)
}

func TestAdminScrape_RequiresAdminRole(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/v1/admin/scrape/jobs", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/admin/scrape/jobs", "viewer")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAdminScrape_AllAndOne(t *testing.T) {
	f := newFixture(t)

	resp, env := f.do(t, http.MethodPost, "/api/v1/admin/scrape/jobs", jwt.RoleAdmin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Job scraping completed successfully. Found 2 jobs.", env.Message)
	assert.Equal(t, usecase.ScrapeParams{Kind: listing.KindJob, Persist: true}, f.scrape.got)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/admin/scrape/events/parks?persist=false", jwt.RoleAdmin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, usecase.ScrapeParams{Kind: listing.KindEvent, Adapter: "parks", Persist: false}, f.scrape.got)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/admin/scrape/jobs?persist=maybe", jwt.RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminScrape_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: adapter %q not found", domain.ErrNotFound, "nope"), http.StatusNotFound},
		{fmt.Errorf("cummins: %w", domain.ErrBusy), http.StatusConflict},
		{fmt.Errorf("lilly: %w: status 503", domain.ErrTransport), http.StatusInternalServerError},
		{domain.ErrStorageUnavailable, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		f := newFixture(t)
		f.scrape.err = tc.err
		resp, env := f.do(t, http.MethodPost, "/api/v1/admin/scrape/jobs/nope", jwt.RoleAdmin)
		assert.Equal(t, tc.want, resp.StatusCode, tc.err.Error())
		if tc.want == http.StatusInternalServerError {
			assert.NotContains(t, env.Message, "503")
		}
	}
}

func TestAdminRunsAndSources(t *testing.T) {
	f := newFixture(t)

	resp, env := f.do(t, http.MethodGet, "/api/v1/admin/runs?scraper=lilly", jwt.RoleAdmin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var runs []run.Run
	require.NoError(t, json.Unmarshal(env.Data, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "lilly", runs[0].ScraperName)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/admin/runs?limit=abc", jwt.RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, env = f.do(t, http.MethodGet, "/api/v1/admin/sources", jwt.RoleAdmin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(env.Data), `"lilly"`)
}

func TestAdminStatus(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/api/v1/admin/status", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, env := f.do(t, http.MethodGet, "/api/v1/admin/status", jwt.RoleAdmin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	var rep domain.StatusReport
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, 5, rep.TotalJobs)
	assert.Equal(t, []string{"parks"}, rep.FailingAdapters)
	assert.True(t, rep.DatabaseHealthy)

	f.status.err = fmt.Errorf("%w: %v", usecase.ErrInternal, domain.ErrStorage)
	resp, env = f.do(t, http.MethodGet, "/api/v1/admin/status", jwt.RoleAdmin)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal server error", env.Message)
}

func TestListJobs(t *testing.T) {
	f := newFixture(t)

	resp, env := f.do(t, http.MethodGet, "/api/v1/jobs?company=IU%20Health&q=nurse&remote=true&page=2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "IU Health", f.listings.jobs.Company)
	assert.Equal(t, "nurse", f.listings.jobs.Query)
	require.NotNil(t, f.listings.jobs.Remote)
	assert.True(t, *f.listings.jobs.Remote)

	var page struct {
		Items []struct {
			Title      string `json:"title"`
			PostedDate string `json:"posted_date"`
		} `json:"items"`
		Page  int `json:"page"`
		Limit int `json:"limit"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 20, page.Limit)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "2025-01-02T00:00:00Z", page.Items[0].PostedDate)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/jobs?remote=sometimes", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListEvents(t *testing.T) {
	f := newFixture(t)

	resp, env := f.do(t, http.MethodGet, "/api/v1/events?from=2025-06-01&category=music", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2025-06-01", f.listings.event.From)
	assert.Contains(t, string(env.Data), `"items":[]`)

	f.listings.err = usecase.ErrInvalidInput
	resp, _ = f.do(t, http.MethodGet, "/api/v1/events?from=June", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	f.listings.err = usecase.ErrInternal
	resp, env = f.do(t, http.MethodGet, "/api/v1/events", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal server error", env.Message)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	f := newFixture(t)
	resp, env := f.do(t, http.MethodGet, "/api/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, http.StatusNotFound, env.Status)
	assert.Equal(t, "route not found", env.Message)
}
