package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"icalfilter/internal/config"
	"icalfilter/internal/filterurl"
	"icalfilter/internal/form"
	"icalfilter/internal/ics"
	appLog "icalfilter/internal/log"
	"icalfilter/internal/model"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Host = "https://example.com"
	if mutate != nil {
		mutate(cfg)
	}
	return NewServer(cfg, nil)
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// resultLink returns href and text of the link inside #custom-url.
func resultLink(t *testing.T, body string) (href, text string) {
	t.Helper()
	root, err := html.Parse(strings.NewReader(body))
	require.NoError(t, err)

	var inResult bool
	var walk func(n *html.Node, inside bool)
	walk = func(n *html.Node, inside bool) {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key == "id" && a.Val == form.IDResult {
					inside = true
					inResult = true
				}
			}
			if inside && n.Data == "a" {
				for _, a := range n.Attr {
					if a.Key == "href" {
						href = a.Val
					}
				}
				if n.FirstChild != nil {
					text = n.FirstChild.Data
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inside)
		}
	}
	walk(root, false)
	require.True(t, inResult, "no result container")
	return href, text
}

func TestIndex_ServesFormContract(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	doc, err := form.ParseHTML(rec.Body)
	require.NoError(t, err)

	host, ok := doc.RootAttr(form.HostAttr)
	require.True(t, ok)
	assert.Equal(t, "https://example.com", host)

	for _, id := range form.InputIDs() {
		_, ok := doc.Element(id)
		assert.True(t, ok, "missing input %s", id)
	}
	markup, ok := doc.InnerHTML(form.IDResult)
	require.True(t, ok)
	assert.Empty(t, markup)

	// Filling the served page and building matches the pure builder.
	doc.SetElement(form.IDCalendarURL, form.Element{Value: "https://cal.example.org/feed.ics"})
	doc.SetElement(form.DayID(0), form.Element{Checked: true})
	doc.SetElement(form.DayID(2), form.Element{Checked: true})

	got, err := form.Apply(doc)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/filter?url=https%3A%2F%2Fcal.example.org%2Ffeed.ics&days=0,2,", got)
}

func TestIndex_BuildAction(t *testing.T) {
	s := newTestServer(t, nil)

	q := url.Values{}
	q.Set(form.IDCalendarURL, "https://cal.example.org/feed.ics")
	q.Set(form.DayID(1), "on")
	q.Set(form.DayID(3), "on")
	q.Set(form.IDNameRegex, "Meeting")
	q.Set(form.IDDescriptionRegex, "")

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/?"+q.Encode(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	want := "https://example.com/filter?url=https%3A%2F%2Fcal.example.org%2Ffeed.ics&days=1,3,&nameregex=Meeting"
	href, text := resultLink(t, body)
	assert.Equal(t, want, href)
	assert.Equal(t, want, text)

	// Inputs survive the round trip.
	doc, err := form.ParseHTML(strings.NewReader(body))
	require.NoError(t, err)
	_, st, err := form.ReadSnapshot(doc)
	require.NoError(t, err)
	assert.Equal(t, model.FormState{
		CalendarURL: "https://cal.example.org/feed.ics",
		Days:        model.DaysOf(1, 3),
		NameRegex:   "Meeting",
	}, st)
}

func TestIndex_BuildActionPost(t *testing.T) {
	s := newTestServer(t, nil)

	body := strings.NewReader("ical-url=x&day-6=on")
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	href, _ := resultLink(t, rec.Body.String())
	assert.Equal(t, "https://example.com/filter?url=x&days=6,", href)
}

func TestIndex_HostFromRequest(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Host = "" })

	req := httptest.NewRequest(http.MethodGet, "/?ical-url=x", nil)
	req.Host = "ical.local:8080"
	rec := do(t, s, req)

	href, _ := resultLink(t, rec.Body.String())
	assert.Equal(t, "http://ical.local:8080/filter?url=x&days=", href)

	req = httptest.NewRequest(http.MethodGet, "/?ical-url=x", nil)
	req.Host = "ical.example.com"
	req.Header.Set("X-Forwarded-Proto", "https")
	rec = do(t, s, req)

	href, _ = resultLink(t, rec.Body.String())
	assert.Equal(t, "https://ical.example.com/filter?url=x&days=", href)
}

func TestIndex_UnknownPath(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func postJSON(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/custom-url", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return do(t, s, req)
}

func TestCustomURL_API(t *testing.T) {
	s := newTestServer(t, nil)

	rec := postJSON(t, s, `{"url":"https://cal.example.org/feed.ics","days":[2,0],"description_regex":"room 4"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp customURLResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://example.com", resp.Host)
	assert.Equal(t, filterurl.Build("https://example.com", model.FormState{
		CalendarURL:      "https://cal.example.org/feed.ics",
		Days:             model.DaysOf(0, 2),
		DescriptionRegex: "room 4",
	}), resp.URL)
	assert.True(t, strings.HasSuffix(resp.URL, "&days=0,2,&descriptionregex=room%204"))
}

func TestCustomURL_RejectsBadInput(t *testing.T) {
	s := newTestServer(t, nil)

	rec := postJSON(t, s, `{"url":"x","days":[7]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "day 7 out of range")

	rec = postJSON(t, s, `{"url":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, s, `{"url":"x","host":"evil"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/custom-url", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPreview_API(t *testing.T) {
	body, err := os.ReadFile(filepath.Join("..", "ics", "testdata", "team.ics"))
	require.NoError(t, err)

	hits := 0
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path != "/team.ics" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	defer feed.Close()

	cfg := config.DefaultConfig()
	fetcher := ics.NewFetcher(ics.FetcherOptions{CacheDir: t.TempDir(), RequestsPerSecond: 100, Burst: 10, AllowPrivateNetworks: true})
	s := NewServer(cfg, ics.NewPreviewer(fetcher))

	target := "/api/preview?url=" + url.QueryEscape(feed.URL+"/team.ics")
	rec := do(t, s, httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var pv ics.Preview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pv))
	assert.Equal(t, 3, pv.EventCount)
	assert.Equal(t, "UTC", pv.Timezone)

	// Served from the in-memory cache.
	rec = do(t, s, httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, hits)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/preview?url="+url.QueryEscape(feed.URL+"/missing.ics"), nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/preview", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, target+"&horizon_days=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreview_RefusesLoopbackFeed(t *testing.T) {
	hits := 0
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
	}))
	defer feed.Close()

	fetcher := ics.NewFetcher(ics.FetcherOptions{CacheDir: t.TempDir(), RequestsPerSecond: 100, Burst: 10})
	s := NewServer(config.DefaultConfig(), ics.NewPreviewer(fetcher))

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/preview?url="+url.QueryEscape(feed.URL+"/team.ics"), nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Zero(t, hits)
}

func TestPreview_Disabled(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/preview?url=x", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	})

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("admin", "wrong")
	assert.Equal(t, http.StatusUnauthorized, do(t, s, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("admin", "secret")
	assert.Equal(t, http.StatusOK, do(t, s, req).Code)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestSetConfig_WarnsWithoutHost(t *testing.T) {
	var buf bytes.Buffer
	appLog.SetOutput(&buf)
	t.Cleanup(func() { appLog.SetOutput(os.Stderr) })

	newTestServer(t, nil)
	assert.NotContains(t, buf.String(), "host not configured")

	newTestServer(t, func(c *config.Config) { c.Host = "" })
	assert.Contains(t, buf.String(), "[WARN] host not configured")
}

func TestSetConfig_AppliesToNextRequest(t *testing.T) {
	s := newTestServer(t, nil)

	updated := config.DefaultConfig()
	updated.Host = "https://new.example.com"
	s.SetConfig(updated)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/?ical-url=x", nil))
	href, _ := resultLink(t, rec.Body.String())
	assert.Equal(t, "https://new.example.com/filter?url=x&days=", href)
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	const id = "2f1d3c9e-8f0a-4c7b-9d4e-5a6b7c8d9e0f"
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, id)
	rec = do(t, s, req)
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	rec = do(t, s, req)
	assert.NotEqual(t, "not-a-uuid", rec.Header().Get(RequestIDHeader))
}

func TestListenAndServe_Shutdown(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Listen = "127.0.0.1:0"
	s := NewServer(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
