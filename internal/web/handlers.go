package web

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"icalfilter/internal/filterurl"
	"icalfilter/internal/form"
	"icalfilter/internal/ics"
	appLog "icalfilter/internal/log"
	"icalfilter/internal/model"
)

// dayLabels names weekday indices; 0 is Sunday.
var dayLabels = [model.DaysPerWeek]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

type dayField struct {
	ID      string
	Label   string
	Checked bool
}

type pageData struct {
	Host   string
	Form   model.FormState
	Days   []dayField
	Result template.HTML
}

// handleIndex renders the form. A submitted form (one carrying ical-url)
// is the build action: the page comes back with the inputs kept and the
// link in the result container.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	host := s.hostFor(r)
	doc := form.FromValues(host, r.Form)

	_, st, err := form.ReadSnapshot(doc)
	if err != nil {
		// FromValues declares every input, so this is a programming error.
		appLog.Error("form snapshot failed", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data := pageData{Host: host, Form: st}
	for i := 0; i < model.DaysPerWeek; i++ {
		data.Days = append(data.Days, dayField{ID: form.DayID(i), Label: dayLabels[i], Checked: st.Days[i]})
	}

	if r.Form.Has(form.IDCalendarURL) {
		u, err := form.Apply(doc)
		if err != nil {
			appLog.Error("build custom url failed", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		appLog.Debug("custom url built", "days", filterurl.DayFragment(st.Days), "source", ics.RedactURL(st.CalendarURL), "length", len(u))
		markup, _ := doc.InnerHTML(form.IDResult)
		// Sanitized by form.RenderResult.
		data.Result = template.HTML(markup)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		appLog.Error("render index failed", err)
	}
}

// customURLRequest is the JSON body of POST /api/custom-url.
type customURLRequest struct {
	URL              string `json:"url"`
	Days             []int  `json:"days"`
	NameRegex        string `json:"name_regex"`
	DescriptionRegex string `json:"description_regex"`
}

type customURLResponse struct {
	URL  string `json:"url"`
	Host string `json:"host"`
}

func (s *Server) handleCustomURL(w http.ResponseWriter, r *http.Request) {
	var req customURLRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	st := model.FormState{
		CalendarURL:      req.URL,
		NameRegex:        req.NameRegex,
		DescriptionRegex: req.DescriptionRegex,
	}
	for _, d := range req.Days {
		if !model.ValidDay(d) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("day %d out of range 0-6", d))
			return
		}
		st.Days[d] = true
	}

	host := s.hostFor(r)
	writeJSON(w, http.StatusOK, customURLResponse{URL: filterurl.Build(host, st), Host: host})
}

// handlePreview summarizes the feed given in ?url= over the configured
// horizon. GET /api/preview?url=...&horizon_days=14
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.previewer == nil {
		writeError(w, http.StatusServiceUnavailable, "preview disabled")
		return
	}

	q := r.URL.Query()
	feed := q.Get("url")
	if feed == "" {
		writeError(w, http.StatusBadRequest, "missing url parameter")
		return
	}

	cfg := s.Config()
	horizon := cfg.Preview.HorizonDays
	if v := q.Get("horizon_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 366 {
			writeError(w, http.StatusBadRequest, "horizon_days must be between 1 and 366")
			return
		}
		horizon = n
	}

	key := strconv.Itoa(horizon) + " " + feed
	if pv, ok := s.cachedPreview(key); ok {
		writeJSON(w, http.StatusOK, pv)
		return
	}

	pv, err := s.previewer.Preview(r.Context(), feed, ics.PreviewOptions{
		Location:    resolveLocation(cfg.Preview.Timezone),
		HorizonDays: horizon,
	})
	if err != nil {
		appLog.Error("preview failed", err, "url", ics.RedactURL(feed))
		writeError(w, http.StatusBadGateway, "could not load calendar feed")
		return
	}

	s.storePreview(key, pv)
	writeJSON(w, http.StatusOK, pv)
}

func (s *Server) cachedPreview(key string) (ics.Preview, bool) {
	s.previewMu.RLock()
	defer s.previewMu.RUnlock()
	e, ok := s.previewCache[key]
	if !ok || time.Since(e.updatedAt) >= previewCacheTTL {
		return ics.Preview{}, false
	}
	return e.preview, true
}

func (s *Server) storePreview(key string, pv ics.Preview) {
	s.previewMu.Lock()
	defer s.previewMu.Unlock()
	if len(s.previewCache) >= previewCacheEntries {
		s.previewCache = make(map[string]previewCacheEntry)
	}
	s.previewCache[key] = previewCacheEntry{preview: pv, updatedAt: time.Now()}
}
