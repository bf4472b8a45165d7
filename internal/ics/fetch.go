package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	appLog "icalfilter/internal/log"
)

// maxFeedBytes bounds a single feed download.
const maxFeedBytes = 10 << 20

const (
	metaFileName = "meta.json"
	bodyFileName = "body.ics"
)

// Source is a single ICS feed to preview.
type Source struct {
	// ID is used in logs and occurrences.
	ID string
	// URL is the ICS endpoint. webcal:// is fetched over https.
	URL string
}

// FetchResult contains the outcome of fetching a single ICS source.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool // true if the cached body was reused (304 or fallback)
}

// cacheEntry holds HTTP cache metadata for a single ICS URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FetcherOptions configures a Fetcher. Zero values fall back to defaults.
type FetcherOptions struct {
	CacheDir          string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int

	// AllowPrivateNetworks permits feeds on loopback, private and
	// link-local addresses.
	AllowPrivateNetworks bool

	// Client overrides the HTTP client (tests).
	Client *http.Client
}

// ErrPrivateAddress is returned when a feed host resolves to an address
// that is not publicly routable and private networks are not allowed.
var ErrPrivateAddress = errors.New("feed address is not publicly routable")

// cgnat is the shared address space (RFC 6598).
var cgnat = netip.MustParsePrefix("100.64.0.0/10")

// publicAddrOnly is a net.Dialer Control hook refusing connections to
// loopback, private, link-local, multicast and unspecified addresses.
func publicAddrOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	ip = ip.Unmap()
	if !ip.IsGlobalUnicast() || ip.IsPrivate() || cgnat.Contains(ip) {
		return fmt.Errorf("%w: %s", ErrPrivateAddress, ip)
	}
	return nil
}

func newFeedClient(timeout time.Duration, allowPrivate bool) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if !allowPrivate {
		dialer.Control = publicAddrOnly
		// A proxy would dial on our behalf and bypass the check.
		tr.Proxy = nil
	}
	tr.DialContext = dialer.DialContext
	return &http.Client{Timeout: timeout, Transport: tr}
}

// Fetcher downloads ICS feeds with conditional requests (ETag /
// Last-Modified), a disk-backed cache and an outbound rate limit.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	limiter  *rate.Limiter
}

// NewFetcher creates a new Fetcher.
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.CacheDir == "" {
		opts.CacheDir = "./var/ics-cache"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 4
	}

	client := opts.Client
	if client == nil {
		client = newFeedClient(opts.Timeout, opts.AllowPrivateNetworks)
	}

	return &Fetcher{
		client:   client,
		cacheDir: opts.CacheDir,
		limiter:  rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
	}
}

// Fetch downloads src, honoring the cache. On network errors or non-OK
// responses a previously cached body is returned instead, if any.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}

	fetchURL := normalizeScheme(src.URL)

	cachePath := f.cachePathForURL(fetchURL)
	meta, _ := loadCacheMeta(cachePath)
	cachedBody, _ := os.ReadFile(filepath.Join(cachePath, bodyFileName))

	fallback := func(reason error) (FetchResult, error) {
		if len(cachedBody) == 0 {
			return FetchResult{}, reason
		}
		appLog.Warn("ics fetch failed, using cached body", "id", src.ID, "url", RedactURL(src.URL), "reason", reason)
		return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return FetchResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Debug("ics fetch start", "id", src.ID, "url", RedactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes+1))
		if err != nil {
			return fallback(err)
		}
		if len(body) > maxFeedBytes {
			return FetchResult{}, fmt.Errorf("feed exceeds %d bytes", maxFeedBytes)
		}

		newMeta := cacheEntry{
			URL:          fetchURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := saveCache(cachePath, newMeta, body); err != nil {
			appLog.Error("ics cache save failed", err, "id", src.ID, "url", RedactURL(src.URL))
		}

		appLog.Info("ics fetch success", "id", src.ID, "url", RedactURL(src.URL), "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Debug("ics fetch not modified; using cache", "id", src.ID, "url", RedactURL(src.URL))
		return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil

	default:
		return fallback(fmt.Errorf("unexpected status %s", resp.Status))
	}
}

// Prune removes cache entries not refreshed within maxAge, along with
// entries whose metadata is unreadable. It returns the number removed.
func (f *Fetcher) Prune(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(f.cacheDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(f.cacheDir, e.Name())
		meta, err := loadCacheMeta(dir)
		if err == nil && meta.UpdatedAt.After(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (f *Fetcher) cachePathForURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	// First 16 hex chars as directory name.
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, metaFileName))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return err
	}
	// Write body first so meta never points at missing body.
	if err := os.WriteFile(filepath.Join(cachePath, bodyFileName), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, metaFileName), data, 0o600)
}

func normalizeScheme(u string) string {
	if strings.HasPrefix(strings.ToLower(u), "webcal://") {
		return "https://" + u[len("webcal://"):]
	}
	return u
}

// RedactURL keeps only scheme and host of a feed URL for logging; private
// feed URLs usually carry secrets in the path or query.
//
//	https://example.com/private/abcd.ics?token=x -> https://example.com/...(redacted)
func RedactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexAny(rest, "/?#"); j != -1 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + redactedSuffix
}
