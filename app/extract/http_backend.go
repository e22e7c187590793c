package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const defaultNavigationTimeout = 30 * time.Second

// HTTPBackend renders pages by plain HTTP fetching; the DOM a listing site
// serves is parsed with goquery. Sessions share one cookie jar the way a
// browser profile would.
type HTTPBackend struct {
	userAgent string
	timeout   time.Duration
}

var _ Backend = (*HTTPBackend)(nil)

func NewHTTPBackend(userAgent string, timeout time.Duration) *HTTPBackend {
	if timeout <= 0 {
		timeout = defaultNavigationTimeout
	}
	return &HTTPBackend{userAgent: userAgent, timeout: timeout}
}

func (b *HTTPBackend) Open(ctx context.Context) (Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	// no client-level timeout, the per-fetch context deadline governs
	return &httpSession{
		client:    &http.Client{Jar: jar},
		userAgent: b.userAgent,
		timeout:   b.timeout,
	}, nil
}

type httpSession struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
}

func (s *httpSession) NewPage() Page {
	return &httpPage{session: s}
}

func (s *httpSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

type httpPage struct {
	session *httpSession
}

func (p *httpPage) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	// callers set their own navigation deadline; the backend timeout only
	// bounds fetches that arrive without one
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.session.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.session.userAgent)

	resp, err := p.session.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	return doc, nil
}

func (p *httpPage) Close() error {
	return nil
}
