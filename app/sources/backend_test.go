package sources

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/event-comb/app/extract"
)

// fixtureBackend serves canned HTML pages by URL, recording every fetch.
type fixtureBackend struct {
	pages   map[string]string
	openErr error

	mu           sync.Mutex
	fetched      []string
	deadlineless []string
}

func (b *fixtureBackend) Open(ctx context.Context) (extract.Session, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	return &fixtureSession{backend: b}, nil
}

func (b *fixtureBackend) fetchedURLs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.fetched...)
}

// deadlinelessURLs lists fetches whose context carried no deadline.
func (b *fixtureBackend) deadlinelessURLs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deadlineless...)
}

type fixtureSession struct {
	backend *fixtureBackend
}

func (s *fixtureSession) NewPage() extract.Page {
	return &fixturePage{backend: s.backend}
}

func (s *fixtureSession) Close() error {
	return nil
}

type fixturePage struct {
	backend *fixtureBackend
}

func (p *fixturePage) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	p.backend.mu.Lock()
	p.backend.fetched = append(p.backend.fetched, url)
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		p.backend.deadlineless = append(p.backend.deadlineless, url)
	}
	html, ok := p.backend.pages[url]
	p.backend.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("no page for %s", url)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (p *fixturePage) Close() error {
	return nil
}

// testReporter collects reported lines in memory.
type testReporter struct {
	mu       sync.Mutex
	progress []string
	problems []string
}

func (r *testReporter) Progress(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, message)
}

func (r *testReporter) Problem(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.problems = append(r.problems, message)
}

func (r *testReporter) problemLines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.problems...)
}
