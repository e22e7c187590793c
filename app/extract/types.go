package extract

import (
	"context"

	"github.com/PuerkitoBio/goquery"
)

// Backend is the rendering capability an extraction pipeline runs against.
// An adapter opens one Session per operation; a failure to open is fatal for
// the whole operation.
type Backend interface {
	Open(ctx context.Context) (Session, error)
}

// Session is one live connection to the rendering backend. Pool workers
// share a session but each owns its own Page.
type Session interface {
	NewPage() Page
	Close() error
}

// Page fetches URLs and exposes their content as a parsed document. Each
// Fetch is bounded by the backend's navigation timeout; a timed-out fetch is
// abandoned and logged by the caller, not retried.
type Page interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
	Close() error
}
