package content

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingCredential is returned when the cleanup service needs an API
	// key that was not provided. No request is made in that case.
	ErrMissingCredential = errors.New("content extraction API key not configured")
	// ErrNoContent means the page was fetched but held no extractable text.
	ErrNoContent = errors.New("no extractable content")
)

// Document is the cleaned text of one page.
type Document struct {
	URL      string
	Title    string
	Text     string
	Entities []string
}

// Cleaner fetches a URL and returns its main text content.
type Cleaner interface {
	FetchAndClean(ctx context.Context, url string) (*Document, error)
}

// StatusError reports a non-success HTTP status from an upstream service.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.Code, http.StatusText(e.Code))
}
