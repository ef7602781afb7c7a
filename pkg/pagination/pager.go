package pagination

import "net/http"

// Pager drives one pagination strategy.
type Pager interface {
	// NextRequest returns the request for the next page, or nil when done.
	NextRequest() (*http.Request, error)
	// UpdateState inspects the response of the last request. It consumes
	// and closes the body.
	UpdateState(resp *http.Response) error
}
