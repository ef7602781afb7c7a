package rest

import (
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimitedDoer waits on a token bucket before every request.
type RateLimitedDoer struct {
	doer    HTTPDoer
	limiter *rate.Limiter
}

// NewRateLimitedDoer allows rps requests per second with the given burst.
func NewRateLimitedDoer(doer HTTPDoer, rps float64, burst int) *RateLimitedDoer {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedDoer{
		doer:    doer,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (d *RateLimitedDoer) Do(req *http.Request) (*http.Response, error) {
	if err := d.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return d.doer.Do(req)
}
