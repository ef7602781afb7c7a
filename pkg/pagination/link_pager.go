package pagination

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/saturnines/ants-tap/pkg/errors"
)

// LinkPager follows next links. The link is read from NextPath in the body
// (JSON:API "links.next") and, when that is absent, from the Link header.
type LinkPager struct {
	BaseReq  *http.Request
	NextPath string

	nextURL string
}

// NewLinkPager builds a LinkPager. An empty nextPath only honours the
// Link header.
func NewLinkPager(req *http.Request, nextPath string) *LinkPager {
	return &LinkPager{BaseReq: req, NextPath: nextPath, nextURL: req.URL.String()}
}

// NextRequest returns the next request or nil when done.
func (p *LinkPager) NextRequest() (*http.Request, error) {
	if p.nextURL == "" {
		return nil, nil
	}

	// relative links resolve against the first request
	u, err := p.BaseReq.URL.Parse(p.nextURL)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrPagination, "parse next link")
	}
	req := p.BaseReq.Clone(p.BaseReq.Context())
	req.URL = u
	req.Host = u.Host
	return req, nil
}

// UpdateState saves the next URL, or clears it on the last page.
func (p *LinkPager) UpdateState(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return errors.WrapError(
			fmt.Errorf("pagination: unexpected status %d", resp.StatusCode),
			errors.ErrPagination,
			"update link state",
		)
	}

	next := ""
	if p.NextPath != "" {
		body, err := parseBody(resp)
		if err != nil {
			return err
		}
		next, _ = lookupString(body, p.NextPath)
	} else {
		resp.Body.Close()
	}
	if next == "" {
		next = parseLinkHeader(resp.Header.Get("Link"))["next"]
	}
	p.nextURL = next
	return nil
}

func parseLinkHeader(header string) map[string]string {
	links := make(map[string]string)
	if header == "" {
		return links
	}
	for _, part := range strings.Split(header, ",") {
		seg := strings.Split(strings.TrimSpace(part), ";")
		if len(seg) < 2 {
			continue
		}
		target := strings.Trim(seg[0], "<> ")
		for _, param := range seg[1:] {
			kv := strings.SplitN(strings.TrimSpace(param), "=", 2)
			if len(kv) == 2 && kv[0] == "rel" {
				links[strings.Trim(kv[1], `"`)] = target
			}
		}
	}
	return links
}
