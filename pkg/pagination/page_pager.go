package pagination

import (
	"fmt"
	"net/http"

	"github.com/saturnines/ants-tap/pkg/errors"
)

// PagePager for "page + page size" pagination.
type PagePager struct {
	BaseReq        *http.Request
	PageParam      string // e.g. "page"
	SizeParam      string // e.g. "pageSize"
	HasMorePath    string // e.g. "meta.has_more"
	TotalPagesPath string // e.g. "meta.pagination.total_pages"

	page    int
	size    int
	first   bool
	hasMore bool
}

// NewPagePager builds a PagePager. startPage below 1 becomes 1 and a
// non-positive pageSize becomes 100.
func NewPagePager(
	req *http.Request,
	pageParam, sizeParam string,
	startPage, pageSize int,
) *PagePager {
	if startPage < 1 {
		startPage = 1
	}
	if pageSize <= 0 {
		pageSize = 100
	}
	return &PagePager{
		BaseReq:   req,
		PageParam: pageParam,
		SizeParam: sizeParam,
		page:      startPage,
		size:      pageSize,
		first:     true,
		hasMore:   true,
	}
}

// NextRequest returns the next *http.Request, or nil when done.
func (p *PagePager) NextRequest() (*http.Request, error) {
	if !p.first && !p.hasMore {
		return nil, nil
	}
	if !p.first {
		p.page++
	}

	req := p.BaseReq.Clone(p.BaseReq.Context())
	q := req.URL.Query()
	q.Set(p.PageParam, fmt.Sprint(p.page))
	if p.SizeParam != "" {
		q.Set(p.SizeParam, fmt.Sprint(p.size))
	}
	req.URL.RawQuery = q.Encode()

	p.first = false
	return req, nil
}

// UpdateState inspects the JSON body for pagination control fields.
// Priority: 1) total pages, 2) has more, 3) data array length
func (p *PagePager) UpdateState(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return errors.WrapError(
			fmt.Errorf("pagination: unexpected status %d", resp.StatusCode),
			errors.ErrPagination,
			"update page state",
		)
	}

	body, err := parseBody(resp)
	if err != nil {
		return err
	}

	if p.TotalPagesPath != "" {
		// a missing total falls through to the other signals
		if total, err := lookupInt(body, p.TotalPagesPath); err == nil {
			p.hasMore = p.page < total
			return nil
		}
	}

	if p.HasMorePath != "" {
		more, err := lookupBool(body, p.HasMorePath)
		p.hasMore = err == nil && more
		return nil
	}

	arr, ok := body["data"].([]interface{})
	p.hasMore = ok && len(arr) > 0
	return nil
}
