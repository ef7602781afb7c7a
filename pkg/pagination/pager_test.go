package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnines/ants-tap/pkg/errors"
)

func makeResponse(body string, status int) *http.Response {
	rec := httptest.NewRecorder()
	rec.Code = status
	rec.Body.WriteString(body)
	return rec.Result()
}

func baseRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "http://example.com/v3/products", nil)
	require.NoError(t, err)
	return req
}

func TestPagePager_HasMore(t *testing.T) {
	p := NewPagePager(baseRequest(t), "page", "pageSize", 1, 50)
	p.HasMorePath = "meta.has_more"

	req1, err := p.NextRequest()
	require.NoError(t, err)
	assert.Equal(t, "1", req1.URL.Query().Get("page"))
	assert.Equal(t, "50", req1.URL.Query().Get("pageSize"))

	require.NoError(t, p.UpdateState(makeResponse(`{"meta":{"has_more":true}}`, 200)))
	req2, err := p.NextRequest()
	require.NoError(t, err)
	assert.Equal(t, "2", req2.URL.Query().Get("page"))

	require.NoError(t, p.UpdateState(makeResponse(`{"meta":{"has_more":false}}`, 200)))
	req3, err := p.NextRequest()
	require.NoError(t, err)
	assert.Nil(t, req3)
}

func TestPagePager_TotalPages(t *testing.T) {
	p := NewPagePager(baseRequest(t), "page", "", 1, 10)
	p.TotalPagesPath = "meta.total_pages"

	req, _ := p.NextRequest()
	assert.Empty(t, req.URL.Query().Get("pageSize"))
	require.NoError(t, p.UpdateState(makeResponse(`{"meta":{"total_pages":2},"data":[{}]}`, 200)))
	req, _ = p.NextRequest()
	require.NotNil(t, req)
	assert.Equal(t, "2", req.URL.Query().Get("page"))
	require.NoError(t, p.UpdateState(makeResponse(`{"meta":{"total_pages":2},"data":[{}]}`, 200)))
	req, _ = p.NextRequest()
	assert.Nil(t, req)
}

func TestPagePager_StopsOnEmptyData(t *testing.T) {
	p := NewPagePager(baseRequest(t), "page", "pageSize", 0, 0)

	req, _ := p.NextRequest()
	assert.Equal(t, "1", req.URL.Query().Get("page"))
	assert.Equal(t, "100", req.URL.Query().Get("pageSize"))

	require.NoError(t, p.UpdateState(makeResponse(`{"data":[{"id":1}]}`, 200)))
	req, _ = p.NextRequest()
	require.NotNil(t, req)

	require.NoError(t, p.UpdateState(makeResponse(`{"data":[]}`, 200)))
	req, _ = p.NextRequest()
	assert.Nil(t, req)
}

func TestPagePager_BadStatus(t *testing.T) {
	p := NewPagePager(baseRequest(t), "page", "pageSize", 1, 10)
	_, _ = p.NextRequest()

	err := p.UpdateState(makeResponse(`{}`, 500))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPagination)
}

func TestLinkPager_BodyLink(t *testing.T) {
	p := NewLinkPager(baseRequest(t), "links.next")

	req1, err := p.NextRequest()
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/v3/products", req1.URL.String())

	require.NoError(t, p.UpdateState(makeResponse(`{"data":[],"links":{"next":"/v3/products?page=2"}}`, 200)))
	req2, err := p.NextRequest()
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/v3/products?page=2", req2.URL.String())

	require.NoError(t, p.UpdateState(makeResponse(`{"data":[],"links":{"next":null}}`, 200)))
	req3, err := p.NextRequest()
	require.NoError(t, err)
	assert.Nil(t, req3)
}

func TestLinkPager_HeaderFallback(t *testing.T) {
	p := NewLinkPager(baseRequest(t), "links.next")
	_, _ = p.NextRequest()

	rec := httptest.NewRecorder()
	rec.Header().Set("Link", `<http://api.example.com/page2>; rel="next", <http://api.example.com/last>; rel="last"`)
	rec.WriteHeader(200)
	rec.Body.WriteString(`{"data":[]}`)
	require.NoError(t, p.UpdateState(rec.Result()))

	req, err := p.NextRequest()
	require.NoError(t, err)
	assert.Equal(t, "http://api.example.com/page2", req.URL.String())

	rec2 := httptest.NewRecorder()
	rec2.Header().Set("Link", `<http://api.example.com/last>; rel="last"`)
	rec2.WriteHeader(200)
	rec2.Body.WriteString(`{}`)
	require.NoError(t, p.UpdateState(rec2.Result()))
	req, err = p.NextRequest()
	require.NoError(t, err)
	assert.Nil(t, req)
}

func TestFactory(t *testing.T) {
	assert.Equal(t, []string{"link", "page"}, DefaultFactory.GetAvailablePagers())

	_, err := DefaultFactory.CreatePager("cursor", baseRequest(t), nil)
	assert.ErrorIs(t, err, errors.ErrConfiguration)

	err = DefaultFactory.ValidatePagerOptions("page", map[string]interface{}{"pageParam": "page"})
	assert.ErrorIs(t, err, errors.ErrConfiguration)

	pager, err := DefaultFactory.CreatePager("page", baseRequest(t), map[string]interface{}{
		"pageParam":   "page",
		"sizeParam":   "pageSize",
		"pageSize":    25,
		"hasMorePath": "meta.has_more",
	})
	require.NoError(t, err)
	pp, ok := pager.(*PagePager)
	require.True(t, ok)
	assert.Equal(t, "meta.has_more", pp.HasMorePath)

	f := NewFactory()
	require.NoError(t, f.RegisterPager("link", linkCreator))
	assert.ErrorIs(t, f.RegisterPager("link", linkCreator), errors.ErrConfiguration)
}

func TestLookupInt(t *testing.T) {
	m, err := parseBody(makeResponse(`{"meta":{"count": 42}}`, 200))
	require.NoError(t, err)
	got, err := lookupInt(m, "meta.count")
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	_, err = lookupInt(m, "meta.missing")
	assert.ErrorIs(t, err, errors.ErrExtraction)
}

func TestParseBody_WrapsArray(t *testing.T) {
	m, err := parseBody(makeResponse(`[{"id":1}]`, 200))
	require.NoError(t, err)
	assert.Len(t, m["data"], 1)
}
