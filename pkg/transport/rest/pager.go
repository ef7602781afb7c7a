package rest

import (
	"context"

	"github.com/saturnines/ants-tap/pkg/config"
	"github.com/saturnines/ants-tap/pkg/pagination"
)

// NewPager builds the first request and wraps it in a Pager for pagCfg.
// A nil pagCfg yields a nil Pager: the endpoint is fetched once.
func NewPager(
	ctx context.Context,
	builder *Builder,
	pagCfg *config.Pagination,
) (pagination.Pager, error) {
	if pagCfg == nil {
		return nil, nil
	}

	req, err := builder.Build(ctx)
	if err != nil {
		return nil, err
	}

	return pagination.DefaultFactory.CreatePager(
		string(pagCfg.Type),
		req,
		PaginationOptions(pagCfg),
	)
}

// ValidatePagination checks that p names a registered pager with usable options.
func ValidatePagination(p *config.Pagination) error {
	if p == nil {
		return nil
	}
	return pagination.DefaultFactory.ValidatePagerOptions(string(p.Type), PaginationOptions(p))
}

// PaginationOptions converts the pagination config to factory options.
func PaginationOptions(p *config.Pagination) map[string]interface{} {
	opts := make(map[string]interface{})

	switch p.Type {
	case config.PaginationTypePage:
		opts["pageParam"] = p.PageParam
		opts["sizeParam"] = p.SizeParam
		opts["hasMorePath"] = p.HasMorePath
		opts["totalPagesPath"] = p.TotalPagesPath
		opts["startPage"] = 1
		opts["pageSize"] = p.PageSize
	case config.PaginationTypeLink:
		opts["nextPath"] = p.NextLinkPath
	}

	return opts
}
