package shared

import (
	"net/http"
	"strconv"
)

// ParseListFilters extracts standard list filters from request query params.
func ParseListFilters(r *http.Request) ListFilters {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 0 {
		limit = 0
	}

	filters := ListFilters{
		Page:    page,
		Limit:   limit,
		Search:  q.Get("search"),
		SortBy:  q.Get("sort"),
		SortDir: q.Get("dir"),
	}

	if v := q.Get("active"); v != "" {
		if active, err := strconv.ParseBool(v); err == nil {
			filters.Active = &active
		}
	}
	if v := q.Get("warehouse_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filters.WarehouseID = &id
		}
	}
	if v := q.Get("category_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filters.CategoryID = &id
		}
	}
	return filters
}
