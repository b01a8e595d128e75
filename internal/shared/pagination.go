package shared

import (
	"net/http"
	"strconv"
)

// Page carries limit/offset parsed from a request.
type Page struct {
	Limit  int
	Offset int
}

// ParsePage reads limit/offset query parameters with sane bounds.
func ParsePage(r *http.Request, defaultLimit, maxLimit int) Page {
	page := Page{Limit: defaultLimit}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page.Limit = n
		}
	}
	if page.Limit > maxLimit {
		page.Limit = maxLimit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			page.Offset = n
		}
	}
	return page
}
