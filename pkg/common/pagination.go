package common

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"killrvideo/pkg/utils"
)

// PageParams are the paging parameters every list endpoint accepts. Reads
// are key-range scans, so paging is by cursor rather than by page number.
type PageParams struct {
	Limit  int
	Cursor string
}

// ExtractPageParams reads ?limit= and ?cursor=. A missing limit is 0,
// which the read layer replaces with its default.
func ExtractPageParams(r *http.Request) (PageParams, error) {
	params := PageParams{Cursor: r.URL.Query().Get("cursor")}
	limit, err := QueryInt(r, "limit")
	if err != nil {
		return params, err
	}
	params.Limit = limit
	return params, nil
}

// QueryInt reads a non-negative integer query parameter, 0 when absent
func QueryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

// QueryTime reads an RFC3339 query parameter, the zero time when absent
func QueryTime(r *http.Request, key string) (time.Time, error) {
	t, err := utils.ParseRFC3339(r.URL.Query().Get(key))
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC3339 timestamp", key)
	}
	return t, nil
}

// QueryBool reads a boolean query parameter, false when absent
func QueryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}
