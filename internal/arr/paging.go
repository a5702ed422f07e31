package arr

import (
	"context"
	"net/url"
	"strconv"
)

// Page is the envelope the wanted endpoints wrap their records in.
type Page[T any] struct {
	Page         int `json:"page"`
	PageSize     int `json:"pageSize"`
	TotalRecords int `json:"totalRecords"`
	Records      []T `json:"records"`
}

const pageSize = 100

// FetchAll walks a paged endpoint until every record has been collected,
// presenting the result as one logical sequence in server order.
func FetchAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var records []T
	for page := 1; ; page++ {
		values := url.Values{}
		for key, vals := range query {
			values[key] = vals
		}
		values.Set("page", strconv.Itoa(page))
		values.Set("pageSize", strconv.Itoa(pageSize))

		var envelope Page[T]
		if err := c.GetJSON(ctx, path, values, &envelope); err != nil {
			return nil, err
		}
		if len(envelope.Records) == 0 {
			return records, nil
		}
		records = append(records, envelope.Records...)
		if envelope.TotalRecords > 0 && len(records) >= envelope.TotalRecords {
			return records, nil
		}
	}
}
