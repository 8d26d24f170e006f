package platform

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

func (api API) pageTimeout() time.Duration {
	if api.PageTimeout > 0 {
		return api.PageTimeout
	}
	return 10 * time.Second
}

// ListAllObjects pages through the listing endpoint until the cursor
// runs dry, returning every object header of the given type.  Each page
// gets its own deadline from the caller's context, so a long sweep
// never inherits the first page's clock.
func (api API) ListAllObjects(ctx context.Context, objectType ObjectType) ([]ObjectHeader, error) {
	headers := []ObjectHeader{}

	query := GetObjectsQuery{
		Type:  objectType.String(),
		Sort:  "name",
		Limit: 50,
	}

	for {
		pageCtx, cancel := context.WithTimeout(ctx, api.pageTimeout())
		page, err := api.GetObjects(pageCtx, query)
		cancel()

		if err != nil {
			return nil, fmt.Errorf("platform: couldn't list objects: %w", err)
		}

		headers = append(headers, page.Results...)

		if page.Links.Next == "" {
			break
		} else {
			q, err := url.Parse(page.Links.Next)
			if err != nil {
				return nil, fmt.Errorf("platform: couldn't parse _links.next: %w", err)
			}
			query.Cursor = q.Query().Get("cursor")
			if query.Cursor == "" {
				return nil, fmt.Errorf("platform: expected parameter 'cursor' was empty")
			}
		}
	}

	return headers, nil
}
