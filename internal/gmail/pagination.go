package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// foreachPage walks a token-paginated list endpoint, invoking fn once per
// page with the raw items found under itemKey. Pages are fetched only as fn
// demands them: fn returning ErrStop ends the walk cleanly and no further
// requests are issued. The caller's params map is copied, never mutated.
func (c *Client) foreachPage(ctx context.Context, url string, params map[string]string, itemKey, pageTokenParam string, fn func(items []json.RawMessage) error) error {
	p := make(map[string]string, len(params)+1)
	for k, v := range params {
		p[k] = v
	}

	for {
		var page map[string]json.RawMessage
		if err := c.getJSON(ctx, url, p, &page); err != nil {
			return err
		}
		c.metrics.RecordPageFetched(ctx, itemKey)

		var items []json.RawMessage
		if raw, ok := page[itemKey]; ok {
			if err := json.Unmarshal(raw, &items); err != nil {
				return fmt.Errorf("failed to decode %q items: %w", itemKey, err)
			}
		}
		if err := fn(items); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}

		var token string
		if raw, ok := page["nextPageToken"]; ok {
			if err := json.Unmarshal(raw, &token); err != nil {
				return fmt.Errorf("failed to decode nextPageToken: %w", err)
			}
		}
		if token == "" {
			return nil
		}
		p[pageTokenParam] = token
	}
}
