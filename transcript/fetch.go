package transcript

import (
	"context"
	"fmt"
	"sort"
)

// Pager returns up to limit messages older than before, newest first, the
// way the Discord history endpoint does. An empty before means "latest".
type Pager interface {
	MessagesBefore(ctx context.Context, channelID, before string, limit int) ([]Message, error)
}

// Collect pages backwards through the channel history and returns every
// message sorted oldest first. Paging stops on an empty page, a short page
// or a cursor that fails to move.
func Collect(ctx context.Context, p Pager, channelID string, pageSize int) ([]Message, error) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}

	var (
		all    []Message
		before string
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := p.MessagesBefore(ctx, channelID, before, pageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch messages before %q: %w", before, err)
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)

		oldest := page[len(page)-1].ID
		if len(page) < pageSize || oldest == before {
			break
		}
		before = oldest
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})
	return all, nil
}
