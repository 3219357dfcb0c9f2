package helpdesk

import (
	"context"
	"net/url"

	"github.com/desksync/backend/internal/models"
)

type TagFetcher struct {
	Client *Client
}

func (f *TagFetcher) Fetch(ctx context.Context, maxPages int) ([]models.Record, error) {
	records := f.Client.FetchAllPages(ctx, "/tags", url.Values{}, "_page", maxPages)
	if len(records) == 0 {
		return nil, ErrEmptyResult
	}
	return records, nil
}
