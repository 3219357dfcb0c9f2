package helpdesk

import (
	"context"
	"fmt"

	"github.com/desksync/backend/internal/models"
)

type UserFetcher struct {
	Client *Client
}

// FetchByIDs resolves each collected user id individually. A failed lookup is
// logged and skipped; one missing user never aborts the backfill.
func (f *UserFetcher) FetchByIDs(ctx context.Context, ids []string) ([]models.Record, error) {
	var records []models.Record
	for _, id := range ids {
		rec, err := f.Client.Get(ctx, fmt.Sprintf("/users/%s", id))
		if err != nil {
			f.Client.Logger.Warn().Err(err).Str("userid", id).Msg("user lookup failed")
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, ErrEmptyResult
	}
	return records, nil
}
