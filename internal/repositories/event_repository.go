package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// EventRepository remembers chain events that were already credited.
type EventRepository struct {
	db sqlx.ExtContext
}

func NewEventRepository(db sqlx.ExtContext) *EventRepository {
	return &EventRepository{
		db: db,
	}
}

func (r *EventRepository) MarkProcessed(ctx context.Context, key string) (bool, error) {
	res, err := r.db.ExecContext(
		ctx,
		"insert into processed_event(event_key, processed_at) values ($1, $2) on conflict (event_key) do nothing",
		key,
		time.Now(),
	)
	if err != nil {
		log.Error("Failed mark event processed: ", err)
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
