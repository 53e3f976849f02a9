package storage

import (
	"context"

	"simpleamm/internal/model"
)

// Storage defines a sink for committed engine events.
type Storage interface {
	PutEvents(ctx context.Context, events []model.Event) error
}
