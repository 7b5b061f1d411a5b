package conversation

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, c *Conversation) error
	List(ctx context.Context, f ListFilter) ([]*Conversation, error)
}
