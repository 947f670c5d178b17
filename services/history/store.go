// Package history persists chat records. Every terminal pipeline outcome
// (answer, refusal, quota/budget message, "I don't know") writes exactly one
// record.
package history

import (
	"context"
	"errors"

	"github.com/owlhq/answerplane/models"
)

// ErrNotFound is returned when no record exists for the given id.
var ErrNotFound = errors.New("chat record not found")

// Store is the chat history boundary. Save assigns the record id when it is
// empty and returns it.
type Store interface {
	Save(ctx context.Context, rec *models.ChatRecord) (string, error)
	GetByID(ctx context.Context, tenantID, id string) (*models.ChatRecord, error)
}
