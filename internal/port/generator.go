package port

import (
	"context"

	"chanrag/internal/domain"
)

// AnswerGenerator composes prose from retrieved context. It is an external
// collaborator; the core hands over the payload and does not inspect or
// validate the generated text.
type AnswerGenerator interface {
	Generate(ctx context.Context, question string, payload domain.ContextPayload) (string, error)
}
