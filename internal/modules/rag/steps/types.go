package steps

import (
	"context"
	"errors"

	"github.com/yungbote/secondbrain-backend/internal/modules/rag/embedding"
	apperr "github.com/yungbote/secondbrain-backend/internal/pkg/errors"
	"github.com/yungbote/secondbrain-backend/internal/platform/doclock"
)

// Embedder is satisfied by *embedding.Embedder.
type Embedder interface {
	EmbedAll(ctx context.Context, texts []string) []embedding.Result
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator is the part of the OpenAI client used to compose answers.
type Generator interface {
	GenerateText(ctx context.Context, system string, user string) (string, error)
}

// Tunables with their defaults.
const (
	DefaultTopK                 = 5
	DefaultContextMaxChars      = 7000
	DefaultContextFallbackChars = 1200
	DefaultPreviewMaxChars      = 400
)

// Metadata keys written on every vector.
const (
	MetaUserID     = "userId"
	MetaDocID      = "docId"
	MetaChunkIndex = "chunkIndex"
	MetaTitle      = "title"
	MetaPreview    = "preview"
	MetaTags       = "tags"
)

func firstRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func lockError(err error) error {
	switch {
	case errors.Is(err, doclock.ErrBusy):
		return apperr.ErrDocumentBusy
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return apperr.External(apperr.ServiceLock, err)
	}
}
