package rag

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/secondbrain-backend/internal/data/repos"
	types "github.com/yungbote/secondbrain-backend/internal/domain"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag/chunking"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag/index"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag/steps"
	apperr "github.com/yungbote/secondbrain-backend/internal/pkg/errors"
	"github.com/yungbote/secondbrain-backend/internal/platform/dbctx"
	"github.com/yungbote/secondbrain-backend/internal/platform/doclock"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
	"github.com/yungbote/secondbrain-backend/internal/services"
)

// Tunables carries the configurable limits of the pipeline; zero values use
// the step defaults.
type Tunables struct {
	TopKDefault          int
	ContextMaxChars      int
	ContextFallbackChars int
	PreviewMaxChars      int
}

type UsecasesDeps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Docs  repos.DocumentRepo
	Saga  services.SagaService
	Locks doclock.Locker

	Chunker   chunking.Chunker
	Embedder  steps.Embedder
	Generator steps.Generator
	Index     *index.Handle

	Tunables Tunables
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases { return Usecases{deps: deps} }

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

type (
	IngestInput  = steps.IngestDocumentInput
	IngestOutput = steps.IngestDocumentOutput

	RetrieveInput  = steps.RetrieveContextInput
	RetrieveOutput = steps.RetrieveContextOutput

	AnswerInput  = steps.AnswerQuestionInput
	AnswerOutput = steps.AnswerQuestionOutput

	DeleteInput = steps.DeleteDocumentInput

	Source = steps.Source
	Match  = steps.Match
)

func (u Usecases) IngestDocument(ctx context.Context, in IngestInput) (IngestOutput, error) {
	return steps.IngestDocument(ctx, steps.IngestDocumentDeps{
		DB:              u.deps.DB,
		Log:             u.deps.Log,
		Docs:            u.deps.Docs,
		Chunker:         u.deps.Chunker,
		Embedder:        u.deps.Embedder,
		Index:           u.deps.Index,
		Locks:           u.deps.Locks,
		PreviewMaxChars: u.deps.Tunables.PreviewMaxChars,
	}, steps.IngestDocumentInput(in))
}

func (u Usecases) retrieveDeps() steps.RetrieveContextDeps {
	return steps.RetrieveContextDeps{
		DB:                   u.deps.DB,
		Log:                  u.deps.Log,
		Docs:                 u.deps.Docs,
		Embedder:             u.deps.Embedder,
		Index:                u.deps.Index,
		TopKDefault:          u.deps.Tunables.TopKDefault,
		ContextMaxChars:      u.deps.Tunables.ContextMaxChars,
		ContextFallbackChars: u.deps.Tunables.ContextFallbackChars,
	}
}

func (u Usecases) RetrieveContext(ctx context.Context, in RetrieveInput) (RetrieveOutput, error) {
	return steps.RetrieveContext(ctx, u.retrieveDeps(), steps.RetrieveContextInput(in))
}

func (u Usecases) AnswerQuestion(ctx context.Context, in AnswerInput) (AnswerOutput, error) {
	return steps.AnswerQuestion(ctx, steps.AnswerQuestionDeps{
		Retrieve:  u.retrieveDeps(),
		Generator: u.deps.Generator,
	}, steps.AnswerQuestionInput(in))
}

func (u Usecases) DeleteDocument(ctx context.Context, in DeleteInput) error {
	return steps.DeleteDocument(ctx, steps.DeleteDocumentDeps{
		DB:              u.deps.DB,
		Log:             u.deps.Log,
		Docs:            u.deps.Docs,
		Saga:            u.deps.Saga,
		Index:           u.deps.Index,
		Locks:           u.deps.Locks,
		Chunker:         u.deps.Chunker,
		Embedder:        u.deps.Embedder,
		PreviewMaxChars: u.deps.Tunables.PreviewMaxChars,
	}, steps.DeleteDocumentInput(in))
}

// ListDocuments returns the user's documents, newest first.
func (u Usecases) ListDocuments(ctx context.Context, userID uuid.UUID) ([]*types.Document, error) {
	if userID == uuid.Nil {
		return nil, apperr.Validation("userId is required")
	}
	rows, err := u.deps.Docs.ListByUser(dbctx.Context{Ctx: ctx, Tx: u.deps.DB}, userID)
	if err != nil {
		return nil, apperr.External(apperr.ServiceDocumentStore, err)
	}
	return rows, nil
}
