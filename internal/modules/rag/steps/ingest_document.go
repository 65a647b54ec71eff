package steps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/secondbrain-backend/internal/data/repos"
	types "github.com/yungbote/secondbrain-backend/internal/domain"
	"github.com/yungbote/secondbrain-backend/internal/domain/document"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag/chunking"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag/embedding"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag/index"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag/vectorid"
	"github.com/yungbote/secondbrain-backend/internal/observability"
	apperr "github.com/yungbote/secondbrain-backend/internal/pkg/errors"
	"github.com/yungbote/secondbrain-backend/internal/platform/dbctx"
	"github.com/yungbote/secondbrain-backend/internal/platform/doclock"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
	"github.com/yungbote/secondbrain-backend/internal/platform/pinecone"
)

type IngestDocumentDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Docs     repos.DocumentRepo
	Chunker  chunking.Chunker
	Embedder Embedder
	Index    *index.Handle
	Locks    doclock.Locker

	PreviewMaxChars int
}

type IngestDocumentInput struct {
	UserID uuid.UUID
	Title  string
	Text   string
	Tags   []string
	Link   string
}

type IngestDocumentOutput struct {
	DocumentID uuid.UUID `json:"docId"`
	ChunkCount int       `json:"chunkCount"`
}

// IngestDocument stores the document, then chunks, embeds and upserts its
// vectors in one batch. The document is kept even when no chunk embeds.
func IngestDocument(ctx context.Context, deps IngestDocumentDeps, in IngestDocumentInput) (out IngestDocumentOutput, err error) {
	ctx, span := observability.StartSpan(ctx, "rag.ingest_document")
	defer func() { observability.EndSpan(span, err) }()

	if in.UserID == uuid.Nil {
		return out, apperr.Validation("userId is required")
	}
	if strings.TrimSpace(in.Text) == "" {
		return out, apperr.Validation("text is required")
	}
	if deps.DB == nil || deps.Log == nil || deps.Docs == nil || deps.Embedder == nil || deps.Index == nil || deps.Locks == nil {
		return out, apperr.Validation("ingest: missing deps")
	}
	log := deps.Log.With("step", "ingest_document")
	outcome := "error"
	defer func() { observability.Current().ObserveIngest(outcome, out.ChunkCount) }()

	docID := uuid.New()
	release, err := deps.Locks.Acquire(ctx, docID.String())
	if err != nil {
		return out, lockError(err)
	}
	defer release()

	dbc := dbctx.Context{Ctx: ctx, Tx: deps.DB}
	now := time.Now().UTC()
	doc := &types.Document{
		ID:        docID,
		UserID:    in.UserID,
		Title:     in.Title,
		Text:      in.Text,
		Link:      in.Link,
		Tags:      document.EncodeTags(in.Tags),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := deps.Docs.Create(dbc, []*types.Document{doc}); err != nil {
		return out, apperr.External(apperr.ServiceDocumentStore, err)
	}
	out.DocumentID = docID

	chunks := deps.Chunker.Split(in.Text)
	vectors := embedding.Vectors(deps.Embedder.EmbedAll(ctx, chunks))
	span.SetAttributes(attribute.Int("rag.chunks", len(chunks)), attribute.Int("rag.vectors", len(vectors)))
	if len(vectors) == 0 {
		log.Warn("no chunk embedded; document stored without vectors", "doc_id", docID.String(), "chunks", len(chunks))
		outcome = "no_vectors"
		return out, nil
	}
	if len(vectors) < len(chunks) {
		log.Warn("some chunks failed to embed", "doc_id", docID.String(), "chunks", len(chunks), "embedded", len(vectors))
	}

	// Every id that may be written must be covered by ChunkCount before the upsert.
	if err := deps.Docs.UpdateChunkCount(dbc, docID, len(chunks)); err != nil {
		return out, apperr.External(apperr.ServiceDocumentStore, err)
	}
	out.ChunkCount = len(chunks)

	records, err := chunkRecords(doc, chunks, vectors, deps.PreviewMaxChars)
	if err != nil {
		return out, err
	}
	if err := deps.Index.Store.Upsert(ctx, deps.Index.Namespace, records); err != nil {
		return out, apperr.External(apperr.ServiceVectorStore, err)
	}

	outcome = "ok"
	log.Debug("document ingested", "doc_id", docID.String(), "chunks", len(chunks), "vectors", len(records))
	return out, nil
}

// chunkRecords builds one vector record per embedded chunk of doc. Each
// result's Index is the chunk position in chunks.
func chunkRecords(doc *types.Document, chunks []string, vectors []embedding.Result, previewMax int) ([]pinecone.Vector, error) {
	if previewMax <= 0 {
		previewMax = DefaultPreviewMaxChars
	}
	tags := doc.TagList()
	if tags == nil {
		tags = []string{}
	}
	records := make([]pinecone.Vector, 0, len(vectors))
	for _, v := range vectors {
		if v.Index < 0 || v.Index >= len(chunks) {
			return nil, fmt.Errorf("chunk index %d out of range [0,%d)", v.Index, len(chunks))
		}
		id, err := vectorid.Encode(doc.UserID.String(), doc.ID.String(), v.Index)
		if err != nil {
			return nil, err
		}
		records = append(records, pinecone.Vector{
			ID:     id,
			Values: v.Vector,
			Metadata: map[string]any{
				MetaUserID:     doc.UserID.String(),
				MetaDocID:      doc.ID.String(),
				MetaChunkIndex: v.Index,
				MetaTitle:      doc.Title,
				MetaPreview:    firstRunes(chunks[v.Index], previewMax),
				MetaTags:       tags,
			},
		})
	}
	return records, nil
}
