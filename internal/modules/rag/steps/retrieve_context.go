package steps

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/secondbrain-backend/internal/data/repos"
	types "github.com/yungbote/secondbrain-backend/internal/domain"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag/index"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag/vectorid"
	"github.com/yungbote/secondbrain-backend/internal/observability"
	apperr "github.com/yungbote/secondbrain-backend/internal/pkg/errors"
	"github.com/yungbote/secondbrain-backend/internal/platform/dbctx"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
	"github.com/yungbote/secondbrain-backend/internal/platform/pinecone"
)

type RetrieveContextDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Docs     repos.DocumentRepo
	Embedder Embedder
	Index    *index.Handle

	TopKDefault          int
	ContextMaxChars      int
	ContextFallbackChars int
}

type RetrieveContextInput struct {
	UserID uuid.UUID
	Query  string
	TopK   int
}

type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Source struct {
	DocumentID uuid.UUID `json:"docId"`
	Title      string    `json:"title"`
	Score      float64   `json:"score"`
}

type RetrieveContextOutput struct {
	Matches []Match  `json:"matches"`
	Context string   `json:"previewContext"`
	Sources []Source `json:"sources"`
}

type scoredDoc struct {
	docID    uuid.UUID
	score    float64
	previews []string
	doc      *types.Document
}

// RetrieveContext finds the caller's documents nearest to the query and
// assembles a character-bounded context from their previews.
func RetrieveContext(ctx context.Context, deps RetrieveContextDeps, in RetrieveContextInput) (out RetrieveContextOutput, err error) {
	ctx, span := observability.StartSpan(ctx, "rag.retrieve_context")
	defer func() { observability.EndSpan(span, err) }()
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		observability.Current().ObserveRetrieval(status, len(out.Sources), time.Since(start))
	}()

	if in.UserID == uuid.Nil {
		return out, apperr.Validation("userId is required")
	}
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return out, apperr.Validation("query is required")
	}
	if deps.Log == nil || deps.Docs == nil || deps.Embedder == nil || deps.Index == nil {
		return out, apperr.Validation("retrieve: missing deps")
	}
	topK := in.TopK
	if topK <= 0 {
		topK = deps.TopKDefault
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	span.SetAttributes(attribute.Int("rag.top_k", topK))

	qvec, err := deps.Embedder.Embed(ctx, query)
	if err != nil || len(qvec) == 0 {
		return out, embedError(err)
	}

	userID := in.UserID.String()
	raw, err := deps.Index.Store.QueryMatches(ctx, deps.Index.Namespace, qvec, topK, map[string]any{
		MetaUserID: map[string]any{"$eq": userID},
	})
	if err != nil {
		return out, apperr.External(apperr.ServiceVectorStore, err)
	}

	out.Matches = make([]Match, 0, len(raw))
	var order []uuid.UUID
	byDoc := map[uuid.UUID]*scoredDoc{}
	for _, m := range raw {
		docID, ok := ownedDocID(m, userID)
		if !ok {
			deps.Log.Warn("dropping foreign or malformed match", "vector_id", m.ID)
			continue
		}
		out.Matches = append(out.Matches, Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
		sd := byDoc[docID]
		if sd == nil {
			sd = &scoredDoc{docID: docID, score: m.Score}
			byDoc[docID] = sd
			order = append(order, docID)
		} else if m.Score > sd.score {
			sd.score = m.Score
		}
		if p, _ := m.Metadata[MetaPreview].(string); p != "" {
			sd.previews = append(sd.previews, p)
		}
	}

	out.Sources = []Source{}
	if len(order) == 0 {
		return out, nil
	}

	docs, err := deps.Docs.GetByIDsForUser(dbctx.Context{Ctx: ctx, Tx: deps.DB}, in.UserID, order)
	if err != nil {
		return out, apperr.External(apperr.ServiceDocumentStore, err)
	}
	for _, d := range docs {
		if sd := byDoc[d.ID]; sd != nil {
			sd.doc = d
		}
	}
	scored := make([]*scoredDoc, 0, len(order))
	for _, id := range order {
		if sd := byDoc[id]; sd.doc != nil {
			scored = append(scored, sd)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	maxChars := deps.ContextMaxChars
	if maxChars <= 0 {
		maxChars = DefaultContextMaxChars
	}
	fallback := deps.ContextFallbackChars
	if fallback <= 0 {
		fallback = DefaultContextFallbackChars
	}
	out.Context = buildContext(scored, maxChars, fallback)
	for _, sd := range scored {
		out.Sources = append(out.Sources, Source{DocumentID: sd.docID, Title: sd.doc.Title, Score: sd.score})
	}
	span.SetAttributes(attribute.Int("rag.matches", len(out.Matches)), attribute.Int("rag.sources", len(out.Sources)))
	return out, nil
}

// ownedDocID decodes the match id and checks both the id and the metadata
// belong to userID.
func ownedDocID(m pinecone.VectorMatch, userID string) (uuid.UUID, bool) {
	key, err := vectorid.Decode(m.ID)
	if err != nil || key.UserID != userID {
		return uuid.Nil, false
	}
	if owner, ok := m.Metadata[MetaUserID].(string); ok && owner != userID {
		return uuid.Nil, false
	}
	docID, err := uuid.Parse(key.DocID)
	if err != nil {
		return uuid.Nil, false
	}
	return docID, true
}

// buildContext concatenates one block per document while the total stays
// within maxChars, stopping at the first block that does not fit.
func buildContext(docs []*scoredDoc, maxChars, fallbackChars int) string {
	var b strings.Builder
	used := 0
	for _, sd := range docs {
		title := strings.TrimSpace(sd.doc.Title)
		if title == "" {
			title = "Untitled"
		}
		body := strings.Join(sd.previews, "\n")
		if len(sd.previews) == 0 {
			body = firstRunes(sd.doc.Text, fallbackChars)
		}
		block := fmt.Sprintf("# %s (doc:%s)\n%s\n\n", title, sd.docID.String(), body)
		n := len([]rune(block))
		if used+n > maxChars {
			break
		}
		b.WriteString(block)
		used += n
	}
	return b.String()
}

func embedError(err error) error {
	if err == nil {
		return apperr.ErrEmbeddingFailure
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", apperr.ErrEmbeddingFailure, err)
}
