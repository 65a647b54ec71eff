package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/secondbrain-backend/internal/http/response"
	types "github.com/yungbote/secondbrain-backend/internal/domain"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag"
	apperr "github.com/yungbote/secondbrain-backend/internal/pkg/errors"
	"github.com/yungbote/secondbrain-backend/internal/platform/ctxutil"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
)

// Brain is the use case surface behind the content endpoints.
type Brain interface {
	IngestDocument(ctx context.Context, in rag.IngestInput) (rag.IngestOutput, error)
	RetrieveContext(ctx context.Context, in rag.RetrieveInput) (rag.RetrieveOutput, error)
	AnswerQuestion(ctx context.Context, in rag.AnswerInput) (rag.AnswerOutput, error)
	DeleteDocument(ctx context.Context, in rag.DeleteInput) error
	ListDocuments(ctx context.Context, userID uuid.UUID) ([]*types.Document, error)
}

type ContentHandler struct {
	log   *logger.Logger
	brain Brain
}

func NewContentHandler(log *logger.Logger, brain Brain) *ContentHandler {
	return &ContentHandler{log: log.With("handler", "ContentHandler"), brain: brain}
}

type documentView struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Text       string    `json:"text"`
	Link       string    `json:"link,omitempty"`
	Tags       []string  `json:"tags"`
	ChunkCount int       `json:"chunkCount"`
	CreatedAt  string    `json:"createdAt"`
}

func toDocumentViews(docs []*types.Document) []documentView {
	out := make([]documentView, 0, len(docs))
	for _, d := range docs {
		tags := d.TagList()
		if tags == nil {
			tags = []string{}
		}
		out = append(out, documentView{
			ID:         d.ID,
			Title:      d.Title,
			Text:       d.Text,
			Link:       d.Link,
			Tags:       tags,
			ChunkCount: d.ChunkCount,
			CreatedAt:  d.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

func (h *ContentHandler) Create(c *gin.Context) {
	var req struct {
		Title string   `json:"title"`
		Text  string   `json:"text"`
		Tags  []string `json:"tags"`
		Link  string   `json:"link"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAppError(c, apperr.Validation(err.Error()))
		return
	}
	out, err := h.brain.IngestDocument(c.Request.Context(), rag.IngestInput{
		UserID: ctxutil.UserID(c.Request.Context()),
		Title:  strings.TrimSpace(req.Title),
		Text:   req.Text,
		Tags:   req.Tags,
		Link:   strings.TrimSpace(req.Link),
	})
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"success": true, "docId": out.DocumentID.String(), "chunkCount": out.ChunkCount})
}

func (h *ContentHandler) List(c *gin.Context) {
	docs, err := h.brain.ListDocuments(c.Request.Context(), ctxutil.UserID(c.Request.Context()))
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"content": toDocumentViews(docs)})
}

func (h *ContentHandler) Delete(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("id"))
	docID, err := uuid.Parse(raw)
	if err != nil {
		response.RespondAppError(c, apperr.Validation("id must be a document id"))
		return
	}
	if err := h.brain.DeleteDocument(c.Request.Context(), rag.DeleteInput{
		UserID:     ctxutil.UserID(c.Request.Context()),
		DocumentID: docID,
	}); err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"message": "deleted"})
}

func (h *ContentHandler) Search(c *gin.Context) {
	var req struct {
		Q string `json:"q"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAppError(c, apperr.Validation(err.Error()))
		return
	}
	topK, err := queryTopK(c)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	out, err := h.brain.RetrieveContext(c.Request.Context(), rag.RetrieveInput{
		UserID: ctxutil.UserID(c.Request.Context()),
		Query:  req.Q,
		TopK:   topK,
	})
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"matches":        out.Matches,
		"previewContext": out.Context,
		"sources":        out.Sources,
	})
}

func (h *ContentHandler) Ask(c *gin.Context) {
	var req struct {
		Query string `json:"query"`
		TopK  int    `json:"topK"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAppError(c, apperr.Validation(err.Error()))
		return
	}
	out, err := h.brain.AnswerQuestion(c.Request.Context(), rag.AnswerInput{
		UserID:   ctxutil.UserID(c.Request.Context()),
		Question: req.Query,
		TopK:     req.TopK,
	})
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"answer": out.Answer, "sources": out.Sources})
}

func queryTopK(c *gin.Context) (int, error) {
	raw := strings.TrimSpace(c.Query("topK"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Validation("topK must be a non-negative integer")
	}
	return n, nil
}
