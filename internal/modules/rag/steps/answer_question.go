package steps

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/secondbrain-backend/internal/observability"
	apperr "github.com/yungbote/secondbrain-backend/internal/pkg/errors"
)

type AnswerQuestionDeps struct {
	Retrieve  RetrieveContextDeps
	Generator Generator
}

type AnswerQuestionInput struct {
	UserID   uuid.UUID
	Question string
	TopK     int
}

type AnswerQuestionOutput struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// AnswerQuestion retrieves context and makes exactly one generative call.
func AnswerQuestion(ctx context.Context, deps AnswerQuestionDeps, in AnswerQuestionInput) (out AnswerQuestionOutput, err error) {
	ctx, span := observability.StartSpan(ctx, "rag.answer_question")
	defer func() { observability.EndSpan(span, err) }()

	if deps.Generator == nil {
		return out, apperr.Validation("answer: missing deps")
	}
	retrieved, err := RetrieveContext(ctx, deps.Retrieve, RetrieveContextInput{
		UserID: in.UserID,
		Query:  in.Question,
		TopK:   in.TopK,
	})
	if err != nil {
		return out, err
	}

	answer, err := deps.Generator.GenerateText(ctx, answerSystemPrompt, answerUserPrompt(strings.TrimSpace(in.Question), retrieved.Context))
	if err != nil {
		return out, apperr.External(apperr.ServiceGenerativeModel, err)
	}
	out.Answer = strings.TrimSpace(answer)
	out.Sources = retrieved.Sources
	return out, nil
}
