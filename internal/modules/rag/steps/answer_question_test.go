package steps

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	apperr "github.com/yungbote/secondbrain-backend/internal/pkg/errors"
	"github.com/yungbote/secondbrain-backend/internal/platform/pinecone"
)

func TestAnswerQuestionSingleCallWithContext(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	d := h.seedDoc(t, userID, "Trip", "Flight at 9am.", 1)
	h.store.matches = []pinecone.VectorMatch{match(t, userID, d.ID, 0, 0.8, "Flight at 9am.")}
	gen := &fakeGenerator{answer: "  At 9am.  "}

	out, err := AnswerQuestion(context.Background(), AnswerQuestionDeps{Retrieve: h.retrieveDeps(t), Generator: gen}, AnswerQuestionInput{
		UserID:   userID,
		Question: "When is my flight?",
	})
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if gen.calls != 1 {
		t.Fatalf("generator calls: want=1 got=%d", gen.calls)
	}
	if out.Answer != "At 9am." || len(out.Sources) != 1 || out.Sources[0].DocumentID != d.ID {
		t.Fatalf("out: unexpected %+v", out)
	}
	if !strings.Contains(gen.system, "I don't have enough information.") {
		t.Fatalf("system prompt: %q", gen.system)
	}
	if !strings.Contains(gen.user, "When is my flight?") || !strings.Contains(gen.user, "Flight at 9am.") || !strings.HasSuffix(gen.user, "Answer:") {
		t.Fatalf("user prompt: %q", gen.user)
	}
}

func TestAnswerQuestionWrapsGeneratorFailure(t *testing.T) {
	h := newHarness(t)
	gen := &fakeGenerator{err: errors.New("503")}
	_, err := AnswerQuestion(context.Background(), AnswerQuestionDeps{Retrieve: h.retrieveDeps(t), Generator: gen}, AnswerQuestionInput{
		UserID:   uuid.New(),
		Question: "anything",
	})
	if apperr.ExternalService(err) != apperr.ServiceGenerativeModel {
		t.Fatalf("err: want generative_model outage, got %v", err)
	}
	if gen.calls != 1 {
		t.Fatalf("generator calls: want=1 got=%d", gen.calls)
	}
}

func TestAnswerQuestionPropagatesRetrievalErrors(t *testing.T) {
	h := newHarness(t)
	gen := &fakeGenerator{answer: "x"}
	_, err := AnswerQuestion(context.Background(), AnswerQuestionDeps{Retrieve: h.retrieveDeps(t), Generator: gen}, AnswerQuestionInput{UserID: uuid.New()})
	if !errors.Is(err, apperr.ErrValidation) || gen.calls != 0 {
		t.Fatalf("want validation error without generation, got err=%v calls=%d", err, gen.calls)
	}
}
