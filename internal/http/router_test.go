package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/secondbrain-backend/internal/domain"
	httpH "github.com/yungbote/secondbrain-backend/internal/http/handlers"
	httpMW "github.com/yungbote/secondbrain-backend/internal/http/middleware"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag"
	apperr "github.com/yungbote/secondbrain-backend/internal/pkg/errors"
	"github.com/yungbote/secondbrain-backend/internal/platform/ctxutil"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
)

type fakeAuth struct {
	userID uuid.UUID
}

func (f *fakeAuth) Signup(ctx context.Context, username, email, password string) (*types.User, error) {
	if username == "taken" {
		return nil, apperr.ErrConflict
	}
	return &types.User{ID: f.userID, Username: username}, nil
}

func (f *fakeAuth) Signin(ctx context.Context, username, password string) (string, error) {
	if password != "pw" {
		return "", apperr.ErrUnauthorized
	}
	return "good", nil
}

func (f *fakeAuth) SetContextFromToken(ctx context.Context, token string) (context.Context, error) {
	if token != "good" {
		return ctx, apperr.ErrUnauthorized
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{UserID: f.userID, TokenString: token}), nil
}

func (f *fakeAuth) GetAccessTTL() time.Duration { return time.Hour }

type fakeBrain struct {
	lastIngest rag.IngestInput
	lastSearch rag.RetrieveInput
	deleteErr  error
}

func (f *fakeBrain) IngestDocument(ctx context.Context, in rag.IngestInput) (rag.IngestOutput, error) {
	f.lastIngest = in
	return rag.IngestOutput{DocumentID: uuid.New(), ChunkCount: 2}, nil
}

func (f *fakeBrain) RetrieveContext(ctx context.Context, in rag.RetrieveInput) (rag.RetrieveOutput, error) {
	f.lastSearch = in
	return rag.RetrieveOutput{Context: "ctx", Sources: []rag.Source{}}, nil
}

func (f *fakeBrain) AnswerQuestion(ctx context.Context, in rag.AnswerInput) (rag.AnswerOutput, error) {
	return rag.AnswerOutput{Answer: "42", Sources: []rag.Source{}}, nil
}

func (f *fakeBrain) DeleteDocument(ctx context.Context, in rag.DeleteInput) error {
	return f.deleteErr
}

func (f *fakeBrain) ListDocuments(ctx context.Context, userID uuid.UUID) ([]*types.Document, error) {
	return []*types.Document{{ID: uuid.New(), UserID: userID, Title: "t", Text: "x"}}, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *fakeAuth, *fakeBrain) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	auth := &fakeAuth{userID: uuid.New()}
	brain := &fakeBrain{}
	r := NewRouter(RouterConfig{
		Log:            log,
		AuthHandler:    httpH.NewAuthHandler(auth),
		AuthMiddleware: httpMW.NewAuthMiddleware(log, auth),
		ContentHandler: httpH.NewContentHandler(log, brain),
		HealthHandler:  httpH.NewHealthHandler(nil),
	})
	return r, auth, brain
}

func do(r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestProtectedRoutesRequireBearerToken(t *testing.T) {
	r, _, _ := newTestRouter(t)
	for _, token := range []string{"", "bad"} {
		rec := do(r, http.MethodGet, "/api/user/content", token, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: want=401 got=%d", token, rec.Code)
		}
	}
	if rec := do(r, http.MethodGet, "/api/user/content", "good", ""); rec.Code != http.StatusOK {
		t.Fatalf("good token: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestContentUsesUserFromToken(t *testing.T) {
	r, auth, brain := newTestRouter(t)
	body := `{"title":"t","text":"hello","userId":"00000000-0000-0000-0000-000000000009"}`
	rec := do(r, http.MethodPost, "/api/user/content", "good", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("create: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if brain.lastIngest.UserID != auth.userID {
		t.Fatalf("ingest user: want=%s got=%s", auth.userID, brain.lastIngest.UserID)
	}
	var out struct {
		Success    bool   `json:"success"`
		DocID      string `json:"docId"`
		ChunkCount int    `json:"chunkCount"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if !out.Success || out.ChunkCount != 2 || out.DocID == "" {
		t.Fatalf("create body: %s", rec.Body.String())
	}
}

func TestSearchReadsTopKFromQuery(t *testing.T) {
	r, _, brain := newTestRouter(t)
	rec := do(r, http.MethodPost, "/api/user/search?topK=3", "good", `{"q":"trip"}`)
	if rec.Code != http.StatusOK || brain.lastSearch.TopK != 3 || brain.lastSearch.Query != "trip" {
		t.Fatalf("search: code=%d in=%+v", rec.Code, brain.lastSearch)
	}
	if rec := do(r, http.MethodPost, "/api/user/search?topK=x", "good", `{"q":"trip"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad topK: want=400 got=%d", rec.Code)
	}
}

func TestDeleteMapsErrors(t *testing.T) {
	r, _, brain := newTestRouter(t)
	id := uuid.New().String()
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{nil, http.StatusOK, ""},
		{apperr.ErrNotFound, http.StatusNotFound, "not_found"},
		{apperr.ErrDocumentBusy, http.StatusConflict, "document_busy"},
		{apperr.ErrCrossStoreInconsistency, http.StatusBadGateway, "cross_store_inconsistency"},
	}
	for _, tc := range cases {
		brain.deleteErr = tc.err
		rec := do(r, http.MethodDelete, "/api/user/content?id="+id, "good", "")
		if rec.Code != tc.status {
			t.Fatalf("%v: want=%d got=%d", tc.err, tc.status, rec.Code)
		}
		if tc.code != "" && !strings.Contains(rec.Body.String(), `"code":"`+tc.code+`"`) {
			t.Fatalf("%v: body %s", tc.err, rec.Body.String())
		}
	}
	if rec := do(r, http.MethodDelete, "/api/user/content?id=nope", "good", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: want=400 got=%d", rec.Code)
	}
}

func TestSignupAndSignin(t *testing.T) {
	r, _, _ := newTestRouter(t)
	if rec := do(r, http.MethodPost, "/api/user/signup", "", `{"username":"a","password":"pw"}`); rec.Code != http.StatusCreated {
		t.Fatalf("signup: want=201 got=%d", rec.Code)
	}
	if rec := do(r, http.MethodPost, "/api/user/signup", "", `{"username":"taken","password":"pw"}`); rec.Code != http.StatusConflict {
		t.Fatalf("signup taken: want=409 got=%d", rec.Code)
	}
	rec := do(r, http.MethodPost, "/api/user/signin", "", `{"username":"a","password":"pw"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"token":"good"`) {
		t.Fatalf("signin: code=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := do(r, http.MethodPost, "/api/user/signin", "", `{"username":"a","password":"no"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("signin bad: want=401 got=%d", rec.Code)
	}
}

func TestHealthWithoutDatabase(t *testing.T) {
	r, _, _ := newTestRouter(t)
	rec := do(r, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"database":"unconfigured"`) {
		t.Fatalf("health: code=%d body=%s", rec.Code, rec.Body.String())
	}
}
