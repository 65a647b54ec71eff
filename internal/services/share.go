package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/yungbote/secondbrain-backend/internal/data/repos"
	"github.com/yungbote/secondbrain-backend/internal/data/repos/repoerr"
	types "github.com/yungbote/secondbrain-backend/internal/domain"
	apperr "github.com/yungbote/secondbrain-backend/internal/pkg/errors"
	"github.com/yungbote/secondbrain-backend/internal/platform/dbctx"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
)

const (
	shareHashLen      = 10
	shareHashAlphabet = "qwertyuiopasdfghjklzxcvbnm12345678"
	shareHashAttempts = 5
)

type ShareResult struct {
	Hash    string `json:"hash,omitempty"`
	Deleted bool   `json:"deleted"`
}

type SharedBrain struct {
	Username  string            `json:"username"`
	Documents []*types.Document `json:"content"`
}

type ShareService interface {
	// SetSharing returns the existing or a new link when share is true and
	// removes the link otherwise.
	SetSharing(ctx context.Context, userID uuid.UUID, share bool) (ShareResult, error)
	Resolve(ctx context.Context, hash string) (SharedBrain, error)
}

type shareService struct {
	log   *logger.Logger
	links repos.ShareLinkRepo
	users repos.UserRepo
	docs  repos.DocumentRepo
}

func NewShareService(log *logger.Logger, links repos.ShareLinkRepo, users repos.UserRepo, docs repos.DocumentRepo) ShareService {
	return &shareService{
		log:   log.With("service", "ShareService"),
		links: links,
		users: users,
		docs:  docs,
	}
}

func (s *shareService) SetSharing(ctx context.Context, userID uuid.UUID, share bool) (ShareResult, error) {
	if userID == uuid.Nil {
		return ShareResult{}, apperr.Validation("userId is required")
	}
	dbc := dbctx.Context{Ctx: ctx}
	if !share {
		n, err := s.links.DeleteByUserID(dbc, userID)
		if err != nil {
			return ShareResult{}, apperr.External(apperr.ServiceDocumentStore, err)
		}
		return ShareResult{Deleted: n > 0}, nil
	}

	existing, err := s.links.GetByUserID(dbc, userID)
	if err != nil {
		return ShareResult{}, apperr.External(apperr.ServiceDocumentStore, err)
	}
	if existing != nil {
		return ShareResult{Hash: existing.Hash}, nil
	}
	for attempt := 0; attempt < shareHashAttempts; attempt++ {
		hash, err := randomHash(shareHashLen)
		if err != nil {
			return ShareResult{}, err
		}
		row, err := s.links.Create(dbc, &types.ShareLink{UserID: userID, Hash: hash})
		if err == nil {
			return ShareResult{Hash: row.Hash}, nil
		}
		if !repoerr.IsUniqueViolation(err) {
			return ShareResult{}, apperr.External(apperr.ServiceDocumentStore, err)
		}
		// Either the hash collided or a concurrent call created the user's link.
		if existing, gerr := s.links.GetByUserID(dbc, userID); gerr == nil && existing != nil {
			return ShareResult{Hash: existing.Hash}, nil
		}
	}
	return ShareResult{}, fmt.Errorf("%w: could not allocate share hash", apperr.ErrConflict)
}

func (s *shareService) Resolve(ctx context.Context, hash string) (SharedBrain, error) {
	dbc := dbctx.Context{Ctx: ctx}
	link, err := s.links.GetByHash(dbc, hash)
	if err != nil {
		return SharedBrain{}, apperr.External(apperr.ServiceDocumentStore, err)
	}
	if link == nil {
		return SharedBrain{}, apperr.ErrNotFound
	}
	users, err := s.users.GetByIDs(dbc, []uuid.UUID{link.UserID})
	if err != nil {
		return SharedBrain{}, apperr.External(apperr.ServiceDocumentStore, err)
	}
	if len(users) == 0 {
		return SharedBrain{}, apperr.ErrNotFound
	}
	docs, err := s.docs.ListByUser(dbc, link.UserID)
	if err != nil {
		return SharedBrain{}, apperr.External(apperr.ServiceDocumentStore, err)
	}
	return SharedBrain{Username: users[0].Username, Documents: docs}, nil
}

func randomHash(n int) (string, error) {
	max := big.NewInt(int64(len(shareHashAlphabet)))
	out := make([]byte, n)
	for i := range out {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("random hash: %w", err)
		}
		out[i] = shareHashAlphabet[v.Int64()]
	}
	return string(out), nil
}
