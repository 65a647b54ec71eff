package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/secondbrain-backend/internal/data/repos"
	"github.com/yungbote/secondbrain-backend/internal/data/repos/testutil"
	types "github.com/yungbote/secondbrain-backend/internal/domain"
	apperr "github.com/yungbote/secondbrain-backend/internal/pkg/errors"
	"github.com/yungbote/secondbrain-backend/internal/platform/dbctx"
)

func TestShareLifecycle(t *testing.T) {
	log := testutil.Logger(t)
	db := testutil.SQLite(t)
	users := repos.NewUserRepo(db, log)
	docs := repos.NewDocumentRepo(db, log)
	svc := NewShareService(log, repos.NewShareLinkRepo(db, log), users, docs)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	owner := &types.User{Username: "frank", Password: "x"}
	if _, err := users.Create(dbc, []*types.User{owner}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := docs.Create(dbc, []*types.Document{{UserID: owner.ID, Title: "n1", Text: "hello"}}); err != nil {
		t.Fatalf("create doc: %v", err)
	}

	first, err := svc.SetSharing(ctx, owner.ID, true)
	if err != nil {
		t.Fatalf("SetSharing: %v", err)
	}
	if len(first.Hash) != shareHashLen {
		t.Fatalf("hash length: want=%d got=%d", shareHashLen, len(first.Hash))
	}
	again, _ := svc.SetSharing(ctx, owner.ID, true)
	if again.Hash != first.Hash {
		t.Fatalf("sharing twice must reuse the hash: %s vs %s", first.Hash, again.Hash)
	}

	brain, err := svc.Resolve(ctx, first.Hash)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if brain.Username != "frank" || len(brain.Documents) != 1 || brain.Documents[0].Title != "n1" {
		t.Fatalf("brain: unexpected %+v", brain)
	}

	off, err := svc.SetSharing(ctx, owner.ID, false)
	if err != nil || !off.Deleted {
		t.Fatalf("unshare: res=%+v err=%v", off, err)
	}
	if _, err := svc.Resolve(ctx, first.Hash); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Resolve after unshare: want ErrNotFound, got %v", err)
	}
	none, _ := svc.SetSharing(ctx, owner.ID, false)
	if none.Deleted {
		t.Fatalf("second unshare must report nothing deleted")
	}
	if _, err := svc.SetSharing(ctx, uuid.Nil, true); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("nil user: want ErrValidation, got %v", err)
	}
}

func TestRandomHashAlphabet(t *testing.T) {
	h, err := randomHash(32)
	if err != nil {
		t.Fatalf("randomHash: %v", err)
	}
	for _, r := range h {
		found := false
		for _, a := range shareHashAlphabet {
			if a == r {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("unexpected rune %q in %s", r, h)
		}
	}
}
