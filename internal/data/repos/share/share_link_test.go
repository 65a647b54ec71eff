package share

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/secondbrain-backend/internal/data/repos/testutil"
	types "github.com/yungbote/secondbrain-backend/internal/domain"
	"github.com/yungbote/secondbrain-backend/internal/platform/dbctx"
)

func TestShareLinkRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewShareLinkRepo(db, testutil.Logger(t))

	userID := uuid.New()
	hash := "h" + uuid.NewString()[:9]
	if _, err := repo.Create(dbc, &types.ShareLink{UserID: userID, Hash: hash}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	byUser, err := repo.GetByUserID(dbc, userID)
	if err != nil || byUser == nil || byUser.Hash != hash {
		t.Fatalf("GetByUserID: got=%+v err=%v", byUser, err)
	}
	byHash, err := repo.GetByHash(dbc, hash)
	if err != nil || byHash == nil || byHash.UserID != userID {
		t.Fatalf("GetByHash: got=%+v err=%v", byHash, err)
	}

	n, err := repo.DeleteByUserID(dbc, userID)
	if err != nil || n != 1 {
		t.Fatalf("DeleteByUserID: want 1 got=%d err=%v", n, err)
	}
	gone, err := repo.GetByHash(dbc, hash)
	if err != nil || gone != nil {
		t.Fatalf("GetByHash after delete: want nil got=%+v err=%v", gone, err)
	}
}
