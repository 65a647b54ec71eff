package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/secondbrain-backend/internal/domain"
	"github.com/yungbote/secondbrain-backend/internal/domain/document"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, username string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:       uuid.New(),
		Username: username,
		Password: "pw",
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedDocument(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, title string, chunkCount int) *types.Document {
	tb.Helper()
	d := &types.Document{
		ID:         uuid.New(),
		UserID:     userID,
		Title:      title,
		Text:       "body of " + title,
		Tags:       document.EncodeTags([]string{"seed"}),
		ChunkCount: chunkCount,
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed document: %v", err)
	}
	return d
}
