package repoerr

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperr "github.com/yungbote/secondbrain-backend/internal/pkg/errors"
)

// IsUniqueViolation recognises duplicate-key failures from Postgres and SQLite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "sqlstate 23505") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint failed")
}

// Store wraps a document-store failure so callers can report the collaborator.
// Unique violations become apperr.ErrConflict instead.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsUniqueViolation(err) {
		return errors.Join(apperr.ErrConflict, errors.New(op))
	}
	return apperr.External(apperr.ServiceDocumentStore, errors.Join(errors.New(op), err))
}
