package sqlite

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/codegraphhq/codegraph/internal/types"
)

// wrapDBError classifies a backend error into the stable error kinds.
// sql.ErrNoRows becomes NOT_FOUND; unique-constraint violations become
// CONFLICT; everything else is BACKEND.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return types.WrapError(types.ErrNotFound, err, "%s: no such row", op)
	}
	if isUniqueViolation(err) {
		return types.WrapError(types.ErrConflict, err, "%s: already exists", op)
	}
	return types.WrapError(types.ErrBackend, err, "%s: %v", op, err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}

func notFound(kind, id string) error {
	return types.NewError(types.ErrNotFound, "%s not found: %s", kind, id)
}

func validationErr(err error) error {
	return types.WrapError(types.ErrValidation, err, "%v", err)
}
