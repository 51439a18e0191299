package repository

import (
	"errors"
	"fmt"

	"github.com/kustii/board/auth"
	"github.com/kustii/board/boards"
)

var (
	// ErrInvalidType is returned for board types outside the requested family.
	ErrInvalidType = boards.ErrInvalidType
	// ErrPermissionDenied is returned when the actor's role is too low.
	ErrPermissionDenied = errors.New("not enough permissions")
	// ErrNotFound is returned for missing posts and comments.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned for missing or malformed fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorage wraps failures of the underlying database.
	ErrStorage = errors.New("storage error")
)

var (
	errPostNotFound    = fmt.Errorf("post %w", ErrNotFound)
	errCommentNotFound = fmt.Errorf("comment %w", ErrNotFound)
	errParentNotFound  = fmt.Errorf("parent comment %w", ErrNotFound)
)

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// Actor is the caller of a repository operation as resolved by the credential gate.
type Actor struct {
	Identity string
	Role     auth.Role
}
