package auth

import (
	"context"
	"errors"

	biotopes "aquatracking/internal/biotopes/domain"
)

var (
	// ErrForbidden indicates the biotope belongs to another user.
	ErrForbidden = errors.New("auth: forbidden")
	// ErrNotFound indicates the biotope does not exist.
	ErrNotFound = errors.New("auth: resource not found")
	// ErrUnauthenticated indicates no caller identity in context.
	ErrUnauthenticated = errors.New("auth: unauthenticated")
)

// BiotopeOwnerChecker validates biotope ownership.
type BiotopeOwnerChecker interface {
	EnsureBiotopeOwner(ctx context.Context, userID, biotopeID string) error
}

// BiotopeChecker checks ownership using the biotope repository.
type BiotopeChecker struct {
	repo biotopes.Repository
}

// NewBiotopeChecker constructs a BiotopeChecker.
func NewBiotopeChecker(repo biotopes.Repository) *BiotopeChecker {
	if repo == nil {
		return nil
	}
	return &BiotopeChecker{repo: repo}
}

// EnsureBiotopeOwner verifies the biotope belongs to the user.
func (c *BiotopeChecker) EnsureBiotopeOwner(ctx context.Context, userID, biotopeID string) error {
	if c == nil || c.repo == nil {
		return nil
	}
	if userID == "" {
		return ErrUnauthenticated
	}
	if biotopeID == "" {
		return ErrNotFound
	}
	biotope, err := c.repo.Get(ctx, biotopeID)
	if err != nil {
		return err
	}
	if biotope == nil {
		return ErrNotFound
	}
	if biotope.OwnerID != userID {
		return ErrForbidden
	}
	return nil
}
