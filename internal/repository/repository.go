// Package repository puts entity-shaped access on top of the datastore for
// the reference backend's HTTP handlers. Failures are reported with the
// sentinel errors below and are meant to be checked with errors.Is.
package repository

import (
	"context"
	"errors"
)

var (
	ErrNotFound              = errors.New("entity not found")
	ErrDuplicate             = errors.New("entity already exists")
	ErrInvalidEntity         = errors.New("invalid entity")
	ErrOperationNotSupported = errors.New("operation not supported")
)

// Repository is the access contract shared by servers and server users.
// Not every entity supports every operation; unsupported ones return
// ErrOperationNotSupported.
type Repository[T any, ID comparable] interface {
	Save(ctx context.Context, entity T) (T, error)

	// FindByID returns ErrNotFound when the entity is absent
	FindByID(ctx context.Context, id ID) (T, error)

	FindAll(ctx context.Context) ([]T, error)

	// DeleteByID returns ErrNotFound when the entity is absent
	DeleteByID(ctx context.Context, id ID) error

	ExistsByID(ctx context.Context, id ID) (bool, error)
}
