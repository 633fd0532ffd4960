package repository

import (
	"context"
	"fmt"

	"github.com/jbweber/homelab/fleetdash/internal/datastore"
)

// base is embedded by the concrete repositories. Any operation an entity
// does not override fails with ErrOperationNotSupported.
type base[T any, ID comparable] struct {
	ds     *datastore.Datastore
	entity string
}

func newBase[T any, ID comparable](ds *datastore.Datastore, entity string) *base[T, ID] {
	return &base[T, ID]{ds: ds, entity: entity}
}

func (b *base[T, ID]) Save(context.Context, T) (T, error) {
	var zero T
	return zero, b.unsupported("save")
}

func (b *base[T, ID]) FindByID(context.Context, ID) (T, error) {
	var zero T
	return zero, b.unsupported("find")
}

func (b *base[T, ID]) FindAll(context.Context) ([]T, error) {
	return nil, b.unsupported("list")
}

func (b *base[T, ID]) DeleteByID(context.Context, ID) error {
	return b.unsupported("delete")
}

func (b *base[T, ID]) ExistsByID(context.Context, ID) (bool, error) {
	return false, b.unsupported("exists")
}

func (b *base[T, ID]) unsupported(op string) error {
	return fmt.Errorf("%s %s: %w", op, b.entity, ErrOperationNotSupported)
}
