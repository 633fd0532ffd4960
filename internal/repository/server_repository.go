package repository

import (
	"context"
	"fmt"

	"github.com/jbweber/homelab/fleetdash/internal/datastore"
	"github.com/jbweber/homelab/fleetdash/internal/domain"
)

// ServerRepository defines fleet operations. The fleet is read-only over the
// API; servers come from the seed, so Save and DeleteByID are not supported.
type ServerRepository interface {
	Repository[domain.Server, string]
}

type serverRepositoryImpl struct {
	*base[domain.Server, string]
}

// NewServerRepository creates a new server repository
func NewServerRepository(ds *datastore.Datastore) ServerRepository {
	return &serverRepositoryImpl{
		base: newBase[domain.Server, string](ds, "server"),
	}
}

// FindByID retrieves a server by its ID
func (r *serverRepositoryImpl) FindByID(ctx context.Context, id string) (domain.Server, error) {
	server, err := r.ds.GetServer(ctx, id)
	if err != nil {
		return domain.Server{}, fmt.Errorf("failed to find server: %w", err)
	}
	if server == nil {
		return domain.Server{}, fmt.Errorf("server %s: %w", id, ErrNotFound)
	}
	return *server, nil
}

// FindAll retrieves all servers ordered by ID
func (r *serverRepositoryImpl) FindAll(ctx context.Context) ([]domain.Server, error) {
	servers, err := r.ds.ListServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	return servers, nil
}

// ExistsByID checks if a server exists
func (r *serverRepositoryImpl) ExistsByID(ctx context.Context, id string) (bool, error) {
	server, err := r.ds.GetServer(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to check server existence: %w", err)
	}
	return server != nil, nil
}
