package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jbweber/homelab/fleetdash/internal/datastore"
	"github.com/jbweber/homelab/fleetdash/internal/domain"
)

// UserKey identifies an account: usernames are unique per server
type UserKey struct {
	ServerID string
	Username string
}

// UserRepository defines account operations. Accounts are locked rather
// than deleted, so DeleteByID is not supported.
type UserRepository interface {
	Repository[datastore.User, UserKey]
	FindByServer(ctx context.Context, serverID string) ([]datastore.User, error)
	SetStatus(ctx context.Context, key UserKey, status domain.UserStatus) error
}

type userRepositoryImpl struct {
	*base[datastore.User, UserKey]
}

// NewUserRepository creates a new user repository
func NewUserRepository(ds *datastore.Datastore) UserRepository {
	return &userRepositoryImpl{
		base: newBase[datastore.User, UserKey](ds, "user"),
	}
}

// Save creates an account. Existing accounts are never overwritten.
func (r *userRepositoryImpl) Save(ctx context.Context, user datastore.User) (datastore.User, error) {
	if user.ServerID == "" || user.Username == "" {
		return datastore.User{}, fmt.Errorf("server ID and username are required: %w", ErrInvalidEntity)
	}
	created, err := r.ds.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, datastore.ErrUserExists) {
			return datastore.User{}, fmt.Errorf("user %s on %s: %w", user.Username, user.ServerID, ErrDuplicate)
		}
		return datastore.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

// FindByID retrieves an account by server and username
func (r *userRepositoryImpl) FindByID(ctx context.Context, key UserKey) (datastore.User, error) {
	user, err := r.ds.GetUser(ctx, key.ServerID, key.Username)
	if err != nil {
		return datastore.User{}, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return datastore.User{}, fmt.Errorf("user %s on %s: %w", key.Username, key.ServerID, ErrNotFound)
	}
	return *user, nil
}

// FindAll retrieves every account across servers
func (r *userRepositoryImpl) FindAll(ctx context.Context) ([]datastore.User, error) {
	users, err := r.ds.ListAllUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// ExistsByID checks if an account exists
func (r *userRepositoryImpl) ExistsByID(ctx context.Context, key UserKey) (bool, error) {
	user, err := r.ds.GetUser(ctx, key.ServerID, key.Username)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return user != nil, nil
}

// FindByServer retrieves the accounts of one server
func (r *userRepositoryImpl) FindByServer(ctx context.Context, serverID string) ([]datastore.User, error) {
	users, err := r.ds.ListUsers(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// SetStatus locks or unlocks an account. Setting the current status again
// succeeds.
func (r *userRepositoryImpl) SetStatus(ctx context.Context, key UserKey, status domain.UserStatus) error {
	found, err := r.ds.SetUserStatus(ctx, key.ServerID, key.Username, status)
	if err != nil {
		return fmt.Errorf("failed to set user status: %w", err)
	}
	if !found {
		return fmt.Errorf("user %s on %s: %w", key.Username, key.ServerID, ErrNotFound)
	}
	return nil
}
