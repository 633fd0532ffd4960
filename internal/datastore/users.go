package datastore

import (
	"context"
	"database/sql"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/jbweber/homelab/fleetdash/internal/domain"
)

// FirstUID is the lowest uid/gid handed out to provisioned accounts
const FirstUID = 1000

// ErrUserExists is returned when a username is already taken on a server
var ErrUserExists = errors.New("user already exists")

// User is an account row including the provisioning details the dashboard
// never reads back
type User struct {
	ID           int64  `db:"id"`
	ServerID     string `db:"server_id"`
	Username     string `db:"username"`
	UID          int    `db:"uid"`
	GID          int    `db:"gid"`
	Home         string `db:"home"`
	Shell        string `db:"shell"`
	Status       string `db:"status"`
	FullName     string `db:"full_name"`
	Email        string `db:"email"`
	Role         string `db:"role"`
	SSHKey       string `db:"ssh_key"`
	Sudo         bool   `db:"sudo"`
	Expiry       string `db:"expiry"`
	PasswordHash string `db:"password_hash"`
}

var userColumns = columns(User{})

// ToModel converts the row to the account shape served by the API
func (u User) ToModel() domain.ServerUser {
	return domain.ServerUser{
		Username: u.Username,
		UID:      strconv.Itoa(u.UID),
		GID:      strconv.Itoa(u.GID),
		Home:     u.Home,
		Shell:    u.Shell,
		Status:   domain.UserStatus(u.Status),
	}
}

// ListUsers returns the accounts of one server ordered by uid
func (ds *Datastore) ListUsers(ctx context.Context, serverID string) ([]User, error) {
	var users []User
	query := ds.builder().Select(userColumns...).From(usersTable).
		Where(sq.Eq{"server_id": serverID}).OrderBy("uid ASC", "id ASC")
	if err := ds.selectAll(ctx, query, &users); err != nil {
		return nil, errors.Wrapf(err, "select users of %s", serverID)
	}
	return lo.Ternary(users == nil, []User{}, users), nil
}

// ListAllUsers returns every account ordered by server and uid
func (ds *Datastore) ListAllUsers(ctx context.Context) ([]User, error) {
	var users []User
	query := ds.builder().Select(userColumns...).From(usersTable).OrderBy("server_id ASC", "uid ASC", "id ASC")
	if err := ds.selectAll(ctx, query, &users); err != nil {
		return nil, errors.Wrap(err, "select users")
	}
	return lo.Ternary(users == nil, []User{}, users), nil
}

// GetUser returns one account, or nil when absent
func (ds *Datastore) GetUser(ctx context.Context, serverID, username string) (*User, error) {
	var users []User
	query := ds.builder().Select(userColumns...).From(usersTable).
		Where(sq.Eq{"server_id": serverID, "username": username}).Limit(1)
	if err := ds.selectAll(ctx, query, &users); err != nil {
		return nil, errors.Wrapf(err, "select user %s on %s", username, serverID)
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// CreateUser inserts an account. A zero UID is replaced with the next free
// uid on the server (starting at FirstUID) and a zero GID with the uid.
func (ds *Datastore) CreateUser(ctx context.Context, u User) (User, error) {
	if u.ServerID == "" || u.Username == "" {
		return User{}, errors.New("server ID and username are required")
	}
	if u.Status == "" {
		u.Status = string(domain.UserActive)
	}

	err := ds.withTx(ctx, func(tx *sqlx.Tx) error {
		b := txBuilder(tx)

		var exists int
		err := b.Select("COUNT(*)").From(usersTable).
			Where(sq.Eq{"server_id": u.ServerID, "username": u.Username}).
			QueryRowContext(ctx).Scan(&exists)
		if err != nil {
			return errors.Wrap(err, "check username")
		}
		if exists > 0 {
			return ErrUserExists
		}

		if u.UID == 0 {
			var maxUID sql.NullInt64
			err := b.Select("MAX(uid)").From(usersTable).
				Where(sq.Eq{"server_id": u.ServerID}).
				QueryRowContext(ctx).Scan(&maxUID)
			if err != nil {
				return errors.Wrap(err, "allocate uid")
			}
			u.UID = FirstUID
			if maxUID.Valid && int(maxUID.Int64) >= FirstUID {
				u.UID = int(maxUID.Int64) + 1
			}
		}
		if u.GID == 0 {
			u.GID = u.UID
		}

		now := ds.now()
		res, err := b.Insert(usersTable).SetMap(map[string]any{
			"server_id":     u.ServerID,
			"username":      u.Username,
			"uid":           u.UID,
			"gid":           u.GID,
			"home":          u.Home,
			"shell":         u.Shell,
			"status":        u.Status,
			"full_name":     u.FullName,
			"email":         u.Email,
			"role":          u.Role,
			"ssh_key":       u.SSHKey,
			"sudo":          u.Sudo,
			"expiry":        u.Expiry,
			"password_hash": u.PasswordHash,
			"created_at":    now,
			"updated_at":    now,
		}).ExecContext(ctx)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrUserExists
			}
			return errors.Wrap(err, "insert user")
		}
		u.ID, err = res.LastInsertId()
		return errors.Wrap(err, "last insert id")
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// SetUserStatus updates an account's status. It reports false when the
// account does not exist.
func (ds *Datastore) SetUserStatus(ctx context.Context, serverID, username string, status domain.UserStatus) (bool, error) {
	res, err := ds.builder().Update(usersTable).
		Set("status", string(status)).
		Set("updated_at", ds.now()).
		Where(sq.Eq{"server_id": serverID, "username": username}).
		ExecContext(ctx)
	if err != nil {
		return false, errors.Wrapf(err, "update status of %s on %s", username, serverID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

// DefaultShell is the login shell of provisioned accounts
const DefaultShell = "/bin/bash"

// HomeDir is the home directory of a provisioned account
func HomeDir(username string) string {
	return "/home/" + username
}
