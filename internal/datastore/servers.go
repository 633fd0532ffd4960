package datastore

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/jbweber/homelab/fleetdash/internal/domain"
)

type serverRow struct {
	ID     string `db:"id"`
	Name   string `db:"name"`
	IP     string `db:"ip"`
	OS     string `db:"os"`
	Status string `db:"status"`
	CPU    int    `db:"cpu"`
	Memory int    `db:"memory"`
	Disk   int    `db:"disk"`
}

type tagRow struct {
	ServerID string `db:"server_id"`
	Position int    `db:"position"`
	Tag      string `db:"tag"`
}

type historyRow struct {
	ServerID string `db:"server_id"`
	Position int    `db:"position"`
	Label    string `db:"label"`
	Usage    int    `db:"usage"`
}

var (
	serverColumns  = columns(serverRow{})
	tagColumns     = columns(tagRow{})
	historyColumns = columns(historyRow{})
)

func (r serverRow) toModel(tags []tagRow, history []historyRow) domain.Server {
	return domain.Server{
		ID:     r.ID,
		Name:   r.Name,
		IP:     r.IP,
		OS:     r.OS,
		Status: domain.ServerStatus(r.Status),
		Tags:   lo.Map(tags, func(t tagRow, _ int) string { return t.Tag }),
		Stats: domain.ServerStats{
			CPU:    r.CPU,
			Memory: r.Memory,
			Disk:   r.Disk,
			History: lo.Map(history, func(h historyRow, _ int) domain.StatsPoint {
				return domain.StatsPoint{Time: h.Label, Usage: h.Usage}
			}),
		},
	}
}

// ListServers returns every server ordered by ID, with tags and history
func (ds *Datastore) ListServers(ctx context.Context) ([]domain.Server, error) {
	return ds.loadServers(ctx, nil)
}

// GetServer returns the server with the given ID, or nil when absent
func (ds *Datastore) GetServer(ctx context.Context, id string) (*domain.Server, error) {
	servers, err := ds.loadServers(ctx, sq.Eq{"id": id})
	if err != nil {
		return nil, err
	}
	if len(servers) == 0 {
		return nil, nil
	}
	return &servers[0], nil
}

// CountServers returns the number of stored servers
func (ds *Datastore) CountServers(ctx context.Context) (int, error) {
	var n int
	err := ds.builder().Select("COUNT(*)").From(serversTable).QueryRowContext(ctx).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "count servers")
	}
	return n, nil
}

func (ds *Datastore) loadServers(ctx context.Context, where sq.Sqlizer) ([]domain.Server, error) {
	query := ds.builder().Select(serverColumns...).From(serversTable).OrderBy("id ASC")
	if where != nil {
		query = query.Where(where)
	}

	var rows []serverRow
	if err := ds.selectAll(ctx, query, &rows); err != nil {
		return nil, errors.Wrap(err, "select servers")
	}
	if len(rows) == 0 {
		return []domain.Server{}, nil
	}

	ids := lo.Map(rows, func(r serverRow, _ int) string { return r.ID })

	var tags []tagRow
	tagQuery := ds.builder().Select(tagColumns...).From(tagsTable).
		Where(sq.Eq{"server_id": ids}).OrderBy("server_id", "position")
	if err := ds.selectAll(ctx, tagQuery, &tags); err != nil {
		return nil, errors.Wrap(err, "select server tags")
	}

	var history []historyRow
	historyQuery := ds.builder().Select(historyColumns...).From(historyTable).
		Where(sq.Eq{"server_id": ids}).OrderBy("server_id", "position")
	if err := ds.selectAll(ctx, historyQuery, &history); err != nil {
		return nil, errors.Wrap(err, "select server history")
	}

	tagsByServer := lo.GroupBy(tags, func(t tagRow) string { return t.ServerID })
	historyByServer := lo.GroupBy(history, func(h historyRow) string { return h.ServerID })

	return lo.Map(rows, func(r serverRow, _ int) domain.Server {
		return r.toModel(tagsByServer[r.ID], historyByServer[r.ID])
	}), nil
}

// SaveServer inserts or replaces a server together with its tags and history.
// The server is normalized first; a server without an ID is rejected.
func (ds *Datastore) SaveServer(ctx context.Context, server domain.Server) (domain.Server, error) {
	server = server.Normalize()
	if server.ID == "" {
		return domain.Server{}, errors.New("server ID is required")
	}

	err := ds.withTx(ctx, func(tx *sqlx.Tx) error {
		b := txBuilder(tx)
		now := ds.now()

		_, err := b.Insert(serversTable).
			Columns("id", "name", "ip", "os", "status", "cpu", "memory", "disk", "created_at", "updated_at").
			Values(server.ID, server.Name, server.IP, server.OS, string(server.Status),
				server.Stats.CPU, server.Stats.Memory, server.Stats.Disk, now, now).
			Suffix(`ON CONFLICT(id) DO UPDATE SET
				name = excluded.name, ip = excluded.ip, os = excluded.os, status = excluded.status,
				cpu = excluded.cpu, memory = excluded.memory, disk = excluded.disk,
				updated_at = excluded.updated_at`).
			ExecContext(ctx)
		if err != nil {
			return errors.Wrapf(err, "upsert server %s", server.ID)
		}

		if _, err := b.Delete(tagsTable).Where(sq.Eq{"server_id": server.ID}).ExecContext(ctx); err != nil {
			return errors.Wrap(err, "clear server tags")
		}
		if len(server.Tags) > 0 {
			insert := b.Insert(tagsTable).Columns(tagColumns...)
			for i, tag := range server.Tags {
				insert = insert.Values(server.ID, i, tag)
			}
			if _, err := insert.ExecContext(ctx); err != nil {
				return errors.Wrap(err, "insert server tags")
			}
		}

		if _, err := b.Delete(historyTable).Where(sq.Eq{"server_id": server.ID}).ExecContext(ctx); err != nil {
			return errors.Wrap(err, "clear server history")
		}
		if len(server.Stats.History) > 0 {
			insert := b.Insert(historyTable).Columns(historyColumns...)
			for i, point := range server.Stats.History {
				insert = insert.Values(server.ID, i, point.Time, point.Usage)
			}
			if _, err := insert.ExecContext(ctx); err != nil {
				return errors.Wrap(err, "insert server history")
			}
		}
		return nil
	})
	if err != nil {
		return domain.Server{}, err
	}
	return server, nil
}
