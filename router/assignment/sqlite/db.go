// Copyright 2025 Canarygate Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlite contains an SQLite backend for the assignment store, for
// deployments where bindings must survive process restarts or be shared
// between co-located worker processes.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/canarygate/canarygate/pkg/private/serrors"
	"github.com/canarygate/canarygate/router/assignment"
)

// SchemaVersion is the version of the database schema in Schema.
const SchemaVersion = 1

// Schema is the SQLite database schema.
const Schema = `
CREATE TABLE assignments (
	client_id TEXT PRIMARY KEY,
	version TEXT NOT NULL,
	assigned_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX idx_assignments_version ON assignments (version);
CREATE INDEX idx_assignments_expires_at ON assignments (expires_at);
`

var _ assignment.Store = (*Backend)(nil)

// Backend is an assignment store backed by an SQLite database.
type Backend struct {
	db  *sql.DB
	ttl time.Duration
}

// New returns a new SQLite backend opening a database at the given path. If
// no database exists, a new database is created. If the schema version of the
// stored database is larger than SchemaVersion, an error is returned.
// Bindings expire ttl after their last Put; a non-positive ttl falls back to
// assignment.DefaultTTL.
func New(path string, ttl time.Duration) (*Backend, error) {
	if ttl <= 0 {
		ttl = assignment.DefaultTTL
	}
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	return &Backend{db: db, ttl: ttl}, nil
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_journal=WAL&_busy_timeout=1000", path))
	if err != nil {
		return nil, serrors.Wrap("opening SQLite database", err, "path", path)
	}
	// Serialize writers on the driver level to avoid SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		defer db.Close()
		return nil, serrors.Wrap("checking schema version", err)
	}
	if version > SchemaVersion {
		defer db.Close()
		return nil, serrors.New("database schema version newer than supported",
			"have", version, "supported", SchemaVersion)
	}
	if version < SchemaVersion {
		if err := setup(db); err != nil {
			defer db.Close()
			return nil, err
		}
	}
	return db, nil
}

func setup(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return serrors.Wrap("setting up SQLite database", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return serrors.Wrap("writing schema version", err)
	}
	return nil
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) Get(ctx context.Context, clientID string) (assignment.Assignment, bool, error) {
	query := `SELECT version, assigned_at FROM assignments
		WHERE client_id = ? AND expires_at > ?`
	var version string
	var assignedAt int64
	err := b.db.QueryRowContext(ctx, query, clientID, time.Now().Unix()).
		Scan(&version, &assignedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return assignment.Assignment{}, false, nil
	case err != nil:
		return assignment.Assignment{}, false,
			serrors.Join(assignment.ErrStoreUnavailable, err, "op", "get")
	}
	return assignment.Assignment{
		ClientID:   clientID,
		Version:    version,
		AssignedAt: time.Unix(assignedAt, 0),
	}, true, nil
}

func (b *Backend) Put(ctx context.Context, clientID, version string) error {
	// INSERT OR REPLACE gives last-write-wins for two requests racing to bind
	// the same client.
	query := `INSERT OR REPLACE INTO assignments
		(client_id, version, assigned_at, expires_at) VALUES (?, ?, ?, ?)`
	now := time.Now()
	_, err := b.db.ExecContext(ctx, query,
		clientID, version, now.Unix(), now.Add(b.ttl).Unix())
	if err != nil {
		return serrors.Join(assignment.ErrStoreUnavailable, err, "op", "put")
	}
	return nil
}

func (b *Backend) Evict(ctx context.Context, clientID string) error {
	_, err := b.db.ExecContext(ctx,
		"DELETE FROM assignments WHERE client_id = ?", clientID)
	if err != nil {
		return serrors.Join(assignment.ErrStoreUnavailable, err, "op", "evict")
	}
	return nil
}

func (b *Backend) EvictVersion(ctx context.Context, version string) (int, error) {
	res, err := b.db.ExecContext(ctx,
		"DELETE FROM assignments WHERE version = ?", version)
	if err != nil {
		return 0, serrors.Join(assignment.ErrStoreUnavailable, err, "op", "evict_version")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, serrors.Join(assignment.ErrStoreUnavailable, err, "op", "evict_version")
	}
	return int(n), nil
}

func (b *Backend) DeleteExpired(ctx context.Context) (int, error) {
	res, err := b.db.ExecContext(ctx,
		"DELETE FROM assignments WHERE expires_at <= ?", time.Now().Unix())
	if err != nil {
		return 0, serrors.Join(assignment.ErrStoreUnavailable, err, "op", "delete_expired")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, serrors.Join(assignment.ErrStoreUnavailable, err, "op", "delete_expired")
	}
	return int(n), nil
}
