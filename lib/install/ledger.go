// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/openvon/vonwrap/lib/sqlitepool"
)

// ActionKind classifies a ledger row.
type ActionKind string

const (
	// ActionInstall records a completed artifact install.
	ActionInstall ActionKind = "install"

	// ActionUnchanged records an artifact whose destination already
	// held the expected bytes; nothing was written.
	ActionUnchanged ActionKind = "unchanged"

	// ActionBackup records a destination file moved aside before
	// overwrite.
	ActionBackup ActionKind = "backup"

	// ActionConfigAppend records a key=value line appended to an INI
	// file.
	ActionConfigAppend ActionKind = "config-append"

	// ActionConfigPresent records a config key that was already
	// present and therefore left untouched.
	ActionConfigPresent ActionKind = "config-present"

	// ActionFailure records an aborted step. The run stops at the
	// first failure; the row preserves what was being attempted.
	ActionFailure ActionKind = "failure"
)

// Action is one audit ledger row.
type Action struct {
	ID          int64      `json:"id"`
	Time        time.Time  `json:"time"`
	Kind        ActionKind `json:"kind"`
	Artifact    string     `json:"artifact,omitempty"`
	Source      string     `json:"source,omitempty"`
	Destination string     `json:"destination,omitempty"`
	Digest      string     `json:"digest,omitempty"`
	Detail      string     `json:"detail,omitempty"`
}

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS actions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	time        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	artifact    TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL DEFAULT '',
	destination TEXT NOT NULL DEFAULT '',
	digest      TEXT NOT NULL DEFAULT '',
	detail      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS actions_by_artifact ON actions(artifact, id);
`

// Ledger is the append-only audit trail of install actions. Every
// bootstrap mutation lands here; the audit and verify commands read
// it back.
type Ledger struct {
	pool *sqlitepool.Pool
}

// OpenLedger opens (creating if necessary) the ledger database at
// path. The parent directory must exist.
func OpenLedger(path string, logger *slog.Logger) (*Ledger, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   path,
		Logger: logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, ledgerSchema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opening install ledger: %w", err)
	}
	return &Ledger{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (l *Ledger) Close() error {
	return l.pool.Close()
}

// Record appends one action. A zero Time is filled with the current
// time.
func (l *Ledger) Record(ctx context.Context, action Action) error {
	conn, err := l.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer l.pool.Put(conn)

	when := action.Time
	if when.IsZero() {
		when = time.Now().UTC()
	}

	err = sqlitex.Execute(conn, `INSERT INTO actions
		(time, kind, artifact, source, destination, digest, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			when.Format(time.RFC3339Nano),
			string(action.Kind),
			action.Artifact,
			action.Source,
			action.Destination,
			action.Digest,
			action.Detail,
		},
	})
	if err != nil {
		return fmt.Errorf("recording %s action: %w", action.Kind, err)
	}
	return nil
}

// Actions returns ledger rows, newest first. A limit of zero or less
// returns everything.
func (l *Ledger) Actions(ctx context.Context, limit int) ([]Action, error) {
	conn, err := l.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer l.pool.Put(conn)

	query := `SELECT id, time, kind, artifact, source, destination, digest, detail
		FROM actions ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var actions []Action
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args:       args,
		ResultFunc: func(stmt *sqlite.Stmt) error { return scanAction(stmt, &actions) },
	})
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	return actions, nil
}

// LatestInstalls returns the most recent install row per artifact
// name, for artifacts whose latest disposition is an install (not a
// later failure). Used by the verify command.
func (l *Ledger) LatestInstalls(ctx context.Context) ([]Action, error) {
	conn, err := l.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer l.pool.Put(conn)

	// Group by artifact, keeping the highest-id install row.
	query := `SELECT id, time, kind, artifact, source, destination, digest, detail
		FROM actions
		WHERE kind = ? AND id IN (
			SELECT max(id) FROM actions WHERE kind = ? AND artifact != '' GROUP BY artifact
		)
		ORDER BY artifact`

	var actions []Action
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args:       []any{string(ActionInstall), string(ActionInstall)},
		ResultFunc: func(stmt *sqlite.Stmt) error { return scanAction(stmt, &actions) },
	})
	if err != nil {
		return nil, fmt.Errorf("reading latest installs: %w", err)
	}
	return actions, nil
}

func scanAction(stmt *sqlite.Stmt, actions *[]Action) error {
	when, err := time.Parse(time.RFC3339Nano, stmt.ColumnText(1))
	if err != nil {
		return fmt.Errorf("parsing action time: %w", err)
	}
	*actions = append(*actions, Action{
		ID:          stmt.ColumnInt64(0),
		Time:        when,
		Kind:        ActionKind(stmt.ColumnText(2)),
		Artifact:    stmt.ColumnText(3),
		Source:      stmt.ColumnText(4),
		Destination: stmt.ColumnText(5),
		Digest:      stmt.ColumnText(6),
		Detail:      stmt.ColumnText(7),
	})
	return nil
}
