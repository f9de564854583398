// log_storage.go owns the audit database: connection lifecycle, the
// schema, and row assembly.
//
// The process keeps one Logger. It opens lazily on the first write, so
// commands that never log (help, completion) never touch the
// filesystem, and Open exists only for callers that want the failure
// surfaced up front. Rows identify their workspace by a short BLAKE2b
// digest of the root path rather than the path itself, so logs can be
// aggregated across workspaces without recording where anyone's code
// lives. Every failure past that point is swallowed: the audit trail
// observes operations, it never gets to veto them.

package log

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite"
)

// EnvDatabase overrides the audit database location; tests point it at
// a temp directory.
const EnvDatabase = "RUSTSCOUT_LOG_DB"

const schema = `
CREATE TABLE IF NOT EXISTS audit (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	at        INTEGER NOT NULL,
	duration  INTEGER NOT NULL,
	workspace TEXT,
	source    TEXT NOT NULL,
	action    TEXT NOT NULL,
	root      TEXT,
	pattern   TEXT,
	success   INTEGER NOT NULL,
	error     TEXT,
	detail    TEXT
);
CREATE INDEX IF NOT EXISTS audit_at ON audit(at);
CREATE INDEX IF NOT EXISTS audit_workspace ON audit(workspace);
`

const insertRow = `
INSERT INTO audit (at, duration, workspace, source, action, root, pattern, success, error, detail)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Logger is the process-wide audit writer. The zero value is usable:
// the database opens on first use.
type Logger struct {
	mu        sync.Mutex
	db        *sql.DB
	workspace string
	broken    bool // a failed open is not retried every write
}

var std Logger

// Open eagerly connects the audit database. Optional: writes open it
// on demand. The error is informational; callers typically warn and
// continue.
func Open() error {
	std.mu.Lock()
	defer std.mu.Unlock()
	return std.connect()
}

// SetWorkspace tags subsequent entries with the workspace rooted at
// dir.
func SetWorkspace(dir string) {
	std.mu.Lock()
	std.workspace = workspaceID(dir)
	std.mu.Unlock()
}

// Log writes one entry, opening the database if needed. Failures are
// dropped.
func Log(e Entry) {
	std.mu.Lock()
	defer std.mu.Unlock()
	if std.connect() != nil {
		return
	}
	std.insert(e)
}

// Close releases the database. Subsequent writes reopen it.
func Close() {
	std.mu.Lock()
	defer std.mu.Unlock()
	if std.db != nil {
		std.db.Close()
		std.db = nil
	}
	std.broken = false
}

// connect opens the database and applies the schema. Called with the
// logger lock held. A failure marks the logger broken so later writes
// don't retry the same doomed open.
func (l *Logger) connect() error {
	if l.db != nil {
		return nil
	}
	if l.broken {
		return errBroken
	}

	path := databasePath()
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err == nil {
		var db *sql.DB
		if db, err = sql.Open("sqlite", path); err == nil {
			if _, err = db.Exec(schema); err == nil {
				l.db = db
				return nil
			}
			db.Close()
		}
	}
	l.broken = true
	return err
}

var errBroken = errors.New("audit database unavailable")

// insert writes one row. Called with the logger lock held; errors are
// discarded by design.
func (l *Logger) insert(e Entry) {
	success := 0
	if e.Success {
		success = 1
	}
	_, _ = l.db.Exec(insertRow,
		e.Start,
		e.End-e.Start,
		optional(l.workspace),
		e.Source,
		e.Action,
		optional(e.Root),
		optional(e.Pattern),
		success,
		optional(e.Error),
		detailColumn(e.Detail),
	)
}

// optional maps empty strings to SQL NULL.
func optional(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// detailColumn flattens the detail map to a JSON column, NULL when
// empty or unencodable.
func detailColumn(detail map[string]any) sql.NullString {
	if len(detail) == 0 {
		return sql.NullString{}
	}
	data, err := json.Marshal(detail)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}

// databasePath resolves the audit database location: the environment
// override, then ~/.rustscout/log/, then the working directory for
// homeless environments like minimal containers.
func databasePath() string {
	if p := os.Getenv(EnvDatabase); p != "" {
		return p
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".rustscout", "log", "rustscout-log.db")
	}
	return filepath.Join(".rustscout", "log", "rustscout-log.db")
}

// workspaceID digests a workspace root into a stable 16-hex-char tag.
func workspaceID(root string) string {
	sum := blake2b.Sum256([]byte(root))
	return hex.EncodeToString(sum[:8])
}
