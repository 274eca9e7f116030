package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/torspider/internal/dedup"
	"github.com/nao1215/torspider/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "torspider.db"

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicate is reported per record when a document id already exists.
	ErrDuplicate = errors.New("duplicate document id")
)

// CrawlDB is a SQLite-backed document store and dedup cache.
type CrawlDB struct {
	db        *sql.DB
	dbPath    string
	closeOnce sync.Once
	closeErr  error
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the CrawlDB in dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		}
		return nil, fmt.Errorf("failed to check database path: %w", err)
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database. Calling it more than once is safe; the
// CrawlDB is often shared by the archiver and the dedup gate.
func (cdb *CrawlDB) Close() error {
	cdb.closeOnce.Do(func() {
		cdb.closeErr = cdb.db.Close()
	})
	return cdb.closeErr
}

// Ping checks that the database answers.
func (cdb *CrawlDB) Ping(ctx context.Context) error {
	if err := cdb.db.PingContext(ctx); err != nil {
		return dedup.Unavailable("sqlite ping", err)
	}
	return nil
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		site TEXT NOT NULL,
		source BLOB,
		status_code INTEGER,
		content_type TEXT,
		fetched_at TEXT,
		session TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_documents_site ON documents(site);
	CREATE INDEX IF NOT EXISTS idx_documents_session ON documents(session);

	CREATE TABLE IF NOT EXISTS set_members (
		set_name TEXT NOT NULL,
		member TEXT NOT NULL,
		PRIMARY KEY (set_name, member)
	);
	`
	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// InsertBatch stores records in one transaction. Records whose id already
// exists are reported as ErrDuplicate and leave the stored document as is.
func (cdb *CrawlDB) InsertBatch(ctx context.Context, records []model.Record) (int, []model.RecordError, error) {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR IGNORE INTO documents (id, site, source, status_code, content_type, fetched_at, session)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	var (
		inserted int
		recErrs  []model.RecordError
	)
	for i, r := range records {
		res, err := stmt.ExecContext(ctx,
			r.ID,
			r.Site,
			r.Source,
			r.StatusCode,
			r.ContentType,
			r.FetchedAt.UTC().Format(time.RFC3339Nano),
			r.Session,
		)
		if err != nil {
			recErrs = append(recErrs, model.RecordError{Index: i, ID: r.ID, Err: err})
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			recErrs = append(recErrs, model.RecordError{Index: i, ID: r.ID, Err: ErrDuplicate})
			continue
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("failed to commit batch: %w", err)
	}
	return inserted, recErrs, nil
}

// GetDocument returns the stored record with the given id.
func (cdb *CrawlDB) GetDocument(ctx context.Context, id string) (*model.Record, error) {
	var (
		r         model.Record
		fetchedAt string
		session   sql.NullString
	)
	err := cdb.db.QueryRowContext(ctx, `
	SELECT id, site, source, status_code, content_type, fetched_at, session
	FROM documents WHERE id = ?
	`, id).Scan(&r.ID, &r.Site, &r.Source, &r.StatusCode, &r.ContentType, &fetchedAt, &session)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	r.FetchedAt = parseTimestamp(fetchedAt)
	r.Session = session.String
	return &r, nil
}

// CountDocuments returns the number of stored documents.
func (cdb *CrawlDB) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	if err := cdb.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// timestampFormats lists the formats fetched_at may have been written in.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// parseTimestamp returns the zero time when no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
