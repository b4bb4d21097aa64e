// Package sites persists site records and nothing else: domain, login and
// version. Passwords, passphrases and secrets never reach the store.
package sites

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophpass/internal/common"
	"github.com/dmitrijs2005/gophpass/internal/dbx"
	"github.com/dmitrijs2005/gophpass/internal/sites/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Store is the persistence contract of the session.
type Store interface {
	// Create inserts rec and returns the id the store assigned.
	Create(ctx context.Context, rec SiteRecord) (int64, error)
	ReadAll(ctx context.Context) ([]SiteRecord, error)
	// FindByDomain returns every record for domain; the lookup is not unique.
	FindByDomain(ctx context.Context, domain string) ([]SiteRecord, error)
	// Update replaces the record with rec.ID. A missing id is ErrNotFound.
	Update(ctx context.Context, rec SiteRecord) error
	Delete(ctx context.Context, id int64) error
	// Reset deletes every record.
	Reset(ctx context.Context) error
	Close() error
}

// SQLStore implements Store on database/sql for SQLite and PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect dbx.Dialect
}

var _ Store = (*SQLStore)(nil)

func NewSQLStore(db *sql.DB, dialect dbx.Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// RunMigrations applies the embedded schema for dialect.
func RunMigrations(ctx context.Context, db *sql.DB, dialect dbx.Dialect) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(dialect.GooseDialect()); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	dir := "sqlite"
	if dialect == dbx.Postgres {
		dir = "postgres"
	}
	return gooseUpContext(ctx, db, dir)
}

// Open connects to the database named by driver and dsn, checks the
// connection and migrates the schema. Every failure is
// common.ErrStoreUnavailable.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	dialect, err := dbx.ParseDialect(driver)
	if err != nil {
		return nil, fmt.Errorf("open store: %w: %w", common.ErrStoreUnavailable, err)
	}
	if dsn == "" {
		return nil, fmt.Errorf("open store: %w: empty dsn", common.ErrStoreUnavailable)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w: %w", common.ErrStoreUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store: %w: %w", common.ErrStoreUnavailable, err)
	}
	if err := RunMigrations(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate store: %w: %w", common.ErrStoreUnavailable, err)
	}
	return NewSQLStore(db, dialect), nil
}

// tx classifies the outcome of one unit of work: record and lookup errors
// pass through, everything else is a driver failure.
func (s *SQLStore) tx(ctx context.Context, op string, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	err := dbx.WithTx(ctx, s.db, nil, fn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrNotFound), errors.Is(err, common.ErrInvalidRecord):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, common.ErrStoreUnavailable, err)
	}
}

func nullable(rec SiteRecord) (login, version any) {
	if rec.Login != "" {
		login = rec.Login
	}
	if rec.Version > 0 {
		version = int64(rec.Version)
	}
	return login, version
}

func (s *SQLStore) Create(ctx context.Context, rec SiteRecord) (int64, error) {
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return 0, err
	}
	login, version := nullable(rec)

	var id int64
	err := s.tx(ctx, "create site", func(ctx context.Context, tx dbx.DBTX) error {
		q := s.dialect.Rebind(`INSERT INTO sites (domain, login, version) VALUES (?, ?, ?) RETURNING id`)
		return tx.QueryRowContext(ctx, q, rec.Domain, login, version).Scan(&id)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLStore) ReadAll(ctx context.Context) ([]SiteRecord, error) {
	var out []SiteRecord
	err := s.tx(ctx, "read sites", func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		out, err = scanRecords(tx.QueryContext(ctx, `SELECT id, domain, login, version FROM sites ORDER BY id`))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStore) FindByDomain(ctx context.Context, domain string) ([]SiteRecord, error) {
	probe := SiteRecord{Domain: domain}
	probe.Normalize()

	var out []SiteRecord
	err := s.tx(ctx, "find sites", func(ctx context.Context, tx dbx.DBTX) error {
		q := s.dialect.Rebind(`SELECT id, domain, login, version FROM sites WHERE domain = ? ORDER BY id`)
		var err error
		out, err = scanRecords(tx.QueryContext(ctx, q, probe.Domain))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStore) Update(ctx context.Context, rec SiteRecord) error {
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return err
	}
	login, version := nullable(rec)

	return s.tx(ctx, "update site", func(ctx context.Context, tx dbx.DBTX) error {
		q := s.dialect.Rebind(`UPDATE sites SET domain = ?, login = ?, version = ? WHERE id = ?`)
		res, err := tx.ExecContext(ctx, q, rec.Domain, login, version, rec.ID)
		if err != nil {
			return err
		}
		return expectOne(res, rec.ID)
	})
}

func (s *SQLStore) Delete(ctx context.Context, id int64) error {
	return s.tx(ctx, "delete site", func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM sites WHERE id = ?`), id)
		if err != nil {
			return err
		}
		return expectOne(res, id)
	})
}

func (s *SQLStore) Reset(ctx context.Context) error {
	return s.tx(ctx, "reset sites", func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM sites`)
		return err
	})
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func expectOne(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("site %d: %w", id, common.ErrNotFound)
	}
	return nil
}

func scanRecords(rows *sql.Rows, err error) ([]SiteRecord, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SiteRecord
	for rows.Next() {
		var (
			rec     SiteRecord
			login   sql.NullString
			version sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &rec.Domain, &login, &version); err != nil {
			return nil, err
		}
		rec.Login = login.String
		rec.Version = int(version.Int64)
		out = append(out, rec)
	}
	return out, rows.Err()
}
