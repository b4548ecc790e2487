package platform

import (
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// driverName is registered once per process via database.Register, the same
// way every official golang-migrate driver registers itself in an init().
const driverName = "prose-sqlite"

func init() {
	database.Register(driverName, &sqliteDriverFactory{})
}

// sqliteDriverFactory satisfies golang-migrate's database.Driver factory
// contract, but is never reached through Open — RunMigrations always hands
// golang-migrate an already-open *sql.DB via NewWithDatabaseInstance. It
// exists only so driverName is a valid registered scheme.
type sqliteDriverFactory struct{}

func (sqliteDriverFactory) Open(url string) (database.Driver, error) {
	return nil, fmt.Errorf("prose-sqlite: Open(url) is not supported, use RunMigrations with an existing *sql.DB")
}

// sqliteDriver implements golang-migrate's database.Driver against an
// already-open modernc.org/sqlite connection. golang-migrate ships an
// official "sqlite3" driver, but it wraps mattn/go-sqlite3, which requires
// cgo; this pod's storage layer uses the pure-Go modernc.org/sqlite driver
// instead, so migrations need their own thin database.Driver rather than
// the official one.
type sqliteDriver struct {
	db *sql.DB
}

// WithInstance wraps an already-open sqlite *sql.DB as a golang-migrate
// database.Driver, creating the schema_migrations tracking table if needed.
func WithInstance(db *sql.DB) (database.Driver, error) {
	d := &sqliteDriver{db: db}
	if err := d.ensureVersionTable(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *sqliteDriver) ensureVersionTable() error {
	_, err := d.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version BIGINT NOT NULL PRIMARY KEY,
			dirty   BOOLEAN NOT NULL
		)
	`)
	return err
}

func (d *sqliteDriver) Open(url string) (database.Driver, error) {
	return nil, fmt.Errorf("prose-sqlite: Open not supported on an already-bound driver")
}

func (d *sqliteDriver) Close() error {
	// The *sql.DB is owned by the caller of RunMigrations; migrate's
	// lifecycle closes this Driver, not the underlying connection.
	return nil
}

func (d *sqliteDriver) Lock() error   { return nil } // single-process, single-writer: no distributed lock needed
func (d *sqliteDriver) Unlock() error { return nil }

func (d *sqliteDriver) Run(migration io.Reader) error {
	body, err := io.ReadAll(migration)
	if err != nil {
		return fmt.Errorf("reading migration: %w", err)
	}
	if _, err := d.db.Exec(string(body)); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}
	return nil
}

func (d *sqliteDriver) SetVersion(version int, dirty bool) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM schema_migrations`); err != nil {
		return err
	}
	if version >= 0 {
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, dirty) VALUES (?, ?)`, version, dirty); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *sqliteDriver) Version() (version int, dirty bool, err error) {
	row := d.db.QueryRow(`SELECT version, dirty FROM schema_migrations LIMIT 1`)
	err = row.Scan(&version, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return -1, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return version, dirty, nil
}

func (d *sqliteDriver) Drop() error {
	rows, err := d.db.Query(`SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return err
	}
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return err
		}
		names = append(names, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, n := range names {
		if _, err := d.db.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, n)); err != nil {
			return err
		}
	}
	return d.ensureVersionTable()
}

// RunMigrations applies every migration in migrationsDir (in order) to db,
// using the pure-Go sqlite driver above instead of golang-migrate's
// cgo-backed one.
func RunMigrations(db *sql.DB, migrationsDir string) error {
	driver, err := WithInstance(db)
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsDir),
		driverName,
		driver,
	)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}
