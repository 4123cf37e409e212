// internal/storage/sql.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/valpere/landwatch/internal/security"
	"github.com/valpere/landwatch/internal/utils"
	"github.com/valpere/landwatch/pkg/types"
)

// DefaultSQLitePath is used when no DSN is configured.
const DefaultSQLitePath = "data/landwatch.db"

const sqliteParams = "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"

// SQLStore implements Store on database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	target  string // DSN with the password masked
	now     func() time.Time
	logger  *slog.Logger
}

// OpenSQLite opens (and creates) a SQLite database file.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if path == "" {
		path = DefaultSQLitePath
	}
	dsn := path
	if !strings.Contains(path, "?") {
		if path != ":memory:" {
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return nil, utils.WrapError(err, utils.ErrCodeDatabaseError, "failed to create database directory")
				}
			}
		}
		dsn = path + sqliteParams
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeDatabaseError, "failed to connect to SQLite")
	}
	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = memory",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, utils.WrapError(err, utils.ErrCodeDatabaseError, "failed to apply pragma").WithContext("pragma", p)
		}
	}
	return newSQLStore(ctx, db, sqliteDialect, path)
}

// OpenPostgres connects to PostgreSQL with a lib/pq connection string.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, utils.NewError(utils.ErrCodeConfiguration, "PostgreSQL connection string is required").Build()
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeDatabaseError, "failed to connect to PostgreSQL")
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	return newSQLStore(ctx, db, postgresDialect, dsn)
}

// OpenMySQL connects to MySQL. parseTime is forced on so DATETIME columns
// scan into time.Time.
func OpenMySQL(ctx context.Context, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, utils.NewError(utils.ErrCodeConfiguration, "MySQL connection string is required").Build()
	}
	if !strings.Contains(dsn, "parseTime=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "parseTime=true&charset=utf8mb4"
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeDatabaseError, "failed to connect to MySQL")
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)
	return newSQLStore(ctx, db, mysqlDialect, dsn)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect, dsn string) (*SQLStore, error) {
	target := security.RedactDSN(dsn)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, utils.WrapError(security.RedactError(err, dsn), utils.ErrCodeDatabaseError, "failed to ping database").
			WithContext("driver", d.name).
			WithContext("target", target)
	}
	s := &SQLStore{db: db, dialect: d, target: target, now: time.Now, logger: utils.NewComponentLogger("storage")}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Debug("storage ready", "driver", d.name, "target", target)
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return utils.WrapError(err, utils.ErrCodeDatabaseError, "failed to create schema").WithContext("driver", s.dialect.name)
		}
	}
	return nil
}

// SetClock replaces the timestamp source.
func (s *SQLStore) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Exists reports whether the id is stored.
func (s *SQLStore) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.dialect.bind("SELECT 1 FROM listings WHERE id = ?"), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, utils.WrapError(err, utils.ErrCodeDatabaseError, "exists query failed").WithContext("id", id)
	}
	return true, nil
}

// Insert stores l unless its id is already present.
func (s *SQLStore) Insert(ctx context.Context, l types.Listing) (bool, error) {
	if l.ID == "" {
		l.ID = types.ListingID(l.ComplexNo, l.ArticleNo)
	}
	tags, err := json.Marshal(l.Tags)
	if err != nil {
		return false, utils.WrapError(err, utils.ErrCodeDatabaseError, "encode tags")
	}
	now := s.now().UTC()
	first := l.FirstSeen.UTC()
	if l.FirstSeen.IsZero() {
		first = now
	}

	res, err := s.db.ExecContext(ctx, s.dialect.bind(s.dialect.insertIgnore),
		l.ID, l.ComplexNo, l.ComplexName, l.ArticleNo, string(l.TradeType), l.Price, l.RentPrice,
		l.AreaGross, l.AreaNet, l.Floor, l.TotalFloors, l.Direction, l.ApprovalYear, l.HouseholdCount,
		l.RoomCount, l.BathroomCount, l.LoanAmount, string(tags), l.URL, first, now, l.Notified,
	)
	if err != nil {
		return false, utils.WrapError(err, utils.ErrCodeDatabaseError, "insert failed").WithContext("id", l.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, utils.WrapError(err, utils.ErrCodeDatabaseError, "rows affected")
	}
	return n > 0, nil
}

// Touch refreshes last_checked.
func (s *SQLStore) Touch(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.dialect.bind("UPDATE listings SET last_checked = ? WHERE id = ?"), s.now().UTC(), id)
	if err != nil {
		return utils.WrapError(err, utils.ErrCodeDatabaseError, "touch failed").WithContext("id", id)
	}
	return nil
}

// MarkNotified flags a listing as delivered.
func (s *SQLStore) MarkNotified(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.dialect.bind("UPDATE listings SET notified = ? WHERE id = ?"), true, id)
	if err != nil {
		return utils.WrapError(err, utils.ErrCodeDatabaseError, "mark notified failed").WithContext("id", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return utils.NewError(utils.ErrCodeDatabaseError, "listing not found").WithContext("id", id).Build()
	}
	return nil
}

// Pending returns un-notified listings, newest first. limit <= 0 means all.
func (s *SQLStore) Pending(ctx context.Context, limit int) ([]types.Listing, error) {
	q := "SELECT " + columns + " FROM listings WHERE notified = ? ORDER BY first_seen DESC"
	args := []any{false}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	return s.query(ctx, q, args...)
}

// All returns every stored listing ordered by first_seen.
func (s *SQLStore) All(ctx context.Context) ([]types.Listing, error) {
	return s.query(ctx, "SELECT "+columns+" FROM listings ORDER BY first_seen, id")
}

// Stats counts stored and notified listings.
func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	q := "SELECT COUNT(*), COALESCE(SUM(CASE WHEN notified THEN 1 ELSE 0 END), 0) FROM listings"
	if err := s.db.QueryRowContext(ctx, q).Scan(&st.Total, &st.Notified); err != nil {
		return Stats{}, utils.WrapError(err, utils.ErrCodeDatabaseError, "stats query failed")
	}
	st.Pending = st.Total - st.Notified
	return st, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) query(ctx context.Context, q string, args ...any) ([]types.Listing, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.bind(q), args...)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeDatabaseError, "query failed")
	}
	defer rows.Close()

	var out []types.Listing
	for rows.Next() {
		var (
			l           types.Listing
			trade, tags string
			lastChecked time.Time
			complexName sql.NullString
			floor, dir  sql.NullString
			url         sql.NullString
		)
		if err := rows.Scan(
			&l.ID, &l.ComplexNo, &complexName, &l.ArticleNo, &trade, &l.Price, &l.RentPrice,
			&l.AreaGross, &l.AreaNet, &floor, &l.TotalFloors, &dir, &l.ApprovalYear, &l.HouseholdCount,
			&l.RoomCount, &l.BathroomCount, &l.LoanAmount, &tags, &url, &l.FirstSeen, &lastChecked, &l.Notified,
		); err != nil {
			return nil, utils.WrapError(err, utils.ErrCodeDatabaseError, "scan failed")
		}
		l.TradeType = types.TradeType(trade)
		l.ComplexName = complexName.String
		l.Floor = floor.String
		l.Direction = dir.String
		l.URL = url.String
		if tags != "" && tags != "null" {
			if err := json.Unmarshal([]byte(tags), &l.Tags); err != nil {
				s.logger.Warn("undecodable tags", "id", l.ID, "error", err)
			}
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeDatabaseError, "row iteration failed")
	}
	return out, nil
}

var _ Store = (*SQLStore)(nil)

func (s *SQLStore) String() string {
	return fmt.Sprintf("SQLStore(%s %s)", s.dialect.name, s.target)
}
