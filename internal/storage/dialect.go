// internal/storage/dialect.go
package storage

import (
	"fmt"
	"strings"
)

// dialect holds the SQL that differs between backends.
type dialect struct {
	name         string
	schema       []string
	insertIgnore string
	placeholder  func(n int) string
}

const columns = `id, complex_no, complex_name, article_no, trade_type, price, rent_price,
	area_gross, area_net, floor, total_floors, direction, approval_year, household_count,
	room_count, bathroom_count, loan_amount, tags, url, first_seen, last_checked, notified`

const columnCount = 22

func questionMarks(int) string { return "?" }

func dollarN(n int) string { return fmt.Sprintf("$%d", n) }

// bind rewrites ? placeholders into the dialect's form.
func (d dialect) bind(query string) string {
	if d.placeholder == nil {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(d.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func valuesList() string {
	marks := make([]string, columnCount)
	for i := range marks {
		marks[i] = "?"
	}
	return "(" + strings.Join(marks, ", ") + ")"
}

var sqliteDialect = dialect{
	name: "sqlite3",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS listings (
			id TEXT PRIMARY KEY,
			complex_no TEXT NOT NULL,
			complex_name TEXT,
			article_no TEXT NOT NULL,
			trade_type TEXT NOT NULL,
			price INTEGER,
			rent_price INTEGER,
			area_gross REAL,
			area_net REAL,
			floor TEXT,
			total_floors INTEGER,
			direction TEXT,
			approval_year INTEGER,
			household_count INTEGER,
			room_count INTEGER,
			bathroom_count INTEGER,
			loan_amount INTEGER,
			tags TEXT,
			url TEXT,
			first_seen TIMESTAMP NOT NULL,
			last_checked TIMESTAMP NOT NULL,
			notified BOOLEAN NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_complex_no ON listings(complex_no)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_notified ON listings(notified)`,
	},
	insertIgnore: "INSERT OR IGNORE INTO listings (" + columns + ") VALUES " + valuesList(),
}

var postgresDialect = dialect{
	name: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS listings (
			id VARCHAR(64) PRIMARY KEY,
			complex_no VARCHAR(32) NOT NULL,
			complex_name TEXT,
			article_no VARCHAR(32) NOT NULL,
			trade_type VARCHAR(4) NOT NULL,
			price BIGINT,
			rent_price BIGINT,
			area_gross DOUBLE PRECISION,
			area_net DOUBLE PRECISION,
			floor TEXT,
			total_floors INTEGER,
			direction TEXT,
			approval_year INTEGER,
			household_count INTEGER,
			room_count INTEGER,
			bathroom_count INTEGER,
			loan_amount BIGINT,
			tags TEXT,
			url TEXT,
			first_seen TIMESTAMPTZ NOT NULL,
			last_checked TIMESTAMPTZ NOT NULL,
			notified BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_complex_no ON listings(complex_no)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_notified ON listings(notified)`,
	},
	insertIgnore: "INSERT INTO listings (" + columns + ") VALUES " + valuesList() + " ON CONFLICT (id) DO NOTHING",
	placeholder:  dollarN,
}

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS listings (
			id VARCHAR(64) PRIMARY KEY,
			complex_no VARCHAR(32) NOT NULL,
			complex_name TEXT,
			article_no VARCHAR(32) NOT NULL,
			trade_type VARCHAR(4) NOT NULL,
			price BIGINT,
			rent_price BIGINT,
			area_gross DOUBLE,
			area_net DOUBLE,
			floor VARCHAR(32),
			total_floors INT,
			direction VARCHAR(32),
			approval_year INT,
			household_count INT,
			room_count INT,
			bathroom_count INT,
			loan_amount BIGINT,
			tags TEXT,
			url TEXT,
			first_seen DATETIME NOT NULL,
			last_checked DATETIME NOT NULL,
			notified BOOLEAN NOT NULL DEFAULT FALSE,
			INDEX idx_listings_complex_no (complex_no),
			INDEX idx_listings_notified (notified)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	insertIgnore: "INSERT IGNORE INTO listings (" + columns + ") VALUES " + valuesList(),
}
