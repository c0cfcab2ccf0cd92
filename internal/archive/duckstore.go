// Package archive mirrors the records of the current filter epoch into a
// temporary DuckDB file. The mirror backs the CSV export endpoint without
// holding a second in-memory copy of a large epoch.
package archive

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/marcboeker/go-duckdb"

	"github.com/dns-log-viewer/backend/internal/models"
)

const insertBatchSize = 2000

// DuckStore is a DuckDB-backed record sink for one view session. It
// implements logview.RecordSink: Append on every merged page, Reset when
// a filter change starts a new epoch.
type DuckStore struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
	count  int
	nextID int
	batch  []models.LogRecord
	closed bool
}

// Tuning for the per-view database. Zero values fall back to defaults
// sized for a sidecar process, not an analytical workload.
type Tuning struct {
	MemoryLimit string
	Threads     int
}

// NewDuckStore creates the store file under tempDir, keyed by view id.
func NewDuckStore(tempDir, viewID string, tuning Tuning) (*DuckStore, error) {
	if tuning.MemoryLimit == "" {
		tuning.MemoryLimit = "256MB"
	}
	if tuning.Threads <= 0 {
		tuning.Threads = 2
	}
	dbPath := filepath.Join(tempDir, fmt.Sprintf("view_%s.duckdb", viewID))

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA memory_limit='%s'", tuning.MemoryLimit),
			fmt.Sprintf("PRAGMA threads=%d", tuning.Threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	_, err = db.Exec(`
		CREATE TABLE records (
			id         INTEGER PRIMARY KEY,
			timestamp  BIGINT NOT NULL,
			query_type INTEGER NOT NULL,
			domain     VARCHAR NOT NULL,
			client     VARCHAR NOT NULL,
			status     INTEGER NOT NULL,
			dnssec     INTEGER NOT NULL,
			reply      INTEGER NOT NULL,
			reply_time BIGINT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		os.Remove(dbPath)
		return nil, fmt.Errorf("create records table: %w", err)
	}

	return &DuckStore{db: db, dbPath: dbPath}, nil
}

// Append adds merged records, preserving arrival order via the id column.
func (s *DuckStore) Append(records []models.LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("archive closed")
	}

	s.batch = append(s.batch, records...)
	s.count += len(records)
	if len(s.batch) >= insertBatchSize {
		return s.flushLocked()
	}
	return nil
}

// Reset clears the mirror for a new filter epoch.
func (s *DuckStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("archive closed")
	}

	s.batch = s.batch[:0]
	s.count = 0
	s.nextID = 0
	if _, err := s.db.Exec("DELETE FROM records"); err != nil {
		return fmt.Errorf("reset archive: %w", err)
	}
	return nil
}

// Len returns the number of records mirrored in the current epoch.
func (s *DuckStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *DuckStore) flushLocked() error {
	if len(s.batch) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin insert batch: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO records (id, timestamp, query_type, domain, client, status, dnssec, reply, reply_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}

	for _, r := range s.batch {
		if _, err := stmt.Exec(s.nextID, r.Timestamp, r.QueryType, r.Domain, r.Client, r.Status, r.DNSSEC, r.Reply, r.ReplyTime); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("insert record: %w", err)
		}
		s.nextID++
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert batch: %w", err)
	}

	s.batch = s.batch[:0]
	return nil
}

// ExportCSV writes the mirrored epoch as CSV in arrival order, with a
// header row matching the table surface's columns.
func (s *DuckStore) ExportCSV(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("archive closed")
	}
	if err := s.flushLocked(); err != nil {
		return err
	}

	rows, err := s.db.Query(`
		SELECT timestamp, query_type, domain, client, status, dnssec, reply, reply_time
		FROM records ORDER BY id
	`)
	if err != nil {
		return fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "type", "domain", "client", "status", "dnssec", "reply", "reply_time"}); err != nil {
		return err
	}

	for rows.Next() {
		var r models.LogRecord
		if err := rows.Scan(&r.Timestamp, &r.QueryType, &r.Domain, &r.Client, &r.Status, &r.DNSSEC, &r.Reply, &r.ReplyTime); err != nil {
			return fmt.Errorf("scan record: %w", err)
		}
		row := []string{
			strconv.FormatInt(r.Timestamp, 10),
			strconv.Itoa(r.QueryType),
			r.Domain,
			r.Client,
			strconv.Itoa(r.Status),
			strconv.Itoa(r.DNSSEC),
			strconv.Itoa(r.Reply),
			strconv.FormatInt(r.ReplyTime, 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// Close releases the database and removes the backing file.
func (s *DuckStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.db.Close()
	if removeErr := os.Remove(s.dbPath); err == nil {
		err = removeErr
	}
	return err
}
