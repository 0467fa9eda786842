// Package datarecording stores simulation traces in a database.
package datarecording

import (
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
)

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a table whose columns are the fields of
	// sampleEntry.
	CreateTable(tableName string, sampleEntry any) error

	// InsertData buffers an entry of the same type as the table's sample.
	InsertData(tableName string, entry any) error

	// ListTables returns the names of all tables, sorted.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush() error

	// Close flushes and releases the database.
	Close() error
}

// DefaultBatchSize is the number of buffered entries that triggers a flush.
const DefaultBatchSize = 100000

type table struct {
	columns []column
	entries []any
}

type tableSet struct {
	tables     map[string]*table
	entryCount int
}

func newTableSet() tableSet {
	return tableSet{tables: make(map[string]*table)}
}

func (s *tableSet) add(tableName string, sampleEntry any) (*table, error) {
	if _, exists := s.tables[tableName]; exists {
		return nil, errors.Errorf("table %s already exists", tableName)
	}

	cols, err := columnsOf(sampleEntry)
	if err != nil {
		return nil, err
	}

	t := &table{columns: cols}
	s.tables[tableName] = t

	return t, nil
}

func (s *tableSet) insert(tableName string, entry any) error {
	t, exists := s.tables[tableName]
	if !exists {
		return errors.Errorf("table %s does not exist", tableName)
	}

	t.entries = append(t.entries, entry)
	s.entryCount++

	return nil
}

func (s *tableSet) names() []string {
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// sqliteWriter is the writer that writes data into SQLite database
type sqliteWriter struct {
	*sql.DB
	tableSet

	batchSize int
}

// NewSQLiteRecorder creates a recorder writing to path. An empty path picks a
// unique file name. The file must not exist. Buffered data is flushed when
// the program exits through atexit.
func NewSQLiteRecorder(path string, logger *log.Logger) (DataRecorder, error) {
	if path == "" {
		path = "sdramtester_" + xid.New().String() + ".sqlite3"
	}

	if _, err := os.Stat(path); err == nil {
		return nil, errors.Errorf("file %s already exists", path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}

	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	logger.Printf("Database created for recording: %s\n", path)

	return NewSQLiteRecorderWithDB(db), nil
}

// NewSQLiteRecorderWithDB creates a recorder on an open database.
func NewSQLiteRecorderWithDB(db *sql.DB) DataRecorder {
	w := &sqliteWriter{
		DB:        db,
		tableSet:  newTableSet(),
		batchSize: DefaultBatchSize,
	}

	atexit.Register(func() { _ = w.Flush() })

	return w
}

func (w *sqliteWriter) CreateTable(tableName string, sampleEntry any) error {
	t, err := w.add(tableName, sampleEntry)
	if err != nil {
		return err
	}

	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name + " " + sqliteType(c)
	}

	createTableSQL := "CREATE TABLE " + tableName +
		" (\n\t" + strings.Join(names, ",\n\t") + "\n);"

	_, err = w.Exec(createTableSQL)

	return errors.Wrapf(err, "create table %s", tableName)
}

func sqliteType(c column) string {
	switch c.kind {
	case reflect.String:
		return "TEXT"
	case reflect.Float32, reflect.Float64:
		return "REAL"
	default:
		return "INTEGER"
	}
}

func (w *sqliteWriter) InsertData(tableName string, entry any) error {
	if err := w.insert(tableName, entry); err != nil {
		return err
	}

	if w.entryCount >= w.batchSize {
		return w.Flush()
	}

	return nil
}

func (w *sqliteWriter) ListTables() []string {
	return w.names()
}

func (w *sqliteWriter) Flush() error {
	if w.entryCount == 0 {
		return nil
	}

	tx, err := w.Begin()
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	for _, name := range w.names() {
		if err := w.flushTable(tx, name, w.tables[name]); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	w.entryCount = 0

	return errors.Wrap(tx.Commit(), "commit")
}

func (w *sqliteWriter) flushTable(tx *sql.Tx, name string, t *table) error {
	if len(t.entries) == 0 {
		return nil
	}

	marks := strings.TrimSuffix(strings.Repeat("?, ", len(t.columns)), ", ")
	stmt, err := tx.Prepare(
		fmt.Sprintf("INSERT INTO %s VALUES (%s)", name, marks))
	if err != nil {
		return errors.Wrapf(err, "prepare insert into %s", name)
	}
	defer stmt.Close()

	for _, entry := range t.entries {
		if _, err := stmt.Exec(valuesOf(entry)...); err != nil {
			return errors.Wrapf(err, "insert into %s", name)
		}
	}

	t.entries = nil

	return nil
}

func (w *sqliteWriter) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}

	return w.DB.Close()
}
