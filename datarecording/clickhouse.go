package datarecording

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/pkg/errors"
	"github.com/tebeka/atexit"
)

// ClickHouseConfig locates a ClickHouse server.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

type clickHouseWriter struct {
	tableSet

	conn      driver.Conn
	batchSize int
}

// NewClickHouseRecorder connects to a ClickHouse server and records into
// MergeTree tables.
func NewClickHouseRecorder(
	ctx context.Context,
	cfg ClickHouseConfig,
) (DataRecorder, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      30 * time.Second,
		MaxOpenConns:     5,
		MaxIdleConns:     5,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect to ClickHouse")
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, errors.Wrap(err, "ping ClickHouse")
	}

	w := &clickHouseWriter{
		tableSet:  newTableSet(),
		conn:      conn,
		batchSize: DefaultBatchSize,
	}

	atexit.Register(func() { _ = w.Flush() })

	return w, nil
}

func clickHouseType(c column) string {
	switch c.kind {
	case reflect.Bool:
		return "Bool"
	case reflect.String:
		return "String"
	case reflect.Float32, reflect.Float64:
		return "Float64"
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return "UInt64"
	default:
		return "Int64"
	}
}

func (w *clickHouseWriter) CreateTable(tableName string, sampleEntry any) error {
	t, err := w.add(tableName, sampleEntry)
	if err != nil {
		return err
	}

	defs := make([]string, len(t.columns))
	for i, c := range t.columns {
		defs[i] = c.name + " " + clickHouseType(c)
	}

	createSQL := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s) ENGINE = MergeTree() ORDER BY tuple()",
		tableName, strings.Join(defs, ", "))

	err = w.conn.Exec(context.Background(), createSQL)

	return errors.Wrapf(err, "create table %s", tableName)
}

func (w *clickHouseWriter) InsertData(tableName string, entry any) error {
	if err := w.insert(tableName, entry); err != nil {
		return err
	}

	if w.entryCount >= w.batchSize {
		return w.Flush()
	}

	return nil
}

func (w *clickHouseWriter) ListTables() []string {
	return w.names()
}

func (w *clickHouseWriter) Flush() error {
	if w.entryCount == 0 {
		return nil
	}

	ctx := context.Background()

	for _, name := range w.names() {
		t := w.tables[name]
		if len(t.entries) == 0 {
			continue
		}

		batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO "+name)
		if err != nil {
			return errors.Wrapf(err, "prepare batch for %s", name)
		}

		for _, entry := range t.entries {
			if err := batch.Append(valuesOf(entry)...); err != nil {
				return errors.Wrapf(err, "append to %s", name)
			}
		}

		if err := batch.Send(); err != nil {
			return errors.Wrapf(err, "send batch to %s", name)
		}

		t.entries = nil
	}

	w.entryCount = 0

	return nil
}

func (w *clickHouseWriter) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}

	return w.conn.Close()
}
