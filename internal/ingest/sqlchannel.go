package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/snowflakedb/gosnowflake"
)

// SQLClient is an ingest client backed by batched multi-row INSERTs over a
// gosnowflake connection. One client serves one target table; channels
// opened from it share the table but keep independent offset watermarks, so
// concurrent workers can write the same logical table without token
// collisions.
type SQLClient struct {
	db       *sql.DB
	database string
	schema   string
	table    string
	columns  []string
}

// NewSQLClient creates a client for one target table. The *sql.DB is owned
// by the caller and is not closed by the client.
func NewSQLClient(db *sql.DB, database, schema, table string, columns []string) *SQLClient {
	return &SQLClient{
		db:       db,
		database: database,
		schema:   schema,
		table:    table,
		columns:  columns,
	}
}

// OpenChannel opens a named channel against the client's table.
func (c *SQLClient) OpenChannel(ctx context.Context, name, initialOffset string) (Channel, error) {
	if name == "" {
		return nil, NewError(KindInternal, name, fmt.Errorf("channel name must not be empty"))
	}
	return &sqlChannel{
		client:    c,
		name:      name,
		committed: initialOffset,
	}, nil
}

// Close releases client resources. The database handle stays open; it
// belongs to the caller.
func (c *SQLClient) Close() error {
	return nil
}

type sqlChannel struct {
	client *SQLClient
	name   string

	mu        sync.Mutex
	committed string
	closed    bool
}

func (ch *sqlChannel) Name() string {
	return ch.name
}

func (ch *sqlChannel) AppendRows(ctx context.Context, rows []Row, startOffset, endOffset string) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.closed {
		return NewError(KindInternal, ch.name, fmt.Errorf("channel is closed"))
	}
	if len(rows) == 0 {
		return nil
	}

	query, args := ch.client.buildInsert(rows)
	if _, err := ch.client.db.ExecContext(ctx, query, args...); err != nil {
		return NewError(classify(err), ch.name, err)
	}

	ch.committed = endOffset
	return nil
}

func (ch *sqlChannel) LatestCommittedOffset(ctx context.Context) (string, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.committed, nil
}

func (ch *sqlChannel) Close() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.closed = true
	return nil
}

// buildInsert renders a multi-row parameterized INSERT for the client's
// table and flattens row values into the argument list in column order.
func (c *SQLClient) buildInsert(rows []Row) (string, []interface{}) {
	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?,", len(c.columns)), ",") + ")"

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s.%s.%s (%s) VALUES ",
		c.database, c.schema, c.table, strings.Join(c.columns, ", "))

	args := make([]interface{}, 0, len(rows)*len(c.columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		for _, col := range c.columns {
			args = append(args, row[col])
		}
	}

	return b.String(), args
}

// Error numbers from the backend that signal load shedding; these clear on
// their own after a delay.
var backpressureErrNums = map[int]bool{
	604:    true, // statement canceled by the server under load
	390400: true, // request rejected, too many concurrent requests
}

// Error numbers that indicate rejected or expired credentials.
var authErrNums = map[int]bool{
	390100: true, // incorrect username or password
	390112: true, // session token expired
	390114: true, // authentication token expired
}

// Error numbers for statements that cannot succeed against the current
// table definition.
var schemaErrNums = map[int]bool{
	904:    true, // invalid identifier
	2003:   true, // SQL compilation error: object does not exist
	2043:   true, // object does not exist or not authorized
	100038: true, // numeric value not recognized
}

// classify maps a driver error to an ErrorKind.
func classify(err error) ErrorKind {
	var sfErr *gosnowflake.SnowflakeError
	if errors.As(err, &sfErr) {
		switch {
		case backpressureErrNums[sfErr.Number]:
			return KindBackpressure
		case authErrNums[sfErr.Number]:
			return KindAuth
		case schemaErrNums[sfErr.Number]:
			return KindSchema
		default:
			return KindInternal
		}
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return KindConnection
	}
	return KindInternal
}
