package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/structs"
)

// QueryParams narrows down and orders the rows returned by a query.
type QueryParams struct {
	// Where is a SQL condition without the WHERE keyword, such as
	// "Generator = ? AND WaitTicks > ?".
	Where string

	// Args fills the placeholders of Where.
	Args []any

	// OrderBy lists the sort columns without the ORDER BY keywords.
	OrderBy string

	// Limit caps the number of rows. 0 means no limit.
	Limit int

	// Offset skips rows. It is only used together with Limit.
	Offset int
}

func (p QueryParams) filter() string {
	if p.Where == "" {
		return ""
	}

	return " WHERE " + p.Where
}

func (p QueryParams) page() string {
	var b strings.Builder

	if p.OrderBy != "" {
		b.WriteString(" ORDER BY " + p.OrderBy)
	}

	if p.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", p.Limit)

		if p.Offset > 0 {
			fmt.Fprintf(&b, " OFFSET %d", p.Offset)
		}
	}

	return b.String()
}

// DataReader reads back what a DataRecorder stored.
type DataReader interface {
	// MapTable tells the reader which struct the rows of a table decode
	// into. Only mapped tables can be queried.
	MapTable(tableName string, sampleEntry any)

	// ListTables returns the sorted names of the mapped tables.
	ListTables() []string

	// Query returns the matching rows, as pointers to the mapped struct,
	// together with the number of rows that match before paging.
	Query(ctx context.Context, tableName string, params QueryParams) (
		results []any,
		totalCount int,
		err error,
	)

	Close() error
}

type mappedTable struct {
	entryType reflect.Type
	columns   []string
}

type sqliteReader struct {
	*sql.DB

	tables map[string]mappedTable
}

// NewReader opens a database file written by a DataRecorder. The tick and
// sample tables are mapped already.
func NewReader(dbFilename string) DataReader {
	db, err := sql.Open("sqlite3", dbFilename)
	if err != nil {
		panic(err)
	}

	return NewReaderWithDB(db)
}

// NewReaderWithDB creates a DataReader over an open database.
func NewReaderWithDB(db *sql.DB) DataReader {
	r := &sqliteReader{
		DB:     db,
		tables: make(map[string]mappedTable),
	}

	r.MapTable(TickTable, TickEntry{})
	r.MapTable(SampleTable, SampleEntry{})

	return r
}

func (r *sqliteReader) MapTable(tableName string, sampleEntry any) {
	r.tables[tableName] = mappedTable{
		entryType: reflect.TypeOf(sampleEntry),
		columns:   structs.Names(sampleEntry),
	}
}

func (r *sqliteReader) ListTables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (r *sqliteReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	table, ok := r.tables[tableName]
	if !ok {
		return nil, 0, fmt.Errorf("table %s is not mapped", tableName)
	}

	var total int

	countSQL := "SELECT COUNT(*) FROM " + tableName + params.filter()

	err := r.QueryRowContext(ctx, countSQL, params.Args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	selectSQL := "SELECT " + strings.Join(table.columns, ", ") +
		" FROM " + tableName + params.filter() + params.page()

	rows, err := r.QueryContext(ctx, selectSQL, params.Args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []any

	for rows.Next() {
		entry := reflect.New(table.entryType)

		targets := make([]any, len(table.columns))
		for i := range targets {
			targets[i] = entry.Elem().Field(i).Addr().Interface()
		}

		err = rows.Scan(targets...)
		if err != nil {
			return nil, 0, err
		}

		results = append(results, entry.Interface())
	}

	return results, total, rows.Err()
}

func (r *sqliteReader) Close() error {
	return r.DB.Close()
}
