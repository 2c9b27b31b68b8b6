package timing

import "time"

// DefaultTimestampLayout prints timestamps as "20200101 03:15:42".
const DefaultTimestampLayout = "20060102 15:04:05"

// A Stamper can draw random instants within the current tick.
type Stamper interface {
	TimeTeller
	Timestamp(count int) []time.Time
}

// TimestampColumn turns a batch of rows into one column of formatted
// timestamps, each drawn independently within the current tick.
type TimestampColumn struct {
	clock  Stamper
	name   string
	layout string
}

// NewTimestampColumn creates a column named name that formats timestamps with
// layout. An empty layout falls back to DefaultTimestampLayout.
func NewTimestampColumn(
	clock Stamper,
	name string,
	layout string,
) *TimestampColumn {
	if layout == "" {
		layout = DefaultTimestampLayout
	}

	return &TimestampColumn{
		clock:  clock,
		name:   name,
		layout: layout,
	}
}

// Name returns the name of the produced column.
func (c *TimestampColumn) Name() string {
	return c.name
}

// Column is a named batch of values keyed by the row index they belong to.
type Column struct {
	Name   string
	Rows   []int
	Values []string
}

// Build returns one formatted timestamp per row.
func (c *TimestampColumn) Build(rows []int) Column {
	col := Column{
		Name:   c.name,
		Rows:   make([]int, len(rows)),
		Values: make([]string, len(rows)),
	}
	copy(col.Rows, rows)

	for i, t := range c.clock.Timestamp(len(rows)) {
		col.Values[i] = t.Format(c.layout)
	}

	return col
}
