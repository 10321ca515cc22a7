// Package data feeds rows from CSV or JSON files into slot scopes so that
// every iteration of a task can work on different input.
package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/tidwall/gjson"

	"benchlab/internal/scope"
	"benchlab/internal/workload"
)

// Mode selects how rows are handed out.
type Mode string

const (
	// Sequential hands rows out in file order and wraps around.
	Sequential Mode = "sequential"
	Random     Mode = "random"
)

// Row is one record keyed by column or field name.
type Row map[string]any

// Source hands out the rows of one data file. It is safe for concurrent use
// by all slots of a workload.
type Source struct {
	name string
	rows []Row
	mode Mode
	next atomic.Uint64
}

// NewSource returns a source over rows. An empty mode means Sequential.
func NewSource(name string, rows []Row, mode Mode) (*Source, error) {
	switch mode {
	case "":
		mode = Sequential
	case Sequential, Random:
	default:
		return nil, fmt.Errorf("unknown mode %q (use sequential or random)", mode)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("data source %q has no rows", name)
	}
	return &Source{name: name, rows: rows, mode: mode}, nil
}

func (s *Source) Name() string { return s.name }

func (s *Source) Len() int { return len(s.rows) }

// Next returns a copy of the next row.
func (s *Source) Next() Row {
	var i int
	if s.mode == Random {
		i = rand.IntN(len(s.rows))
	} else {
		i = int((s.next.Add(1) - 1) % uint64(len(s.rows)))
	}
	row := make(Row, len(s.rows[i]))
	for k, v := range s.rows[i] {
		row[k] = v
	}
	return row
}

// Load reads a .csv or .json file. Relative paths are resolved against dir.
// A CSV file has a header row; a JSON file holds an array of objects.
func Load(name, path string, mode Mode, dir string) (*Source, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	var (
		rows []Row
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err = loadCSV(path)
	case ".json":
		rows, err = loadJSON(path)
	default:
		return nil, fmt.Errorf("unsupported file format %q (use .csv or .json)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return NewSource(name, rows, mode)
}

func loadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rows []Row
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
}

func loadJSON(path string) ([]Row, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc := gjson.ParseBytes(b)
	if !gjson.ValidBytes(b) || !doc.IsArray() {
		return nil, errors.New("JSON must be an array of objects")
	}
	var rows []Row
	for i, item := range doc.Array() {
		obj, ok := item.Value().(map[string]any)
		if !ok {
			return nil, fmt.Errorf("element %d is not an object", i)
		}
		rows = append(rows, Row(obj))
	}
	return rows, nil
}

// Sources feeds several data files at once.
type Sources []*Source

// Key returns the scope key of a field of the named source.
func Key(source, field string) string {
	return "data." + source + "." + field
}

// Bind sets the next row of every source on sc under data.<source>.<field>.
func (ss Sources) Bind(sc *scope.Scope) {
	for _, s := range ss {
		for field, v := range s.Next() {
			sc.Set(Key(s.name, field), v)
		}
	}
}

// Feed wraps factory so that each iteration first binds the next rows of
// sources on its slot scope.
func Feed(factory workload.TaskFactory, sources Sources) workload.TaskFactory {
	if len(sources) == 0 {
		return factory
	}
	return workload.TaskFactoryFunc(func(sc *scope.Scope) (workload.Task, error) {
		task, err := factory.Create(sc)
		if err != nil {
			return nil, err
		}
		return workload.TaskFunc(func(ctx context.Context, sc *scope.Scope) error {
			sources.Bind(sc)
			return task.Run(ctx, sc)
		}), nil
	})
}
