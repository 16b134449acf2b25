package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Source fetches the rows of one query as a JSON array.
type Source struct {
	db      DBTX
	name    string
	query   string
	timeout time.Duration
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithQueryTimeout bounds every Fetch by d. Zero means no limit beyond the
// caller's context.
func WithQueryTimeout(d time.Duration) SourceOption {
	return func(s *Source) {
		s.timeout = d
	}
}

// NewSource creates a source named name for the rows of query.
func NewSource(db DBTX, name, query string, opts ...SourceOption) (*Source, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: db is required", ErrInvalidSource)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidSource)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query for %s is required", ErrInvalidSource, name)
	}

	src := &Source{db: db, name: name, query: strings.TrimRight(strings.TrimSpace(query), ";")}
	for _, opt := range opts {
		opt(src)
	}
	return src, nil
}

// NewTableSource creates a source for every row of table.
func NewTableSource(db DBTX, name, table string, opts ...SourceOption) (*Source, error) {
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("%w: table for %s is required", ErrInvalidSource, name)
	}
	return NewSource(db, name, "SELECT * FROM "+pgx.Identifier(strings.Split(table, ".")).Sanitize(), opts...)
}

// SourcesFromConfig builds one source per entry, ordered by name. A value
// containing whitespace is used as a query, anything else as a table name.
func SourcesFromConfig(db DBTX, tables map[string]string, opts ...SourceOption) ([]*Source, error) {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	sources := make([]*Source, 0, len(names))
	for _, name := range names {
		spec := strings.TrimSpace(tables[name])

		var (
			src *Source
			err error
		)
		if strings.ContainsAny(spec, " \t\n") {
			src, err = NewSource(db, name, spec, opts...)
		} else {
			src, err = NewTableSource(db, name, spec, opts...)
		}
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// Name returns the section name.
func (s *Source) Name() string {
	return s.name
}

// Query returns the aggregated statement sent to the server.
func (s *Source) Query() string {
	return fmt.Sprintf("SELECT COALESCE(json_agg(t), '[]'::json) FROM (%s) t", s.query)
}

// Fetch runs the query and returns its rows as a JSON array.
func (s *Source) Fetch(ctx context.Context) (json.RawMessage, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var raw []byte
	if err := s.db.QueryRowContext(ctx, s.Query()).Scan(&raw); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w: %w", s.name, ErrQueryCanceled, ctxErr)
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", s.name, MapError(err))
	}
	return json.RawMessage(raw), nil
}
