package backup

import (
	"context"
	"encoding/json"
)

// Source fetches one named section of a snapshot.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (json.RawMessage, error)
}

type funcSource struct {
	name  string
	fetch func(ctx context.Context) (json.RawMessage, error)
}

// SourceFunc adapts a function to the Source interface.
func SourceFunc(name string, fetch func(ctx context.Context) (json.RawMessage, error)) Source {
	return funcSource{name: name, fetch: fetch}
}

func (s funcSource) Name() string { return s.name }

func (s funcSource) Fetch(ctx context.Context) (json.RawMessage, error) {
	return s.fetch(ctx)
}
