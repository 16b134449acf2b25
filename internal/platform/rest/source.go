package rest

import (
	"context"
	"encoding/json"
	"strings"
)

// Source is one API endpoint exposed as a snapshot section.
type Source struct {
	client   *Client
	name     string
	endpoint string
}

// NewSource creates a source for endpoint. The section is named after the
// endpoint path without slashes, so "herramientas/" becomes "herramientas".
func NewSource(client *Client, endpoint string) *Source {
	return &Source{
		client:   client,
		name:     SectionName(endpoint),
		endpoint: endpoint,
	}
}

// Sources creates one source per endpoint.
func Sources(client *Client, endpoints []string) []*Source {
	sources := make([]*Source, 0, len(endpoints))
	for _, ep := range endpoints {
		sources = append(sources, NewSource(client, ep))
	}
	return sources
}

// SectionName derives a section name from an endpoint path.
func SectionName(endpoint string) string {
	name := strings.Trim(endpoint, "/")
	return strings.ReplaceAll(name, "/", "_")
}

// Name returns the section name.
func (s *Source) Name() string {
	return s.name
}

// Fetch retrieves the endpoint's JSON.
func (s *Source) Fetch(ctx context.Context) (json.RawMessage, error) {
	return s.client.Get(ctx, s.endpoint)
}
