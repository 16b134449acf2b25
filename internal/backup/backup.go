package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Config holds the settings of a Backup.
type Config struct {
	// MaxFiles is how many artifacts to keep; older ones are pruned.
	MaxFiles int

	// Compression selects the artifact encoding.
	Compression Compression
}

// Observer is notified about snapshots and pruning.
type Observer interface {
	OnSnapshot(size int, failedSections int, err error)
	OnPrune(deleted int)
}

// NoopObserver ignores all notifications.
type NoopObserver struct{}

func (NoopObserver) OnSnapshot(int, int, error) {}
func (NoopObserver) OnPrune(int)                {}

// Option configures a Backup.
type Option func(*Backup)

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(b *Backup) {
		if o != nil {
			b.observer = o
		}
	}
}

// WithClock replaces time.Now for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Backup) {
		if now != nil {
			b.now = now
		}
	}
}

// Backup snapshots its sources into a sink.
type Backup struct {
	sources  []Source
	sink     Sink
	codec    Codec
	maxFiles int
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

// New creates a Backup. Source names must be unique.
func New(sources []Source, sink Sink, config Config, logger *slog.Logger, opts ...Option) (*Backup, error) {
	if sink == nil {
		return nil, fmt.Errorf("%w: sink is required", ErrInvalidConfig)
	}
	if config.MaxFiles < 1 {
		return nil, fmt.Errorf("%w: max files %d must be at least 1", ErrInvalidConfig, config.MaxFiles)
	}

	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		if seen[src.Name()] {
			return nil, fmt.Errorf("%w: duplicate source %q", ErrInvalidConfig, src.Name())
		}
		seen[src.Name()] = true
	}

	codec, err := NewCodec(config.Compression)
	if err != nil {
		return nil, err
	}

	b := &Backup{
		sources:  sources,
		sink:     sink,
		codec:    codec,
		maxFiles: config.MaxFiles,
		logger:   logger.With("component", "backup"),
		observer: NoopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Run takes a snapshot, persists it and prunes old artifacts. Only a
// persistence failure is returned.
func (b *Backup) Run(ctx context.Context) error {
	snap, failed := b.snapshot(ctx)

	name, size, err := b.save(ctx, snap)
	b.observer.OnSnapshot(size, failed, err)
	if err != nil {
		return err
	}

	b.logger.Info("backup saved",
		"name", name,
		"snapshot_id", snap.ID,
		"bytes", size,
		"sections", len(snap.Sections),
		"partial", snap.Error != "")

	if deleted, err := b.Prune(ctx); err != nil {
		b.logger.Warn("failed to prune old backups", "error", err, "deleted", deleted)
	}
	return nil
}

// Snapshot fetches every source concurrently. A source that fails or
// returns invalid JSON is stored as an empty array and named in Error.
func (b *Backup) Snapshot(ctx context.Context) Snapshot {
	snap, _ := b.snapshot(ctx)
	return snap
}

func (b *Backup) snapshot(ctx context.Context) (Snapshot, int) {
	sections := make([]json.RawMessage, len(b.sources))
	errs := make([]error, len(b.sources))

	var g errgroup.Group
	for i, src := range b.sources {
		g.Go(func() error {
			raw, err := src.Fetch(ctx)
			if err == nil {
				raw, err = compactSection(raw)
			}
			sections[i], errs[i] = raw, err
			return nil
		})
	}
	_ = g.Wait()

	snap := Snapshot{
		ID:        uuid.New().String(),
		Timestamp: b.now().UTC().Round(0),
		Sections:  make(map[string]json.RawMessage, len(b.sources)),
	}

	var failures []string
	for i, src := range b.sources {
		if errs[i] != nil {
			b.logger.Warn("failed to fetch section", "section", src.Name(), "error", errs[i])
			failures = append(failures, fmt.Sprintf("%s: %v", src.Name(), errs[i]))
			snap.Sections[src.Name()] = emptySection
			continue
		}
		snap.Sections[src.Name()] = sections[i]
	}
	snap.Error = strings.Join(failures, "; ")

	return snap, len(failures)
}

// Save encodes and persists a snapshot, returning the artifact name.
func (b *Backup) Save(ctx context.Context, snap Snapshot) (string, error) {
	name, _, err := b.save(ctx, snap)
	return name, err
}

func (b *Backup) save(ctx context.Context, snap Snapshot) (string, int, error) {
	data, err := b.codec.Encode(snap)
	if err != nil {
		return "", 0, err
	}

	name := ArtifactName(snap.Timestamp, b.codec.Extension())
	if err := b.sink.Save(ctx, name, data); err != nil {
		return "", 0, fmt.Errorf("failed to persist backup %s: %w", name, err)
	}
	return name, len(data), nil
}

// List returns artifact names, newest first.
func (b *Backup) List(ctx context.Context) ([]string, error) {
	names, err := b.sink.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// Load decodes a stored artifact.
func (b *Backup) Load(ctx context.Context, name string) (Snapshot, error) {
	data, err := b.sink.Load(ctx, name)
	if err != nil {
		return Snapshot{}, err
	}
	return Decode(name, data)
}

// Latest decodes the newest artifact and returns it with its name.
func (b *Backup) Latest(ctx context.Context) (Snapshot, string, error) {
	names, err := b.List(ctx)
	if err != nil {
		return Snapshot{}, "", err
	}
	if len(names) == 0 {
		return Snapshot{}, "", ErrNoBackups
	}

	snap, err := b.Load(ctx, names[0])
	return snap, names[0], err
}

// Prune deletes artifacts beyond the newest MaxFiles and returns how many
// were removed. It keeps going past individual delete failures.
func (b *Backup) Prune(ctx context.Context) (int, error) {
	names, err := b.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(names) <= b.maxFiles {
		return 0, nil
	}

	deleted := 0
	var firstErr error
	for _, name := range names[b.maxFiles:] {
		if err := b.sink.Delete(ctx, name); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		deleted++
		b.logger.Debug("pruned backup", "name", name)
	}

	b.observer.OnPrune(deleted)
	return deleted, firstErr
}
