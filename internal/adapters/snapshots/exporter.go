// Package snapshots archives the committed traffic and housing state as JSON
// documents in blob storage.
package snapshots

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"trafficcap/internal/blob"
	"trafficcap/internal/core"
	"trafficcap/pkg/domain"
)

// DefaultPrefix is the key prefix used for archived snapshots.
const DefaultPrefix = "snapshots/"

const contentType = "application/json"

// StateSource exposes the committed state to export. core.PersistentStore satisfies it.
type StateSource interface {
	ExportState() domain.Snapshot
}

// Document is the archived representation of one export.
type Document struct {
	ExportedAt time.Time       `json:"exported_at"`
	Traffic    int             `json:"traffic_count"`
	Housing    int             `json:"housing_count"`
	State      domain.Snapshot `json:"state"`
}

// Exporter writes Documents to a blob store under a fixed prefix.
type Exporter struct {
	source StateSource
	store  blob.Store
	prefix string
	now    func() time.Time
	logger core.Logger
}

// Option customises an Exporter.
type Option func(*Exporter)

// WithPrefix overrides DefaultPrefix. A trailing slash is added when missing.
func WithPrefix(prefix string) Option {
	return func(e *Exporter) {
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		e.prefix = prefix
	}
}

// WithClock overrides the export timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger routes export logs to logger.
func WithLogger(logger core.Logger) Option {
	return func(e *Exporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExporter returns an exporter reading from source and writing to store.
func NewExporter(source StateSource, store blob.Store, opts ...Option) *Exporter {
	e := &Exporter{
		source: source,
		store:  store,
		prefix: DefaultPrefix,
		now:    func() time.Time { return time.Now().UTC() },
		logger: discardLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export archives the current state and returns the written blob.
func (e *Exporter) Export(ctx context.Context) (blob.Info, error) {
	if e.source == nil || e.store == nil {
		return blob.Info{}, errors.New("snapshot exporter not configured")
	}
	state := e.source.ExportState()
	doc := Document{
		ExportedAt: e.now().UTC(),
		Traffic:    len(state.Traffic),
		Housing:    len(state.Housing),
		State:      state,
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode snapshot: %w", err)
	}
	key := e.prefix + doc.ExportedAt.Format("20060102T150405.000000000Z") + "-" + uuid.NewString()[:8] + ".json"
	info, err := e.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"traffic": strconv.Itoa(doc.Traffic),
			"housing": strconv.Itoa(doc.Housing),
		},
	})
	if err != nil {
		e.logger.Error("snapshot export failed", "key", key, "error", err)
		return blob.Info{}, fmt.Errorf("archive snapshot: %w", err)
	}
	e.logger.Info("snapshot exported", "key", info.Key, "traffic", doc.Traffic, "housing", doc.Housing, "bytes", info.Size)
	return info, nil
}

// List returns archived snapshots, oldest first.
func (e *Exporter) List(ctx context.Context) ([]blob.Info, error) {
	return e.store.List(ctx, e.prefix)
}

// Load decodes the archived document stored at key.
func (e *Exporter) Load(ctx context.Context, key string) (Document, error) {
	_, rc, err := e.store.Get(ctx, key)
	if err != nil {
		return Document{}, err
	}
	defer rc.Close()
	var doc Document
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return doc, nil
}

// Prune deletes all but the newest keep snapshots and returns how many were removed.
func (e *Exporter) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	infos, err := e.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for i := 0; i < len(infos)-keep; i++ {
		ok, err := e.store.Delete(ctx, infos[i].Key)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

type discardLogger struct{}

func (discardLogger) Debug(string, ...any) {}
func (discardLogger) Info(string, ...any)  {}
func (discardLogger) Warn(string, ...any)  {}
func (discardLogger) Error(string, ...any) {}
