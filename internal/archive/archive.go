// Package archive files finished analysis records: the record JSON goes to a
// blob store, a run row goes to Postgres, and a notification goes to Pub/Sub.
// Each sink is optional.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-harvester/internal/harvest"
	"github.com/JakeFAU/site-harvester/internal/hash/sha256"
	"github.com/JakeFAU/site-harvester/internal/logging"
	"github.com/JakeFAU/site-harvester/internal/metrics"
	"github.com/JakeFAU/site-harvester/internal/storage"
	"github.com/JakeFAU/site-harvester/internal/storage/postgres"
)

// EventArchived is the notification event attribute.
const EventArchived = "harvest.run.archived"

// RunRecorder persists one run row.
type RunRecorder interface {
	RecordRun(ctx context.Context, rec postgres.RunRecord) error
}

// Publisher sends one notification.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) (string, error)
}

// Config controls object naming.
type Config struct {
	// Prefix is prepended to object paths; defaults to "runs".
	Prefix string
}

// Notification is the payload published after a run is archived.
type Notification struct {
	RunID      string    `json:"runId"`
	Operation  string    `json:"operation"`
	SeedURL    string    `json:"seedUrl,omitempty"`
	StoreType  string    `json:"storeType"`
	Complete   bool      `json:"complete"`
	ArchiveURI string    `json:"archiveUri,omitempty"`
	// SHA256 is the hex digest of the archived record JSON.
	SHA256     string    `json:"sha256"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Hasher digests the archived record bytes.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Archiver fans one entry out to the configured sinks.
type Archiver struct {
	cfg    Config
	hasher Hasher
	blobs  storage.BlobStore
	runs   RunRecorder
	pub    Publisher
	logger *zap.Logger
}

// New builds an Archiver. Any sink may be nil.
func New(cfg Config, blobs storage.BlobStore, runs RunRecorder, pub Publisher, logger *zap.Logger) *Archiver {
	if cfg.Prefix == "" {
		cfg.Prefix = "runs"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{cfg: cfg, hasher: sha256.New(), blobs: blobs, runs: runs, pub: pub, logger: logger}
}

// ObjectPath returns where entry's record is stored, e.g. runs/2025/03/01/<id>.json.
func (a *Archiver) ObjectPath(entry harvest.ArchiveEntry) string {
	day := entry.CreatedAt.UTC().Format("2006/01/02")
	return path.Join(strings.Trim(a.cfg.Prefix, "/"), day, entry.RunID+".json")
}

// Archive writes entry to every sink and returns the blob URI (empty without a
// blob store). A blob failure stops the fan-out; run row and notification
// failures are joined into the returned error after the remaining sinks ran.
func (a *Archiver) Archive(ctx context.Context, entry harvest.ArchiveEntry) (string, error) {
	if entry.RunID == "" {
		return "", errors.New("archive entry requires a run id")
	}
	logger := logging.Named(ctx, a.logger, "archive")

	data, err := json.Marshal(entry.Record)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	digest, err := a.hasher.Hash(data)
	if err != nil {
		return "", fmt.Errorf("hash record: %w", err)
	}

	var uri string
	if a.blobs != nil {
		uri, err = a.blobs.PutObject(ctx, a.ObjectPath(entry), "application/json", bytes.NewReader(data))
		metrics.ObserveArchive("blob", err == nil)
		if err != nil {
			return "", fmt.Errorf("store record: %w", err)
		}
		logger.Debug("record stored", zap.String("uri", uri), zap.String("sha256", digest))
	}

	meta := entry.Record.Metadata
	var errs []error
	if a.runs != nil {
		err := a.runs.RecordRun(ctx, postgres.RunRecord{
			ID:            entry.RunID,
			Operation:     entry.Operation,
			SeedURL:       entry.SeedURL,
			StoreType:     meta.StoreType,
			PagesAnalyzed: meta.PagesAnalyzed,
			PagesSupplied: meta.PagesSupplied,
			Complete:      meta.AnalysisComplete,
			Error:         entry.Record.Error,
			BlobURI:       uri,
			CreatedAt:     entry.CreatedAt.UTC(),
		})
		metrics.ObserveArchive("postgres", err == nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("record run: %w", err))
		}
	}

	if a.pub != nil {
		id, err := a.pub.Publish(ctx, EventArchived, Notification{
			RunID:      entry.RunID,
			Operation:  entry.Operation,
			SeedURL:    entry.SeedURL,
			StoreType:  meta.StoreType,
			Complete:   meta.AnalysisComplete,
			ArchiveURI: uri,
			SHA256:     digest,
			CreatedAt:  entry.CreatedAt.UTC(),
		})
		metrics.ObserveArchive("pubsub", err == nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("publish notification: %w", err))
		} else {
			logger.Debug("notification published", zap.String("message_id", id))
		}
	}

	return uri, errors.Join(errs...)
}
