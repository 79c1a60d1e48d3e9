package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/site-harvester/internal/harvest"
	mempub "github.com/JakeFAU/site-harvester/internal/publisher/memory"
	memblob "github.com/JakeFAU/site-harvester/internal/storage/memory"
	"github.com/JakeFAU/site-harvester/internal/storage/postgres"
)

type recordingRuns struct {
	runs []postgres.RunRecord
	err  error
}

func (r *recordingRuns) RecordRun(_ context.Context, rec postgres.RunRecord) error {
	r.runs = append(r.runs, rec)
	return r.err
}

type failingBlobs struct{}

func (failingBlobs) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("bucket not found")
}

func entry() harvest.ArchiveEntry {
	return harvest.ArchiveEntry{
		RunID:     "0190c0de-0000-7000-8000-000000000001",
		Operation: "process-all",
		SeedURL:   "https://shop.example/",
		CreatedAt: time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
		Record: harvest.AnalysisRecord{
			Attributes: map[string]any{"name": "Fresh Bakes"},
			Metadata: harvest.AnalysisMetadata{
				PagesAnalyzed: 3, PagesSupplied: 4, StoreType: "restaurant", AnalysisComplete: true,
			},
		},
	}
}

func TestArchiveFansOutToAllSinks(t *testing.T) {
	t.Parallel()

	blobs := memblob.NewBlobStore()
	runs := &recordingRuns{}
	pub := mempub.New(0)
	a := New(Config{Prefix: "/harvest/"}, blobs, runs, pub, nil)

	uri, err := a.Archive(context.Background(), entry())
	require.NoError(t, err)
	require.Equal(t, "memory://harvest/2025/03/01/0190c0de-0000-7000-8000-000000000001.json", uri)

	data, contentType, ok := blobs.Object("harvest/2025/03/01/0190c0de-0000-7000-8000-000000000001.json")
	require.True(t, ok)
	require.Equal(t, "application/json", contentType)
	var stored harvest.AnalysisRecord
	require.NoError(t, json.Unmarshal(data, &stored))
	require.Equal(t, "Fresh Bakes", stored.Attributes["name"])

	require.Len(t, runs.runs, 1)
	require.Equal(t, postgres.RunRecord{
		ID:            "0190c0de-0000-7000-8000-000000000001",
		Operation:     "process-all",
		SeedURL:       "https://shop.example/",
		StoreType:     "restaurant",
		PagesAnalyzed: 3,
		PagesSupplied: 4,
		Complete:      true,
		BlobURI:       uri,
		CreatedAt:     entry().CreatedAt,
	}, runs.runs[0])

	msgs := pub.Recent()
	require.Len(t, msgs, 1)
	require.Equal(t, EventArchived, msgs[0].Event)
	var note Notification
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &note))
	require.Equal(t, uri, note.ArchiveURI)
	require.True(t, note.Complete)
	sum := sha256.Sum256(data)
	require.Equal(t, hex.EncodeToString(sum[:]), note.SHA256)
}

func TestArchiveBlobFailureStops(t *testing.T) {
	t.Parallel()

	runs := &recordingRuns{}
	pub := mempub.New(0)
	a := New(Config{}, failingBlobs{}, runs, pub, nil)

	uri, err := a.Archive(context.Background(), entry())
	require.ErrorContains(t, err, "store record: bucket not found")
	require.Empty(t, uri)
	require.Empty(t, runs.runs)
	require.Empty(t, pub.Recent())
}

func TestArchiveJoinsSinkErrors(t *testing.T) {
	t.Parallel()

	runs := &recordingRuns{err: errors.New("connection refused")}
	pub := mempub.New(0)
	a := New(Config{}, nil, runs, pub, nil)

	uri, err := a.Archive(context.Background(), entry())
	require.ErrorContains(t, err, "record run: connection refused")
	require.Empty(t, uri)
	require.Len(t, pub.Recent(), 1, "notification still sent")
}

func TestArchiveRequiresRunID(t *testing.T) {
	t.Parallel()

	a := New(Config{}, memblob.NewBlobStore(), nil, nil, nil)
	e := entry()
	e.RunID = ""
	_, err := a.Archive(context.Background(), e)
	require.Error(t, err)
	require.Equal(t, "runs/2025/03/01/x.json", a.ObjectPath(harvest.ArchiveEntry{RunID: "x", CreatedAt: e.CreatedAt}))
}
