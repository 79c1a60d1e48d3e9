package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/site-harvester/internal/harvest"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fixedIDs struct{ err error }

func (f fixedIDs) NewID() (string, error) { return "run-1", f.err }

type fakeCrawler struct {
	pages    []harvest.CrawlPage
	err      error
	gotSeed  string
	gotMax   int
	deadline time.Time
}

func (f *fakeCrawler) Crawl(_ context.Context, seed string, maxPages int, deadline time.Time) ([]harvest.CrawlPage, error) {
	f.gotSeed, f.gotMax, f.deadline = seed, maxPages, deadline
	if f.err != nil {
		return nil, f.err
	}
	if len(f.pages) > maxPages {
		return f.pages[:maxPages], nil
	}
	return f.pages, nil
}

type fakeExtractor struct {
	failing map[string]bool
	batches []int
	all     [][]harvest.URLItem
}

func (f *fakeExtractor) result(item harvest.URLItem) harvest.ExtractionResult {
	if f.failing[item.URL] {
		return harvest.ExtractionResult{URL: item.URL, Title: item.Title, Error: "text service returned status 500"}
	}
	return harvest.ExtractionResult{URL: item.URL, Title: item.Title, Success: true, Content: "text of " + item.URL, ContentLength: 8}
}

func (f *fakeExtractor) ExtractBatch(_ context.Context, urls []harvest.URLItem, batchIndex, batchSize int) ([]harvest.ExtractionResult, harvest.BatchProgress) {
	f.batches = append(f.batches, batchIndex)
	if batchSize <= 0 {
		batchSize = 5
	}
	start := batchIndex * batchSize
	end := min(start+batchSize, len(urls))
	out := []harvest.ExtractionResult{}
	for _, u := range urls[min(start, len(urls)):end] {
		out = append(out, f.result(u))
	}
	return out, harvest.NewBatchProgress(batchIndex, batchSize, max(end, start), len(urls))
}

func (f *fakeExtractor) ExtractAll(_ context.Context, urls []harvest.URLItem, _ int) []harvest.ExtractionResult {
	f.all = append(f.all, urls)
	out := make([]harvest.ExtractionResult, 0, len(urls))
	for _, u := range urls {
		out = append(out, f.result(u))
	}
	return out
}

type fakeAnalyzer struct {
	configured bool
	record     harvest.AnalysisRecord
	gotResults []harvest.ExtractionResult
	gotStore   string
	calls      int
}

func (f *fakeAnalyzer) Configured() bool { return f.configured }

func (f *fakeAnalyzer) Analyze(_ context.Context, results []harvest.ExtractionResult, storeType string) (harvest.AnalysisRecord, error) {
	f.calls++
	f.gotResults, f.gotStore = results, storeType
	if !f.configured {
		return harvest.AnalysisRecord{}, &harvest.ConfigurationError{Service: "analysis service", Missing: "api key"}
	}
	rec := f.record
	rec.Metadata.StoreType = storeType
	return rec, nil
}

type fakeArchiver struct {
	mu      sync.Mutex
	entries []harvest.ArchiveEntry
	err     error
}

func (f *fakeArchiver) Archive(_ context.Context, entry harvest.ArchiveEntry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	if f.err != nil {
		return "", f.err
	}
	return "memory://runs/" + entry.RunID + ".json", nil
}

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func site(n int) []harvest.CrawlPage {
	pages := make([]harvest.CrawlPage, n)
	for i := range pages {
		pages[i] = harvest.CrawlPage{URL: "https://shop.example/p" + string(rune('a'+i)), Title: "Page", Status: 200}
	}
	return pages
}

type fixture struct {
	crawler   *fakeCrawler
	extractor *fakeExtractor
	analyzer  *fakeAnalyzer
	archiver  *fakeArchiver
	svc       *Service
}

func newFixture(pages int) *fixture {
	f := &fixture{
		crawler:   &fakeCrawler{pages: site(pages)},
		extractor: &fakeExtractor{failing: map[string]bool{}},
		analyzer: &fakeAnalyzer{configured: true, record: harvest.AnalysisRecord{
			Attributes: map[string]any{"name": "Fresh Bakes"},
			Metadata:   harvest.AnalysisMetadata{AnalysisComplete: true},
		}},
		archiver: &fakeArchiver{},
	}
	f.svc = New(Deps{
		Crawler:   f.crawler,
		Extractor: f.extractor,
		Analyzer:  f.analyzer,
		Archiver:  f.archiver,
		Clock:     fixedClock{now},
		IDs:       fixedIDs{},
	}, DefaultLimits(), nil)
	return f
}

func TestCollectURLsClampsPages(t *testing.T) {
	t.Parallel()

	f := newFixture(60)
	res, err := f.svc.CollectURLs(context.Background(), CollectRequest{URL: "https://shop.example/"})
	require.NoError(t, err)
	require.Equal(t, 20, f.crawler.gotMax)
	require.Equal(t, 20, res.Count)
	require.Equal(t, "https://shop.example/", res.SeedURL)
	require.WithinDuration(t, time.Now().Add(8*time.Second), f.crawler.deadline, 2*time.Second)

	_, err = f.svc.CollectURLs(context.Background(), CollectRequest{URL: "https://shop.example/", MaxPages: 500})
	require.NoError(t, err)
	require.Equal(t, 50, f.crawler.gotMax)

	_, err = f.svc.CollectURLs(context.Background(), CollectRequest{URL: "https://shop.example/", MaxPages: 7})
	require.NoError(t, err)
	require.Equal(t, 7, f.crawler.gotMax)
}

func TestCollectURLsEmptyIsNotNil(t *testing.T) {
	t.Parallel()

	f := newFixture(0)
	f.crawler.pages = nil
	res, err := f.svc.CollectURLs(context.Background(), CollectRequest{URL: "https://shop.example/"})
	require.NoError(t, err)
	require.NotNil(t, res.URLs)
	require.Zero(t, res.Count)
	require.Equal(t, ErrNoPagesCollected, res.Error)
}

func TestCollectURLsRejectsBadSeed(t *testing.T) {
	t.Parallel()

	f := newFixture(3)
	for _, seed := range []string{"", "not a url", "ftp://shop.example/", "/relative"} {
		_, err := f.svc.CollectURLs(context.Background(), CollectRequest{URL: seed})
		require.ErrorIs(t, err, harvest.ErrInvalidSeed, seed)
	}
	require.Empty(t, f.crawler.gotSeed, "crawler never called")
}

func TestExtractContentValidatesAndDelegates(t *testing.T) {
	t.Parallel()

	f := newFixture(0)
	_, err := f.svc.ExtractContent(context.Background(), ExtractRequest{})
	require.ErrorIs(t, err, harvest.ErrInvalidRequest)

	_, err = f.svc.ExtractContent(context.Background(), ExtractRequest{URLs: []harvest.URLItem{{URL: ""}}})
	require.ErrorIs(t, err, harvest.ErrInvalidRequest)

	_, err = f.svc.ExtractContent(context.Background(), ExtractRequest{URLs: []harvest.URLItem{{URL: "https://a.example/"}}, BatchIndex: -1})
	require.ErrorIs(t, err, harvest.ErrInvalidRequest)

	urls := []harvest.URLItem{{URL: "https://a.example/1"}, {URL: "https://a.example/2"}, {URL: "https://a.example/3"}}
	res, err := f.svc.ExtractContent(context.Background(), ExtractRequest{URLs: urls, BatchIndex: 1, BatchSize: 2})
	require.NoError(t, err)
	require.Len(t, res.ContentResults, 1)
	require.True(t, res.BatchInfo.IsComplete)
	require.Equal(t, []int{1}, f.extractor.batches)
}

func TestAnalyzeInfo(t *testing.T) {
	t.Parallel()

	f := newFixture(0)
	_, err := f.svc.AnalyzeInfo(context.Background(), AnalyzeRequest{})
	require.ErrorIs(t, err, harvest.ErrInvalidRequest)

	items := []harvest.ExtractionResult{{URL: "https://a.example/", Success: true, Content: "hello"}}
	res, err := f.svc.AnalyzeInfo(context.Background(), AnalyzeRequest{ContentItems: items})
	require.NoError(t, err)
	require.Equal(t, "general", f.analyzer.gotStore)
	require.Equal(t, "Fresh Bakes", res.StoreInfo.Attributes["name"])
	require.Equal(t, "memory://runs/run-1.json", res.ArchiveURI)
	require.Len(t, f.archiver.entries, 1)
	require.Equal(t, OpAnalyzeInfo, f.archiver.entries[0].Operation)
	require.Equal(t, now, f.archiver.entries[0].CreatedAt)
}

func TestAnalyzeInfoNotConfigured(t *testing.T) {
	t.Parallel()

	f := newFixture(0)
	f.analyzer.configured = false
	_, err := f.svc.AnalyzeInfo(context.Background(), AnalyzeRequest{
		ContentItems: []harvest.ExtractionResult{{URL: "https://a.example/", Success: true, Content: "x"}},
	})
	require.ErrorIs(t, err, harvest.ErrNotConfigured)
	require.Empty(t, f.archiver.entries)
}

func TestProcessAllRunsStagesInOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(40)
	f.extractor.failing["https://shop.example/pb"] = true

	res, err := f.svc.ProcessAll(context.Background(), ProcessRequest{URL: "https://shop.example/", StoreType: "retail"})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Empty(t, res.Error)
	require.Equal(t, 10, f.crawler.gotMax, "process-all default page cap")
	require.Equal(t, URLCount{Discovered: 10, Extracted: 9, Failed: 1}, res.URLCount)
	require.Len(t, res.ProcessedURLs, 10)
	require.Equal(t, "https://shop.example/pa", res.ProcessedURLs[0])
	require.Len(t, f.extractor.all, 1)
	require.Len(t, f.analyzer.gotResults, 10, "analyzer filters unusable results itself")
	require.Equal(t, "retail", f.analyzer.gotStore)
	require.NotNil(t, res.StoreInfo)
	require.Equal(t, "retail", res.StoreInfo.Metadata.StoreType)
	require.Equal(t, now, res.Timestamp)
	require.GreaterOrEqual(t, res.DurationMs, int64(0))
	require.Equal(t, "memory://runs/run-1.json", res.ArchiveURI)
	require.Equal(t, "https://shop.example/", f.archiver.entries[0].SeedURL)

	_, err = f.svc.ProcessAll(context.Background(), ProcessRequest{URL: "https://shop.example/", MaxPages: 40})
	require.NoError(t, err)
	require.Equal(t, 25, f.crawler.gotMax, "process-all hard cap")
}

func TestProcessAllNoPages(t *testing.T) {
	t.Parallel()

	f := newFixture(0)
	res, err := f.svc.ProcessAll(context.Background(), ProcessRequest{URL: "https://shop.example/"})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, ErrNoPagesCollected, res.Error)
	require.NotNil(t, res.ProcessedURLs)
	require.Nil(t, res.StoreInfo)
	require.Empty(t, f.extractor.all)
	require.Zero(t, f.analyzer.calls)
	require.Equal(t, now, res.Timestamp)
}

func TestProcessAllNothingExtracted(t *testing.T) {
	t.Parallel()

	f := newFixture(2)
	for _, p := range site(2) {
		f.extractor.failing[p.URL] = true
	}
	res, err := f.svc.ProcessAll(context.Background(), ProcessRequest{URL: "https://shop.example/"})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, ErrNothingExtracted, res.Error)
	require.Equal(t, URLCount{Discovered: 2, Extracted: 0, Failed: 2}, res.URLCount)
	require.Zero(t, f.analyzer.calls)
	require.Empty(t, f.archiver.entries)
}

func TestProcessAllFailsFastWithoutAnalyzer(t *testing.T) {
	t.Parallel()

	f := newFixture(3)
	f.analyzer.configured = false
	_, err := f.svc.ProcessAll(context.Background(), ProcessRequest{URL: "https://shop.example/"})
	require.ErrorIs(t, err, harvest.ErrNotConfigured)
	require.Empty(t, f.crawler.gotSeed)

	_, err = f.svc.ProcessAll(context.Background(), ProcessRequest{URL: "mailto:a@b.c"})
	require.ErrorIs(t, err, harvest.ErrInvalidSeed)
}

func TestArchiveFailureDoesNotFailOperation(t *testing.T) {
	t.Parallel()

	f := newFixture(3)
	f.archiver.err = errors.New("bucket not found")
	res, err := f.svc.ProcessAll(context.Background(), ProcessRequest{URL: "https://shop.example/"})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Empty(t, res.ArchiveURI)

	f.svc.deps.IDs = fixedIDs{err: errors.New("entropy exhausted")}
	res, err = f.svc.ProcessAll(context.Background(), ProcessRequest{URL: "https://shop.example/"})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, f.archiver.entries, 1, "no archive without a run id")
}

func TestOutcomeAndClamp(t *testing.T) {
	t.Parallel()

	require.Equal(t, "invalid", outcome(&harvest.ValidationError{Field: "url", Reason: "required"}, false))
	require.Equal(t, "invalid", outcome(&harvest.InvalidSeedError{Seed: "x", Reason: "y"}, false))
	require.Equal(t, "error", outcome(errors.New("boom"), true))
	require.Equal(t, "partial", outcome(nil, false))
	require.Equal(t, "success", outcome(nil, true))

	require.Equal(t, 20, clamp(0, 20, 50))
	require.Equal(t, 20, clamp(-4, 20, 50))
	require.Equal(t, 50, clamp(51, 20, 50))
	require.Equal(t, 1, clamp(1, 20, 50))
}
