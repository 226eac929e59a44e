package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Neerajsainii/suitcase/internal/chunker"
	"github.com/Neerajsainii/suitcase/internal/config"
	"github.com/Neerajsainii/suitcase/internal/embedding"
	"github.com/Neerajsainii/suitcase/internal/extract"
	"github.com/Neerajsainii/suitcase/internal/model"
	"github.com/Neerajsainii/suitcase/internal/vectorstore"
)

// ---- fakes ----

type fakeDocStore struct {
	mu        sync.Mutex
	docs      map[uuid.UUID]*model.Document
	createErr error
	updateErr error
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{docs: map[uuid.UUID]*model.Document{}}
}

func (s *fakeDocStore) Create(ctx context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	cp := *doc
	s.docs[doc.ID] = &cp
	return nil
}

func (s *fakeDocStore) FindByID(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *fakeDocStore) Update(ctx context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	cp := *doc
	s.docs[doc.ID] = &cp
	return nil
}

func (s *fakeDocStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

func (s *fakeDocStore) get(t *testing.T, id uuid.UUID) *model.Document {
	t.Helper()
	doc, err := s.FindByID(context.Background(), id)
	require.NoError(t, err)
	return doc
}

type fakeChunkStore struct {
	mu        sync.Mutex
	chunks    []model.Chunk
	createErr error
}

func (s *fakeChunkStore) CreateBatch(ctx context.Context, chunks []model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.chunks = append(s.chunks, chunks...)
	return nil
}

func (s *fakeChunkStore) VectorRefsByDocumentID(ctx context.Context, documentID uuid.UUID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var refs []string
	for _, c := range s.chunks {
		if c.DocumentID == documentID && c.VectorRef != "" {
			refs = append(refs, c.VectorRef)
		}
	}
	return refs, nil
}

func (s *fakeChunkStore) DeleteByDocumentID(ctx context.Context, documentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	s.chunks = kept
	return nil
}

func (s *fakeChunkStore) byDocument(documentID uuid.UUID) []model.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Chunk
	for _, c := range s.chunks {
		if c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	return out
}

type fakeQueryLogStore struct {
	mu   sync.Mutex
	logs []model.QueryLog
}

func (s *fakeQueryLogStore) Create(ctx context.Context, log *model.QueryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *log)
	return nil
}

type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	seq     int
	putErr  error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (s *fakeBlobStore) Put(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return "", s.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.seq++
	object := fmt.Sprintf("obj-%d/%s", s.seq, name)
	s.objects[object] = data
	return object, nil
}

func (s *fakeBlobStore) Get(ctx context.Context, object string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[object]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeBlobStore) Delete(ctx context.Context, object string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, object)
	return nil
}

func (s *fakeBlobStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// fakeEmbedder produces deterministic vectors seeded from the text hash, so
// identical texts always map to identical vectors.
type fakeEmbedder struct {
	dims  int
	delay time.Duration
	err   error
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{dims: 8}
}

func (e *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = hashVector(text, e.dims)
	}
	return out, nil
}

func (e *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *fakeEmbedder) Dimensions() int { return e.dims }

func (e *fakeEmbedder) ModelInfo() embedding.ModelInfo {
	return embedding.ModelInfo{Provider: "fake", Model: "hash", Dimensions: e.dims}
}

func hashVector(text string, dims int) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()
	v := make([]float32, dims)
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		v[i] = float32(int64(seed>>33))/float32(1<<30) + 0.001
	}
	return v
}

type failingExtractor struct{ err error }

func (e *failingExtractor) Extract(ctx context.Context, data []byte) (*extract.Result, error) {
	return nil, e.err
}

// ---- fixture ----

type fixture struct {
	pipeline *Pipeline
	docs     *fakeDocStore
	chunks   *fakeChunkStore
	queries  *fakeQueryLogStore
	blobs    *fakeBlobStore
	embedder *fakeEmbedder
	index    *vectorstore.MemoryIndex
	workDir  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		docs:     newFakeDocStore(),
		chunks:   &fakeChunkStore{},
		queries:  &fakeQueryLogStore{},
		blobs:    newFakeBlobStore(),
		embedder: newFakeEmbedder(),
		index:    vectorstore.NewMemoryIndex("test"),
		workDir:  t.TempDir(),
	}
	cfg := &config.Config{EmbeddingTimeout: 5 * time.Second}
	f.pipeline = New(cfg, Deps{
		Documents: f.docs,
		Chunks:    f.chunks,
		Queries:   f.queries,
		Blobs:     f.blobs,
		Extractor: extract.NewTextExtractor(),
		Chunker:   chunker.New(100, 20),
		Embedder:  f.embedder,
		Index:     f.index,
	})
	f.pipeline.workDir = f.workDir
	return f
}

func (f *fixture) submit(t *testing.T, content string) *model.Document {
	t.Helper()
	doc, err := f.pipeline.SubmitDocument(
		context.Background(),
		"alice", "Test Document", "test.txt", "text/plain",
		int64(len(content)), strings.NewReader(content),
	)
	require.NoError(t, err)
	return doc
}

func (f *fixture) indexCount(t *testing.T) int64 {
	t.Helper()
	stats, err := f.index.Stats(context.Background())
	require.NoError(t, err)
	return stats.Count
}

func (f *fixture) workAreaEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.workDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "work area should be cleaned up")
}

const sampleText = "The agreement covers payment terms in detail. " +
	"Either party may terminate with thirty days notice. " +
	"Liability is capped at the fees paid in the prior year. " +
	"Disputes are resolved by binding arbitration in Geneva. " +
	"The governing law is the law of Switzerland."

// ---- tests ----

func TestSubmitDocument(t *testing.T) {
	f := newFixture(t)

	doc := f.submit(t, sampleText)
	assert.Equal(t, model.DocumentStatusUploaded, doc.Status)
	assert.Equal(t, "Test Document", doc.Title)
	assert.Equal(t, "alice", doc.UploadedBy)
	assert.NotEmpty(t, doc.ObjectName)
	assert.Equal(t, 1, f.blobs.count())
}

func TestSubmitDocumentDefaultsTitleToFileName(t *testing.T) {
	f := newFixture(t)

	doc, err := f.pipeline.SubmitDocument(
		context.Background(), "bob", "", "notes.txt", "text/plain",
		4, strings.NewReader("text"),
	)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", doc.Title)
}

func TestSubmitDocumentCleansBlobOnCreateFailure(t *testing.T) {
	f := newFixture(t)
	f.docs.createErr = errors.New("db down")

	_, err := f.pipeline.SubmitDocument(
		context.Background(), "alice", "t", "f.txt", "text/plain",
		4, strings.NewReader("text"),
	)
	require.Error(t, err)
	assert.Equal(t, 0, f.blobs.count())
}

func TestProcessSuccess(t *testing.T) {
	f := newFixture(t)
	doc := f.submit(t, sampleText)

	require.NoError(t, f.pipeline.Process(context.Background(), doc.ID))

	stored := f.docs.get(t, doc.ID)
	assert.Equal(t, model.DocumentStatusProcessed, stored.Status)
	assert.Empty(t, stored.ErrorMessage)
	require.NotNil(t, stored.ProcessingStarted)
	require.NotNil(t, stored.ProcessingCompleted)
	assert.Equal(t, 1, stored.NumPages)
	assert.Equal(t, "text", stored.Metadata["extractor"])

	chunks := f.chunks.byDocument(doc.ID)
	require.NotEmpty(t, chunks)
	assert.Equal(t, len(chunks), stored.TotalChunks)
	assert.Equal(t, int64(len(chunks)), f.indexCount(t))

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.NotEmpty(t, chunk.VectorRef)
		assert.Equal(t, 8, chunk.EmbeddingDim)
		assert.Equal(t, doc.ID.String(), chunk.Metadata["document_id"])
	}

	f.workAreaEmpty(t)
}

func TestProcessMissingDocument(t *testing.T) {
	f := newFixture(t)

	err := f.pipeline.Process(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestProcessExtractionFailure(t *testing.T) {
	f := newFixture(t)
	f.pipeline.deps.Extractor = &failingExtractor{err: errors.New("corrupt file")}
	doc := f.submit(t, sampleText)

	err := f.pipeline.Process(context.Background(), doc.ID)
	require.ErrorIs(t, err, ErrExtractionFailed)

	stored := f.docs.get(t, doc.ID)
	assert.Equal(t, model.DocumentStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "corrupt file")
	assert.Equal(t, 0, stored.TotalChunks)
	require.NotNil(t, stored.ProcessingCompleted)

	assert.Empty(t, f.chunks.byDocument(doc.ID))
	assert.Equal(t, int64(0), f.indexCount(t))
	f.workAreaEmpty(t)
}

func TestProcessEmptyExtraction(t *testing.T) {
	f := newFixture(t)
	doc := f.submit(t, "   \f   ")

	err := f.pipeline.Process(context.Background(), doc.ID)
	require.ErrorIs(t, err, ErrExtractionFailed)
	assert.Equal(t, model.DocumentStatusFailed, f.docs.get(t, doc.ID).Status)
}

func TestProcessEmbeddingFailure(t *testing.T) {
	f := newFixture(t)
	f.embedder.err = errors.New("encoder offline")
	doc := f.submit(t, sampleText)

	err := f.pipeline.Process(context.Background(), doc.ID)
	require.ErrorIs(t, err, ErrEncodingFailed)

	stored := f.docs.get(t, doc.ID)
	assert.Equal(t, model.DocumentStatusFailed, stored.Status)
	// Metadata from the extraction step survives the later failure.
	assert.Equal(t, 1, stored.NumPages)

	assert.Equal(t, int64(0), f.indexCount(t))
	assert.Empty(t, f.chunks.byDocument(doc.ID))
	f.workAreaEmpty(t)
}

func TestProcessRollsBackIndexOnChunkPersistFailure(t *testing.T) {
	f := newFixture(t)
	f.chunks.createErr = errors.New("unique violation")
	doc := f.submit(t, sampleText)

	err := f.pipeline.Process(context.Background(), doc.ID)
	require.ErrorIs(t, err, ErrRecordPersistFailed)

	assert.Equal(t, model.DocumentStatusFailed, f.docs.get(t, doc.ID).Status)
	// The compensating delete removed everything the failed run indexed.
	assert.Equal(t, int64(0), f.indexCount(t))
}

func TestProcessRejectsProcessedDocument(t *testing.T) {
	f := newFixture(t)
	doc := f.submit(t, sampleText)

	require.NoError(t, f.pipeline.Process(context.Background(), doc.ID))
	firstCount := f.indexCount(t)

	err := f.pipeline.Process(context.Background(), doc.ID)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	// No duplicate chunks or vectors from the rejected run.
	assert.Equal(t, firstCount, f.indexCount(t))
	assert.Len(t, f.chunks.byDocument(doc.ID), int(firstCount))
}

func TestProcessSerializesConcurrentRuns(t *testing.T) {
	f := newFixture(t)
	f.embedder.delay = 100 * time.Millisecond
	doc := f.submit(t, sampleText)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			errs <- f.pipeline.Process(context.Background(), doc.ID)
		}()
	}

	var succeeded, rejected int
	for i := 0; i < 2; i++ {
		err := <-errs
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadyProcessed):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	chunks := f.chunks.byDocument(doc.ID)
	assert.Equal(t, int64(len(chunks)), f.indexCount(t))
}

func TestReprocessReplacesChunksAndVectors(t *testing.T) {
	f := newFixture(t)
	doc := f.submit(t, sampleText)
	ctx := context.Background()

	require.NoError(t, f.pipeline.Process(ctx, doc.ID))
	oldRefs, err := f.chunks.VectorRefsByDocumentID(ctx, doc.ID)
	require.NoError(t, err)
	require.NotEmpty(t, oldRefs)

	require.NoError(t, f.pipeline.Reprocess(ctx, doc.ID))

	stored := f.docs.get(t, doc.ID)
	assert.Equal(t, model.DocumentStatusProcessed, stored.Status)

	newRefs, err := f.chunks.VectorRefsByDocumentID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, newRefs, stored.TotalChunks)
	assert.Equal(t, int64(len(newRefs)), f.indexCount(t))

	// Deleting the old refs is a no-op: nothing stale survived.
	require.NoError(t, f.index.Delete(ctx, oldRefs))
	assert.Equal(t, int64(len(newRefs)), f.indexCount(t))
}

func TestReprocessFailedDocument(t *testing.T) {
	f := newFixture(t)
	f.embedder.err = errors.New("encoder offline")
	doc := f.submit(t, sampleText)

	require.Error(t, f.pipeline.Process(context.Background(), doc.ID))
	require.Equal(t, model.DocumentStatusFailed, f.docs.get(t, doc.ID).Status)

	f.embedder.err = nil
	require.NoError(t, f.pipeline.Reprocess(context.Background(), doc.ID))

	stored := f.docs.get(t, doc.ID)
	assert.Equal(t, model.DocumentStatusProcessed, stored.Status)
	assert.Empty(t, stored.ErrorMessage)
	assert.Greater(t, stored.TotalChunks, 0)
}

func TestDeleteRemovesEverything(t *testing.T) {
	f := newFixture(t)
	doc := f.submit(t, sampleText)
	ctx := context.Background()

	require.NoError(t, f.pipeline.Process(ctx, doc.ID))
	require.NoError(t, f.pipeline.Delete(ctx, doc.ID))

	_, err := f.docs.FindByID(ctx, doc.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Empty(t, f.chunks.byDocument(doc.ID))
	assert.Equal(t, int64(0), f.indexCount(t))
	assert.Equal(t, 0, f.blobs.count())
}

func TestQueryReturnsRankedResults(t *testing.T) {
	f := newFixture(t)
	doc := f.submit(t, sampleText)
	ctx := context.Background()
	require.NoError(t, f.pipeline.Process(ctx, doc.ID))

	// Query with the exact text of a stored chunk; the deterministic
	// embedder maps identical text to an identical vector.
	chunks := f.chunks.byDocument(doc.ID)
	require.NotEmpty(t, chunks)

	resp := f.pipeline.Query(ctx, chunks[0].Text, 3, nil, "alice")
	require.Empty(t, resp.Error)
	require.NotEmpty(t, resp.Results)

	top := resp.Results[0]
	assert.Equal(t, chunks[0].Text, top.Text)
	assert.InDelta(t, 0.0, top.Distance, 1e-6)
	assert.InDelta(t, 1.0, top.Similarity, 1e-6)
	assert.Equal(t, doc.ID.String(), top.Attributes["document_id"])

	for i := range resp.Results {
		assert.InDelta(t, 1.0-resp.Results[i].Distance, resp.Results[i].Similarity, 1e-9)
		if i > 0 {
			assert.GreaterOrEqual(t, resp.Results[i].Distance, resp.Results[i-1].Distance)
		}
	}
	assert.Equal(t, len(resp.Results), resp.TotalResults)
	assert.Equal(t, "hash", resp.ModelInfo.Model)
}

func TestQueryRecordsLog(t *testing.T) {
	f := newFixture(t)
	doc := f.submit(t, sampleText)
	ctx := context.Background()
	require.NoError(t, f.pipeline.Process(ctx, doc.ID))

	resp := f.pipeline.Query(ctx, "termination notice period", 2, nil, "alice")
	require.Empty(t, resp.Error)

	require.Len(t, f.queries.logs, 1)
	log := f.queries.logs[0]
	assert.Equal(t, "termination notice period", log.QueryText)
	assert.Equal(t, "alice", log.UserID)
	assert.Equal(t, resp.TotalResults, log.NumResults)
	assert.Len(t, log.ChunkRefs, resp.TotalResults)
}

func TestQueryEmbeddingFailureYieldsWellFormedResponse(t *testing.T) {
	f := newFixture(t)
	f.embedder.err = errors.New("encoder offline")

	resp := f.pipeline.Query(context.Background(), "anything", 5, nil, "")
	require.NotNil(t, resp)
	assert.NotEmpty(t, resp.Error)
	assert.Contains(t, resp.Error, "query embedding failed")
	assert.Empty(t, resp.Results)
	assert.Equal(t, 0, resp.TotalResults)
	assert.Equal(t, "anything", resp.Query)
	// No log entry for a failed query.
	assert.Empty(t, f.queries.logs)
}

func TestQueryWithAttributeFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	docA := f.submit(t, sampleText)
	require.NoError(t, f.pipeline.Process(ctx, docA.ID))
	docB := f.submit(t, "A completely different text about gardening. Roses need full sun.")
	require.NoError(t, f.pipeline.Process(ctx, docB.ID))

	resp := f.pipeline.Query(ctx, "anything at all", 10, map[string]string{
		"document_id": docB.ID.String(),
	}, "")
	require.Empty(t, resp.Error)
	require.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		assert.Equal(t, docB.ID.String(), r.Attributes["document_id"])
	}
}

func TestSystemInfo(t *testing.T) {
	f := newFixture(t)
	doc := f.submit(t, sampleText)
	ctx := context.Background()
	require.NoError(t, f.pipeline.Process(ctx, doc.ID))

	info, err := f.pipeline.SystemInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "test", info.VectorStore.Collection)
	assert.Greater(t, info.VectorStore.Count, int64(0))
	assert.Equal(t, "hash", info.EmbeddingModel.Model)
	assert.Equal(t, 100, info.ChunkSize)
	assert.Equal(t, 20, info.ChunkOverlap)
}

func TestQueueProcessesInBackground(t *testing.T) {
	f := newFixture(t)
	doc := f.submit(t, sampleText)

	q := NewQueue(f.pipeline, 2, 8)
	defer q.Stop()

	require.True(t, q.Enqueue(doc.ID))

	require.Eventually(t, func() bool {
		return f.docs.get(t, doc.ID).Status == model.DocumentStatusProcessed
	}, 5*time.Second, 10*time.Millisecond)
}

func TestQueueEnqueueFullReturnsFalse(t *testing.T) {
	f := newFixture(t)
	// Stall the single worker so the buffer fills.
	f.embedder.delay = time.Second
	doc := f.submit(t, sampleText)

	q := NewQueue(f.pipeline, 1, 1)
	defer q.Stop()

	// Worker takes the first job, buffer holds the second; the third is
	// rejected.
	assert.True(t, q.Enqueue(doc.ID))
	time.Sleep(20 * time.Millisecond)
	assert.True(t, q.Enqueue(doc.ID))
	assert.False(t, q.Enqueue(doc.ID))
}
