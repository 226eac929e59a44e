package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Neerajsainii/suitcase/internal/blob"
	"github.com/Neerajsainii/suitcase/internal/chunker"
	"github.com/Neerajsainii/suitcase/internal/config"
	"github.com/Neerajsainii/suitcase/internal/embedding"
	"github.com/Neerajsainii/suitcase/internal/extract"
	"github.com/Neerajsainii/suitcase/internal/model"
	"github.com/Neerajsainii/suitcase/internal/vectorstore"
)

// Deps are the collaborators a Pipeline drives. All of them are constructed
// once at startup and injected by reference; the pipeline itself holds no
// shared mutable state beyond the per-document locks.
type Deps struct {
	Documents DocumentStore
	Chunks    ChunkStore
	Queries   QueryLogStore
	Blobs     blob.Store
	Extractor extract.Extractor
	Chunker   *chunker.Chunker
	Embedder  embedding.Embedder
	Index     vectorstore.Index
}

// Pipeline sequences extraction -> chunking -> embedding -> indexing per
// document and answers retrieval queries.
type Pipeline struct {
	cfg    *config.Config
	deps   Deps
	locks  *docLocks
	logger *slog.Logger

	// workDir overrides the transient work area root; empty means the
	// system temp dir. Tests point it at a scratch directory.
	workDir string
}

func New(cfg *config.Config, deps Deps) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		locks:  newDocLocks(),
		logger: slog.Default().With("component", "pipeline"),
	}
}

// SubmitDocument accepts raw bytes into the blob store and creates the
// Document record in status uploaded. Processing is a separate step.
func (p *Pipeline) SubmitDocument(ctx context.Context, owner, title, fileName, contentType string, size int64, r io.Reader) (*model.Document, error) {
	object, err := p.deps.Blobs.Put(ctx, fileName, r, size)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	if title == "" {
		title = fileName
	}

	doc := &model.Document{
		Title:      title,
		FileName:   fileName,
		ObjectName: object,
		FileSize:   size,
		FileType:   contentType,
		Status:     model.DocumentStatusUploaded,
		UploadedBy: owner,
	}
	if err := p.deps.Documents.Create(ctx, doc); err != nil {
		p.deps.Blobs.Delete(ctx, object)
		return nil, fmt.Errorf("create document: %w", err)
	}

	p.logger.Info("document submitted",
		"document_id", doc.ID,
		"file_name", doc.FileName,
		"size", doc.FileSize)
	return doc, nil
}

// Process runs a document through the full ingestion sequence. The run is
// exclusive per document; a document already mid-run is rejected. Any step
// failure marks the document failed with the error message captured
// verbatim, and nothing from the failed run survives in the index.
func (p *Pipeline) Process(ctx context.Context, docID uuid.UUID) error {
	p.locks.lock(docID)
	defer p.locks.unlock(docID)

	doc, err := p.deps.Documents.FindByID(ctx, docID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	return p.processLocked(ctx, doc)
}

// Reprocess re-runs ingestion for a document. Existing chunks and their
// vector index entries are removed first so no stale or duplicated vectors
// survive the new run.
func (p *Pipeline) Reprocess(ctx context.Context, docID uuid.UUID) error {
	p.locks.lock(docID)
	defer p.locks.unlock(docID)

	doc, err := p.deps.Documents.FindByID(ctx, docID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc.Status == model.DocumentStatusProcessing {
		return ErrAlreadyProcessing
	}

	if err := p.removeChunks(ctx, doc.ID); err != nil {
		return err
	}
	doc.TotalChunks = 0
	doc.Status = model.DocumentStatusUploaded

	return p.processLocked(ctx, doc)
}

func (p *Pipeline) processLocked(ctx context.Context, doc *model.Document) error {
	if doc.Status == model.DocumentStatusProcessing {
		return ErrAlreadyProcessing
	}
	if doc.Status == model.DocumentStatusProcessed {
		return ErrAlreadyProcessed
	}

	started := time.Now()
	doc.Status = model.DocumentStatusProcessing
	doc.ProcessingStarted = &started
	doc.ErrorMessage = ""
	if err := p.deps.Documents.Update(ctx, doc); err != nil {
		return fmt.Errorf("%w: mark processing: %v", ErrRecordPersistFailed, err)
	}

	p.logger.Info("processing document",
		"document_id", doc.ID,
		"title", doc.Title,
		"file_name", doc.FileName)

	runErr := p.run(ctx, doc)

	completed := time.Now()
	doc.ProcessingCompleted = &completed

	if runErr != nil {
		doc.Status = model.DocumentStatusFailed
		doc.ErrorMessage = runErr.Error()
		if err := p.deps.Documents.Update(ctx, doc); err != nil {
			p.logger.Error("failed to record document failure", "document_id", doc.ID, "error", err)
		}
		p.logger.Error("document processing failed",
			"document_id", doc.ID,
			"duration", time.Since(started),
			"error", runErr)
		return runErr
	}

	doc.Status = model.DocumentStatusProcessed
	if err := p.deps.Documents.Update(ctx, doc); err != nil {
		return fmt.Errorf("%w: mark processed: %v", ErrRecordPersistFailed, err)
	}

	p.logger.Info("document processed",
		"document_id", doc.ID,
		"pages", doc.NumPages,
		"chunks", doc.TotalChunks,
		"duration", time.Since(started))
	return nil
}

// run performs steps 1-7. It mutates doc (metadata, page count, chunk total)
// but leaves status transitions to the caller. The transient work area is
// released no matter which step fails.
func (p *Pipeline) run(ctx context.Context, doc *model.Document) error {
	// Step 1: retrieve raw content into the work area.
	workPath, err := p.fetchToWorkArea(ctx, doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
	}
	defer os.Remove(workPath)

	data, err := os.ReadFile(workPath)
	if err != nil {
		return fmt.Errorf("%w: read work file: %v", ErrRetrievalFailed, err)
	}

	// Step 2: extract page-structured text.
	result, err := p.deps.Extractor.Extract(ctx, data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if result == nil || result.TotalTextLength() == 0 {
		return fmt.Errorf("%w: no text extracted", ErrExtractionFailed)
	}

	// Step 3: persist extracted metadata immediately so it survives later
	// failures.
	doc.NumPages = len(result.Pages)
	doc.Metadata = metadataToJSON(result.Metadata)
	if err := p.deps.Documents.Update(ctx, doc); err != nil {
		return fmt.Errorf("%w: persist metadata: %v", ErrRecordPersistFailed, err)
	}

	// Step 4: chunk the full text.
	candidates := p.deps.Chunker.ChunkText(result.FullText(), map[string]interface{}{
		"document_id":    doc.ID.String(),
		"document_title": doc.Title,
		"file_name":      doc.FileName,
		"uploaded_by":    doc.UploadedBy,
	})
	if len(candidates) == 0 {
		return ErrNoChunksGenerated
	}

	// Step 5: embed all chunk texts in one batch, bounded by the encoder
	// timeout so a stalled encoder cannot hold the document lock forever.
	texts := make([]string, len(candidates))
	for i, cand := range candidates {
		texts[i] = cand.Text
	}
	embedCtx := ctx
	if p.cfg.EmbeddingTimeout > 0 {
		var cancel context.CancelFunc
		embedCtx, cancel = context.WithTimeout(ctx, p.cfg.EmbeddingTimeout)
		defer cancel()
	}
	vectors, err := p.deps.Embedder.EmbedTexts(embedCtx, texts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncodingFailed, err)
	}
	if len(vectors) != len(candidates) {
		return fmt.Errorf("%w: got %d vectors for %d chunks", ErrEncodingFailed, len(vectors), len(candidates))
	}

	// Step 6: upsert into the vector index in one batch.
	entries := make([]vectorstore.Entry, len(candidates))
	for i, cand := range candidates {
		entries[i] = vectorstore.Entry{
			Vector:     vectors[i],
			Text:       cand.Text,
			Attributes: p.entryAttributes(doc, cand),
		}
	}
	ids, err := p.deps.Index.Upsert(ctx, entries)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexWriteFailed, err)
	}
	if len(ids) != len(candidates) {
		// Invariant violation for this run: candidates and assigned ids
		// must pair by position. Remove whatever landed before failing.
		p.compensateIndex(ctx, doc.ID, ids)
		return fmt.Errorf("%w: got %d ids for %d chunks", ErrIndexWriteFailed, len(ids), len(candidates))
	}

	// Step 7: persist one chunk record per candidate, paired by position.
	chunks := make([]model.Chunk, len(candidates))
	for i, cand := range candidates {
		chunks[i] = model.Chunk{
			DocumentID:   doc.ID,
			Text:         cand.Text,
			ChunkIndex:   cand.Index,
			PageNumber:   cand.PageNumber,
			StartChar:    cand.StartChar,
			EndChar:      cand.EndChar,
			Metadata:     model.JSONMap(cand.Metadata),
			VectorRef:    ids[i],
			EmbeddingDim: len(vectors[i]),
		}
	}
	if err := p.deps.Chunks.CreateBatch(ctx, chunks); err != nil {
		p.compensateIndex(ctx, doc.ID, ids)
		return fmt.Errorf("%w: %v", ErrRecordPersistFailed, err)
	}

	doc.TotalChunks = len(candidates)
	return nil
}

// Delete removes a document everywhere: blob first, then the vector index
// entries while chunk records still hold their refs, then the records.
func (p *Pipeline) Delete(ctx context.Context, docID uuid.UUID) error {
	p.locks.lock(docID)
	defer p.locks.unlock(docID)

	doc, err := p.deps.Documents.FindByID(ctx, docID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	if doc.ObjectName != "" {
		if err := p.deps.Blobs.Delete(ctx, doc.ObjectName); err != nil {
			p.logger.Error("failed to delete blob", "document_id", doc.ID, "object", doc.ObjectName, "error", err)
		}
	}

	if err := p.removeChunks(ctx, doc.ID); err != nil {
		return err
	}

	if err := p.deps.Documents.Delete(ctx, doc.ID); err != nil {
		return fmt.Errorf("%w: delete document: %v", ErrRecordPersistFailed, err)
	}

	p.logger.Info("document deleted", "document_id", doc.ID, "title", doc.Title)
	return nil
}

// removeChunks deletes a document's vector index entries and then its chunk
// records. Index cleanup must happen first, while the records still hold
// the vector refs.
func (p *Pipeline) removeChunks(ctx context.Context, docID uuid.UUID) error {
	refs, err := p.deps.Chunks.VectorRefsByDocumentID(ctx, docID)
	if err != nil {
		return fmt.Errorf("%w: list vector refs: %v", ErrRecordPersistFailed, err)
	}
	if len(refs) > 0 {
		if err := p.deps.Index.Delete(ctx, refs); err != nil {
			return fmt.Errorf("%w: %v", ErrIndexWriteFailed, err)
		}
	}
	if err := p.deps.Chunks.DeleteByDocumentID(ctx, docID); err != nil {
		return fmt.Errorf("%w: delete chunks: %v", ErrRecordPersistFailed, err)
	}
	return nil
}

// compensateIndex deletes index entries created during a failed run so the
// index never references chunks that were not persisted. Runs detached from
// ctx cancellation: rollback happens even when the trigger was a cancel.
func (p *Pipeline) compensateIndex(ctx context.Context, docID uuid.UUID, ids []string) {
	if len(ids) == 0 {
		return
	}
	if err := p.deps.Index.Delete(context.WithoutCancel(ctx), ids); err != nil {
		p.logger.Error("compensating index delete failed",
			"document_id", docID,
			"ids", len(ids),
			"error", err)
	}
}

func (p *Pipeline) fetchToWorkArea(ctx context.Context, doc *model.Document) (string, error) {
	rc, err := p.deps.Blobs.Get(ctx, doc.ObjectName)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(p.workDir, "ingest-*"+filepath.Ext(doc.FileName))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (p *Pipeline) entryAttributes(doc *model.Document, cand chunker.Candidate) map[string]string {
	attrs := map[string]string{
		"document_id":    doc.ID.String(),
		"document_title": doc.Title,
		"file_name":      doc.FileName,
		"uploaded_by":    doc.UploadedBy,
		"chunk_index":    strconv.Itoa(cand.Index),
	}
	if cand.PageNumber != nil {
		attrs["page_number"] = strconv.Itoa(*cand.PageNumber)
	}
	return attrs
}

func metadataToJSON(metadata map[string]string) model.JSONMap {
	if len(metadata) == 0 {
		return nil
	}
	out := make(model.JSONMap, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
