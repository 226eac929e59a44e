package pipeline

import (
	"errors"

	"github.com/Neerajsainii/suitcase/internal/embedding"
)

// Failure classes of the ingestion and query paths. Every failure is scoped
// to one document or one query; none of them crash the host process.
var (
	ErrRetrievalFailed      = errors.New("pipeline: document retrieval failed")
	ErrExtractionFailed     = errors.New("pipeline: text extraction failed")
	ErrNoChunksGenerated    = errors.New("pipeline: no chunks generated from document")
	ErrIndexWriteFailed     = errors.New("pipeline: vector index write failed")
	ErrRecordPersistFailed  = errors.New("pipeline: chunk record persist failed")
	ErrQueryEmbeddingFailed = errors.New("pipeline: query embedding failed")
	ErrIndexSearchFailed    = errors.New("pipeline: vector index search failed")

	// ErrAlreadyProcessing guards the reprocess precondition: a document
	// that is mid-run cannot be started again.
	ErrAlreadyProcessing = errors.New("pipeline: document is already processing")

	// ErrAlreadyProcessed rejects a plain process of a processed document;
	// regeneration goes through Reprocess so old vectors are cleared first.
	ErrAlreadyProcessed = errors.New("pipeline: document is already processed, use reprocess")

	// ErrEncodingFailed mirrors the embedding port's failure condition.
	ErrEncodingFailed = embedding.ErrEncodingFailed
)
