package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Neerajsainii/suitcase/internal/embedding"
	"github.com/Neerajsainii/suitcase/internal/model"
	"github.com/Neerajsainii/suitcase/internal/vectorstore"
)

// QueryResult is one ranked hit. Similarity is a higher-is-better transform
// of the index's native distance.
type QueryResult struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Distance   float64           `json:"distance"`
	Similarity float64           `json:"similarity"`
}

// QueryResponse is always well-formed: on failure Results is empty and Error
// carries the reason instead of an error escaping the query boundary.
type QueryResponse struct {
	Query        string              `json:"query"`
	Results      []QueryResult       `json:"results"`
	TotalResults int                 `json:"total_results"`
	SearchTime   float64             `json:"search_time"`
	TotalTime    float64             `json:"total_time"`
	ModelInfo    embedding.ModelInfo `json:"model_info"`
	Error        string              `json:"error,omitempty"`
}

// similarityFromDistance converts index distance to a display similarity.
// Both shipped backends use cosine distance, for which 1-d is the standard
// transform; a backend with an unnormalized metric needs its own conversion
// here.
func similarityFromDistance(distance float64) float64 {
	return 1 - distance
}

// Query embeds the query text, searches the vector index and returns results
// in the index's order. Ordering authority stays with the index; the engine
// does not re-sort.
func (p *Pipeline) Query(ctx context.Context, text string, k int, filter map[string]string, userID string) *QueryResponse {
	if k <= 0 {
		k = 5
	}

	start := time.Now()
	resp := &QueryResponse{
		Query:     text,
		Results:   []QueryResult{},
		ModelInfo: p.deps.Embedder.ModelInfo(),
	}

	fail := func(err error) *QueryResponse {
		resp.Error = err.Error()
		resp.TotalTime = time.Since(start).Seconds()
		p.logger.Error("query failed", "query", text, "error", err)
		return resp
	}

	vector, err := p.deps.Embedder.EmbedText(ctx, text)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrQueryEmbeddingFailed, err))
	}
	if len(vector) == 0 {
		return fail(fmt.Errorf("%w: empty vector", ErrQueryEmbeddingFailed))
	}

	searchStart := time.Now()
	hits, err := p.deps.Index.Search(ctx, vector, k, filter)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrIndexSearchFailed, err))
	}
	resp.SearchTime = time.Since(searchStart).Seconds()

	results := make([]QueryResult, len(hits))
	refs := make([]string, len(hits))
	for i, hit := range hits {
		results[i] = QueryResult{
			ID:         hit.ID,
			Text:       hit.Text,
			Attributes: hit.Attributes,
			Distance:   hit.Distance,
			Similarity: similarityFromDistance(hit.Distance),
		}
		refs[i] = hit.ID
	}
	resp.Results = results
	resp.TotalResults = len(results)
	resp.TotalTime = time.Since(start).Seconds()

	p.recordQuery(ctx, text, userID, resp, refs)

	return resp
}

// recordQuery persists the query log. Best effort: retrieval results are
// already in hand, a log failure only gets logged.
func (p *Pipeline) recordQuery(ctx context.Context, text, userID string, resp *QueryResponse, refs []string) {
	if p.deps.Queries == nil {
		return
	}
	log := &model.QueryLog{
		QueryText:  text,
		UserID:     userID,
		NumResults: resp.TotalResults,
		SearchTime: resp.SearchTime,
		TotalTime:  resp.TotalTime,
		ChunkRefs:  model.StringArray(refs),
	}
	if err := p.deps.Queries.Create(ctx, log); err != nil {
		p.logger.Error("failed to record query log", "error", err)
	}
}

// SystemInfo reports index stats, the embedding model and the chunking
// configuration.
type SystemInfo struct {
	VectorStore    vectorstore.Stats   `json:"vector_store"`
	EmbeddingModel embedding.ModelInfo `json:"embedding_model"`
	ChunkSize      int                 `json:"chunk_size"`
	ChunkOverlap   int                 `json:"chunk_overlap"`
}

func (p *Pipeline) SystemInfo(ctx context.Context) (*SystemInfo, error) {
	stats, err := p.deps.Index.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexSearchFailed, err)
	}
	return &SystemInfo{
		VectorStore:    stats,
		EmbeddingModel: p.deps.Embedder.ModelInfo(),
		ChunkSize:      p.deps.Chunker.ChunkSize,
		ChunkOverlap:   p.deps.Chunker.ChunkOverlap,
	}, nil
}
