// Package memory provides in-memory collaborators for tests: a hash-based
// embedder and a brute-force Store that mirrors pgstore.Store's retrieval
// semantics without a live Postgres connection.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/agentplexus/pgstore/filter"
	"github.com/agentplexus/pgstore/mmr"
	"github.com/agentplexus/pgstore/vector"
)

// Store is an in-memory, brute-force stand-in for pgstore.Store. It shares
// the same Document model and the same filter/mmr packages, so callers can
// unit-test retrieval logic without a database.
type Store struct {
	mu       sync.RWMutex
	embedder vector.Embedder
	docs     map[string]entry
}

type entry struct {
	doc       vector.Document
	embedding []float32
}

// New returns an empty Store bound to embedder.
func New(embedder vector.Embedder) *Store {
	return &Store{embedder: embedder, docs: make(map[string]entry)}
}

// AddOptions mirrors pgstore.AddOptions: supplying IDs upserts by id instead
// of generating fresh ones.
type AddOptions struct {
	IDs []string
}

// ScoredDocument pairs a Document with its cosine distance (1 - similarity),
// matching pgstore's ascending, nearest-first convention.
type ScoredDocument struct {
	Document vector.Document
	Distance float64
}

// AddDocuments embeds each document's Content and delegates to AddVectors.
func (s *Store) AddDocuments(ctx context.Context, docs []vector.Document, opts AddOptions) ([]string, error) {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	return s.AddVectors(ctx, embeddings, docs, opts)
}

// AddVectors stores a batch of documents under caller-supplied embeddings.
func (s *Store) AddVectors(ctx context.Context, vectors [][]float32, docs []vector.Document, opts AddOptions) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(docs))
	for i, d := range docs {
		switch {
		case len(opts.IDs) > 0:
			ids[i] = opts.IDs[i]
		case d.ID != "":
			ids[i] = d.ID
		default:
			ids[i] = uuid.NewString()
		}
		d.ID = ids[i]
		s.docs[ids[i]] = entry{doc: d, embedding: vectors[i]}
	}
	return ids, nil
}

// SimilaritySearchVectorWithScore returns up to k documents nearest to vec,
// optionally restricted by a metadata filter in the same wire shape the
// filter package parses.
func (s *Store) SimilaritySearchVectorWithScore(ctx context.Context, vec []float32, k int, metadataFilter map[string]any) ([]ScoredDocument, error) {
	node, err := filter.Parse(metadataFilter)
	if err != nil {
		return nil, err
	}

	candidates, embeddings := s.filtered(node)
	for i := range candidates {
		candidates[i].Distance = 1 - cosineSimilarity(vec, embeddings[i])
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
	if k < len(candidates) {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// SimilaritySearch embeds text and returns up to k nearest documents.
func (s *Store) SimilaritySearch(ctx context.Context, text string, k int, metadataFilter map[string]any) ([]vector.Document, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	scored, err := s.SimilaritySearchVectorWithScore(ctx, vec, k, metadataFilter)
	if err != nil {
		return nil, err
	}
	docs := make([]vector.Document, len(scored))
	for i, sd := range scored {
		docs[i] = sd.Document
	}
	return docs, nil
}

// MaxMarginalRelevanceSearch fetches fetchK candidates and re-ranks them with
// the mmr package, returning up to k documents.
func (s *Store) MaxMarginalRelevanceSearch(ctx context.Context, text string, k, fetchK int, lambda float64, metadataFilter map[string]any) ([]vector.Document, error) {
	if k <= 0 {
		k = 4
	}
	if fetchK <= 0 {
		fetchK = 20
	}
	if lambda == 0 {
		lambda = 0.7
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	candidates, err := s.SimilaritySearchVectorWithScore(ctx, vec, fetchK, metadataFilter)
	if err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(candidates))
	s.mu.RLock()
	for i, c := range candidates {
		vecs[i] = s.docs[c.Document.ID].embedding
	}
	s.mu.RUnlock()

	indices := mmr.Select(vec, vecs, lambda, k)
	docs := make([]vector.Document, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(candidates) {
			continue
		}
		docs = append(docs, candidates[idx].Document)
	}
	return docs, nil
}

func (s *Store) filtered(node filter.Node) ([]ScoredDocument, [][]float32) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ScoredDocument
	var embeddings [][]float32
	for _, e := range s.docs {
		if !filter.Eval(node, e.doc.Metadata) {
			continue
		}
		out = append(out, ScoredDocument{Document: e.doc})
		embeddings = append(embeddings, e.embedding)
	}
	return out, embeddings
}

// Count returns the number of stored documents.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Delete removes a document by id; deleting a missing id is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
