// Package chunkstore implements the process-wide, read-only chunk
// repository (spec section 4.2). It is a pure function of a single JSON
// fixture file, loaded once at startup and never mutated at query time.
package chunkstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
)

// Store is the in-memory chunk repository. Constructed once via Load and
// shared read-only across every query, per spec section 3's ownership rule.
type Store struct {
	byID        map[string]domain.Chunk
	byProcedure map[string][]domain.Chunk
	all         []domain.Chunk

	mu sync.RWMutex
}

// Load reads a JSON array of chunks from path, validates the invariants from
// spec section 3 (unique chunk_id, every child references an existing
// parent, non-empty content, positive token_count), and builds the by-id and
// by-procedure indexes.
func Load(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("chunkstore: read %s: %w", path, err)
	}

	var chunks []domain.Chunk
	if err := json.Unmarshal(raw, &chunks); err != nil {
		return nil, fmt.Errorf("chunkstore: parse %s: %w", path, err)
	}

	return NewFromChunks(chunks)
}

// NewFromChunks builds a Store directly from an in-memory chunk slice,
// exercised by tests and by callers that construct fixtures without a file
// on disk.
func NewFromChunks(chunks []domain.Chunk) (*Store, error) {
	byID := make(map[string]domain.Chunk, len(chunks))
	for _, c := range chunks {
		if c.ChunkID == "" {
			return nil, fmt.Errorf("chunkstore: chunk with empty chunk_id")
		}
		if _, dup := byID[c.ChunkID]; dup {
			return nil, fmt.Errorf("chunkstore: duplicate chunk_id %q", c.ChunkID)
		}
		if c.Content == "" {
			return nil, fmt.Errorf("chunkstore: chunk %q has empty content", c.ChunkID)
		}
		if c.TokenCount <= 0 {
			return nil, fmt.Errorf("chunkstore: chunk %q has non-positive token_count", c.ChunkID)
		}
		byID[c.ChunkID] = c
	}

	for _, c := range chunks {
		if c.Tier != domain.TierChild {
			continue
		}
		if c.ParentID == "" {
			return nil, fmt.Errorf("chunkstore: child chunk %q has no parent_id", c.ChunkID)
		}
		parent, ok := byID[c.ParentID]
		if !ok {
			return nil, fmt.Errorf("chunkstore: child chunk %q references missing parent %q", c.ChunkID, c.ParentID)
		}
		if parent.Tier != domain.TierParent {
			return nil, fmt.Errorf("chunkstore: child chunk %q parent %q is not a parent tier chunk", c.ChunkID, c.ParentID)
		}
	}

	byProcedure := make(map[string][]domain.Chunk)
	for _, c := range chunks {
		byProcedure[c.ProcedureID] = append(byProcedure[c.ProcedureID], c)
	}
	for procID := range byProcedure {
		list := byProcedure[procID]
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Tier != list[j].Tier {
				return list[i].Tier == domain.TierParent
			}
			return domain.ChunkTypeOrder(list[i].ChunkType) < domain.ChunkTypeOrder(list[j].ChunkType)
		})
		byProcedure[procID] = list
	}

	all := make([]domain.Chunk, len(chunks))
	copy(all, chunks)

	return &Store{
		byID:        byID,
		byProcedure: byProcedure,
		all:         all,
	}, nil
}

// Get returns the chunk with the given id, or domain.ErrNotFound.
func (s *Store) Get(_ context.Context, chunkID string) (domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunk, ok := s.byID[chunkID]
	if !ok {
		return domain.Chunk{}, domain.WrapError(domain.ErrNotFound, "chunkstore.Get", fmt.Errorf("chunk %q", chunkID))
	}
	return chunk, nil
}

// ByProcedure returns every chunk of procedureID, parent first then
// children in stable chunk_type order (spec section 4.2).
func (s *Store) ByProcedure(_ context.Context, procedureID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, ok := s.byProcedure[procedureID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "chunkstore.ByProcedure", fmt.Errorf("procedure %q", procedureID))
	}
	out := make([]domain.Chunk, len(list))
	copy(out, list)
	return out, nil
}

// All returns every chunk in the store, in load order. Used to build the
// lexical index and to seed test fixtures.
func (s *Store) All(_ context.Context) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Chunk, len(s.all))
	copy(out, s.all)
	return out, nil
}
