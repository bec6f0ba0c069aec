package chunkstore

import (
	"context"
	"testing"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
)

func sampleChunks() []domain.Chunk {
	return []domain.Chunk{
		{
			ChunkID:     "proc-1:overview",
			ProcedureID: "1.013124",
			Tier:        domain.TierParent,
			ChunkType:   domain.ChunkTypeOverview,
			Content:     "Thủ tục đăng ký kết hôn",
			TokenCount:  10,
		},
		{
			ChunkID:     "proc-1:documents",
			ProcedureID: "1.013124",
			Tier:        domain.TierChild,
			ChunkType:   domain.ChunkTypeDocuments,
			ParentID:    "proc-1:overview",
			Content:     "Giấy tờ cần nộp gồm CMND, giấy khai sinh",
			TokenCount:  12,
		},
		{
			ChunkID:     "proc-1:process",
			ProcedureID: "1.013124",
			Tier:        domain.TierChild,
			ChunkType:   domain.ChunkTypeProcess,
			ParentID:    "proc-1:overview",
			Content:     "Nộp hồ sơ tại UBND xã phường",
			TokenCount:  8,
		},
	}
}

func TestNewFromChunksOrdersParentBeforeChildren(t *testing.T) {
	store, err := NewFromChunks(sampleChunks())
	if err != nil {
		t.Fatalf("NewFromChunks: %v", err)
	}

	list, err := store.ByProcedure(context.Background(), "1.013124")
	if err != nil {
		t.Fatalf("ByProcedure: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(list))
	}
	if list[0].Tier != domain.TierParent {
		t.Fatalf("expected parent first, got %v", list[0].Tier)
	}
	if list[1].ChunkType != domain.ChunkTypeDocuments {
		t.Fatalf("expected documents before process, got %v", list[1].ChunkType)
	}
}

func TestNewFromChunksRejectsMissingParent(t *testing.T) {
	chunks := []domain.Chunk{
		{
			ChunkID:     "orphan",
			ProcedureID: "1.000001",
			Tier:        domain.TierChild,
			ChunkType:   domain.ChunkTypeLegal,
			ParentID:    "does-not-exist",
			Content:     "text",
			TokenCount:  3,
		},
	}
	if _, err := NewFromChunks(chunks); err == nil {
		t.Fatal("expected error for missing parent reference")
	}
}

func TestNewFromChunksRejectsDuplicateID(t *testing.T) {
	chunks := sampleChunks()
	chunks = append(chunks, chunks[0])
	if _, err := NewFromChunks(chunks); err == nil {
		t.Fatal("expected error for duplicate chunk_id")
	}
}

func TestGetNotFound(t *testing.T) {
	store, err := NewFromChunks(sampleChunks())
	if err != nil {
		t.Fatalf("NewFromChunks: %v", err)
	}
	if _, err := store.Get(context.Background(), "missing"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
