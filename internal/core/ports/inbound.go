package ports

import (
	"context"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
)

// Retriever is the single inbound contract exposed by the retrieval core
// (spec section 4.7 entry point plus the operational surface of section 6).
type Retriever interface {
	Retrieve(ctx context.Context, sessionID, question string) (domain.RetrievalResult, error)
	CacheStats() domain.CacheStats
	ClearCache()
	ClearExpiredCache()
	LexicalStats() LexicalStats
	Config() any
}
