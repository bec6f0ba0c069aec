package domain

// RetrievedItem is a transient candidate passage tracked through Stages 3-8.
type RetrievedItem struct {
	Chunk           Chunk
	Score           float64
	Source          Source
	RankPerSource   map[Source]int
	CrossTierMatch  bool
	DenseScoreRaw   float64
	LexicalScoreRaw float64
	CrossEncoderRaw float64
}

// RetrievalMetadata carries the pipeline's operational annotations, exposed
// to the caller alongside the ranked chunks.
type RetrievalMetadata struct {
	Degraded           bool
	DegradedChannels   []string
	ExactCodeMatch     bool
	FusedCandidates    int
	RerankedCandidates int
}

// RetrievalResult is the value returned by Retriever.Retrieve and cached by
// the semantic cache.
type RetrievalResult struct {
	Chunks      []RetrievedItem
	ContextText string
	Confidence  float64
	Intent      Intent
	Plan        QueryPlan
	Metadata    RetrievalMetadata
}

// IsEmpty reports whether the result carries no retrieved chunks.
func (r RetrievalResult) IsEmpty() bool {
	return len(r.Chunks) == 0
}
