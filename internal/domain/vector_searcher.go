package domain

import "context"

// SearchFilter narrows a vector search by structured metadata. Zero values
// mean no constraint.
type SearchFilter struct {
	Cuisine      string
	DocumentType DocumentType
}

// VectorSearcher is the black-box similarity index.
//
// Score contract: hits are returned ordered by similarity descending and
// Candidate.SemanticScore is a normalized similarity in [0,1] where higher
// means more similar. Adapters own the conversion from whatever the backing
// index reports (e.g. cosine distance); consumers never re-derive polarity.
type VectorSearcher interface {
	// Search retrieves up to topK candidates for the query text.
	Search(ctx context.Context, query string, topK int, filter *SearchFilter) ([]Candidate, error)

	// VerifyScoreContract issues a fixed probe query against a known-similar
	// and a known-dissimilar document and returns ErrScoreContractViolated
	// if the pair is misordered. Called once at startup.
	VerifyScoreContract(ctx context.Context) error
}

// VectorEncoder turns query texts into embeddings.
type VectorEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Version() string
}
