package interfaces

import (
	"context"

	"github.com/seralab/tunex/internal/models"
)

// SearchClient issues one query against a named search backend.
// Implementations carry their own deadline, retry, and breaker policy;
// exceeding the deadline surfaces as a Transient error.
type SearchClient interface {
	Search(ctx context.Context, backend string, q models.QueryContext) (models.SearchResult, error)
}
