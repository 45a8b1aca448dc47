package domain

import "time"

// RelationType classifies a relatedness edge.
type RelationType string

// RelationType constants.
const (
	RelationSameAuthor      RelationType = "same_author"
	RelationSameCategory    RelationType = "same_category"
	RelationReadersAlsoRead RelationType = "readers_also_read"
)

// Valid returns true if the relation type is a recognized value.
func (r RelationType) Valid() bool {
	switch r {
	case RelationSameAuthor, RelationSameCategory, RelationReadersAlsoRead:
		return true
	default:
		return false
	}
}

// RelatedItemEdge is a directed, typed link between two catalog items.
// Edges are keyed by (SourceItem, RelatedItem, RelationType).
type RelatedItemEdge struct {
	SourceItem      string       `json:"source_item"`
	SourceItemType  ItemType     `json:"source_item_type"`
	RelatedItem     string       `json:"related_item"`
	RelationType    RelationType `json:"relation_type"`
	SimilarityScore float64      `json:"similarity_score"` // 0.0 - 1.0
	Confidence      float64      `json:"confidence"`       // 0.0 - 1.0
	ComputedAt      time.Time    `json:"computed_at"`
}

// EdgeKey returns the composite key "source:related:relation".
func (e *RelatedItemEdge) EdgeKey() string {
	return e.SourceItem + ":" + e.RelatedItem + ":" + string(e.RelationType)
}

// Merge folds other into e keeping the maximum similarity and confidence
// and the latest computation time.
func (e *RelatedItemEdge) Merge(other *RelatedItemEdge) {
	e.SimilarityScore = max(e.SimilarityScore, other.SimilarityScore)
	e.Confidence = max(e.Confidence, other.Confidence)
	if other.ComputedAt.After(e.ComputedAt) {
		e.ComputedAt = other.ComputedAt
	}
}

// RelatedBatchResult summarizes a catalog-wide graph computation.
type RelatedBatchResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}
