package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRelatedItemEdge_Merge(t *testing.T) {
	earlier := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	later := earlier.Add(24 * time.Hour)

	e := RelatedItemEdge{SourceItem: "a", RelatedItem: "b", RelationType: RelationSameCategory,
		SimilarityScore: 0.4, Confidence: 0.9, ComputedAt: earlier}
	e.Merge(&RelatedItemEdge{SimilarityScore: 0.6, Confidence: 0.5, ComputedAt: later})

	assert.Equal(t, 0.6, e.SimilarityScore)
	assert.Equal(t, 0.9, e.Confidence)
	assert.Equal(t, later, e.ComputedAt)
	assert.Equal(t, "a:b:same_category", e.EdgeKey())
}

func TestEvaluationTagFor(t *testing.T) {
	tests := []struct {
		rating float64
		want   EvaluationTag
	}{
		{9.7, EvaluationMasterpiece},
		{9.5, EvaluationMasterpiece},
		{9.2, EvaluationHighlyPraised},
		{8.0, EvaluationWorthReading},
		{7.9, EvaluationNone},
		{0, EvaluationNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EvaluationTagFor(tt.rating), tt.rating)
	}
}
