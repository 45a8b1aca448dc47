package scoring

import "math"

// SameCategorySimilarity derives an edge weight from the target's trending score.
func (s *Scorer) SameCategorySimilarity(trendingScore float64) float64 {
	r := s.w.Related
	return clamp01(math.Min(r.SameCategoryCap, finite(trendingScore)*r.SameCategoryScale))
}

// CoRead returns the readers-also-read similarity and confidence for an item
// co-read by coReaders of the source's totalReaders.
//
//	similarity = min(cap, coReaders / totalReaders)
//	confidence = min(1, totalReaders / minSampleSize)
func (s *Scorer) CoRead(coReaders, totalReaders int64) (similarity, confidence float64) {
	if totalReaders <= 0 || coReaders <= 0 {
		return 0, 0
	}
	r := s.w.Related
	similarity = math.Min(r.CoReadCap, float64(coReaders)/float64(totalReaders))
	if r.MinSampleSize <= 0 {
		confidence = 1
	} else {
		confidence = math.Min(1, float64(totalReaders)/float64(r.MinSampleSize))
	}
	return clamp01(similarity), clamp01(confidence)
}

func clamp01(v float64) float64 {
	v = finite(v)
	if v > 1 {
		return 1
	}
	return v
}
