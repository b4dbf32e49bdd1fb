package vectordb

import (
	"sort"

	"github.com/wikivec/wikivec/internal/models"
)

// scoreFromDistance maps a neighbor distance to a similarity score in (0,1].
// Distance 0 maps to 1.0 and the mapping is strictly decreasing. Negative
// distances (possible under dot-product metrics) clamp to 0 so scores never
// exceed 1.
func scoreFromDistance(d float64) float64 {
	if d < 0 {
		d = 0
	}
	return 1 / (1 + d)
}

// neighborsToMatches converts raw neighbors to SearchMatch values in
// descending score order. Ties keep the endpoint's arrival order. Content
// and metadata stay empty; hydration is not this layer's job.
func neighborsToMatches(neighbors []neighbor) []models.SearchMatch {
	matches := make([]models.SearchMatch, len(neighbors))
	for i, n := range neighbors {
		matches[i] = models.SearchMatch{
			ChunkID:  n.Datapoint.DatapointID,
			Score:    scoreFromDistance(n.Distance),
			Content:  "",
			Metadata: map[string]interface{}{},
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}
