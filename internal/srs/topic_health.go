package srs

import (
	"math"

	"linguaflow/internal/models"
)

// statusWeights maps acquisition status to a 0-100 health contribution.
// NEW sits at the neutral midpoint: an untouched item is no evidence either way.
var statusWeights = map[models.AcquisitionStatus]float64{
	models.StatusAcquired: 100,
	models.StatusLearning: 70,
	models.StatusNew:      50,
	models.StatusFragile:  30,
}

// TopicHealth aggregates the statuses of a topic's items into a 0-100 score.
// An empty input yields the neutral 50: no data means no signal, not zero.
func TopicHealth(statuses []models.AcquisitionStatus) int {
	if len(statuses) == 0 {
		return 50
	}
	sum := 0.0
	for _, s := range statuses {
		w, ok := statusWeights[s]
		if !ok {
			w = 50
		}
		sum += w
	}
	return int(math.Round(sum / float64(len(statuses))))
}
