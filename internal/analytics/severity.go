package analytics

import (
	"math"

	"energy-monitor/internal/models"
)

// Границы относительного отклонения от среднего (строгое сравнение)
const (
	criticalDeviation = 2.0
	highDeviation     = 1.0
	mediumDeviation   = 0.5
)

// SeverityFor оценивает серьезность по относительному отклонению |value-mean|/|mean|.
// При нулевом среднем любое ненулевое значение считается CRITICAL.
func SeverityFor(value, mean float64) models.Severity {
	if mean == 0 {
		if value == 0 {
			return models.SeverityLow
		}
		return models.SeverityCritical
	}

	deviation := math.Abs(value-mean) / math.Abs(mean)

	switch {
	case deviation > criticalDeviation:
		return models.SeverityCritical
	case deviation > highDeviation:
		return models.SeverityHigh
	case deviation > mediumDeviation:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
