package scoring

import "math"

const (
	maxUnitVariance = 0.25
	confidenceFloor = 0.3
	confidenceSpan  = 0.6
)

// AgreementConfidence converts the spread of per-method fractions (0..1) into a confidence in
// [0.3, 0.9], rounded to two decimals. Identical fractions give 0.9. Fewer than two values
// carry no agreement signal and give 0.5.
func AgreementConfidence(fractions []float64) float64 {
	if len(fractions) < 2 {
		return 0.5
	}
	agreement := 1 - math.Min(populationVariance(fractions)/maxUnitVariance, 1)
	return math.Round((confidenceFloor+agreement*confidenceSpan)*100) / 100
}

func populationVariance(values []float64) float64 {
	var mean float64
	for _, value := range values {
		mean += value
	}
	mean /= float64(len(values))

	var sum float64
	for _, value := range values {
		sum += (value - mean) * (value - mean)
	}
	return sum / float64(len(values))
}
