package spectral

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// IEC 61672 A-weighting pole frequencies (Hz), squared
var aWeightingPoles = [4]float64{
	12194.217 * 12194.217,
	20.598997 * 20.598997,
	107.65265 * 107.65265,
	737.86223 * 737.86223,
}

// AWeighting returns the A-weighting gain in dB for each frequency,
// floored at minDB. The DC bin always sits at the floor.
func AWeighting(frequencies []float64, minDB float64) []float64 {
	weights := make([]float64, len(frequencies))
	c := aWeightingPoles

	for i, f := range frequencies {
		fsq := f * f
		if fsq == 0 {
			weights[i] = minDB
			continue
		}
		w := 2.0 + 20.0*(math.Log10(c[0])+
			2*math.Log10(fsq)-
			math.Log10(fsq+c[0])-
			math.Log10(fsq+c[1])-
			0.5*math.Log10(fsq+c[2])-
			0.5*math.Log10(fsq+c[3]))
		weights[i] = math.Max(minDB, w)
	}
	return weights
}

// ApplyWeightingInPlace scales each power bin by 10^(weightDB/10).
// Every frame must have len(weightsDB) bins.
func ApplyWeightingInPlace(power [][]float64, weightsDB []float64) {
	gains := make([]float64, len(weightsDB))
	for i, w := range weightsDB {
		gains[i] = math.Pow(10, w/10)
	}

	for _, frame := range power {
		floats.Mul(frame, gains)
	}
}
