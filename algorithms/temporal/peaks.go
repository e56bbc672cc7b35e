package temporal

// LocalMaxima returns indices i where x[i] > x[i-1] and x[i] >= x[i+1].
// The ends are compared against themselves, so index 0 never qualifies
// and a rising final sample does.
func LocalMaxima(x []float64) []int {
	var peaks []int
	n := len(x)
	for i := range n {
		left := x[max(i-1, 0)]
		right := x[min(i+1, n-1)]
		if x[i] > left && x[i] >= right {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

// localMaxMask is LocalMaxima as a boolean mask
func localMaxMask(x []float64) []bool {
	mask := make([]bool, len(x))
	for _, i := range LocalMaxima(x) {
		mask[i] = true
	}
	return mask
}
