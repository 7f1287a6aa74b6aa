package domain

// markerSteps maps an exclusive magnitude upper bound to a marker radius in pixels.
var markerSteps = []struct {
	below  float64
	radius int
}{
	{0, 10}, {1, 15}, {2, 20}, {3, 30}, {4, 40},
	{5, 50}, {6, 60}, {7, 70}, {8, 90},
}

const maxMarkerRadius = 120

// MarkerRadius returns the display radius for an event of the given magnitude.
// Events without a magnitude get the smallest marker.
func MarkerRadius(mag *float64) int {
	if mag == nil {
		return markerSteps[0].radius
	}
	for _, step := range markerSteps {
		if *mag < step.below {
			return step.radius
		}
	}
	return maxMarkerRadius
}
