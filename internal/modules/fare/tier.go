package fare

// minimumTierHours covers every distance no tier matches, including the gap
// between 150 and 151 km.
const minimumTierHours = 8

type tier struct {
	hours int
	match func(km float64) bool
}

// outstationTiers is evaluated in order; the first match wins.
var outstationTiers = []tier{
	{hours: 8, match: func(km float64) bool { return km >= 60 && km <= 150 }},
	{hours: 10, match: func(km float64) bool { return km >= 151 && km <= 300 }},
	{hours: 12, match: func(km float64) bool { return km > 300 }},
}

// OutstationHours maps a trip distance to the outstation package length.
func OutstationHours(distanceKm float64) int {
	for _, t := range outstationTiers {
		if t.match(distanceKm) {
			return t.hours
		}
	}
	return minimumTierHours
}
