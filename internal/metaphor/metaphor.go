// Package metaphor turns a CO2 figure into an everyday comparison.
package metaphor

import (
	"fmt"
	"math"
)

// Conversion factors, all per kg CO2.
const (
	KmPerKg          = 4.0   // petrol car
	KgPerPhoneCharge = 0.008 // one smartphone charge
	KgPerTreeYear    = 22.0  // absorbed by a mature tree in a year
)

// For returns a relatable metaphor for co2Kg.
func For(co2Kg float64) string {
	if co2Kg <= 0 {
		return "Zero impact! Great job!"
	}

	km := round1(co2Kg * KmPerKg)
	charges := math.RoundToEven(co2Kg / KgPerPhoneCharge)
	treeDays := round1(co2Kg / KgPerTreeYear * 365)

	switch {
	case co2Kg < 1:
		return fmt.Sprintf("That's like charging your phone %.0f times.", charges)
	case co2Kg < 3:
		return fmt.Sprintf("That's equivalent to driving a car for %.1f km.", km)
	default:
		return fmt.Sprintf("That's like driving %.1f km, and a tree would need %.1f days to absorb it.", km, treeDays)
	}
}

// Exact halves round to even: 0.5 kg is 62.5 charges and prints 62.
func round1(v float64) float64 { return math.RoundToEven(v*10) / 10 }
