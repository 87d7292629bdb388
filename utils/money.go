package utils

import "math"

// Round2 rounds x to 2 decimal places. All money in this system (system
// prices, financed amounts, monthly payments) is normalized through here
// before persistence or lender submission.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
