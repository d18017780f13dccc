// Package pricing quotes truckload routes from great-circle distance.
package pricing

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

const earthRadiusMiles = 3958.8

// MilesPerDay is the average distance a truck covers per day, stops included.
const MilesPerDay = 500

var (
	RatePerMile = decimal.RequireFromString("2.50")
	BaseFee     = decimal.RequireFromString("500.00")

	multipliers = map[string]decimal.Decimal{
		"dryVan": decimal.RequireFromString("1.0"),
		"reefer": decimal.RequireFromString("1.3"),
	}
)

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Distance returns the haversine distance between a and b in miles, rounded to 2 decimals.
func Distance(a, b Point) float64 {
	lat1 := radians(a.Latitude)
	lon1 := radians(a.Longitude)
	lat2 := radians(b.Latitude)
	lon2 := radians(b.Longitude)

	dlat := lat2 - lat1
	dlon := lon2 - lon1

	h := math.Pow(math.Sin(dlat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return math.Round(earthRadiusMiles*c*100) / 100
}

// Multiplier returns the equipment surcharge factor; unknown equipment costs like a dry van.
func Multiplier(equipment string) decimal.Decimal {
	if m, ok := multipliers[equipment]; ok {
		return m
	}
	return decimal.NewFromInt(1)
}

// BasePrice is miles * rate * multiplier plus the minimum fee, rounded half-even to cents.
// miles enters at the exact binary value of the float, not its shortest decimal form.
func BasePrice(miles float64, equipment string) decimal.Decimal {
	return exact(miles).
		Mul(RatePerMile).
		Mul(Multiplier(equipment)).
		Add(BaseFee).
		RoundBank(2)
}

// TransitDays is the minimum number of days on the road, never less than one.
func TransitDays(miles float64) int64 {
	days := int64(math.Ceil(miles / MilesPerDay))
	if days < 1 {
		return 1
	}
	return days
}

// exact converts f without rounding: a float64 is n/2^k, which has exactly k decimals.
func exact(f float64) decimal.Decimal {
	r := new(big.Rat).SetFloat64(f)
	if r == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigRat(r, int32(r.Denom().BitLen()-1))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
