package query

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strings"
	"sync"

	"modernc.org/sqlite"
)

// DistanceFunc is the SQL name of the walking-time scalar.
const DistanceFunc = "time_between"

const (
	earthRadiusKm = 6367.0
	// below average pace, to approximate path rather than straight-line distance
	walkSpeedMPS = 1.1
)

// HaversineMeters returns the great-circle distance between two points given
// in decimal degrees.
func HaversineMeters(lon1, lat1, lon2, lat2 float64) float64 {
	lon1, lat1, lon2, lat2 = radians(lon1), radians(lat1), radians(lon2), radians(lat2)
	dlon := lon2 - lon1
	dlat := lat2 - lat1
	a := math.Pow(math.Sin(dlat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlon/2), 2)
	c := 2 * math.Asin(math.Sqrt(a))
	return earthRadiusKm * c * 1000
}

// WalkingMinutes converts the distance between two buildings to whole
// minutes of walking, rounded up.
func WalkingMinutes(lon1, lat1, lon2, lat2 float64) int {
	meters := HaversineMeters(lon1, lat1, lon2, lat2)
	return int(math.Ceil(meters / (walkSpeedMPS * 60)))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterDistance makes time_between(lon1, lat1, lon2, lat2) callable from
// SQL. The function is attached to connections opened after the first call;
// later calls are no-ops.
func RegisterDistance() error {
	registerOnce.Do(func() {
		err := sqlite.RegisterDeterministicScalarFunction(DistanceFunc, 4, timeBetween)
		if err != nil && !strings.Contains(err.Error(), "already registered") {
			registerErr = fmt.Errorf("failed to register %s: %w", DistanceFunc, err)
		}
	})
	return registerErr
}

func timeBetween(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	coords := make([]float64, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case float64:
			coords[i] = v
		case int64:
			coords[i] = float64(v)
		case nil:
			return nil, nil
		default:
			return nil, fmt.Errorf("%s: argument %d has type %T", DistanceFunc, i+1, arg)
		}
	}
	return int64(WalkingMinutes(coords[0], coords[1], coords[2], coords[3])), nil
}
