package interval

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestAliasInverseConsistency checks that +n followed by -n of the same unit
// returns the anchor. Month and year offsets are exact whenever the day of
// month exists in every month (day <= 28).
func TestAliasInverseConsistency(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	properties.Property("unit+n then unit-n returns the anchor", prop.ForAll(
		func(unit string, n int, dayOffset int, secondOffset int) bool {
			start := base.AddDate(0, 0, dayOffset).Add(time.Duration(secondOffset) * time.Second)
			if (unit == "M" || unit == "Y") && start.Day() > 28 {
				start = start.AddDate(0, 0, -3)
			}

			forward, err := AliasDate(fmt.Sprintf("%s+%d", unit, n), start, 0, nil)
			if err != nil {
				return false
			}
			back, err := AliasDate(fmt.Sprintf("%s-%d", unit, n), forward, 0, nil)
			if err != nil {
				return false
			}
			return back.Equal(start)
		},
		gen.OneConstOf("Y", "M", "W", "D", "H", "MIN", "SEC"),
		gen.IntRange(0, 5000),
		gen.IntRange(-20000, 20000),
		gen.IntRange(0, 86399),
	))

	properties.Property("month offsets never overflow into the next month", prop.ForAll(
		func(n int, dayOffset int) bool {
			start := base.AddDate(0, 0, dayOffset)
			got, err := AliasDate(fmt.Sprintf("M+%d", n), start, 0, nil)
			if err != nil {
				return false
			}
			wantMonth := (int(start.Month())-1+n)%12 + 1
			return int(got.Month()) == wantMonth && got.Day() <= start.Day()
		},
		gen.IntRange(0, 240),
		gen.IntRange(0, 3650),
	))

	properties.TestingRun(t)
}
