package money

import (
	"fmt"
	"strings"
)

// Format renders an amount in minor units as "12.34 EUR".
func Format(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, minor/100, minor%100, strings.ToUpper(currency))
}
