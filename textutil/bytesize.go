// Package textutil holds the stateless text helpers used around the render
// engine: byte sizes, page ranges and file system names.
package textutil

import (
	"fmt"
	"math"
)

var byteUnits = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

// FormatByteSize formats n with 1024-based units, truncated to three
// significant digits: 1234 -> "1.20 KB", 123456789012 -> "114 GB".
// Plain byte counts are printed whole.
func FormatByteSize(n int64) string {
	if n < 0 {
		if n == math.MinInt64 {
			return "-8.00 EB"
		}
		return "-" + FormatByteSize(-n)
	}
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}

	value := float64(n)
	unit := 0
	for value >= 1024 && unit < len(byteUnits)-1 {
		value /= 1024
		unit++
	}

	decimals := 0
	switch {
	case value < 10:
		decimals = 2
	case value < 100:
		decimals = 1
	}
	shift := math.Pow(10, float64(decimals))
	value = math.Floor(value*shift) / shift
	return fmt.Sprintf("%.*f %s", decimals, value, byteUnits[unit])
}
