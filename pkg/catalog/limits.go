package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

const nanoCPUScale = 1_000_000_000

// memorySuffixes maps a case-insensitive unit suffix to its byte multiplier.
// Ordered longest-first so two-letter suffixes such as "kb" are tried before
// the one-letter suffixes ("k", "b") they end with.
var memorySuffixes = []struct {
	suffix     string
	multiplier int64
}{
	{"kb", 1024},
	{"ki", 1024},
	{"mb", 1024 * 1024},
	{"mi", 1024 * 1024},
	{"gb", 1024 * 1024 * 1024},
	{"gi", 1024 * 1024 * 1024},
	{"tb", 1024 * 1024 * 1024 * 1024},
	{"k", 1024},
	{"m", 1024 * 1024},
	{"g", 1024 * 1024 * 1024},
	{"t", 1024 * 1024 * 1024 * 1024},
	{"b", 1},
}

// ParseMemory parses a memory limit string ("512m", "1.5g", "1024") into
// bytes, per the fixed suffix table: bare digits are bytes, fractional
// values are truncated toward zero.
func ParseMemory(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	lower := strings.ToLower(trimmed)
	for _, unit := range memorySuffixes {
		if strings.HasSuffix(lower, unit.suffix) {
			numPart := lower[:len(lower)-len(unit.suffix)]
			if numPart == "" {
				return 0, fmt.Errorf("parsing memory %q: missing numeric part", s)
			}
			n, err := strconv.ParseFloat(numPart, 64)
			if err != nil {
				return 0, fmt.Errorf("parsing memory %q: %w", s, err)
			}
			return int64(n * float64(unit.multiplier)), nil
		}
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing memory %q: %w", s, err)
	}
	return n, nil
}

// ParseCPU parses a CPU limit string into nano-CPUs. A trailing "m" means
// millicores; otherwise the value is a floating CPU count.
func ParseCPU(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, nil
	}
	if strings.HasSuffix(trimmed, "m") {
		millis, err := strconv.ParseInt(trimmed[:len(trimmed)-1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing cpu %q: %w", s, err)
		}
		return (millis * nanoCPUScale) / 1000, nil
	}
	cores, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing cpu %q: %w", s, err)
	}
	return int64(cores * nanoCPUScale), nil
}
