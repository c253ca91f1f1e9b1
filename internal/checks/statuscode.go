package checks

import (
	"fmt"
	"strconv"
	"strings"
)

// StatusMatcher classifies HTTP response codes against a set of accepted
// patterns. Matching is order-independent: "200,201" and "201,200" classify
// identically.
type StatusMatcher struct {
	ranges [][2]int
}

// ParseStatusPatterns builds a matcher from pattern strings. Each entry may
// be a single code ("200"), a wildcard ("2xx"), a range ("200-299"), or a
// comma-separated list of those.
func ParseStatusPatterns(patterns []string) (*StatusMatcher, error) {
	m := &StatusMatcher{}

	for _, raw := range patterns {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			lo, hi, err := parseStatusPattern(part)
			if err != nil {
				return nil, err
			}
			m.ranges = append(m.ranges, [2]int{lo, hi})
		}
	}

	if len(m.ranges) == 0 {
		return nil, &ValidationError{Reason: "no status code patterns given"}
	}

	return m, nil
}

func parseStatusPattern(p string) (int, int, error) {
	lower := strings.ToLower(p)

	// Wildcard: "2xx" covers 200-299, "40x" covers 400-409.
	if strings.Contains(lower, "x") {
		prefix := strings.TrimRight(lower, "x")
		wild := len(lower) - len(prefix)
		if prefix == "" || wild == 0 || len(lower) != 3 || strings.ContainsAny(prefix, "x") {
			return 0, 0, &ValidationError{Reason: fmt.Sprintf("invalid status pattern %q", p)}
		}
		base, err := strconv.Atoi(prefix)
		if err != nil {
			return 0, 0, &ValidationError{Reason: fmt.Sprintf("invalid status pattern %q", p)}
		}
		span := 1
		for i := 0; i < wild; i++ {
			span *= 10
		}
		lo := base * span
		return lo, lo + span - 1, nil
	}

	// Range: "200-299".
	if strings.Contains(p, "-") {
		parts := strings.SplitN(p, "-", 2)
		lo, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		hi, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 != nil || err2 != nil || lo > hi {
			return 0, 0, &ValidationError{Reason: fmt.Sprintf("invalid status range %q", p)}
		}
		return lo, hi, nil
	}

	code, err := strconv.Atoi(p)
	if err != nil {
		return 0, 0, &ValidationError{Reason: fmt.Sprintf("invalid status code %q", p)}
	}
	return code, code, nil
}

// Match reports whether the response code is accepted.
func (m *StatusMatcher) Match(code int) bool {
	for _, r := range m.ranges {
		if code >= r[0] && code <= r[1] {
			return true
		}
	}
	return false
}
