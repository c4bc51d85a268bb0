package lancar

import (
	"strconv"
	"strings"
)

// IsSuccessStatus reports whether code is in the 2xx class.
func IsSuccessStatus(code int) bool {
	return code >= 200 && code < 300
}

// StatusAllowed reports whether code matches the range expression expr.
//
// expr is a comma separated list of items: "*" (any), an exact code ("404"),
// a class pattern where x or * stands for any digit ("4xx", "5**"), or an
// inclusive range ("400-499"). Malformed items never match.
func StatusAllowed(expr string, code int) bool {
	if expr == "" {
		return false
	}
	for _, item := range strings.Split(expr, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if item == "*" {
			return true
		}
		if lo, hi, ok := strings.Cut(item, "-"); ok {
			low, err1 := strconv.Atoi(strings.TrimSpace(lo))
			high, err2 := strconv.Atoi(strings.TrimSpace(hi))
			if err1 == nil && err2 == nil && code >= low && code <= high {
				return true
			}
			continue
		}
		if matchStatusPattern(item, code) {
			return true
		}
	}
	return false
}

func matchStatusPattern(pattern string, code int) bool {
	digits := strconv.Itoa(code)
	if len(pattern) != len(digits) {
		return false
	}
	for i := 0; i < len(pattern); i++ {
		switch p := pattern[i]; {
		case p == 'x' || p == 'X' || p == '*':
		case p >= '0' && p <= '9':
			if p != digits[i] {
				return false
			}
		default:
			return false
		}
	}
	return true
}
