package parsers

import (
	"encoding/json"
	"strings"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024 // 128KB
	maxCandidates = 64         // bracket positions tried before giving up
	maxErrSnippet = 200        // limit error snippet size
)

// FirstJSONArray returns the first balanced, valid JSON array embedded in s.
// Surrounding prose and code fences are ignored.
func FirstJSONArray(s string) (string, bool) {
	return firstJSON(s, '[')
}

// FirstJSONObject returns the first balanced, valid JSON object embedded in s.
func FirstJSONObject(s string) (string, bool) {
	return firstJSON(s, '{')
}

func firstJSON(s string, open byte) (string, bool) {
	if len(s) > maxContentLen {
		s = s[:maxContentLen]
	}
	tried := 0
	for i := 0; i < len(s) && tried < maxCandidates; i++ {
		if s[i] != open {
			continue
		}
		tried++
		end, ok := balancedEnd(s, i)
		if !ok {
			continue
		}
		candidate := s[i : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

// balancedEnd scans from s[start] (an opening bracket) to its matching close,
// honouring string literals and escapes. Mismatched nesting fails.
func balancedEnd(s string, start int) (int, bool) {
	stack := make([]byte, 0, 8)
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[', '{':
			stack = append(stack, ch)
		case ']', '}':
			if len(stack) == 0 {
				return 0, false
			}
			top := stack[len(stack)-1]
			if (ch == ']' && top != '[') || (ch == '}' && top != '{') {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// safeSnippet trims s for logging.
func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
