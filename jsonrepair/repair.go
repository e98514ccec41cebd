package jsonrepair

import (
	"regexp"
	"strings"
)

// Precompiled patterns for the cheap pass. Performance matters here because
// Repair runs on every streamed tool call before the slower Fix pass.
var (
	reSingleQuotedKey = regexp.MustCompile(`'([A-Za-z_][A-Za-z0-9_]*)'\s*:`)
	reTrailingComma   = regexp.MustCompile(`,\s*([}\]])`)
	reBareKey         = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
)

// Repair applies the cheap repair pass: single-quoted keys become
// double-quoted, trailing commas before a closer are stripped, bare
// identifier keys are quoted, braces and brackets are balanced by count
// (not string-aware), and an odd double-quote count is patched by inserting
// a closing quote before the final bracket.
//
// The result is not guaranteed to parse; callers escalate to Fix when it
// does not.
func Repair(text string) string {
	s := reSingleQuotedKey.ReplaceAllString(text, `"$1":`)
	s = reTrailingComma.ReplaceAllString(s, `$1`)
	s = reBareKey.ReplaceAllString(s, `$1"$2":`)
	s = balanceNaive(s)

	if strings.Count(s, `"`)%2 == 1 {
		s = insertClosingQuote(s)
	}

	return s
}

// insertClosingQuote places a double quote before the last closing brace or
// bracket, or appends one when the text has no closer at all.
func insertClosingQuote(s string) string {
	idx := strings.LastIndexAny(s, "}]")
	if idx < 0 {
		return s + `"`
	}
	return s[:idx] + `"` + s[idx:]
}

// balanceNaive appends missing closers based on raw rune counts. It is
// deliberately not string-aware; Fix handles the hard cases.
func balanceNaive(s string) string {
	openBraces := strings.Count(s, "{") - strings.Count(s, "}")
	openBrackets := strings.Count(s, "[") - strings.Count(s, "]")

	var b strings.Builder
	b.WriteString(s)
	for i := 0; i < openBrackets; i++ {
		b.WriteByte(']')
	}
	for i := 0; i < openBraces; i++ {
		b.WriteByte('}')
	}
	return b.String()
}

var reJSKey = regexp.MustCompile(`([{,\s]|^)([$A-Za-z_][$A-Za-z0-9_]*)\s*:`)

// QuoteKeys rewrites a JavaScript-object-literal style payload towards JSON:
// bare identifier keys are double-quoted and single-quoted strings are
// converted (outside of double-quoted strings). It is the last resort before
// a caller gives up on a payload, applied to the original text rather than a
// previous repair attempt.
func QuoteKeys(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	inDouble := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case inDouble:
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inDouble = false
			}
			b.WriteByte(c)
		case c == '"':
			inDouble = true
			b.WriteByte(c)
		case c == '\'':
			b.WriteByte('"')
		default:
			b.WriteByte(c)
		}
	}

	return reJSKey.ReplaceAllString(b.String(), `$1"$2":`)
}

// frameState tracks where parsing stopped inside the innermost container so
// Fix knows what must be appended (or trimmed) before the closers.
type frameState int

const (
	stExpectKey   frameState = iota // object: expecting a key or '}'
	stExpectColon                   // object: key read, ':' pending
	stExpectValue                   // value pending (after ':', ',' or '[')
	stExpectMore                    // value complete: ',' or closer pending
)

type frame struct {
	closer byte
	state  frameState
}

// Fix runs a string-aware scan over text tracking an inside-string flag
// (toggled by unescaped double quotes, respecting backslash escapes) and a
// stack of expected closers. At end of input it closes an open string first,
// completes dangling literals and keys, drops trailing separators, and drains
// the closer stack in reverse order.
//
// Fix guarantees syntactic balance, not semantic validity, and never fails.
// Applied to any prefix of a valid JSON document it yields parseable text.
func Fix(text string) string {
	var stack []frame
	top := frame{state: stExpectValue} // virtual top-level frame

	current := func() *frame {
		if len(stack) == 0 {
			return &top
		}
		return &stack[len(stack)-1]
	}

	inString := false
	escaped := false
	tokenStart := -1

	// valueDone advances the innermost frame after a complete scalar,
	// string, object or array.
	valueDone := func() {
		f := current()
		if f.state == stExpectKey {
			f.state = stExpectColon
			return
		}
		f.state = stExpectMore
	}

	endToken := func() {
		if tokenStart >= 0 {
			tokenStart = -1
			valueDone()
		}
	}

	for i := 0; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
				valueDone()
			}
			continue
		}

		if isTokenChar(c) {
			if tokenStart < 0 {
				tokenStart = i
			}
			continue
		}
		endToken()

		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, frame{closer: '}', state: stExpectKey})
		case '[':
			stack = append(stack, frame{closer: ']', state: stExpectValue})
		case ':':
			current().state = stExpectValue
		case ',':
			f := current()
			if f.closer == '}' {
				f.state = stExpectKey
			} else {
				f.state = stExpectValue
			}
		case '}', ']':
			// Pop only a matching closer; mismatches are left for the parser
			// to reject rather than guessing at intent.
			if len(stack) > 0 && stack[len(stack)-1].closer == c {
				stack = stack[:len(stack)-1]
				valueDone()
			}
		}
	}

	out := text

	switch {
	case inString:
		if escaped {
			// A dangling backslash would escape our closing quote.
			out += `\`
		}
		out += `"`
		valueDone()
	case tokenStart >= 0:
		completed := completeToken(text[tokenStart:])
		out = text[:tokenStart] + completed
		if completed == "" {
			out = strings.TrimRight(out, " \t\r\n")
		} else {
			tokenStart = -1
			valueDone()
		}
	}

	// Only the innermost frame can be mid-entry: settle it before draining
	// the closers. Parent frames are mid-value by definition, their pending
	// value being the child that is about to be closed.
	switch current().state {
	case stExpectColon:
		out += ":null"
	case stExpectValue, stExpectKey:
		trimmed := strings.TrimRight(out, " \t\r\n")
		switch {
		case strings.HasSuffix(trimmed, ","):
			out = trimmed[:len(trimmed)-1]
		case strings.HasSuffix(trimmed, ":"):
			out += "null"
		}
	}

	var b strings.Builder
	b.WriteString(out)
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i].closer)
	}
	return b.String()
}

// isTokenChar reports whether c can appear in a bare JSON scalar token
// (numbers, true, false, null).
func isTokenChar(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c == '-' || c == '+' || c == '.':
		return true
	}
	return false
}

// completeToken finishes a scalar token cut off mid-stream. Literal prefixes
// are completed; numbers lose any dangling sign/exponent/point characters.
// An empty return means the token had no salvageable content.
func completeToken(tok string) string {
	for _, lit := range []string{"true", "false", "null"} {
		if strings.HasPrefix(lit, tok) {
			return lit
		}
	}
	// Numeric: trim until the token ends in a digit.
	for len(tok) > 0 && (tok[len(tok)-1] < '0' || tok[len(tok)-1] > '9') {
		tok = tok[:len(tok)-1]
	}
	return tok
}
