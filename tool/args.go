package tool

import (
	"encoding/json"
	"strings"

	"github.com/hupe1980/agentloop/jsonrepair"
	"github.com/hupe1980/agentloop/logging"
)

// emptyArgumentLiterals are trimmed payloads treated as "the model meant no
// arguments". They cover the truncated and pseudo-empty spellings observed
// across providers.
var emptyArgumentLiterals = map[string]struct{}{
	"":          {},
	"{}":        {},
	"{ }":       {},
	"null":      {},
	"NULL":      {},
	"undefined": {},
	"{":         {},
	"}":         {},
	"[]":        {},
	"[ ]":       {},
}

// ParseArguments turns a raw tool-call argument payload into a canonical
// keyed mapping. It never fails: every malformed input degrades to an empty
// mapping (which always serializes as an object, never an array).
//
//   - an existing mapping passes through, empty stays empty
//   - nil becomes an empty mapping
//   - a non-string scalar is wrapped as {"value": raw}
//   - strings run through the repair ladder below, first success wins:
//     empty-literal set, cheap repair, full fix, JS-literal key quoting
//
// toolName is only used for log correlation.
func ParseArguments(raw any, toolName string, logger logging.Logger) map[string]any {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	switch v := raw.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		if v == nil {
			return map[string]any{}
		}
		return v
	case json.RawMessage:
		return parseArgumentString(string(v), toolName, logger)
	case []byte:
		return parseArgumentString(string(v), toolName, logger)
	case string:
		return parseArgumentString(v, toolName, logger)
	default:
		return map[string]any{"value": v}
	}
}

func parseArgumentString(raw, toolName string, logger logging.Logger) map[string]any {
	trimmed := strings.TrimSpace(raw)
	if _, ok := emptyArgumentLiterals[trimmed]; ok {
		return map[string]any{}
	}

	if m, ok := tryUnmarshal(jsonrepair.Repair(trimmed)); ok {
		return m
	}
	if m, ok := tryUnmarshal(jsonrepair.Fix(trimmed)); ok {
		return m
	}
	if m, ok := tryUnmarshal(jsonrepair.Fix(jsonrepair.QuoteKeys(trimmed))); ok {
		return m
	}

	logger.Warn("tool.args.unparseable", "tool", toolName, "raw", snippet(trimmed))
	return map[string]any{}
}

// tryUnmarshal parses s into a keyed mapping; non-object payloads count as
// failures so the invariant "arguments are a mapping" holds.
func tryUnmarshal(s string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, false
	}
	if m == nil {
		return map[string]any{}, true
	}
	return m, true
}

func snippet(s string) string {
	const max = 160
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
