package jsonrepair

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepair_SingleQuotedKeys(t *testing.T) {
	out := Repair(`{'city': "Berlin"}`)
	assert.JSONEq(t, `{"city":"Berlin"}`, out)
}

func TestRepair_TrailingCommas(t *testing.T) {
	out := Repair(`{"a": 1, "b": [1, 2,],}`)
	assert.JSONEq(t, `{"a":1,"b":[1,2]}`, out)
}

func TestRepair_BareKeys(t *testing.T) {
	out := Repair(`{city: "Berlin", unit: "celsius"}`)
	assert.JSONEq(t, `{"city":"Berlin","unit":"celsius"}`, out)
}

func TestRepair_BalancesBrackets(t *testing.T) {
	out := Repair(`{"a": [1, 2`)
	assert.JSONEq(t, `{"a":[1,2]}`, out)
}

func TestRepair_OddQuoteCount(t *testing.T) {
	out := Repair(`{"a": "berl}`)
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &v))
}

func TestRepair_ValidInputUnchanged(t *testing.T) {
	in := `{"a":1,"b":"two"}`
	assert.Equal(t, in, Repair(in))
}

func TestFix_ValidDocumentUnchanged(t *testing.T) {
	in := `{"a": [1, 2], "b": {"c": true}}`
	assert.Equal(t, in, Fix(in))
}

func TestFix_AllPrefixesOfValidDocumentParse(t *testing.T) {
	doc := `{"name": "get_weather", "args": {"city": "Berlin", "n": -12.5e2, "ok": true, "tags": ["a", "b\"c", null], "none": null}, "count": 3}`
	require.True(t, json.Valid([]byte(doc)))

	for i := 1; i <= len(doc); i++ {
		prefix := doc[:i]
		fixed := Fix(prefix)
		var v any
		err := json.Unmarshal([]byte(fixed), &v)
		assert.NoErrorf(t, err, "prefix %q fixed to %q", prefix, fixed)
	}
}

func TestFix_ClosesOpenString(t *testing.T) {
	out := Fix(`{"msg": "hello wor`)
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "hello wor", v["msg"])
}

func TestFix_DanglingEscape(t *testing.T) {
	out := Fix(`{"path": "C:\`)
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &v))
}

func TestFix_DanglingKey(t *testing.T) {
	out := Fix(`{"city"`)
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Contains(t, v, "city")
}

func TestFix_BracketInsideStringIgnored(t *testing.T) {
	out := Fix(`{"expr": "a[0] = {"`)
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "a[0] = {", v["expr"])
}

func TestFix_NeverPanicsOnGarbage(t *testing.T) {
	inputs := []string{"", "}}}}", `"\`, "[,:,]", "{]", "nulll", "--", "\x00\xff"}
	for _, in := range inputs {
		assert.NotPanics(t, func() { _ = Fix(in) })
	}
}
