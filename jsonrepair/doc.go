// Package jsonrepair provides best-effort structural repair for truncated or
// malformed JSON text, as emitted by language models that stream tool-call
// arguments in fragments.
//
// Two passes are offered:
//
//   - Repair: a cheap, mostly regex-driven pass for the common cheap wins
//     (single-quoted keys, bare keys, trailing commas, naive balancing)
//   - Fix: a string-aware scan that guarantees bracket/quote balance for any
//     input, including any prefix of a valid JSON document
//
// Both passes guarantee syntactic balance only, never semantic validity, and
// never fail: callers attempt a parse afterwards and fall back on their own
// policy when it still does not parse.
package jsonrepair
