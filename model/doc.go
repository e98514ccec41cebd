// Package model defines the provider-facing Model interface consumed by the
// react loop, plus a scripted MockModel for tests and examples. Concrete
// providers live in the model/anthropic and model/openai subpackages; each
// pairs an SDK transport with the matching stream decoder so streaming and
// non-streaming calls return identically shaped results.
package model
