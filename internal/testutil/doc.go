// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing streaming events for the supported provider
// dialects. These helpers are intentionally minimal and are not intended for
// production usage.
package testutil
