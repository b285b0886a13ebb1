package feature

import "fmt"

// Transfer moves a value between a statically-erased binding and a
// concrete type, succeeding only when the runtime types match.
//
// The registry stores heterogeneous feature halves in homogeneous
// collections ([]APIHalf, []IngestionHalf); composition code that needs
// a concrete half back goes through Transfer (usually via Lookup).
//
// Contract: on a type mismatch the original value is untouched and
// remains fully usable by the caller: nothing is consumed, leaked, or
// invalidated. Go's checked type assertion gives this for free; the
// function exists to name the operation and to host MustTransfer's
// fatal variant.
func Transfer[T any](v any) (T, bool) {
	t, ok := v.(T)
	return t, ok
}

// MustTransfer is Transfer for call sites where a mismatch indicates a
// composition bug (a half registered under the wrong type). It panics
// with both type names rather than returning an error a caller might
// silently drop.
func MustTransfer[T any](v any) T {
	t, ok := v.(T)
	if !ok {
		panic(fmt.Sprintf("feature: transfer mismatch: have %T, want %T", v, t))
	}
	return t
}
