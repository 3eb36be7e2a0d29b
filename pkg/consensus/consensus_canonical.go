package consensus

import (
	"encoding/json"
	"fmt"
)

// CanonicalKey converts an arbitrary choice value into a stable grouping key.
// Two structurally equal values produce the same key regardless of field
// order; the original value is kept alongside the key in the distribution so
// callers get their exact value back as the winner.
//
// The key is the JSON encoding of the value after a round-trip through the
// generic representation: encoding/json emits map keys in sorted order, so
// struct field order and map insertion order stop mattering.
func CanonicalKey(choice any) string {
	if choice == nil {
		return "null"
	}

	b, err := json.Marshal(choice)
	if err != nil {
		// Not JSON-encodable (channels, funcs). Fall back to the printed
		// form; grouping still works for identical values.
		return fmt.Sprintf("%v", choice)
	}

	var norm any
	if err := json.Unmarshal(b, &norm); err != nil {
		return string(b)
	}
	nb, err := json.Marshal(norm)
	if err != nil {
		return string(b)
	}
	return string(nb)
}
