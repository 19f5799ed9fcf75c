package groupkey

import (
	"fmt"
	"hash/fnv"
)

// suffix returns a short deterministic tag for a group key.
// Same owner and attempt always give the same tag, across runs and machines.
// Uses FNV-32a (stdlib, fast, well-distributed).
func suffix(owner string, attempt int) string {
	h := fnv.New32a()
	h.Write([]byte(owner))
	if attempt > 0 {
		fmt.Fprintf(h, "#%d", attempt)
	}
	return fmt.Sprintf("%08x", h.Sum32())
}
