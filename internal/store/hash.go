package store

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// ContentHash returns the hex xxhash of b. It identifies file contents, not
// secrets.
func ContentHash(b []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(b))
}
