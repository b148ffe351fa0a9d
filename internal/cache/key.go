package cache

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"
)

// Key builds a cache key of the form "op:<hash>" from an operation name and
// its argument object. Map iteration order does not affect the hash, so
// logically equal argument maps always produce the same key. Struct fields
// tagged `hash:"ignore"` are skipped.
func Key(op string, params any) (string, error) {
	h, err := hashstructure.Hash(params, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("cache: hash %s params: %w", op, err)
	}
	return fmt.Sprintf("%s:%016x", op, h), nil
}
