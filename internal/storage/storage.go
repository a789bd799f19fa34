// Package storage implements core.Store: contract-scoped key/value and map
// storage for the storage capability.
package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cryguy/sandbox/internal/core"
)

// MaxValueSize is the largest value a single key or map field may hold.
const MaxValueSize = 1 << 20

// MaxKeySize bounds keys and map fields.
const MaxKeySize = 512

var (
	// ErrNotFound is returned by lookups of keys that do not exist. The
	// Store methods translate it into a nil value.
	ErrNotFound = errors.New("storage: key not found")

	// ErrValueTooLarge is returned when a value exceeds MaxValueSize.
	ErrValueTooLarge = errors.New("storage: value too large")
)

var (
	_ core.Store = (*SQLStore)(nil)
	_ core.Store = (*MemoryStore)(nil)
)

// ValidateContract rejects contract names that are empty, too long or carry
// control characters.
func ValidateContract(contract string) error {
	if contract == "" {
		return fmt.Errorf("storage: contract name must not be empty")
	}
	if len(contract) > 128 {
		return fmt.Errorf("storage: contract name too long")
	}
	if strings.ContainsRune(contract, 0) {
		return fmt.Errorf("storage: contract name contains null byte")
	}
	return nil
}

func validateKey(what, key string) error {
	if len(key) > MaxKeySize {
		return fmt.Errorf("storage: %s exceeds %d bytes", what, MaxKeySize)
	}
	return nil
}

func validateValue(value string) error {
	if len(value) > MaxValueSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrValueTooLarge, len(value), MaxValueSize)
	}
	return nil
}

func validate(contract string, keys ...string) error {
	if err := ValidateContract(contract); err != nil {
		return err
	}
	for _, k := range keys {
		if err := validateKey("key", k); err != nil {
			return err
		}
	}
	return nil
}
