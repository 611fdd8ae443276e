// Package id generates identifiers for collab records.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a random UUIDv4 encoded as 26 lowercase base32 characters.
func NewID() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(value[:])), nil
}

// NewSortableID returns a KSUID whose lexical order follows creation time at
// second granularity.
func NewSortableID() (string, error) {
	value, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate sortable id: %w", err)
	}
	return value.String(), nil
}
