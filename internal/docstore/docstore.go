// Package docstore stores customer documents and dashboard images outside the
// snapshot. The core keeps only the opaque reference a Store returns.
package docstore

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a reference points at nothing.
var ErrNotFound = errors.New("document not found")

// ErrInvalidReference is returned for references a store could not have issued.
var ErrInvalidReference = errors.New("invalid document reference")

// Store is the document storage contract.
type Store interface {
	// Put stores data and returns a new reference. name is a hint used to keep
	// the uploaded file name recognizable.
	Put(ctx context.Context, name string, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
	Exists(ctx context.Context, ref string) (bool, error)
}

// NewReference builds a unique reference from a file name hint:
// "<uuid>_<base name>".
func NewReference(name string) string {
	return uuid.NewString() + "_" + cleanName(name)
}

func cleanName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "document"
	}
	if len(out) > 100 {
		out = out[len(out)-100:]
	}
	return out
}

// validReference rejects anything NewReference could not have produced.
func validReference(ref string) error {
	if len(ref) < 38 || ref[36] != '_' {
		return ErrInvalidReference
	}
	if _, err := uuid.Parse(ref[:36]); err != nil {
		return ErrInvalidReference
	}
	if strings.ContainsAny(ref, `/\`) || strings.Contains(ref, "..") {
		return ErrInvalidReference
	}
	return nil
}
