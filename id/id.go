// Package id defines prefixed identity types for volshift entities.
//
// An ID is a prefix and a UUIDv7 rendered as "prefix_<32 hex digits>".
// UUIDv7 embeds a millisecond timestamp in its leading bits, so IDs with
// the same prefix sort by creation time.
package id

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Prefix identifies the entity type encoded in an ID.
type Prefix string

// Prefix constants for all volshift entity types.
const (
	PrefixDLQ    Prefix = "dlq"
	PrefixEvent  Prefix = "evt"
	PrefixWorker Prefix = "wkr"
)

// ID is the primary identifier type for volshift entities.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	prefix Prefix
	inner  uuid.UUID
	valid  bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is invalid or the random source fails.
func New(prefix Prefix) ID {
	if !validPrefix(prefix) {
		panic(fmt.Sprintf("id: invalid prefix %q", prefix))
	}
	u, err := uuid.NewV7()
	if err != nil {
		panic(fmt.Sprintf("id: generate %q: %v", prefix, err))
	}
	return ID{prefix: prefix, inner: u, valid: true}
}

// Parse parses a string such as "dlq_0190a6f0c3b87c2e9d1f5a3b4c5d6e7f".
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	i := strings.LastIndexByte(s, '_')
	if i <= 0 {
		return Nil, fmt.Errorf("id: parse %q: missing prefix", s)
	}
	prefix, suffix := Prefix(s[:i]), s[i+1:]
	if !validPrefix(prefix) {
		return Nil, fmt.Errorf("id: parse %q: invalid prefix", s)
	}
	if len(suffix) != 32 {
		return Nil, fmt.Errorf("id: parse %q: suffix must be 32 hex digits", s)
	}
	u, err := uuid.Parse(suffix)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{prefix: prefix, inner: u, valid: true}, nil
}

// ParseWithPrefix parses a string and validates that its prefix matches
// the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}
	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}
	return parsed
}

func validPrefix(p Prefix) bool {
	if p == "" || len(p) > 63 {
		return false
	}
	for _, r := range p {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// DLQID identifies a dead letter entry (prefix: "dlq").
type DLQID = ID

// EventID identifies an intake event (prefix: "evt").
type EventID = ID

// WorkerID identifies a worker pool (prefix: "wkr").
type WorkerID = ID

// NewDLQID generates a new unique DLQ ID.
func NewDLQID() ID { return New(PrefixDLQ) }

// NewEventID generates a new unique event ID.
func NewEventID() ID { return New(PrefixEvent) }

// NewWorkerID generates a new unique worker ID.
func NewWorkerID() ID { return New(PrefixWorker) }

// ParseDLQID parses a string and validates the "dlq" prefix.
func ParseDLQID(s string) (ID, error) { return ParseWithPrefix(s, PrefixDLQ) }

// ParseEventID parses a string and validates the "evt" prefix.
func ParseEventID(s string) (ID, error) { return ParseWithPrefix(s, PrefixEvent) }

// ParseWorkerID parses a string and validates the "wkr" prefix.
func ParseWorkerID(s string) (ID, error) { return ParseWithPrefix(s, PrefixWorker) }

// String returns "prefix_suffix", or an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return string(i.prefix) + "_" + hex.EncodeToString(i.inner[:])
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return i.prefix
}

// Short returns the first n characters of the suffix. It is used where an
// ID has to fit a human-facing label.
func (i ID) Short(n int) string {
	if !i.valid {
		return ""
	}
	s := hex.EncodeToString(i.inner[:])
	if n < len(s) {
		return s[:n]
	}
	return s
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer for database storage.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}
	return i.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
