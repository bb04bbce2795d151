// Package confstore owns a point's configuration key/value store. Keys are
// fixed at construction time: ChangeConfiguration can update existing
// entries but never create new ones.
package confstore

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

var (
	ErrUnknownKey   = errors.New("confstore: unknown key")
	ErrReadonlyKey  = errors.New("confstore: readonly key")
	ErrInvalidValue = errors.New("confstore: invalid value")
)

// Kind is the declared type of an entry's value.
type Kind int

const (
	KindString Kind = iota
	KindInt
)

// Entry is one configuration key with its declared type and mutability.
type Entry struct {
	Key      string
	Kind     Kind
	Readonly bool

	str string
	num int
}

// StringEntry declares a string-typed entry.
func StringEntry(key, value string, readonly bool) Entry {
	return Entry{Key: key, Kind: KindString, Readonly: readonly, str: value}
}

// IntEntry declares an integer-typed entry.
func IntEntry(key string, value int, readonly bool) Entry {
	return Entry{Key: key, Kind: KindInt, Readonly: readonly, num: value}
}

// Value returns the entry's value in its declared type.
func (e Entry) Value() any {
	if e.Kind == KindInt {
		return e.num
	}
	return e.str
}

// Store is a fixed-key configuration mapping with synchronized access: it is
// mutated by inbound ChangeConfiguration handling and read concurrently by
// GetConfiguration and the liveness scheduler's interval lookup.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func New(entries ...Entry) *Store {
	s := &Store{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		key := strings.TrimSpace(e.Key)
		if key == "" {
			continue
		}
		e.Key = key
		s.entries[key] = e
	}
	return s
}

// Get returns the entry for key.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

// Int returns the integer value of key when the entry is integer-typed.
func (s *Store) Int(key string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.Kind != KindInt {
		return 0, false
	}
	return e.num, true
}

// Keys returns all keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Set coerces value to the entry's declared type and updates it in place.
// Unknown keys and readonly entries are rejected; no new keys are created.
func (s *Store) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if e.Readonly {
		return fmt.Errorf("%w: %q", ErrReadonlyKey, key)
	}
	switch e.Kind {
	case KindInt:
		n, err := coerceInt(value)
		if err != nil {
			return fmt.Errorf("%w: key %q: %v", ErrInvalidValue, key, err)
		}
		e.num = n
	default:
		str, err := coerceString(value)
		if err != nil {
			return fmt.Errorf("%w: key %q: %v", ErrInvalidValue, key, err)
		}
		e.str = str
	}
	s.entries[key] = e
	return nil
}

func coerceInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		n := int(v)
		if float64(n) != v {
			return 0, fmt.Errorf("not an integer: %v", v)
		}
		return n, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", value)
	}
}

func coerceString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("unsupported type %T", value)
	}
}
