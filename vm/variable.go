package vm

import (
	"strings"
	"unicode/utf8"
)

// MaxListLength is the default item cap for a list. Inserts beyond the cap
// are dropped.
const MaxListLength = 200000

// Variable is a named mutable cell owned by one sprite or by the global scope.
type Variable struct {
	ID      string
	Name    string
	Value   Value
	Cloud   bool
	Visible bool
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

// List is an ordered, capped sequence of values. Indices taken by the
// methods below are 0-based; block-level 1-based indexing is resolved by
// ResolveListIndex.
type List struct {
	ID      string
	Name    string
	Items   []Value
	Visible bool

	// Cap overrides MaxListLength when positive.
	Cap int
}

func (l *List) limit() int {
	if l.Cap > 0 {
		return l.Cap
	}
	return MaxListLength
}

// Len returns the number of items.
func (l *List) Len() int { return len(l.Items) }

// Append adds v at the end. It returns false when the list is full.
func (l *List) Append(v Value) bool {
	if len(l.Items) >= l.limit() {
		return false
	}
	l.Items = append(l.Items, v)
	return true
}

// Insert places v at index i (0..Len). Out-of-range or full inserts are
// dropped.
func (l *List) Insert(i int, v Value) bool {
	if i < 0 || i > len(l.Items) || len(l.Items) >= l.limit() {
		return false
	}
	l.Items = append(l.Items, Value{})
	copy(l.Items[i+1:], l.Items[i:])
	l.Items[i] = v
	return true
}

// Delete removes the item at i. Invalid indices are ignored.
func (l *List) Delete(i int) bool {
	if i < 0 || i >= len(l.Items) {
		return false
	}
	l.Items = append(l.Items[:i], l.Items[i+1:]...)
	return true
}

// Replace overwrites the item at i. Invalid indices are ignored.
func (l *List) Replace(i int, v Value) bool {
	if i < 0 || i >= len(l.Items) {
		return false
	}
	l.Items[i] = v
	return true
}

// Clear removes every item.
func (l *List) Clear() { l.Items = l.Items[:0] }

// Item returns the item at i, or the empty Value when i is invalid.
func (l *List) Item(i int) Value {
	if i < 0 || i >= len(l.Items) {
		return Value{}
	}
	return l.Items[i]
}

// IndexOf returns the 0-based index of the first item equal to v, or -1.
func (l *List) IndexOf(v Value) int {
	for i, item := range l.Items {
		if item.Equal(v) {
			return i
		}
	}
	return -1
}

// Contains reports whether an item equal to v is present.
func (l *List) Contains(v Value) bool { return l.IndexOf(v) >= 0 }

// Contents joins the items with spaces, or with nothing when every item is
// a single character.
func (l *List) Contents() string {
	single := true
	parts := make([]string, len(l.Items))
	for i, item := range l.Items {
		parts[i] = item.AsString()
		if utf8.RuneCountInString(parts[i]) != 1 {
			single = false
		}
	}
	if single {
		return strings.Join(parts, "")
	}
	return strings.Join(parts, " ")
}

// ---------------------------------------------------------------------------
// List indices
// ---------------------------------------------------------------------------

// IndexKind classifies a resolved block-level list index.
type IndexKind uint8

const (
	IndexInvalid IndexKind = iota
	IndexItem
	IndexAll
)

// ResolveListIndex turns a block-level index into a 0-based position.
//
// "last" maps to the final slot, "random" and "any" pick a slot, and "all"
// is only accepted when acceptAll is set. length is the number of
// addressable slots (insert passes Len()+1).
func ResolveListIndex(index Value, length int, acceptAll bool, pick func(n int) int) (int, IndexKind) {
	if index.IsString() {
		switch strings.ToLower(index.AsString()) {
		case "all":
			if acceptAll {
				return 0, IndexAll
			}
			return 0, IndexInvalid
		case "last":
			if length < 1 {
				return 0, IndexInvalid
			}
			return length - 1, IndexItem
		case "random", "any":
			if length < 1 {
				return 0, IndexInvalid
			}
			return pick(length), IndexItem
		}
	}
	f := index.AsFloat()
	if f != f || f < 1 || f >= float64(length)+1 {
		return 0, IndexInvalid
	}
	return int(f) - 1, IndexItem
}

// ---------------------------------------------------------------------------
// Scope
// ---------------------------------------------------------------------------

// Scope owns a set of variables and lists, keyed by id. Lookups by name
// resolve to the first entry registered under that name.
type Scope struct {
	Variables map[string]*Variable
	Lists     map[string]*List

	varOrder  []string
	listOrder []string
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{
		Variables: make(map[string]*Variable),
		Lists:     make(map[string]*List),
	}
}

// AddVariable registers v and returns it. Re-adding an id replaces the
// variable but keeps its position.
func (s *Scope) AddVariable(v *Variable) *Variable {
	if _, ok := s.Variables[v.ID]; !ok {
		s.varOrder = append(s.varOrder, v.ID)
	}
	s.Variables[v.ID] = v
	return v
}

// AddList registers l and returns it.
func (s *Scope) AddList(l *List) *List {
	if _, ok := s.Lists[l.ID]; !ok {
		s.listOrder = append(s.listOrder, l.ID)
	}
	s.Lists[l.ID] = l
	return l
}

// Variable finds a variable by id, falling back to name.
func (s *Scope) Variable(id, name string) *Variable {
	if s == nil {
		return nil
	}
	if v, ok := s.Variables[id]; ok && id != "" {
		return v
	}
	if name == "" {
		return nil
	}
	for _, vid := range s.varOrder {
		if v := s.Variables[vid]; v != nil && v.Name == name {
			return v
		}
	}
	return nil
}

// List finds a list by id, falling back to name.
func (s *Scope) List(id, name string) *List {
	if s == nil {
		return nil
	}
	if l, ok := s.Lists[id]; ok && id != "" {
		return l
	}
	if name == "" {
		return nil
	}
	for _, lid := range s.listOrder {
		if l := s.Lists[lid]; l != nil && l.Name == name {
			return l
		}
	}
	return nil
}

// clone deep-copies the scope for a sprite clone.
func (s *Scope) clone() *Scope {
	out := NewScope()
	for _, id := range s.varOrder {
		cp := *s.Variables[id]
		out.AddVariable(&cp)
	}
	for _, id := range s.listOrder {
		l := s.Lists[id]
		cp := *l
		cp.Items = append([]Value(nil), l.Items...)
		out.AddList(&cp)
	}
	return out
}
