package params

import "strconv"

// Kind is the variant held by a Value.
type Kind int

// Value kinds.
const (
	KindString Kind = iota + 1
	KindInt
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	default:
		return "unknown"
	}
}

// Value is either a string or an integer.
type Value struct {
	kind Kind
	str  string
	num  int
}

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int returns an integer Value.
func Int(n int) Value { return Value{kind: KindInt, num: n} }

// Kind reports the variant of v.
func (v Value) Kind() Kind { return v.kind }

// Int returns the integer held by v and whether v is an integer.
func (v Value) Int() (int, bool) { return v.num, v.kind == KindInt }

// String renders v the way it appears in a profile.
func (v Value) String() string {
	if v.kind == KindInt {
		return strconv.Itoa(v.num)
	}
	return v.str
}

// Parse interprets raw as a value of the given kind.
func Parse(kind Kind, raw string) (Value, error) {
	switch kind {
	case KindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Value{}, ErrTypeMismatch
		}
		return Int(n), nil
	case KindString:
		return String(raw), nil
	default:
		return Value{}, ErrTypeMismatch
	}
}
