package accounts

// Opt holds a value that may be unknown.
type Opt[T any] struct {
	val T
	ok  bool
}

// Some returns a known value.
func Some[T any](v T) Opt[T] { return Opt[T]{val: v, ok: true} }

// None returns an unknown value.
func None[T any]() Opt[T] { return Opt[T]{} }

// Get returns the value and whether it is known.
func (o Opt[T]) Get() (T, bool) { return o.val, o.ok }

// Known reports whether the value is set.
func (o Opt[T]) Known() bool { return o.ok }
