package rt

type marker struct{ name string }

func (m marker) String() string { return m.name }

var (
	// NoResult is returned by methods that complete without producing a value.
	NoResult any = marker{name: "<no result>"}
	// Continue is returned by scoped blocks that fall through to the rest of the method.
	Continue any = marker{name: "<continue>"}
)

// IsNoResult reports whether v is the NoResult sentinel.
func IsNoResult(v any) bool {
	return v == NoResult
}
