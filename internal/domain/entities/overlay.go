package entities

// BoolResource is a named boolean resource declaration
type BoolResource struct {
	Name  string
	Value bool
}

// StringResource is a named string resource declaration
type StringResource struct {
	Name  string
	Value string
}

// IntegerResource is a named integer resource declaration
type IntegerResource struct {
	Name  string
	Value int
}

// ArrayResource is a named string-array resource declaration
type ArrayResource struct {
	Name  string
	Items []string
}

// Component declares an injected manifest component (service, receiver
// or provider) keyed by its android:name.
type Component struct {
	Name     string
	Exported bool
	// Extra attributes written verbatim on the component element
	Attrs []Attr
}

// OverlaySet is a named collection of declarative additions. Every
// collection is keyed by a unique declaration name; merging an overlay
// into a manifest or resource tree is insert-if-absent and therefore
// idempotent under repetition.
type OverlaySet struct {
	Permissions []string
	Booleans    []BoolResource
	Strings     []StringResource
	Integers    []IntegerResource
	Arrays      []ArrayResource
	Services    []Component
	Receivers   []Component
	Providers   []Component
}

// Merge returns a new set containing s plus any declarations from other
// whose names are not already present in s.
func (s OverlaySet) Merge(other OverlaySet) OverlaySet {
	out := s
	seen := make(map[string]bool, len(s.Permissions))
	for _, p := range s.Permissions {
		seen[p] = true
	}
	for _, p := range other.Permissions {
		if !seen[p] {
			out.Permissions = append(out.Permissions, p)
			seen[p] = true
		}
	}
	out.Booleans = append([]BoolResource(nil), s.Booleans...)
	names := map[string]bool{}
	for _, b := range s.Booleans {
		names[b.Name] = true
	}
	for _, b := range other.Booleans {
		if !names[b.Name] {
			out.Booleans = append(out.Booleans, b)
		}
	}
	out.Strings = mergeStrings(s.Strings, other.Strings)
	out.Integers = mergeIntegers(s.Integers, other.Integers)
	out.Arrays = mergeArrays(s.Arrays, other.Arrays)
	out.Services = mergeComponents(s.Services, other.Services)
	out.Receivers = mergeComponents(s.Receivers, other.Receivers)
	out.Providers = mergeComponents(s.Providers, other.Providers)
	return out
}

func mergeStrings(a, b []StringResource) []StringResource {
	out := append([]StringResource(nil), a...)
	names := map[string]bool{}
	for _, r := range a {
		names[r.Name] = true
	}
	for _, r := range b {
		if !names[r.Name] {
			out = append(out, r)
		}
	}
	return out
}

func mergeIntegers(a, b []IntegerResource) []IntegerResource {
	out := append([]IntegerResource(nil), a...)
	names := map[string]bool{}
	for _, r := range a {
		names[r.Name] = true
	}
	for _, r := range b {
		if !names[r.Name] {
			out = append(out, r)
		}
	}
	return out
}

func mergeArrays(a, b []ArrayResource) []ArrayResource {
	out := append([]ArrayResource(nil), a...)
	names := map[string]bool{}
	for _, r := range a {
		names[r.Name] = true
	}
	for _, r := range b {
		if !names[r.Name] {
			out = append(out, r)
		}
	}
	return out
}

func mergeComponents(a, b []Component) []Component {
	out := append([]Component(nil), a...)
	names := map[string]bool{}
	for _, c := range a {
		names[c.Name] = true
	}
	for _, c := range b {
		if !names[c.Name] {
			out = append(out, c)
		}
	}
	return out
}
