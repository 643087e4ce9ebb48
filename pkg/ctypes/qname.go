package ctypes

import "strings"

// QName is a namespace-qualified name such as N1::N2::Directions.
type QName struct {
	Path []string
	Name string
}

// ParseQName splits "A::B::C". A leading "::" is dropped.
func ParseQName(s string) QName {
	s = strings.TrimPrefix(strings.TrimSpace(s), "::")
	parts := strings.Split(s, "::")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return QName{Path: parts[:len(parts)-1], Name: parts[len(parts)-1]}
}

// Qualify returns name placed inside scope.
func Qualify(scope []string, name string) QName {
	return QName{Path: append([]string(nil), scope...), Name: name}
}

func (q QName) String() string {
	if len(q.Path) == 0 {
		return q.Name
	}
	return strings.Join(q.Path, "::") + "::" + q.Name
}

// Key is the map key for the name; it equals String.
func (q QName) Key() string { return q.String() }

// Segments returns Path followed by Name.
func (q QName) Segments() []string {
	return append(append([]string(nil), q.Path...), q.Name)
}

// Scope returns the scope that q itself opens, used for members declared inside it.
func (q QName) Scope() []string {
	return q.Segments()
}

// Equal compares two names segment by segment.
func (q QName) Equal(o QName) bool {
	return q.Key() == o.Key()
}

// IsQualified reports whether the name has a namespace path.
func (q QName) IsQualified() bool { return len(q.Path) > 0 }

// GoName joins the segments with '_': N1::N2::Directions is N1_N2_Directions.
func (q QName) GoName() string {
	return strings.Join(q.Segments(), "_")
}

// CamelName is the CamelCase form of GoName used for function wrappers:
// calc::add_ints is CalcAddInts.
func (q QName) CamelName() string {
	var b strings.Builder
	for _, part := range strings.FieldsFunc(q.GoName(), func(r rune) bool { return r == '_' }) {
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}
