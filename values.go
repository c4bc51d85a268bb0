package lancar

import (
	"net/url"
	"sort"
	"strings"
)

// Pair is one name/value entry of an ordered mapping.
type Pair struct {
	Name  string
	Value string
}

// Values is an ordered name/value mapping used for headers, query parameters
// and form bodies.
type Values []Pair

// ValuesMarshaler is implemented by record types that can describe themselves
// as an ordered mapping.
type ValuesMarshaler interface {
	MarshalValues() (Values, error)
}

// ValuesFromMap converts m into Values sorted by name.
func ValuesFromMap(m map[string]string) Values {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	values := make(Values, 0, len(m))
	for _, name := range names {
		values = append(values, Pair{Name: name, Value: m[name]})
	}
	return values
}

// ValuesFromURL converts u into Values sorted by name, keeping repeated values.
func ValuesFromURL(u url.Values) Values {
	names := make([]string, 0, len(u))
	for name := range u {
		names = append(names, name)
	}
	sort.Strings(names)
	var values Values
	for _, name := range names {
		for _, v := range u[name] {
			values = append(values, Pair{Name: name, Value: v})
		}
	}
	return values
}

// Get returns the first value for name.
func (v Values) Get(name string) (string, bool) {
	for _, p := range v {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Encode renders v as application/x-www-form-urlencoded, preserving order.
func (v Values) Encode() string {
	var b strings.Builder
	for i, p := range v {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

func (v Values) clone() Values {
	if v == nil {
		return nil
	}
	c := make(Values, len(v))
	copy(c, v)
	return c
}

// headerSet replaces any entry named name (case-insensitively) keeping the
// position of the first one; new names are appended.
func headerSet(v Values, name, value string) Values {
	out := v[:0:0]
	replaced := false
	for _, p := range v {
		if strings.EqualFold(p.Name, name) {
			if !replaced {
				out = append(out, Pair{Name: name, Value: value})
				replaced = true
			}
			continue
		}
		out = append(out, p)
	}
	if !replaced {
		out = append(out, Pair{Name: name, Value: value})
	}
	return out
}

func headerDel(v Values, name string) Values {
	out := v[:0:0]
	for _, p := range v {
		if !strings.EqualFold(p.Name, name) {
			out = append(out, p)
		}
	}
	return out
}

func headerGet(v Values, name string) (string, bool) {
	for _, p := range v {
		if strings.EqualFold(p.Name, name) {
			return p.Value, true
		}
	}
	return "", false
}
