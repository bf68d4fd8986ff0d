// Package template prepares multi-service blueprints for deployment: order,
// final names and cross-service variable references.
package template

import (
	"regexp"
	"strings"

	"github.com/edvin/paas/internal/model"
)

var (
	// {{ service.KEY }}
	plainRef = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_-]+)\.([A-Za-z0-9_]+)\s*\}\}`)
	// ${{ scheme:service.KEY }}
	schemeRef = regexp.MustCompile(`\$\{\{\s*([a-z]+):([A-Za-z0-9_-]+)\.([A-Za-z0-9_]+)\s*\}\}`)
)

// Reference is one parsed reference expression.
type Reference struct {
	Scheme  string
	Service string
	Key     string
}

// Lookup returns the value of key on the named service.
type Lookup func(service, key string) (string, bool)

type match struct {
	start, end int
	svcStart   int
	svcEnd     int
	ref        Reference
}

// scan finds every reference in s in order of appearance.
func scan(s string) []match {
	var out []match
	taken := make([]bool, len(s)+1)
	for _, idx := range schemeRef.FindAllStringSubmatchIndex(s, -1) {
		out = append(out, match{
			start: idx[0], end: idx[1], svcStart: idx[4], svcEnd: idx[5],
			ref: Reference{Scheme: s[idx[2]:idx[3]], Service: s[idx[4]:idx[5]], Key: s[idx[6]:idx[7]]},
		})
		for i := idx[0]; i < idx[1]; i++ {
			taken[i] = true
		}
	}
	for _, idx := range plainRef.FindAllStringSubmatchIndex(s, -1) {
		if taken[idx[0]] {
			continue
		}
		out = append(out, match{
			start: idx[0], end: idx[1], svcStart: idx[2], svcEnd: idx[3],
			ref: Reference{Service: s[idx[2]:idx[3]], Key: s[idx[4]:idx[5]]},
		})
	}
	sortMatches(out)
	return out
}

func sortMatches(m []match) {
	for i := 1; i < len(m); i++ {
		for j := i; j > 0 && m[j].start < m[j-1].start; j-- {
			m[j], m[j-1] = m[j-1], m[j]
		}
	}
}

// References lists the references in value.
func References(value string) []Reference {
	matches := scan(value)
	out := make([]Reference, len(matches))
	for i, m := range matches {
		out[i] = m.ref
	}
	return out
}

// RewriteReferences renames the service part of every reference found in
// mapping. Other references and all surrounding text are kept verbatim.
func RewriteReferences(value string, mapping map[string]string) string {
	matches := scan(value)
	if len(matches) == 0 {
		return value
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		final, ok := mapping[m.ref.Service]
		if !ok {
			continue
		}
		b.WriteString(value[last:m.svcStart])
		b.WriteString(final)
		last = m.svcEnd
	}
	b.WriteString(value[last:])
	return b.String()
}

// ResolveReferences replaces every reference lookup can answer with its
// value. Unresolvable references stay as written.
func ResolveReferences(value string, lookup Lookup) string {
	matches := scan(value)
	if len(matches) == 0 {
		return value
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		v, ok := lookup(m.ref.Service, m.ref.Key)
		if !ok {
			continue
		}
		b.WriteString(value[last:m.start])
		b.WriteString(v)
		last = m.end
	}
	b.WriteString(value[last:])
	return b.String()
}

// RewriteVariables applies RewriteReferences to every value.
func RewriteVariables(vars []model.Variable, mapping map[string]string) []model.Variable {
	if vars == nil {
		return nil
	}
	out := make([]model.Variable, len(vars))
	for i, v := range vars {
		out[i] = model.Variable{Key: v.Key, Value: RewriteReferences(v.Value, mapping)}
	}
	return out
}

// ResolveVariables applies ResolveReferences to every value.
func ResolveVariables(vars []model.Variable, lookup Lookup) []model.Variable {
	if vars == nil {
		return nil
	}
	out := make([]model.Variable, len(vars))
	for i, v := range vars {
		out[i] = model.Variable{Key: v.Key, Value: ResolveReferences(v.Value, lookup)}
	}
	return out
}

// ServiceLookup resolves references against a set of services by name.
func ServiceLookup(services []model.Service) Lookup {
	byName := make(map[string]*model.Service, len(services))
	for i := range services {
		byName[services[i].Name] = &services[i]
	}
	return func(service, key string) (string, bool) {
		s, ok := byName[service]
		if !ok {
			return "", false
		}
		return s.ReferenceValue(key)
	}
}
