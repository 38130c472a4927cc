// Package routes holds the registry of administration routes and the free-text
// aliases and verb shorthands that resolve to them.
package routes

import (
	"fmt"
	"strings"
)

// Route is a canonical administration route
type Route string

const (
	Oral          Route = "oral"
	Insufflation  Route = "insufflation"
	Inhalation    Route = "inhalation"
	Intravenous   Route = "intravenous"
	Intramuscular Route = "intramuscular"
	Subcutaneous  Route = "subcutaneous"
	Rectal        Route = "rectal"
	Transdermal   Route = "transdermal"
	Sublingual    Route = "sublingual"
	Buccal        Route = "buccal"
	Other         Route = "other"
)

// VerbPrefix marks a token as a verb shorthand ("@ate")
const VerbPrefix = "@"

// canonicalRoutes is the closed set, in declaration order
var canonicalRoutes = []Route{
	Oral, Insufflation, Inhalation, Intravenous, Intramuscular,
	Subcutaneous, Rectal, Transdermal, Sublingual, Buccal, Other,
}

// Method declares the tokens accepted for one canonical route
type Method struct {
	Route   Route
	Aliases []string
}

// AdministrationMethods is the alias table the default registry is built from.
var AdministrationMethods = []Method{
	{Oral, []string{"oral", "swallowed", "chewed", "@ate"}},
	{Insufflation, []string{"insufflation", "snorted", "intranasal", "nasal", "@sniffed"}},
	{Inhalation, []string{"inhalation", "inhaled", "smoked", "vaporized"}},
	{Intravenous, []string{"intravenous-injection", "intra-arterial", "injected", "@injected"}},
	{Intramuscular, []string{"intramuscular-injection"}},
	{Subcutaneous, []string{"subcutaneous-injection", "intradermal"}},
	{Rectal, []string{"rectal", "intrarectal", "plugged", "@boofed"}},
	{Transdermal, []string{"transdermal", "dermal", "applied", "topical"}},
	{Sublingual, []string{"sublingual", "dissolved"}},
	{Buccal, []string{"buccal"}},
	{Other, []string{
		"intravaginal", "intrathecal", "intraperitoneal", "intraosseous",
		"intravitreal", "intrapleural", "intrapericardial", "intravesical",
		"intralesional", "ocular", "otic", "epidural", "absorbed",
		"administered",
	}},
}

// Registry is an immutable bidirectional mapping between canonical routes and
// their aliases. It is safe for concurrent use.
type Registry struct {
	byAlias map[string]Route
	byRoute map[Route][]string
	order   []Route
}

// Default is built once from AdministrationMethods
var Default = MustNew(AdministrationMethods)

// New builds a registry. Every alias must belong to exactly one route and
// every route must be a member of the canonical set.
func New(methods []Method) (*Registry, error) {
	r := &Registry{
		byAlias: make(map[string]Route),
		byRoute: make(map[Route][]string),
	}

	for _, m := range methods {
		if !IsRoute(string(m.Route)) {
			return nil, fmt.Errorf("unknown canonical route %q", m.Route)
		}
		if _, seen := r.byRoute[m.Route]; seen {
			return nil, fmt.Errorf("route %q declared more than once", m.Route)
		}

		aliases := make([]string, 0, len(m.Aliases))
		for _, alias := range m.Aliases {
			if strings.TrimSpace(alias) == "" {
				return nil, fmt.Errorf("empty alias for route %q", m.Route)
			}
			if owner, taken := r.byAlias[alias]; taken {
				return nil, fmt.Errorf("alias %q claimed by both %q and %q", alias, owner, m.Route)
			}
			r.byAlias[alias] = m.Route
			aliases = append(aliases, alias)
		}

		r.byRoute[m.Route] = aliases
		r.order = append(r.order, m.Route)
	}

	return r, nil
}

// MustNew is like New but panics on an invalid table
func MustNew(methods []Method) *Registry {
	r, err := New(methods)
	if err != nil {
		panic(fmt.Sprintf("routes: invalid administration table: %v", err))
	}
	return r
}

// Resolve returns the canonical route owning token. Lookup is case-sensitive.
func (r *Registry) Resolve(token string) (Route, bool) {
	route, ok := r.byAlias[token]
	return route, ok
}

// Routes lists the registered canonical routes in declaration order
func (r *Registry) Routes() []Route {
	out := make([]Route, len(r.order))
	copy(out, r.order)
	return out
}

// Aliases returns a copy of the tokens accepted for route
func (r *Registry) Aliases(route Route) []string {
	aliases := r.byRoute[route]
	out := make([]string, len(aliases))
	copy(out, aliases)
	return out
}

// IsRoute reports whether name is one of the canonical routes
func IsRoute(name string) bool {
	for _, route := range canonicalRoutes {
		if string(route) == name {
			return true
		}
	}
	return false
}

// IsVerb reports whether token uses the verb shorthand marker
func IsVerb(token string) bool {
	return strings.HasPrefix(token, VerbPrefix)
}
