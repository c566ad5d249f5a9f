package quotes

import (
	"sort"

	"leadrelay/internal/config"
	"leadrelay/internal/validation"
)

// Route maps a canonical quote type to its destination table.
type Route struct {
	Type  string
	Table string
}

// DefaultRoutes is the built-in quote type to table map.
var DefaultRoutes = []Route{
	{Type: "auto", Table: "auto_quotes"},
	{Type: "homeowners", Table: "homeowners_quotes"},
	{Type: "renters", Table: "renters_quotes"},
	{Type: "condo", Table: "condo_quotes"},
	{Type: "life", Table: "life_quotes"},
	{Type: "commercial", Table: "commercial_quotes"},
	{Type: "motorcycle", Table: "motorcycle_quotes"},
	{Type: "boat", Table: "boat_quotes"},
	{Type: "umbrella", Table: "umbrella_quotes"},
	{Type: "contact", Table: "contact_requests"},
}

// DefaultAliases maps alternate tags the site has used to canonical types.
var DefaultAliases = map[string]string{
	"home":              "homeowners",
	"homeowner":         "homeowners",
	"home_insurance":    "homeowners",
	"car":               "auto",
	"vehicle":           "auto",
	"auto_insurance":    "auto",
	"renter":            "renters",
	"renters_insurance": "renters",
	"business":          "commercial",
	"general":           "contact",
}

// Router resolves quote type tags to routes.
type Router struct {
	routes  map[string]Route
	aliases map[string]string
}

// NewRouter builds a router from the defaults plus configured extra routes.
// Extra routes override a default with the same type.
func NewRouter(extra []config.QuoteRouteConfig) *Router {
	r := &Router{
		routes:  make(map[string]Route, len(DefaultRoutes)+len(extra)),
		aliases: make(map[string]string, len(DefaultAliases)),
	}
	for _, route := range DefaultRoutes {
		r.routes[route.Type] = route
	}
	for alias, target := range DefaultAliases {
		r.aliases[alias] = target
	}
	for _, e := range extra {
		t := validation.NormalizeTag(e.Type)
		r.routes[t] = Route{Type: t, Table: e.Table}
		for _, a := range e.Aliases {
			r.aliases[validation.NormalizeTag(a)] = t
		}
	}
	return r
}

// Resolve returns the route for a quote type tag or alias.
func (r *Router) Resolve(tag string) (Route, error) {
	t := validation.NormalizeTag(tag)
	if t == "" {
		return Route{}, ErrQuoteTypeRequired
	}
	if route, ok := r.routes[t]; ok {
		return route, nil
	}
	if target, ok := r.aliases[t]; ok {
		if route, ok := r.routes[target]; ok {
			return route, nil
		}
	}
	return Route{}, ErrUnsupportedQuoteType
}

// Types returns the canonical quote types in sorted order.
func (r *Router) Types() []string {
	types := make([]string, 0, len(r.routes))
	for t := range r.routes {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Tables returns every distinct destination table in sorted order.
func (r *Router) Tables() []string {
	seen := make(map[string]bool, len(r.routes))
	tables := make([]string, 0, len(r.routes))
	for _, route := range r.routes {
		if !seen[route.Table] {
			seen[route.Table] = true
			tables = append(tables, route.Table)
		}
	}
	sort.Strings(tables)
	return tables
}
