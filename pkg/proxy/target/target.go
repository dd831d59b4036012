package target

import (
	"sort"
	"strings"

	"github.com/secgate/secgate/pkg/authorization"
	"github.com/secgate/secgate/pkg/config"
	"github.com/secgate/secgate/pkg/proxy/models"
)

// Router is the routing table: request paths are matched against the
// configured route path prefixes, longest prefix wins.
type Router struct {
	routes []*config.Route
}

func NewRouter(routes []*config.Route) *Router {
	ordered := make([]*config.Route, len(routes))
	copy(ordered, routes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Path) > len(ordered[j].Path)
	})
	return &Router{routes: ordered}
}

// Match returns the route owning the path, or nil when no route matches.
func (r *Router) Match(path string) *config.Route {
	for _, route := range r.routes {
		if route.Path == path || strings.HasPrefix(path, ensureSlash(route.Path)) {
			return route
		}
	}
	return nil
}

func ensureSlash(prefix string) string {
	if strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}

type serviceOverride struct {
	headers *config.HeaderMappings
	rules   []*authorization.Rule
}

// ConfigResolver computes the effective security policy for a matched
// route by merging the global defaults with the per-service overrides.
// Services are correlated to routes by target url equality; this mirrors
// the configuration contract and is known technical debt, a service whose
// target does not textually equal a route target is invisible here (the
// configuration validation rejects that upfront).
type ConfigResolver struct {
	defaultHeaders config.HeaderMappings
	globalRules    []*authorization.Rule
	services       map[string]serviceOverride
}

// NewConfigResolver compiles all configured rule sets once. A pattern
// failing to compile surfaces here and prevents startup.
func NewConfigResolver(cfg *config.Config) (*ConfigResolver, error) {
	globalRules, err := authorization.CompileRules(cfg.GlobalAccessRules)
	if err != nil {
		return nil, err
	}

	resolver := &ConfigResolver{
		defaultHeaders: cfg.DefaultHeaders,
		globalRules:    globalRules,
		services:       make(map[string]serviceOverride, len(cfg.Services)),
	}

	for _, service := range cfg.Services {
		rules, err := authorization.CompileRules(service.AccessRules)
		if err != nil {
			return nil, err
		}
		resolver.services[service.Target] = serviceOverride{
			headers: service.Headers,
			rules:   rules,
		}
	}

	return resolver, nil
}

// Resolve computes the target config for a route, caching the result on
// the request scope so the authorization and header stages share one
// computation per request.
func (r *ConfigResolver) Resolve(scope *models.RequestScope, routeTarget string) *models.TargetConfig {
	if scope.TargetConfigs == nil {
		scope.TargetConfigs = make(map[string]*models.TargetConfig)
	}
	if cached, found := scope.TargetConfigs[routeTarget]; found {
		return cached
	}

	resolved := &models.TargetConfig{
		Headers: r.defaultHeaders,
		Rules:   r.globalRules,
	}

	if service, found := r.services[routeTarget]; found {
		resolved.Headers = r.defaultHeaders.Merge(service.headers)
		// a non-empty service rule list replaces the global rules outright
		if len(service.rules) > 0 {
			resolved.Rules = service.rules
		}
	}

	scope.TargetConfigs[routeTarget] = resolved
	return resolved
}
