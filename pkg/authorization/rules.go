package authorization

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/secgate/secgate/pkg/apperrors"
	"github.com/secgate/secgate/pkg/config"
	"github.com/secgate/secgate/pkg/utils"
)

// Rule is an access rule with its intercept url patterns compiled for
// matching. Patterns are ant-style: '*' matches within a path segment,
// '**' crosses segment boundaries.
type Rule struct {
	patterns     []glob.Glob
	interceptURL []string
	forbidden    bool
	anonymous    bool
	allowedRoles []string
}

// String renders the rule's patterns, used in logs on denials.
func (r *Rule) String() string {
	return strings.Join(r.interceptURL, ",")
}

// Matches checks the request path against the rule's patterns.
func (r *Rule) Matches(path string) bool {
	for _, pattern := range r.patterns {
		if pattern.Match(path) {
			return true
		}
	}
	return false
}

// CompileRules compiles a configured rule list. A pattern that fails to
// compile is a configuration error and must prevent startup.
func CompileRules(rules []*config.AccessRule) ([]*Rule, error) {
	compiled := make([]*Rule, 0, len(rules))
	for _, rule := range rules {
		patterns := make([]glob.Glob, 0, len(rule.InterceptURL))
		for _, raw := range rule.InterceptURL {
			pattern, err := glob.Compile(raw, '/')
			if err != nil {
				return nil, errors.Join(
					fmt.Errorf("%w: %s", apperrors.ErrInvalidURLPattern, raw),
					err,
				)
			}
			patterns = append(patterns, pattern)
		}
		compiled = append(compiled, &Rule{
			patterns:     patterns,
			interceptURL: rule.InterceptURL,
			forbidden:    rule.Forbidden,
			anonymous:    rule.Anonymous,
			allowedRoles: rule.AllowedRoles,
		})
	}
	return compiled, nil
}

// Decide evaluates the resolved rules for a route against a request path
// and the authenticated user's roles. Rules are evaluated in declaration
// order and the first applicable rule decides; when nothing matches the
// request is denied, an unconfigured path is not an open path.
func Decide(rules []*Rule, path string, roles []string, authenticated bool) AuthzDecision {
	for _, rule := range rules {
		if !rule.Matches(path) {
			continue
		}

		switch {
		case rule.forbidden:
			return DeniedAuthz
		case rule.anonymous:
			return AllowedAuthz
		case len(rule.allowedRoles) > 0:
			if utils.HasRole(rule.allowedRoles, roles) {
				return AllowedAuthz
			}
			return DeniedAuthz
		default:
			if authenticated {
				return AllowedAuthz
			}
			return DeniedAuthz
		}
	}

	return DeniedAuthz
}
