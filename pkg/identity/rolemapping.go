package identity

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/secgate/secgate/pkg/apperrors"
	"github.com/secgate/secgate/pkg/constant"
)

type roleMapping struct {
	pattern    *regexp.Regexp
	extraRoles []string
}

// RoleMapper expands a held role into extra roles using configured
// glob-like patterns ('*' matches zero or more characters, everything
// else, including '.', is literal). Patterns are compiled once at
// construction; results are memoized per role string because the same
// role names recur on every request. The cache is bounded and safe for
// concurrent use, the mappings themselves are immutable after startup.
type RoleMapper struct {
	mappings []roleMapping
	cache    *lru.Cache[string, []string]
}

// NewRoleMapper compiles the configured pattern map. A pattern that does
// not compile is a configuration error and prevents startup.
func NewRoleMapper(mappings map[string][]string) (*RoleMapper, error) {
	compiled := make([]roleMapping, 0, len(mappings))
	for pattern, extraRoles := range mappings {
		expr, err := compileRolePattern(pattern)
		if err != nil {
			return nil, errors.Join(
				fmt.Errorf("%w: %s", apperrors.ErrInvalidRolePattern, pattern),
				err,
			)
		}
		compiled = append(compiled, roleMapping{pattern: expr, extraRoles: extraRoles})
	}

	cache, err := lru.New[string, []string](constant.RoleMappingCacheSize)
	if err != nil {
		return nil, err
	}

	return &RoleMapper{mappings: compiled, cache: cache}, nil
}

// compileRolePattern translates the glob-like pattern to an anchored
// regular expression: '*' becomes '.*', every other character is literal.
func compileRolePattern(pattern string) (*regexp.Regexp, error) {
	quoted := regexp.QuoteMeta(pattern)
	expr := strings.ReplaceAll(quoted, `\*`, ".*")
	return regexp.Compile("^" + expr + "$")
}

// ComputeExtraRoles returns the union of extra roles of every pattern
// fully matching the given role, sorted for stable output, or an empty
// slice when no pattern matches.
func (r *RoleMapper) ComputeExtraRoles(role string) []string {
	if cached, ok := r.cache.Get(role); ok {
		return cached
	}

	union := make(map[string]bool)
	for _, mapping := range r.mappings {
		if !mapping.pattern.MatchString(role) {
			continue
		}
		for _, extra := range mapping.extraRoles {
			union[extra] = true
		}
	}

	extras := make([]string, 0, len(union))
	for extra := range union {
		extras = append(extras, extra)
	}
	sort.Strings(extras)

	r.cache.Add(role, extras)
	return extras
}

// ExtraRoles returns the union of extra roles over all held roles.
func (r *RoleMapper) ExtraRoles(roles []string) []string {
	union := make(map[string]bool)
	for _, role := range roles {
		for _, extra := range r.ComputeExtraRoles(role) {
			union[extra] = true
		}
	}

	extras := make([]string, 0, len(union))
	for extra := range union {
		extras = append(extras, extra)
	}
	sort.Strings(extras)
	return extras
}
