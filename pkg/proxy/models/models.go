package models

import (
	"github.com/secgate/secgate/pkg/authorization"
	"github.com/secgate/secgate/pkg/config"
	"github.com/secgate/secgate/pkg/identity"
	"go.uber.org/zap"
)

// TargetConfig is the effective security policy for one matched route:
// the merged header mappings plus the access rules in force.
type TargetConfig struct {
	Headers config.HeaderMappings
	Rules   []*authorization.Rule
}

// RequestScope is a request level context scope passed between middleware.
// It is owned by exactly one in-flight request and never shared.
type RequestScope struct {
	// AccessDenied indicates the request should not be proxied because of
	// authentication or authorization failure
	AccessDenied bool
	// NoProxy indicates that request should not be proxied because it is
	// a gateway endpoint
	NoProxy bool
	// Identity is the resolved canonical user of the request, nil for
	// anonymous requests
	Identity *identity.ResolvedUser
	// RouteTarget is the target url of the matched route
	RouteTarget string
	// TargetConfigs caches resolved target configs per route target so
	// repeated lookups within one request do not recompute
	TargetConfigs map[string]*TargetConfig
	// The parsed (unescaped) value of the request path
	Path string
	// The exact path received in the request, if different than Path
	RawPath string
	Logger  *zap.Logger
}

// Authenticated reports whether the scope carries a resolved identity.
func (r *RequestScope) Authenticated() bool {
	return r.Identity != nil
}
