package apperrors

import (
	"errors"
)

var (
	ErrAssertionFailed = errors.New("assertion failed")

	// identity resolution errors.

	ErrDuplicateAccount = errors.New("several accounts share the same email address, " +
		"cannot resolve an unambiguous identity")
	ErrAccountProvisioning = errors.New("failed to auto-provision account in directory")

	// directory errors.

	ErrUnknownDirectory = errors.New("directory name has no registered lookup " +
		"(hint: every mapper and service must reference a directory from the directories list)")
	ErrNoDirectories      = errors.New("at least one identity directory must be configured")
	ErrStaticUserEntry    = errors.New("static directory user entry has no username")
	ErrDirectoryOrgLookup = errors.New("directory has users lookup but no organizations lookup")

	// authorization errors.

	ErrInvalidURLPattern = errors.New("intercept url pattern failed to compile")

	// upstream errors.

	ErrUpstreamUnreachable = errors.New("upstream service is unreachable")

	// config errors.

	ErrMissingListenInterface = errors.New("you have not specified the listening interface")
	ErrNoRoutes               = errors.New("you have not configured any routes to proxy to")
	ErrInvalidRouteTarget     = errors.New("route target must be a valid absolute http(s) url")
	ErrInvalidRoutePath       = errors.New("route path must begin with /")
	ErrInvalidRolePattern     = errors.New("roles mapping pattern failed to compile")
	ErrServiceWithoutTarget   = errors.New("service config has no target url")
	ErrServiceTargetNoRoute   = errors.New("service target url does not equal any configured route target " +
		"(hint: target resolution matches services to routes by url equality)")
	ErrAccessRuleNoPattern      = errors.New("access rule has no intercept url patterns")
	ErrAccessRuleForbiddenRoles = errors.New("access rule cannot be forbidden and carry allowed roles")
	ErrInvalidSameSiteCookie    = errors.New("same-site-cookie must be one of Strict|Lax|None")
	ErrMissingTLSCertificate    = errors.New("you have not provided a certificate file")
	ErrMissingTLSPrivateKey     = errors.New("you have not provided a private key")
	ErrAdminListenerScheme      = errors.New("scheme for admin listener must be one of [http, https]")

	// server errors.

	ErrStartMainHTTP  = errors.New("failed to start main http service")
	ErrStartAdminHTTP = errors.New("failed to start admin service")
)
