package constant

import (
	"time"
)

type contextKey int8

const (
	Prog        = "secgate"
	Author      = "secgate"
	Email       = ""
	Description = "is an authenticating reverse-proxy gateway injecting verified identity headers"

	AuthorizationHeader = "Authorization"
	EnvPrefix           = "GATEWAY_"
	VersionHeader       = "X-Gateway-Version"

	HealthURL  = "/health"
	LoginURL   = "/login"
	LogoutURL  = "/logout"
	MetricsURL = "/metrics"
	WhoamiURL  = "/whoami"

	// DuplicateAccountError is the login page error marker used when two
	// backing accounts share an email address.
	DuplicateAccountError = "duplicate_account"

	// SecHeaderPrefix guards the trusted header namespace: everything
	// below it is stripped from inbound requests and owned by the gateway.
	SecHeaderPrefix = "sec-"

	HeaderSecProxy            = "sec-proxy"
	HeaderSecUserID           = "sec-userid"
	HeaderSecUsername         = "sec-username"
	HeaderSecRoles            = "sec-roles"
	HeaderSecOrg              = "sec-org"
	HeaderSecOrgID            = "sec-orgid"
	HeaderSecOrgName          = "sec-orgname"
	HeaderSecOrgLastUpdated   = "sec-org-lastupdated"
	HeaderSecEmail            = "sec-email"
	HeaderSecFirstName        = "sec-firstname"
	HeaderSecLastName         = "sec-lastname"
	HeaderSecTel              = "sec-tel"
	HeaderSecAddress          = "sec-address"
	HeaderSecTitle            = "sec-title"
	HeaderSecNotes            = "sec-notes"
	HeaderSecLastUpdated      = "sec-lastupdated"
	HeaderSecLdapRemaining    = "sec-ldap-remaining-days"
	HeaderSecExternalAuth     = "sec-external-authentication"
	HeaderSecUserJSON         = "sec-user"
	HeaderSecOrganizationJSON = "sec-organization"

	// RolePrefix is the canonical prefix on role names; comparisons accept
	// names with or without it.
	RolePrefix = "ROLE_"

	SessionCookie = "sg-session"

	// Pre-authentication headers trusted from the fronting proxy.
	PreauthUsernameHeader  = "preauth-username"
	PreauthEmailHeader     = "preauth-email"
	PreauthFirstNameHeader = "preauth-firstname"
	PreauthLastNameHeader  = "preauth-lastname"
	PreauthOrgHeader       = "preauth-org"
	PreauthProviderHeader  = "preauth-provider"

	UnsecureScheme = "http"
	SecureScheme   = "https"

	_ contextKey = iota
	ContextScopeName
	HeaderXForwardedFor   = "X-Forwarded-For"
	HeaderXForwardedHost  = "X-Forwarded-Host"
	HeaderXForwardedProto = "X-Forwarded-Proto"
	HeaderXRealIP         = "X-Real-Ip"

	// SameSite cookie config options
	SameSiteStrict = "Strict"
	SameSiteLax    = "Lax"
	SameSiteNone   = "None"

	AllPath = "/**"

	// RoleMappingCacheSize bounds the role-expansion memoization cache.
	RoleMappingCacheSize = 1000

	InvalidCookieDuration = -10 * time.Hour
)
