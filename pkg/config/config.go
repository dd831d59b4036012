/*
Copyright 2015 All rights reserved.
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/secgate/secgate/pkg/apperrors"
	"github.com/secgate/secgate/pkg/constant"
	"gopkg.in/yaml.v2"
)

// HeaderMappings controls which sec-* headers are emitted on the proxied
// request. Every field is tri-state: nil means "not set at this scope,
// inherit", which is distinct from an explicit false. The distinction is
// what makes the global/service merge work, so the fields are pointers.
type HeaderMappings struct {
	Proxy            *bool `json:"proxy" usage:"emit the sec-proxy marker header" yaml:"proxy"`
	UserID           *bool `json:"userid" usage:"emit the sec-userid header" yaml:"userid"`
	Username         *bool `json:"username" usage:"emit the sec-username header" yaml:"username"`
	Roles            *bool `json:"roles" usage:"emit the comma-joined sec-roles header" yaml:"roles"`
	Org              *bool `json:"org" usage:"emit the sec-org header with the organization short name" yaml:"org"`
	OrgID            *bool `json:"orgid" usage:"emit the sec-orgid header" yaml:"orgid"`
	OrgName          *bool `json:"orgname" usage:"emit the sec-orgname header" yaml:"orgname"`
	OrgLastUpdated   *bool `json:"org-lastupdated" usage:"emit the sec-org-lastupdated header" yaml:"org-lastupdated"`
	Email            *bool `json:"email" usage:"emit the sec-email header" yaml:"email"`
	FirstName        *bool `json:"firstname" usage:"emit the sec-firstname header" yaml:"firstname"`
	LastName         *bool `json:"lastname" usage:"emit the sec-lastname header" yaml:"lastname"`
	Tel              *bool `json:"tel" usage:"emit the sec-tel header" yaml:"tel"`
	Address          *bool `json:"address" usage:"emit the sec-address header" yaml:"address"`
	Title            *bool `json:"title" usage:"emit the sec-title header" yaml:"title"`
	Notes            *bool `json:"notes" usage:"emit the sec-notes header" yaml:"notes"`
	LastUpdated      *bool `json:"lastupdated" usage:"emit the sec-lastupdated header" yaml:"lastupdated"`
	LdapRemaining    *bool `json:"ldap-remaining-days" usage:"emit the sec-ldap-remaining-days password expiry header" yaml:"ldap-remaining-days"`
	ExternalAuth     *bool `json:"external-authentication" usage:"emit the sec-external-authentication header" yaml:"external-authentication"`
	JSONUser         *bool `json:"json-user" usage:"emit the full user as base64 json in sec-user" yaml:"json-user"`
	JSONOrganization *bool `json:"json-organization" usage:"emit the full organization as base64 json in sec-organization" yaml:"json-organization"`
}

// Merge computes the effective mappings for a scope: every field the
// override defines wins, every field it leaves unset inherits from the
// receiver. Neither operand is mutated.
func (h HeaderMappings) Merge(override *HeaderMappings) HeaderMappings {
	if override == nil {
		return h
	}

	merged := h
	fields := []struct {
		dst **bool
		src *bool
	}{
		{&merged.Proxy, override.Proxy},
		{&merged.UserID, override.UserID},
		{&merged.Username, override.Username},
		{&merged.Roles, override.Roles},
		{&merged.Org, override.Org},
		{&merged.OrgID, override.OrgID},
		{&merged.OrgName, override.OrgName},
		{&merged.OrgLastUpdated, override.OrgLastUpdated},
		{&merged.Email, override.Email},
		{&merged.FirstName, override.FirstName},
		{&merged.LastName, override.LastName},
		{&merged.Tel, override.Tel},
		{&merged.Address, override.Address},
		{&merged.Title, override.Title},
		{&merged.Notes, override.Notes},
		{&merged.LastUpdated, override.LastUpdated},
		{&merged.LdapRemaining, override.LdapRemaining},
		{&merged.ExternalAuth, override.ExternalAuth},
		{&merged.JSONUser, override.JSONUser},
		{&merged.JSONOrganization, override.JSONOrganization},
	}
	for _, field := range fields {
		if field.src != nil {
			*field.dst = field.src
		}
	}

	return merged
}

// Enabled resolves a tri-state flag for header emission: only an explicit
// true turns a header on, unset inherits nothing at the leaf and means off.
func Enabled(flag *bool) bool {
	return flag != nil && *flag
}

// AccessRule protects a set of url patterns. Rules are evaluated in
// declaration order and the first rule whose pattern matches the request
// path decides the outcome.
type AccessRule struct {
	InterceptURL []string `json:"intercept-url" usage:"ant-style url patterns the rule applies to, e.g /admin/**" yaml:"intercept-url"`
	Forbidden    bool     `json:"forbidden" usage:"deny access unconditionally" yaml:"forbidden"`
	Anonymous    bool     `json:"anonymous" usage:"allow access without authentication or role checks" yaml:"anonymous"`
	AllowedRoles []string `json:"allowed-roles" usage:"roles granting access, with or without the ROLE_ prefix" yaml:"allowed-roles"`
}

// ServiceConfig is the per-service override of the global security policy.
// Its target url must equal the url of a configured route, services and
// routes are correlated by url equality at resolution time.
type ServiceConfig struct {
	Target      string          `json:"target" usage:"base url of the backing service, must equal a route target" yaml:"target"`
	Headers     *HeaderMappings `json:"headers" usage:"header mappings overriding the global defaults field by field" yaml:"headers"`
	AccessRules []*AccessRule   `json:"access-rules" usage:"access rules replacing the global rules for this service" yaml:"access-rules"`
}

// Route is an entry of the routing table: requests whose path falls under
// the path prefix are forwarded to the target url.
type Route struct {
	Path   string `json:"path" usage:"path prefix matched against the request path" yaml:"path"`
	Target string `json:"target" usage:"base url requests are forwarded to" yaml:"target"`
}

// DirectoryConfig names a backing identity directory. The lookup
// implementations themselves are registered programmatically; the name is
// the correlation key and every reference to it is validated at startup.
type DirectoryConfig struct {
	Name              string `json:"name" usage:"unique name of the directory" yaml:"name"`
	AllowProvisioning bool   `json:"allow-provisioning" usage:"permit auto-creation of missing accounts in this directory" yaml:"allow-provisioning"`
	// UsersFile backs the directory with a static yaml users file instead
	// of a programmatically registered lookup
	UsersFile string `json:"users-file" usage:"path to a yaml users file backing this directory" yaml:"users-file"`
}

// Config is the root gateway configuration.
//
//nolint:tagalign
type Config struct {
	ConfigFile         string                    `env:"CONFIG_FILE" json:"config" usage:"path the a configuration file" yaml:"config"`
	Listen             string                    `env:"LISTEN" json:"listen" usage:"binding interface for the main listener, e.g. {address}:{port}" yaml:"listen"`
	ListenAdmin        string                    `env:"LISTEN_ADMIN" json:"listen-admin" usage:"binding interface for the admin endpoint (health, metrics), defaults to the main listener" yaml:"listen-admin"`
	ListenAdminScheme  string                    `env:"LISTEN_ADMIN_SCHEME" json:"listen-admin-scheme" usage:"scheme to serve admin-only endpoint (http or https)" yaml:"listen-admin-scheme"`
	RolesMappings      map[string][]string       `json:"roles-mappings" usage:"glob pattern to extra roles granted when a held role matches, e.g 'ROLE_GN_*: [ROLE_USER]'" yaml:"roles-mappings"`
	DefaultHeaders     HeaderMappings            `json:"default-headers" usage:"global default header mappings" yaml:"default-headers"`
	GlobalAccessRules  []*AccessRule             `json:"global-access-rules" usage:"access rules applied when the matched service defines none" yaml:"global-access-rules"`
	Services           map[string]*ServiceConfig `json:"services" usage:"per-service security policy overrides keyed by logical name" yaml:"services"`
	Routes             []*Route                  `json:"routes" usage:"routing table entries, longest path prefix wins" yaml:"routes"`
	Directories        []*DirectoryConfig        `json:"directories" usage:"backing identity directories, first entry is the default" yaml:"directories"`
	PreauthDirectory   string                    `env:"PREAUTH_DIRECTORY" json:"preauth-directory" usage:"directory name used to resolve pre-authenticated users, defaults to the first directory" yaml:"preauth-directory"`
	OAuth2Directory    string                    `env:"OAUTH2_DIRECTORY" json:"oauth2-directory" usage:"directory name used to resolve oauth2 users, defaults to the first directory" yaml:"oauth2-directory"`
	EnablePreauth      bool                      `env:"ENABLE_PREAUTH" json:"enable-preauth" usage:"trust preauth-* identity headers asserted by a fronting proxy" yaml:"enable-preauth"`
	ProvisionAccounts  bool                      `env:"PROVISION_ACCOUNTS" json:"provision-accounts" usage:"create missing accounts for externally authenticated users" yaml:"provision-accounts"`
	Headers            map[string]string         `json:"headers" usage:"custom headers to the upstream request, key=value" yaml:"headers"`
	ResponseHeaders    map[string]string         `json:"response-headers" usage:"custom headers added to the http response, key=value" yaml:"response-headers"`
	TLSCertificate     string                    `env:"TLS_CERTIFICATE" json:"tls-cert" usage:"path to ths TLS certificate" yaml:"tls-cert"`
	TLSPrivateKey      string                    `env:"TLS_PRIVATE_KEY" json:"tls-private-key" usage:"path to the private key for TLS" yaml:"tls-private-key"`
	CookieDomain       string                    `env:"COOKIE_DOMAIN" json:"cookie-domain" usage:"domain the session cookie is available to, defaults host header" yaml:"cookie-domain"`
	SameSiteCookie     string                    `env:"SAME_SITE_COOKIE" json:"same-site-cookie" usage:"enforces cookies to be send only to same site requests according to the policy (can be Strict|Lax|None)" yaml:"same-site-cookie"`
	SecureCookie       bool                      `env:"SECURE_COOKIE" json:"secure-cookie" usage:"enforces the cookie to be secure" yaml:"secure-cookie"`
	HTTPOnlyCookie     bool                      `env:"HTTPONLY_COOKIE" json:"http-only-cookie" usage:"enforces the cookie is in http only mode" yaml:"http-only-cookie"`
	Hostnames          []string                  `json:"hostnames" usage:"list of hostnames the service will respond to" yaml:"hostnames"`
	ContentSecurityPolicy string                 `env:"CONTENT_SECURITY_POLICY" json:"content-security-policy" usage:"specify the content security policy" yaml:"content-security-policy"`
	EnableSecurityFilter  bool                   `env:"ENABLE_SECURITY_FILTER" json:"enable-security-filter" usage:"enables the security filter handler" yaml:"enable-security-filter"`
	EnableBrowserXSSFilter bool                  `env:"ENABLE_BROWSER_XSS_FILTER" json:"filter-browser-xss" usage:"enable the adds the X-XSS-Protection header with mode=block" yaml:"filter-browser-xss"`
	EnableContentNoSniff   bool                  `env:"ENABLE_CONTENT_NO_SNIFF" json:"filter-content-nosniff" usage:"adds the X-Content-Type-Options header with the value nosniff" yaml:"filter-content-nosniff"`
	EnableFrameDeny        bool                  `env:"ENABLE_FRAME_DENY" json:"filter-frame-deny" usage:"enable to the frame deny header" yaml:"filter-frame-deny"`
	EnableLogging      bool                      `env:"ENABLE_LOGGING" json:"enable-logging" usage:"enable http logging of the requests" yaml:"enable-logging"`
	EnableJSONLogging  bool                      `env:"ENABLE_JSON_LOGGING" json:"enable-json-logging" usage:"switch on json logging rather than text" yaml:"enable-json-logging"`
	EnableMetrics      bool                      `env:"ENABLE_METRICS" json:"enable-metrics" usage:"enable the prometheus metrics collector on /metrics" yaml:"enable-metrics"`
	LocalhostMetrics   bool                      `env:"LOCALHOST_METRICS" json:"localhost-metrics" usage:"enforces the metrics page can only been requested from 127.0.0.1" yaml:"localhost-metrics"`
	EnableRequestID    bool                      `env:"ENABLE_REQUEST_ID" json:"enable-request-id" usage:"indicates we should add a request id if none found" yaml:"enable-request-id"`
	RequestIDHeader    string                    `env:"REQUEST_ID_HEADER" json:"request-id-header" usage:"the http header name for request id" yaml:"request-id-header"`
	PreserveHost       bool                      `env:"PRESERVE_HOST" json:"preserve-host" usage:"preserve the host header of the proxied request in the upstream request" yaml:"preserve-host"`
	ServerGraceTimeout time.Duration             `env:"SERVER_GRACE_TIMEOUT" json:"server-grace-timeout" usage:"the server wait before closing the server" yaml:"server-grace-timeout"`
	ServerReadTimeout  time.Duration             `env:"SERVER_READ_TIMEOUT" json:"server-read-timeout" usage:"the server read timeout on the http server" yaml:"server-read-timeout"`
	ServerWriteTimeout time.Duration             `env:"SERVER_WRITE_TIMEOUT" json:"server-write-timeout" usage:"the server write timeout on the http server" yaml:"server-write-timeout"`
	ServerIdleTimeout  time.Duration             `env:"SERVER_IDLE_TIMEOUT" json:"server-idle-timeout" usage:"the server idle timeout on the http server" yaml:"server-idle-timeout"`
	UpstreamTimeout    time.Duration             `env:"UPSTREAM_TIMEOUT" json:"upstream-timeout" usage:"maximum amount of time a dial will wait for a connect to complete" yaml:"upstream-timeout"`
	MaxIdleConns       int                       `env:"MAX_IDLE_CONNS" json:"max-idle-connections" usage:"max idle upstream connections to keep alive, ready for reuse" yaml:"max-idle-connections"`
	Verbose            bool                      `env:"VERBOSE" json:"verbose" usage:"switch on debug / verbose logging" yaml:"verbose"`
	DisableAllLogging  bool                      `env:"DISABLE_ALL_LOGGING" json:"disable-all-logging" usage:"disables all logging to stdout and stderr" yaml:"disable-all-logging"`
}

// NewDefaultConfig returns a config with sane defaults.
func NewDefaultConfig() *Config {
	return &Config{
		ListenAdminScheme:  constant.SecureScheme,
		SameSiteCookie:     constant.SameSiteLax,
		RequestIDHeader:    "X-Request-ID",
		ServerGraceTimeout: 10 * time.Second,
		ServerIdleTimeout:  120 * time.Second,
		ServerReadTimeout:  10 * time.Second,
		ServerWriteTimeout: 10 * time.Second,
		UpstreamTimeout:    10 * time.Second,
		MaxIdleConns:       100,
	}
}

// ReadConfigFile reads and parses the configuration file.
func (r *Config) ReadConfigFile(filename string) error {
	content, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	switch ext := filepath.Ext(filename); ext {
	case ".json":
		return json.Unmarshal(content, r)
	default:
		return yaml.Unmarshal(content, r)
	}
}

// IsValid validates the configuration and fails fast on wiring errors; a
// gateway with a broken security policy must never serve traffic.
//
//nolint:cyclop
func (r *Config) IsValid() error {
	if r.Listen == "" {
		return apperrors.ErrMissingListenInterface
	}

	if r.ListenAdminScheme != constant.UnsecureScheme &&
		r.ListenAdminScheme != constant.SecureScheme {
		return apperrors.ErrAdminListenerScheme
	}

	if r.TLSCertificate != "" && r.TLSPrivateKey == "" {
		return apperrors.ErrMissingTLSPrivateKey
	}
	if r.TLSPrivateKey != "" && r.TLSCertificate == "" {
		return apperrors.ErrMissingTLSCertificate
	}

	switch r.SameSiteCookie {
	case "", constant.SameSiteStrict, constant.SameSiteLax, constant.SameSiteNone:
	default:
		return apperrors.ErrInvalidSameSiteCookie
	}

	if len(r.Routes) == 0 {
		return apperrors.ErrNoRoutes
	}

	routeTargets := make(map[string]bool, len(r.Routes))
	for _, route := range r.Routes {
		if !strings.HasPrefix(route.Path, "/") {
			return fmt.Errorf("%w: %s", apperrors.ErrInvalidRoutePath, route.Path)
		}
		target, err := url.Parse(route.Target)
		if err != nil || !target.IsAbs() || target.Host == "" {
			return fmt.Errorf("%w: %s", apperrors.ErrInvalidRouteTarget, route.Target)
		}
		routeTargets[route.Target] = true
	}

	for name, service := range r.Services {
		if service.Target == "" {
			return fmt.Errorf("%w: service %s", apperrors.ErrServiceWithoutTarget, name)
		}
		if !routeTargets[service.Target] {
			return fmt.Errorf("%w: service %s target %s",
				apperrors.ErrServiceTargetNoRoute, name, service.Target)
		}
		if err := validateAccessRules(service.AccessRules); err != nil {
			return fmt.Errorf("service %s: %w", name, err)
		}
	}

	if err := validateAccessRules(r.GlobalAccessRules); err != nil {
		return err
	}

	directories := make(map[string]bool, len(r.Directories))
	for _, dir := range r.Directories {
		directories[dir.Name] = true
	}
	for _, ref := range []string{r.PreauthDirectory, r.OAuth2Directory} {
		if ref != "" && !directories[ref] {
			return fmt.Errorf("%w: %s", apperrors.ErrUnknownDirectory, ref)
		}
	}

	return nil
}

func validateAccessRules(rules []*AccessRule) error {
	for _, rule := range rules {
		if len(rule.InterceptURL) == 0 {
			return apperrors.ErrAccessRuleNoPattern
		}
		if rule.Forbidden && len(rule.AllowedRoles) > 0 {
			return apperrors.ErrAccessRuleForbiddenRoles
		}
	}
	return nil
}

// GetHeaders returns the custom upstream headers.
func (r *Config) GetHeaders() map[string]string {
	return r.Headers
}
