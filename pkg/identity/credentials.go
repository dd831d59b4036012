package identity

import (
	"net/http"

	"github.com/secgate/secgate/pkg/constant"
)

// The authentication result handed to the mapper chain is opaque, mappers
// dispatch on its concrete type. The gateway itself only produces
// PreauthCredentials; the LDAP and OAuth2 shapes are produced by the
// external authentication collaborators.

// LDAPPrincipal is the authentication result of a directory bind.
type LDAPPrincipal struct {
	// name of the directory that authenticated the user
	Directory string `json:"directory"`
	// the distinguished name of the bound entry
	DN string `json:"dn"`
	// the login the user authenticated with
	Username string `json:"username"`
	// days until password expiry, when the directory announces it
	RemainingDays *int `json:"remainingDays,omitempty"`
}

// OAuth2Claims carries the relevant claims extracted from a verified
// OAuth2/OIDC token by the external token machinery.
type OAuth2Claims struct {
	Provider   string `json:"provider"`
	Subject    string `json:"sub"`
	Email      string `json:"email"`
	PrefName   string `json:"preferred_username"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// PreauthCredentials is identity asserted via trusted headers set by an
// upstream proxy, no credential verification happens locally.
type PreauthCredentials struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Org       string
	Provider  string
}

// Authenticator produces the authentication result for a request, or nil
// when the request is anonymous. Implementations performing I/O must
// honor the request context.
type Authenticator interface {
	Authenticate(req *http.Request) (any, error)
}

// PreauthAuthenticator trusts the preauth-* headers of the inbound
// request. It must only be enabled when a trusted proxy in front of the
// gateway sets them; the gateway strips nothing here, header hygiene for
// the upstream side is enforced by the header injection stage.
type PreauthAuthenticator struct{}

func (a PreauthAuthenticator) Authenticate(req *http.Request) (any, error) {
	username := req.Header.Get(constant.PreauthUsernameHeader)
	if username == "" {
		return nil, nil
	}

	return &PreauthCredentials{
		Username:  username,
		Email:     req.Header.Get(constant.PreauthEmailHeader),
		FirstName: req.Header.Get(constant.PreauthFirstNameHeader),
		LastName:  req.Header.Get(constant.PreauthLastNameHeader),
		Org:       req.Header.Get(constant.PreauthOrgHeader),
		Provider:  req.Header.Get(constant.PreauthProviderHeader),
	}, nil
}
