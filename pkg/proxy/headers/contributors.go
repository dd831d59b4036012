package headers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/secgate/secgate/pkg/config"
	"github.com/secgate/secgate/pkg/constant"
	"github.com/secgate/secgate/pkg/identity"
)

// Contributor adds one category of identity-derived headers to the
// upstream request. Contributors write disjoint header names so their
// order is irrelevant, and they no-op silently when the governing flags
// are off or the identity data is absent.
type Contributor interface {
	Contribute(mappings config.HeaderMappings, user *identity.ResolvedUser) (http.Header, error)
}

// Pipeline strips the trusted header namespace from the inbound request
// and lets every contributor re-populate it from the resolved identity.
// The strip happens before any contribution: a client-forged sec-* header
// must never survive to the upstream.
type Pipeline struct {
	contributors []Contributor
}

func NewPipeline(contributors ...Contributor) *Pipeline {
	return &Pipeline{contributors: contributors}
}

// DefaultPipeline wires the full contributor set.
func DefaultPipeline() *Pipeline {
	return NewPipeline(
		ProxyContributor{},
		UserContributor{},
		OrganizationContributor{},
		JSONContributor{},
	)
}

// Apply rewrites the request headers in place.
func (p *Pipeline) Apply(
	mappings config.HeaderMappings,
	user *identity.ResolvedUser,
	requestHeaders http.Header,
) error {
	StripSecHeaders(requestHeaders)

	for _, contributor := range p.contributors {
		contributed, err := contributor.Contribute(mappings, user)
		if err != nil {
			return err
		}
		for name, values := range contributed {
			for _, value := range values {
				requestHeaders.Set(name, value)
			}
		}
	}

	return nil
}

// StripSecHeaders removes every header of the trusted sec-* namespace
// from the given header map.
func StripSecHeaders(requestHeaders http.Header) {
	for name := range requestHeaders {
		if strings.HasPrefix(strings.ToLower(name), constant.SecHeaderPrefix) {
			requestHeaders.Del(name)
		}
	}
}

func setIfValue(headers http.Header, flag *bool, name, value string) {
	if config.Enabled(flag) && value != "" {
		headers.Set(name, value)
	}
}

// ProxyContributor emits the sec-proxy marker telling the upstream the
// request went through the gateway.
type ProxyContributor struct{}

func (ProxyContributor) Contribute(
	mappings config.HeaderMappings,
	_ *identity.ResolvedUser,
) (http.Header, error) {
	contributed := http.Header{}
	if config.Enabled(mappings.Proxy) {
		contributed.Set(constant.HeaderSecProxy, "true")
	}
	return contributed, nil
}

// UserContributor emits one plain header per populated user attribute.
type UserContributor struct{}

func (UserContributor) Contribute(
	mappings config.HeaderMappings,
	user *identity.ResolvedUser,
) (http.Header, error) {
	contributed := http.Header{}
	if user == nil {
		return contributed, nil
	}

	setIfValue(contributed, mappings.UserID, constant.HeaderSecUserID, user.User.ID)
	setIfValue(contributed, mappings.Username, constant.HeaderSecUsername, user.User.Username)
	setIfValue(contributed, mappings.Roles, constant.HeaderSecRoles, strings.Join(user.User.Roles, ","))
	setIfValue(contributed, mappings.Org, constant.HeaderSecOrg, user.User.OrgKey)
	setIfValue(contributed, mappings.Email, constant.HeaderSecEmail, user.User.Email)
	setIfValue(contributed, mappings.FirstName, constant.HeaderSecFirstName, user.User.FirstName)
	setIfValue(contributed, mappings.LastName, constant.HeaderSecLastName, user.User.LastName)
	setIfValue(contributed, mappings.Tel, constant.HeaderSecTel, user.User.Tel)
	setIfValue(contributed, mappings.Address, constant.HeaderSecAddress, user.User.Address)
	setIfValue(contributed, mappings.Title, constant.HeaderSecTitle, user.User.Title)
	setIfValue(contributed, mappings.Notes, constant.HeaderSecNotes, user.User.Notes)
	setIfValue(contributed, mappings.LastUpdated, constant.HeaderSecLastUpdated, user.User.LastUpdated)

	if user.User.LdapRemainingDays != nil {
		setIfValue(contributed, mappings.LdapRemaining,
			constant.HeaderSecLdapRemaining, strconv.Itoa(*user.User.LdapRemainingDays))
	}
	if config.Enabled(mappings.ExternalAuth) {
		contributed.Set(constant.HeaderSecExternalAuth, strconv.FormatBool(user.User.IsExternalAuth))
	}

	return contributed, nil
}

// OrganizationContributor emits the organization attribute headers.
type OrganizationContributor struct{}

func (OrganizationContributor) Contribute(
	mappings config.HeaderMappings,
	user *identity.ResolvedUser,
) (http.Header, error) {
	contributed := http.Header{}
	if user == nil || user.Organization == nil {
		return contributed, nil
	}

	org := user.Organization
	setIfValue(contributed, mappings.OrgID, constant.HeaderSecOrgID, org.ID)
	setIfValue(contributed, mappings.OrgName, constant.HeaderSecOrgName, org.Name)
	setIfValue(contributed, mappings.OrgLastUpdated, constant.HeaderSecOrgLastUpdated, org.LastUpdated)

	return contributed, nil
}

// JSONContributor serializes the full user and organization objects to
// base64 encoded json payloads, governed by their own flags independent
// of the plain attribute headers.
type JSONContributor struct{}

func (JSONContributor) Contribute(
	mappings config.HeaderMappings,
	user *identity.ResolvedUser,
) (http.Header, error) {
	contributed := http.Header{}
	if user == nil {
		return contributed, nil
	}

	if config.Enabled(mappings.JSONUser) {
		encoded, err := encodeBase64JSON(user.User)
		if err != nil {
			return nil, err
		}
		contributed.Set(constant.HeaderSecUserJSON, encoded)
	}

	if config.Enabled(mappings.JSONOrganization) && user.Organization != nil {
		encoded, err := encodeBase64JSON(user.Organization)
		if err != nil {
			return nil, err
		}
		contributed.Set(constant.HeaderSecOrganizationJSON, encoded)
	}

	return contributed, nil
}

func encodeBase64JSON(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
