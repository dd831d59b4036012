package headers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/secgate/secgate/pkg/config"
	"github.com/secgate/secgate/pkg/constant"
	"github.com/secgate/secgate/pkg/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(v bool) *bool {
	return &v
}

func testUser() *identity.ResolvedUser {
	remaining := 7
	return &identity.ResolvedUser{
		User: identity.User{
			ID:                "1",
			Username:          "alice",
			OrgKey:            "acme",
			Email:             "alice@example.com",
			FirstName:         "Alice",
			LastName:          "Smith",
			Roles:             []string{"ROLE_GN_ADMIN", "ROLE_USER"},
			LdapRemainingDays: &remaining,
		},
		Organization: &identity.Organization{
			ID:          "10",
			Name:        "Acme Corp",
			ShortName:   "acme",
			LastUpdated: "2024-05-01T10:00:00Z",
		},
	}
}

func TestStripSecHeaders(t *testing.T) {
	reqHeaders := http.Header{}
	reqHeaders.Set("sec-username", "forged")
	reqHeaders.Set("Sec-Roles", "ROLE_ADMIN")
	reqHeaders.Set("SEC-PROXY", "true")
	reqHeaders.Set("Accept", "text/html")
	reqHeaders.Set("secret-header", "kept")

	StripSecHeaders(reqHeaders)

	assert.Empty(t, reqHeaders.Get("sec-username"))
	assert.Empty(t, reqHeaders.Get("Sec-Roles"))
	assert.Empty(t, reqHeaders.Get("SEC-PROXY"))
	assert.Equal(t, "text/html", reqHeaders.Get("Accept"))
	assert.Equal(t, "kept", reqHeaders.Get("secret-header"), "only the dashed sec- prefix is reserved")
}

func TestPipelineStripsBeforeContributing(t *testing.T) {
	reqHeaders := http.Header{}
	reqHeaders.Set(constant.HeaderSecUsername, "forged")
	reqHeaders.Set(constant.HeaderSecRoles, "ROLE_FORGED")

	mappings := config.HeaderMappings{Username: boolPtr(true)}
	err := DefaultPipeline().Apply(mappings, testUser(), reqHeaders)
	require.NoError(t, err)

	assert.Equal(t, "alice", reqHeaders.Get(constant.HeaderSecUsername))
	assert.Empty(t, reqHeaders.Get(constant.HeaderSecRoles), "forged header with a disabled flag must vanish")
}

func TestPipelineAnonymousRequest(t *testing.T) {
	reqHeaders := http.Header{}
	reqHeaders.Set(constant.HeaderSecUsername, "forged")

	mappings := config.HeaderMappings{
		Proxy:    boolPtr(true),
		Username: boolPtr(true),
	}
	err := DefaultPipeline().Apply(mappings, nil, reqHeaders)
	require.NoError(t, err)

	assert.Empty(t, reqHeaders.Get(constant.HeaderSecUsername))
	assert.Equal(t, "true", reqHeaders.Get(constant.HeaderSecProxy), "the proxy marker does not need an identity")
}

func TestUserContributor(t *testing.T) {
	mappings := config.HeaderMappings{
		UserID:        boolPtr(true),
		Username:      boolPtr(true),
		Roles:         boolPtr(true),
		Org:           boolPtr(true),
		Email:         boolPtr(false),
		LdapRemaining: boolPtr(true),
		ExternalAuth:  boolPtr(true),
	}

	contributed, err := UserContributor{}.Contribute(mappings, testUser())
	require.NoError(t, err)

	assert.Equal(t, "1", contributed.Get(constant.HeaderSecUserID))
	assert.Equal(t, "alice", contributed.Get(constant.HeaderSecUsername))
	assert.Equal(t, "ROLE_GN_ADMIN,ROLE_USER", contributed.Get(constant.HeaderSecRoles))
	assert.Equal(t, "acme", contributed.Get(constant.HeaderSecOrg))
	assert.Equal(t, "7", contributed.Get(constant.HeaderSecLdapRemaining))
	assert.Equal(t, "false", contributed.Get(constant.HeaderSecExternalAuth))
	assert.Empty(t, contributed.Get(constant.HeaderSecEmail), "explicitly disabled")
	assert.Empty(t, contributed.Get(constant.HeaderSecFirstName), "unset means off")
}

func TestUserContributorSkipsEmptyValues(t *testing.T) {
	mappings := config.HeaderMappings{
		Username: boolPtr(true),
		Tel:      boolPtr(true),
	}
	user := &identity.ResolvedUser{User: identity.User{Username: "alice"}}

	contributed, err := UserContributor{}.Contribute(mappings, user)
	require.NoError(t, err)

	assert.Equal(t, "alice", contributed.Get(constant.HeaderSecUsername))
	_, present := contributed[http.CanonicalHeaderKey(constant.HeaderSecTel)]
	assert.False(t, present, "an empty attribute emits no header at all")
}

func TestOrganizationContributor(t *testing.T) {
	mappings := config.HeaderMappings{
		OrgID:          boolPtr(true),
		OrgName:        boolPtr(true),
		OrgLastUpdated: boolPtr(true),
	}

	contributed, err := OrganizationContributor{}.Contribute(mappings, testUser())
	require.NoError(t, err)
	assert.Equal(t, "10", contributed.Get(constant.HeaderSecOrgID))
	assert.Equal(t, "Acme Corp", contributed.Get(constant.HeaderSecOrgName))
	assert.Equal(t, "2024-05-01T10:00:00Z", contributed.Get(constant.HeaderSecOrgLastUpdated))

	// no organization, no headers
	orphan := &identity.ResolvedUser{User: identity.User{Username: "bob"}}
	contributed, err = OrganizationContributor{}.Contribute(mappings, orphan)
	require.NoError(t, err)
	assert.Empty(t, contributed)
}

func TestJSONContributor(t *testing.T) {
	mappings := config.HeaderMappings{
		JSONUser:         boolPtr(true),
		JSONOrganization: boolPtr(true),
	}
	user := testUser()

	contributed, err := JSONContributor{}.Contribute(mappings, user)
	require.NoError(t, err)

	rawUser, err := base64.StdEncoding.DecodeString(contributed.Get(constant.HeaderSecUserJSON))
	require.NoError(t, err)
	var decodedUser identity.User
	require.NoError(t, json.Unmarshal(rawUser, &decodedUser))
	assert.Equal(t, user.User, decodedUser)

	rawOrg, err := base64.StdEncoding.DecodeString(contributed.Get(constant.HeaderSecOrganizationJSON))
	require.NoError(t, err)
	var decodedOrg identity.Organization
	require.NoError(t, json.Unmarshal(rawOrg, &decodedOrg))
	assert.Equal(t, *user.Organization, decodedOrg)
}
