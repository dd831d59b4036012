package identity

import (
	"fmt"
	"strings"
)

// User is the canonical identity record produced by mapping and
// customization, independent of which backend authenticated the request.
// It lives on the request scope and is discarded when the request ends.
type User struct {
	// the stable id of the user in its backing directory
	ID string `json:"id,omitempty"`
	// the login name, never empty once resolved
	Username string `json:"username"`
	// key of the organization the user belongs to, resolved against the
	// same directory the user came from
	OrgKey string `json:"org,omitempty"`
	// the email associated to the user
	Email string `json:"email,omitempty"`
	// given and family names
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	// contact attributes
	Tel     string `json:"tel,omitempty"`
	Address string `json:"address,omitempty"`
	Title   string `json:"title,omitempty"`
	Notes   string `json:"notes,omitempty"`
	// roles is the collection of roles the user holds, ROLE_ prefixed
	Roles []string `json:"roles"`
	// last modification stamp of the directory entry
	LastUpdated string `json:"lastUpdated,omitempty"`
	// days until the ldap password expires, when the directory exposes it
	LdapRemainingDays *int `json:"ldapRemainingDays,omitempty"`
	// whether the user authenticated against an external provider rather
	// than a backing directory
	IsExternalAuth bool `json:"isExternalAuth"`
}

// String returns a string representation of the user.
func (r *User) String() string {
	return fmt.Sprintf(
		"user: %s, org: %s, roles: %s",
		r.Username,
		r.OrgKey,
		strings.Join(r.Roles, ","),
	)
}

// Organization is the user's organization as known by the backing
// directory that resolved the user.
type Organization struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	ShortName   string `json:"shortName,omitempty"`
	LastUpdated string `json:"lastUpdated,omitempty"`
}

// ResolvedUser composes the canonical user with its optional organization.
// Call sites operate on the composed value directly, there is no identity
// subtype carrying the organization.
type ResolvedUser struct {
	User         User
	Organization *Organization
}
