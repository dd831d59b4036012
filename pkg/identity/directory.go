package identity

import (
	"context"
	"fmt"

	"github.com/secgate/secgate/pkg/apperrors"
)

// UsersLookup is the identity lookup contract a backing directory (LDAP
// DAO, database, ...) has to provide. A lookup that finds nothing returns
// nil without error; an error means the backend itself failed.
type UsersLookup interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByOAuth2UID(ctx context.Context, provider, uid string) (*User, error)
}

// OrganizationsLookup resolves organizations by their key within one
// backing directory.
type OrganizationsLookup interface {
	FindByOrgKey(ctx context.Context, orgKey string) (*Organization, error)
}

// AccountProvisioner creates accounts for externally authenticated users
// that have no entry in the backing directory yet.
type AccountProvisioner interface {
	Create(ctx context.Context, user *User) (*User, error)
}

// Directory bundles the lookups of one named backing directory.
type Directory struct {
	Name          string
	Users         UsersLookup
	Organizations OrganizationsLookup
}

// Demultiplexer routes identity lookups to the correct one of several
// configured backing directories. It holds two parallel name-keyed maps,
// users lookups and organizations lookups, built once at startup; a
// found user's organization is always resolved in the same directory
// that resolved the user, never across directories.
type Demultiplexer struct {
	names []string
	users map[string]UsersLookup
	orgs  map[string]OrganizationsLookup
}

// NewDemultiplexer builds the directory demultiplexer. Zero directories
// or a lookup-less entry is a wiring error and prevents startup.
func NewDemultiplexer(directories ...Directory) (*Demultiplexer, error) {
	if len(directories) == 0 {
		return nil, apperrors.ErrNoDirectories
	}

	demux := &Demultiplexer{
		names: make([]string, 0, len(directories)),
		users: make(map[string]UsersLookup, len(directories)),
		orgs:  make(map[string]OrganizationsLookup, len(directories)),
	}

	for _, dir := range directories {
		if dir.Users == nil {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownDirectory, dir.Name)
		}
		if dir.Organizations == nil {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrDirectoryOrgLookup, dir.Name)
		}
		demux.names = append(demux.names, dir.Name)
		demux.users[dir.Name] = dir.Users
		demux.orgs[dir.Name] = dir.Organizations
	}

	return demux, nil
}

// Has reports whether a directory name is registered; configuration
// validation uses it to fail fast on dangling references.
func (d *Demultiplexer) Has(name string) bool {
	_, found := d.users[name]
	return found
}

// resolveName maps the empty name to the first configured directory, for
// callers that do not know which directory authenticated the user.
func (d *Demultiplexer) resolveName(name string) (string, error) {
	if name == "" {
		return d.names[0], nil
	}
	if !d.Has(name) {
		return "", fmt.Errorf("%w: %s", apperrors.ErrUnknownDirectory, name)
	}
	return name, nil
}

// FindByUsername looks a user up by login in the named directory, or in
// the first configured directory when the name is empty.
func (d *Demultiplexer) FindByUsername(ctx context.Context, directory, username string) (*ResolvedUser, error) {
	name, err := d.resolveName(directory)
	if err != nil {
		return nil, err
	}

	user, err := d.users[name].FindByUsername(ctx, username)
	if err != nil || user == nil {
		return nil, err
	}
	return d.withOrganization(ctx, name, user)
}

// FindByEmail looks a user up by email in the named directory, or in the
// first configured directory when the name is empty.
func (d *Demultiplexer) FindByEmail(ctx context.Context, directory, email string) (*ResolvedUser, error) {
	name, err := d.resolveName(directory)
	if err != nil {
		return nil, err
	}

	user, err := d.users[name].FindByEmail(ctx, email)
	if err != nil || user == nil {
		return nil, err
	}
	return d.withOrganization(ctx, name, user)
}

// FindByOAuth2UID looks a user up by oauth2 provider and subject.
func (d *Demultiplexer) FindByOAuth2UID(ctx context.Context, directory, provider, uid string) (*ResolvedUser, error) {
	name, err := d.resolveName(directory)
	if err != nil {
		return nil, err
	}

	user, err := d.users[name].FindByOAuth2UID(ctx, provider, uid)
	if err != nil || user == nil {
		return nil, err
	}
	return d.withOrganization(ctx, name, user)
}

// FindByEmailAnywhere searches all configured directories for an email.
// Exactly one directory may know it: two distinct backing accounts
// sharing an email cannot be resolved to an unambiguous identity and
// surface the duplicate account error.
func (d *Demultiplexer) FindByEmailAnywhere(ctx context.Context, email string) (*ResolvedUser, error) {
	var resolved *ResolvedUser

	for _, name := range d.names {
		user, err := d.users[name].FindByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if user == nil {
			continue
		}
		if resolved != nil {
			return nil, apperrors.ErrDuplicateAccount
		}
		resolved, err = d.withOrganization(ctx, name, user)
		if err != nil {
			return nil, err
		}
	}

	return resolved, nil
}

func (d *Demultiplexer) withOrganization(ctx context.Context, directory string, user *User) (*ResolvedUser, error) {
	resolved := &ResolvedUser{User: *user}
	if user.OrgKey == "" {
		return resolved, nil
	}

	org, err := d.orgs[directory].FindByOrgKey(ctx, user.OrgKey)
	if err != nil {
		return nil, err
	}
	resolved.Organization = org
	return resolved, nil
}
