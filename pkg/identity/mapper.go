package identity

import (
	"context"
	"sort"

	"github.com/secgate/secgate/pkg/utils"
)

// Mapper attempts to turn one shape of authentication result into the
// canonical user. A mapper that does not recognize the input returns
// nil without error so the chain can move on; an error short-circuits
// the whole chain, including the duplicate account conflict.
type Mapper interface {
	// Priority orders mappers in the chain, lowest first.
	Priority() int
	Map(ctx context.Context, credentials any) (*ResolvedUser, error)
}

// MapperChain invokes its mappers in ascending priority order, ties
// broken by registration order, and resolves to the first non-nil user.
// Results of multiple mappers are never merged.
type MapperChain struct {
	mappers []Mapper
}

// NewMapperChain builds the chain; the given order is preserved between
// mappers of equal priority.
func NewMapperChain(mappers ...Mapper) *MapperChain {
	chain := &MapperChain{mappers: make([]Mapper, len(mappers))}
	copy(chain.mappers, mappers)
	sort.SliceStable(chain.mappers, func(i, j int) bool {
		return chain.mappers[i].Priority() < chain.mappers[j].Priority()
	})
	return chain
}

// Resolve maps an authentication result to the canonical user. A nil
// result and a chain where no mapper matches both yield nil: the request
// is anonymous, which is not an error.
func (c *MapperChain) Resolve(ctx context.Context, credentials any) (*ResolvedUser, error) {
	if credentials == nil {
		return nil, nil
	}

	for _, mapper := range c.mappers {
		user, err := mapper.Map(ctx, credentials)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}

	return nil, nil
}

// LDAPAccountMapper resolves directory-authenticated principals against
// the directory that performed the bind.
type LDAPAccountMapper struct {
	demux    *Demultiplexer
	priority int
}

func NewLDAPAccountMapper(demux *Demultiplexer) *LDAPAccountMapper {
	return &LDAPAccountMapper{demux: demux, priority: 10}
}

func (m *LDAPAccountMapper) Priority() int { return m.priority }

func (m *LDAPAccountMapper) Map(ctx context.Context, credentials any) (*ResolvedUser, error) {
	principal, recognized := credentials.(*LDAPPrincipal)
	if !recognized {
		return nil, nil
	}

	resolved, err := m.demux.FindByUsername(ctx, principal.Directory, principal.Username)
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		// the bind succeeded, the account entry just carries no attributes
		resolved = &ResolvedUser{User: User{Username: principal.Username}}
	}

	resolved.User.LdapRemainingDays = principal.RemainingDays
	return resolved, nil
}

// OAuth2AccountMapper resolves verified oauth2/oidc claims to a directory
// account, falling back to an email search over all directories and
// finally to a fresh external user built from the claims.
type OAuth2AccountMapper struct {
	demux     *Demultiplexer
	directory string
	priority  int
}

func NewOAuth2AccountMapper(demux *Demultiplexer, directory string) *OAuth2AccountMapper {
	return &OAuth2AccountMapper{demux: demux, directory: directory, priority: 20}
}

func (m *OAuth2AccountMapper) Priority() int { return m.priority }

func (m *OAuth2AccountMapper) Map(ctx context.Context, credentials any) (*ResolvedUser, error) {
	claims, recognized := credentials.(*OAuth2Claims)
	if !recognized {
		return nil, nil
	}

	resolved, err := m.demux.FindByOAuth2UID(ctx, m.directory, claims.Provider, claims.Subject)
	if err != nil {
		return nil, err
	}

	if resolved == nil && claims.Email != "" {
		resolved, err = m.demux.FindByEmailAnywhere(ctx, claims.Email)
		if err != nil {
			return nil, err
		}
	}

	if resolved == nil {
		username := claims.PrefName
		if username == "" {
			username = claims.Provider + "_" + claims.Subject
		}
		resolved = &ResolvedUser{User: User{
			Username:  username,
			Email:     claims.Email,
			FirstName: claims.GivenName,
			LastName:  claims.FamilyName,
		}}
	}

	resolved.User.IsExternalAuth = true
	return resolved, nil
}

// PreauthMapper resolves identity asserted by a trusted fronting proxy,
// enriching it from the configured directory when the account exists.
type PreauthMapper struct {
	demux     *Demultiplexer
	directory string
	priority  int
}

func NewPreauthMapper(demux *Demultiplexer, directory string) *PreauthMapper {
	return &PreauthMapper{demux: demux, directory: directory, priority: 30}
}

func (m *PreauthMapper) Priority() int { return m.priority }

func (m *PreauthMapper) Map(ctx context.Context, credentials any) (*ResolvedUser, error) {
	preauth, recognized := credentials.(*PreauthCredentials)
	if !recognized {
		return nil, nil
	}

	resolved, err := m.demux.FindByUsername(ctx, m.directory, preauth.Username)
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		resolved = &ResolvedUser{User: User{
			Username:  preauth.Username,
			Email:     preauth.Email,
			FirstName: preauth.FirstName,
			LastName:  preauth.LastName,
			OrgKey:    preauth.Org,
		}}
	}

	resolved.User.IsExternalAuth = true
	return resolved, nil
}

// unionRoles appends the extras not already held, preserving the held
// roles and their order.
func unionRoles(held, extras []string) []string {
	merged := held
	for _, extra := range extras {
		if !utils.ContainsString(extra, merged) {
			merged = append(merged, extra)
		}
	}
	return merged
}
