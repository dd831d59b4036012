package identity

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/secgate/secgate/pkg/apperrors"
	yaml "gopkg.in/yaml.v2"
)

type staticUser struct {
	ID        string   `yaml:"id"`
	Username  string   `yaml:"username"`
	OrgKey    string   `yaml:"org"`
	Email     string   `yaml:"email"`
	FirstName string   `yaml:"first-name"`
	LastName  string   `yaml:"last-name"`
	Tel       string   `yaml:"tel"`
	Address   string   `yaml:"address"`
	Title     string   `yaml:"title"`
	Notes     string   `yaml:"notes"`
	Roles     []string `yaml:"roles"`
	// oauth2 subjects that resolve to this account, keyed by provider
	OAuth2UIDs map[string]string `yaml:"oauth2-uids"`
}

type staticOrganization struct {
	ID        string `yaml:"id"`
	OrgKey    string `yaml:"org"`
	Name      string `yaml:"name"`
	ShortName string `yaml:"short-name"`
}

type staticDirectoryFile struct {
	Users         []*staticUser         `yaml:"users"`
	Organizations []*staticOrganization `yaml:"organizations"`
}

// StaticDirectory is a yaml file backed directory, mainly for small
// installations and testing. It satisfies the users lookup, the
// organizations lookup and the account provisioner contracts; provisioned
// accounts are kept in memory only.
type StaticDirectory struct {
	sync.RWMutex
	users []*User
	orgs  map[string]*Organization
	// provider -> subject -> user
	oauth2 map[string]map[string]*User
}

// NewStaticDirectory loads a directory from a yaml users file.
func NewStaticDirectory(path string) (*StaticDirectory, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file staticDirectoryFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, err
	}

	dir := &StaticDirectory{
		orgs:   make(map[string]*Organization, len(file.Organizations)),
		oauth2: make(map[string]map[string]*User),
	}

	for _, entry := range file.Organizations {
		dir.orgs[entry.OrgKey] = &Organization{
			ID:        entry.ID,
			Name:      entry.Name,
			ShortName: entry.ShortName,
		}
	}

	for _, entry := range file.Users {
		if entry.Username == "" {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrStaticUserEntry, path)
		}
		user := &User{
			ID:        entry.ID,
			Username:  entry.Username,
			OrgKey:    entry.OrgKey,
			Email:     entry.Email,
			FirstName: entry.FirstName,
			LastName:  entry.LastName,
			Tel:       entry.Tel,
			Address:   entry.Address,
			Title:     entry.Title,
			Notes:     entry.Notes,
			Roles:     entry.Roles,
		}
		dir.users = append(dir.users, user)
		for provider, uid := range entry.OAuth2UIDs {
			if dir.oauth2[provider] == nil {
				dir.oauth2[provider] = make(map[string]*User)
			}
			dir.oauth2[provider][uid] = user
		}
	}

	return dir, nil
}

// FindByUsername implements the users lookup.
func (s *StaticDirectory) FindByUsername(_ context.Context, username string) (*User, error) {
	s.RLock()
	defer s.RUnlock()
	for _, user := range s.users {
		if user.Username == username {
			clone := *user
			return &clone, nil
		}
	}
	return nil, nil
}

// FindByEmail implements the users lookup.
func (s *StaticDirectory) FindByEmail(_ context.Context, email string) (*User, error) {
	s.RLock()
	defer s.RUnlock()
	for _, user := range s.users {
		if user.Email != "" && user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, nil
}

// FindByOAuth2UID implements the users lookup.
func (s *StaticDirectory) FindByOAuth2UID(_ context.Context, provider, uid string) (*User, error) {
	s.RLock()
	defer s.RUnlock()
	if user, found := s.oauth2[provider][uid]; found {
		clone := *user
		return &clone, nil
	}
	return nil, nil
}

// FindByOrgKey implements the organizations lookup.
func (s *StaticDirectory) FindByOrgKey(_ context.Context, orgKey string) (*Organization, error) {
	s.RLock()
	defer s.RUnlock()
	if org, found := s.orgs[orgKey]; found {
		clone := *org
		return &clone, nil
	}
	return nil, nil
}

// Create implements the account provisioner, in memory only.
func (s *StaticDirectory) Create(_ context.Context, user *User) (*User, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	s.Lock()
	defer s.Unlock()

	clone := *user
	clone.ID = id.String()
	s.users = append(s.users, &clone)

	created := clone
	return &created, nil
}
