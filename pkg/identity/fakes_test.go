package identity

import (
	"context"
	"strconv"
	"sync"
)

// fakeLookup is an in-memory users and organizations lookup for tests.
type fakeLookup struct {
	sync.Mutex
	usersByName   map[string]*User
	usersByEmail  map[string]*User
	usersByOAuth2 map[string]*User
	orgsByKey     map[string]*Organization
	failWith      error
	created       []*User
	createSeq     int
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		usersByName:   make(map[string]*User),
		usersByEmail:  make(map[string]*User),
		usersByOAuth2: make(map[string]*User),
		orgsByKey:     make(map[string]*Organization),
	}
}

func (f *fakeLookup) addUser(user *User) *fakeLookup {
	f.usersByName[user.Username] = user
	if user.Email != "" {
		f.usersByEmail[user.Email] = user
	}
	return f
}

func (f *fakeLookup) addOAuth2User(provider, uid string, user *User) *fakeLookup {
	f.addUser(user)
	f.usersByOAuth2[provider+"/"+uid] = user
	return f
}

func (f *fakeLookup) addOrg(org *Organization, key string) *fakeLookup {
	f.orgsByKey[key] = org
	return f
}

func (f *fakeLookup) FindByUsername(_ context.Context, username string) (*User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if user, found := f.usersByName[username]; found {
		clone := *user
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeLookup) FindByEmail(_ context.Context, email string) (*User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if user, found := f.usersByEmail[email]; found {
		clone := *user
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeLookup) FindByOAuth2UID(_ context.Context, provider, uid string) (*User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if user, found := f.usersByOAuth2[provider+"/"+uid]; found {
		clone := *user
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeLookup) FindByOrgKey(_ context.Context, orgKey string) (*Organization, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if org, found := f.orgsByKey[orgKey]; found {
		clone := *org
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeLookup) Create(_ context.Context, user *User) (*User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.Lock()
	defer f.Unlock()
	f.createSeq++
	clone := *user
	clone.ID = "generated-" + strconv.Itoa(f.createSeq)
	f.created = append(f.created, &clone)
	return &clone, nil
}
