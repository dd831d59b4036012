//go:build !e2e
// +build !e2e

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

package testsuite

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/secgate/secgate/pkg/config"
	"github.com/secgate/secgate/pkg/identity"
	"github.com/secgate/secgate/pkg/proxy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(v bool) *bool {
	return &v
}

// fakeDirectory is an in-memory backing directory.
type fakeDirectory struct {
	usersByName   map[string]*identity.User
	usersByEmail  map[string]*identity.User
	usersByOAuth2 map[string]*identity.User
	orgsByKey     map[string]*identity.Organization
	createSeq     int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		usersByName:   make(map[string]*identity.User),
		usersByEmail:  make(map[string]*identity.User),
		usersByOAuth2: make(map[string]*identity.User),
		orgsByKey:     make(map[string]*identity.Organization),
	}
}

func (f *fakeDirectory) addUser(user *identity.User) *fakeDirectory {
	f.usersByName[user.Username] = user
	if user.Email != "" {
		f.usersByEmail[user.Email] = user
	}
	return f
}

func (f *fakeDirectory) addOAuth2User(provider, uid string, user *identity.User) *fakeDirectory {
	f.addUser(user)
	f.usersByOAuth2[provider+"/"+uid] = user
	return f
}

func (f *fakeDirectory) addOrg(key string, org *identity.Organization) *fakeDirectory {
	f.orgsByKey[key] = org
	return f
}

func (f *fakeDirectory) FindByUsername(_ context.Context, username string) (*identity.User, error) {
	if user, found := f.usersByName[username]; found {
		clone := *user
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeDirectory) FindByEmail(_ context.Context, email string) (*identity.User, error) {
	if user, found := f.usersByEmail[email]; found {
		clone := *user
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeDirectory) FindByOAuth2UID(_ context.Context, provider, uid string) (*identity.User, error) {
	if user, found := f.usersByOAuth2[provider+"/"+uid]; found {
		clone := *user
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeDirectory) FindByOrgKey(_ context.Context, orgKey string) (*identity.Organization, error) {
	if org, found := f.orgsByKey[orgKey]; found {
		clone := *org
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeDirectory) Create(_ context.Context, user *identity.User) (*identity.User, error) {
	f.createSeq++
	clone := *user
	clone.ID = "prov-" + strconv.Itoa(f.createSeq)
	f.addUser(&clone)
	return &clone, nil
}

// fakeOAuth2Authenticator simulates the external oauth2 collaborator: it
// produces claims from test headers instead of verifying a real token.
type fakeOAuth2Authenticator struct{}

func (fakeOAuth2Authenticator) Authenticate(req *http.Request) (any, error) {
	subject := req.Header.Get(TestOAuth2SubjectHeader)
	if subject == "" {
		return nil, nil
	}
	return &identity.OAuth2Claims{
		Provider: "fakeidp",
		Subject:  subject,
		Email:    req.Header.Get(TestOAuth2EmailHeader),
	}, nil
}

type fakeRequest struct {
	URI                    string
	Method                 string
	Headers                map[string]string
	Cookies                []*http.Cookie
	ExpectedCode           int
	ExpectedLocation       string
	ExpectedContent        func(t *testing.T, body string)
	ExpectedProxyHeaders   map[string]string
	ExpectedNoProxyHeaders []string
	ExpectedCookies        map[string]string
}

type fakeGateway struct {
	config   *config.Config
	gateway  *proxy.Gateway
	upstream *httptest.Server
	server   *httptest.Server
	corp     *fakeDirectory
}

func newFakeGatewayConfig(upstreamURL string) *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Listen = "127.0.0.1:0"
	cfg.DisableAllLogging = true
	cfg.EnablePreauth = true
	cfg.Routes = []*config.Route{
		{Path: "/app", Target: upstreamURL},
	}
	cfg.DefaultHeaders = config.HeaderMappings{
		Proxy:    boolPtr(true),
		UserID:   boolPtr(true),
		Username: boolPtr(true),
		Roles:    boolPtr(true),
		Org:      boolPtr(true),
	}
	cfg.GlobalAccessRules = []*config.AccessRule{
		{InterceptURL: []string{FakePublicAllURL}, Anonymous: true},
		{InterceptURL: []string{FakeForbiddenAll}, Forbidden: true},
		{InterceptURL: []string{FakeAdminAllURL}, AllowedRoles: []string{FakeAdminRole}},
		{InterceptURL: []string{"/app/**"}},
	}
	cfg.RolesMappings = map[string][]string{
		"ROLE_GN_*": {FakeUserRole},
	}
	cfg.Directories = []*config.DirectoryConfig{
		{Name: FakeDirectory, AllowProvisioning: true},
		{Name: "partners"},
	}
	return cfg
}

func newFakeGateway(t *testing.T, modify func(cfg *config.Config)) *fakeGateway {
	t.Helper()

	upstream := httptest.NewServer(&FakeUpstreamService{})
	t.Cleanup(upstream.Close)

	cfg := newFakeGatewayConfig(upstream.URL)
	if modify != nil {
		modify(cfg)
	}

	corp := newFakeDirectory().
		addOAuth2User("fakeidp", "sub-alice", &identity.User{
			ID:       "1",
			Username: ValidUsername,
			Email:    ValidUserEmail,
			OrgKey:   "acme",
			Roles:    []string{FakeAdminRole},
		}).
		addUser(&identity.User{ID: "2", Username: "carol", Email: SharedEmail}).
		addUser(&identity.User{ID: "3", Username: "gn-editor", Roles: []string{"ROLE_GN_EDITOR"}}).
		addOrg("acme", &identity.Organization{ID: "10", Name: "Acme Corp", ShortName: "acme"})

	partners := newFakeDirectory().
		addUser(&identity.User{ID: "20", Username: "carol-ext", Email: SharedEmail})

	demux, err := identity.NewDemultiplexer(
		identity.Directory{Name: FakeDirectory, Users: corp, Organizations: corp},
		identity.Directory{Name: "partners", Users: partners, Organizations: partners},
	)
	require.NoError(t, err)

	gateway, err := proxy.NewGateway(proxy.Configuration{
		Gateway:        cfg,
		Demultiplexer:  demux,
		Authenticators: []identity.Authenticator{fakeOAuth2Authenticator{}},
		Provisioner:    corp,
	}, nil)
	require.NoError(t, err)

	server := httptest.NewServer(gateway.Router)
	t.Cleanup(server.Close)

	return &fakeGateway{
		config:   cfg,
		gateway:  gateway,
		upstream: upstream,
		server:   server,
		corp:     corp,
	}
}

//nolint:cyclop
func (f *fakeGateway) RunTests(t *testing.T, requests []fakeRequest) {
	t.Helper()

	client := &http.Client{
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	for idx, request := range requests {
		method := request.Method
		if method == "" {
			method = http.MethodGet
		}

		req, err := http.NewRequest(method, f.server.URL+request.URI, nil)
		require.NoError(t, err, "case %d", idx)
		for name, value := range request.Headers {
			req.Header.Set(name, value)
		}
		for _, cook := range request.Cookies {
			req.AddCookie(cook)
		}

		resp, err := client.Do(req)
		require.NoError(t, err, "case %d", idx)

		body := readBody(t, resp)

		if request.ExpectedCode != 0 {
			assert.Equal(t, request.ExpectedCode, resp.StatusCode,
				"case %d, uri %s, body %s", idx, request.URI, body)
		}
		if request.ExpectedLocation != "" {
			assert.Contains(t, resp.Header.Get("Location"), request.ExpectedLocation, "case %d", idx)
		}
		if request.ExpectedContent != nil {
			request.ExpectedContent(t, body)
		}

		if len(request.ExpectedProxyHeaders) > 0 || len(request.ExpectedNoProxyHeaders) > 0 {
			require.Equal(t, "true", resp.Header.Get(TestProxyAccepted),
				"case %d expected the request to reach the upstream", idx)

			var upstream fakeUpstreamResponse
			require.NoError(t, json.Unmarshal([]byte(body), &upstream), "case %d", idx)

			for name, value := range request.ExpectedProxyHeaders {
				assert.Equal(t, value, upstream.Headers.Get(name),
					"case %d, upstream header %s", idx, name)
			}
			for _, name := range request.ExpectedNoProxyHeaders {
				assert.Empty(t, upstream.Headers.Get(name),
					"case %d, upstream header %s must be absent", idx, name)
			}
		}

		for name, value := range request.ExpectedCookies {
			var found bool
			for _, cook := range resp.Cookies() {
				if cook.Name == name {
					found = true
					assert.Equal(t, value, cook.Value, "case %d, cookie %s", idx, name)
				}
			}
			assert.True(t, found, "case %d, cookie %s not dropped", idx, name)
		}
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	content, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(content)
}
