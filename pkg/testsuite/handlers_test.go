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
	"encoding/json"
	"net/http"
	"testing"

	"github.com/secgate/secgate/pkg/config"
	"github.com/secgate/secgate/pkg/constant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoint(t *testing.T) {
	requests := []fakeRequest{
		{
			URI:          constant.HealthURL,
			ExpectedCode: http.StatusOK,
			ExpectedContent: func(t *testing.T, body string) {
				assert.Equal(t, "OK\n", body)
			},
		},
	}
	newFakeGateway(t, nil).RunTests(t, requests)
}

func TestWhoamiEndpoint(t *testing.T) {
	requests := []fakeRequest{
		{
			URI: constant.WhoamiURL,
			Headers: map[string]string{
				constant.PreauthUsernameHeader: ValidUsername,
			},
			ExpectedCode: http.StatusOK,
			ExpectedContent: func(t *testing.T, body string) {
				var payload struct {
					User struct {
						Username string   `json:"username"`
						Roles    []string `json:"roles"`
					} `json:"user"`
					Organization *struct {
						Name string `json:"name"`
					} `json:"organization"`
				}
				require.NoError(t, json.Unmarshal([]byte(body), &payload))
				assert.Equal(t, ValidUsername, payload.User.Username)
				assert.Contains(t, payload.User.Roles, FakeAdminRole)
				require.NotNil(t, payload.Organization)
				assert.Equal(t, "Acme Corp", payload.Organization.Name)
			},
		},
		{
			URI:          constant.WhoamiURL,
			ExpectedCode: http.StatusOK,
			ExpectedContent: func(t *testing.T, body string) {
				assert.JSONEq(t, "{}", body)
			},
		},
	}
	newFakeGateway(t, nil).RunTests(t, requests)
}

func TestLoginEndpoint(t *testing.T) {
	requests := []fakeRequest{
		{
			URI:          constant.LoginURL,
			ExpectedCode: http.StatusOK,
			ExpectedContent: func(t *testing.T, body string) {
				assert.Contains(t, body, "required")
			},
		},
		{
			URI:          constant.LoginURL + "?error=" + constant.DuplicateAccountError,
			ExpectedCode: http.StatusConflict,
			ExpectedContent: func(t *testing.T, body string) {
				assert.Contains(t, body, constant.DuplicateAccountError)
			},
		},
	}
	newFakeGateway(t, nil).RunTests(t, requests)
}

func TestLogoutEndpoint(t *testing.T) {
	requests := []fakeRequest{
		{
			URI: constant.LogoutURL,
			Cookies: []*http.Cookie{
				{Name: constant.SessionCookie, Value: "established"},
			},
			ExpectedCode: http.StatusOK,
			ExpectedCookies: map[string]string{
				constant.SessionCookie: "",
			},
		},
		{
			URI:          constant.LogoutURL,
			ExpectedCode: http.StatusOK,
		},
	}
	newFakeGateway(t, nil).RunTests(t, requests)
}

func TestMetricsEndpoint(t *testing.T) {
	gateway := newFakeGateway(t, func(cfg *config.Config) {
		cfg.EnableMetrics = true
	})
	gateway.RunTests(t, []fakeRequest{
		{
			URI:          constant.MetricsURL,
			ExpectedCode: http.StatusOK,
			ExpectedContent: func(t *testing.T, body string) {
				assert.Contains(t, body, "gateway_request_duration")
			},
		},
	})
}

func TestMetricsLocalhostOnly(t *testing.T) {
	gateway := newFakeGateway(t, func(cfg *config.Config) {
		cfg.EnableMetrics = true
		cfg.LocalhostMetrics = true
	})
	gateway.RunTests(t, []fakeRequest{
		{
			URI: constant.MetricsURL,
			Headers: map[string]string{
				constant.HeaderXForwardedFor: "10.0.0.5",
			},
			ExpectedCode: http.StatusForbidden,
		},
		{
			URI:          constant.MetricsURL,
			ExpectedCode: http.StatusOK,
		},
	})
}
