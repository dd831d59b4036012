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

package cookie

import (
	"net/http"
	"time"

	"github.com/secgate/secgate/pkg/constant"
)

// Manager drops and clears the gateway session cookie.
type Manager struct {
	CookieDomain      string
	SameSiteCookie    string
	SessionCookieName string
	HTTPOnlyCookie    bool
	SecureCookie      bool
}

// DropCookie drops a cookie into the response.
func (cm *Manager) DropCookie(
	wrt http.ResponseWriter,
	name,
	value string,
	duration time.Duration,
) {
	domain := ""
	if cm.CookieDomain != "" {
		domain = cm.CookieDomain
	}

	cookie := &http.Cookie{
		Domain:   domain,
		HttpOnly: cm.HTTPOnlyCookie,
		Name:     name,
		Path:     "/",
		Secure:   cm.SecureCookie,
		Value:    value,
	}

	if duration != 0 {
		cookie.Expires = time.Now().Add(duration)
	}

	switch cm.SameSiteCookie {
	case constant.SameSiteStrict:
		cookie.SameSite = http.SameSiteStrictMode
	case constant.SameSiteLax:
		cookie.SameSite = http.SameSiteLaxMode
	case constant.SameSiteNone:
		cookie.SameSite = http.SameSiteNoneMode
	}

	http.SetCookie(wrt, cookie)
}

// DropSessionCookie sets the session cookie on the response.
func (cm *Manager) DropSessionCookie(wrt http.ResponseWriter, value string, duration time.Duration) {
	cm.DropCookie(wrt, cm.sessionCookieName(), value, duration)
}

// ClearSessionCookie invalidates any established session; a partially
// established session must never survive an ambiguous identity.
func (cm *Manager) ClearSessionCookie(req *http.Request, wrt http.ResponseWriter) {
	if _, err := req.Cookie(cm.sessionCookieName()); err != nil {
		// nothing to invalidate
		return
	}
	cm.DropCookie(wrt, cm.sessionCookieName(), "", constant.InvalidCookieDuration)
}

func (cm *Manager) sessionCookieName() string {
	if cm.SessionCookieName == "" {
		return constant.SessionCookie
	}
	return cm.SessionCookieName
}
