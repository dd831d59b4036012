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

package handlers

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/secgate/secgate/pkg/apperrors"
	"github.com/secgate/secgate/pkg/constant"
	"github.com/secgate/secgate/pkg/proxy/cookie"
	proxycore "github.com/secgate/secgate/pkg/proxy/core"
	"github.com/secgate/secgate/pkg/proxy/models"
	"github.com/secgate/secgate/pkg/utils"
	"go.uber.org/zap"
)

// EmptyHandler is responsible for doing nothing.
func EmptyHandler(_ http.ResponseWriter, _ *http.Request) {}

// HealthHandler is a health check handler for the service.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set(constant.VersionHeader, proxycore.GetVersion())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK\n"))
}

// WhoamiHandler returns the resolved canonical user of the request as
// json; an anonymous request yields an empty object.
func WhoamiHandler(logger *zap.Logger) func(wrt http.ResponseWriter, req *http.Request) {
	return func(wrt http.ResponseWriter, req *http.Request) {
		scope, assertOk := req.Context().Value(constant.ContextScopeName).(*models.RequestScope)
		if !assertOk {
			logger.Error(apperrors.ErrAssertionFailed.Error())
			wrt.WriteHeader(http.StatusInternalServerError)
			return
		}

		wrt.Header().Set("Content-Type", "application/json")

		var payload any = struct{}{}
		if scope.Identity != nil {
			payload = map[string]any{
				"user":         scope.Identity.User,
				"organization": scope.Identity.Organization,
			}
		}

		if err := json.NewEncoder(wrt).Encode(payload); err != nil {
			logger.Error("failed to encode whoami response", zap.Error(err))
		}
	}
}

// LoginHandler surfaces login error markers, most notably the duplicate
// account conflict, to the presentation layer as json.
func LoginHandler(logger *zap.Logger) func(wrt http.ResponseWriter, req *http.Request) {
	return func(wrt http.ResponseWriter, req *http.Request) {
		wrt.Header().Set("Content-Type", "application/json")

		response := map[string]string{"login": "required"}
		if errMarker := req.URL.Query().Get("error"); errMarker != "" {
			response["error"] = errMarker
			wrt.WriteHeader(http.StatusConflict)
		}

		if err := json.NewEncoder(wrt).Encode(response); err != nil {
			logger.Error("failed to encode login response", zap.Error(err))
		}
	}
}

// LogoutHandler invalidates the gateway session.
func LogoutHandler(cookManager *cookie.Manager) func(wrt http.ResponseWriter, req *http.Request) {
	return func(wrt http.ResponseWriter, req *http.Request) {
		cookManager.ClearSessionCookie(req, wrt)
		wrt.WriteHeader(http.StatusOK)
	}
}

// ProxyMetricsHandler forwards to the prometheus handler, optionally
// restricted to localhost callers.
func ProxyMetricsHandler(
	localhostOnly bool,
	accessForbidden func(wrt http.ResponseWriter, req *http.Request),
	metricsHandler http.Handler,
) func(wrt http.ResponseWriter, req *http.Request) {
	return func(wrt http.ResponseWriter, req *http.Request) {
		if localhostOnly {
			ipAddr := utils.RealIP(req)
			if parsed := net.ParseIP(ipAddr); parsed == nil || !parsed.IsLoopback() {
				accessForbidden(wrt, req)
				return
			}
		}
		metricsHandler.ServeHTTP(wrt, req)
	}
}
