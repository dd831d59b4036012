package middleware

import (
	"context"
	"net/http"

	"github.com/secgate/secgate/pkg/apperrors"
	"github.com/secgate/secgate/pkg/constant"
	"github.com/secgate/secgate/pkg/proxy/models"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// SecurityMiddleware performs numerous security checks on the request.
func SecurityMiddleware(
	logger *zap.Logger,
	allowedHosts []string,
	browserXSSFilter bool,
	contentSecurityPolicy string,
	contentTypeNosniff bool,
	frameDeny bool,
	accessForbidden func(wrt http.ResponseWriter, req *http.Request) context.Context,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		logger.Info("enabling the security filter middleware")

		secureFilter := secure.New(secure.Options{
			AllowedHosts:          allowedHosts,
			BrowserXssFilter:      browserXSSFilter,
			ContentSecurityPolicy: contentSecurityPolicy,
			ContentTypeNosniff:    contentTypeNosniff,
			FrameDeny:             frameDeny,
			SSLProxyHeaders:       map[string]string{constant.HeaderXForwardedProto: "https"},
		})

		return http.HandlerFunc(func(wrt http.ResponseWriter, req *http.Request) {
			scope, assertOk := req.Context().Value(constant.ContextScopeName).(*models.RequestScope)
			if !assertOk {
				logger.Error(apperrors.ErrAssertionFailed.Error())
				return
			}

			if err := secureFilter.Process(wrt, req); err != nil {
				scope.Logger.Warn("failed security middleware", zap.Error(err))
				accessForbidden(wrt, req)
				return
			}

			next.ServeHTTP(wrt, req)
		})
	}
}
