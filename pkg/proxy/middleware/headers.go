package middleware

import (
	"net/http"

	"github.com/secgate/secgate/pkg/apperrors"
	"github.com/secgate/secgate/pkg/constant"
	"github.com/secgate/secgate/pkg/proxy/headers"
	"github.com/secgate/secgate/pkg/proxy/models"
	"github.com/secgate/secgate/pkg/proxy/target"
	"go.uber.org/zap"
)

/*
	IdentityHeadersMiddleware rewrites the trusted sec-* header namespace
	of the upstream request: every inbound sec-* header is stripped, then
	the contributors emit the headers enabled by the resolved mappings.
	Stripping also happens for denied or anonymous requests so a forged
	header can never leak through any path.
*/
func IdentityHeadersMiddleware(
	logger *zap.Logger,
	resolver *target.ConfigResolver,
	pipeline *headers.Pipeline,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(wrt http.ResponseWriter, req *http.Request) {
			scope, assertOk := req.Context().Value(constant.ContextScopeName).(*models.RequestScope)
			if !assertOk {
				logger.Error(apperrors.ErrAssertionFailed.Error())
				return
			}

			if scope.AccessDenied || scope.NoProxy || scope.RouteTarget == "" {
				headers.StripSecHeaders(req.Header)
				next.ServeHTTP(wrt, req)
				return
			}

			resolved := resolver.Resolve(scope, scope.RouteTarget)

			if err := pipeline.Apply(resolved.Headers, scope.Identity, req.Header); err != nil {
				scope.Logger.Error("failed to contribute identity headers", zap.Error(err))
				wrt.WriteHeader(http.StatusInternalServerError)
				scope.AccessDenied = true
				return
			}

			next.ServeHTTP(wrt, req)
		})
	}
}
