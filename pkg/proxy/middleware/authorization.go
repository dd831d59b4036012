package middleware

import (
	"context"
	"net/http"

	"github.com/secgate/secgate/pkg/apperrors"
	"github.com/secgate/secgate/pkg/authorization"
	"github.com/secgate/secgate/pkg/constant"
	"github.com/secgate/secgate/pkg/proxy/metrics"
	"github.com/secgate/secgate/pkg/proxy/models"
	"github.com/secgate/secgate/pkg/proxy/target"
	"go.uber.org/zap"
)

/*
	AuthorizationMiddleware matches the request to a route, resolves the
	effective target config and evaluates the access rules against the
	resolved user's roles. A denial is final and surfaces as 403, it is
	never downgraded.
*/
func AuthorizationMiddleware(
	logger *zap.Logger,
	router *target.Router,
	resolver *target.ConfigResolver,
	accessForbidden func(wrt http.ResponseWriter, req *http.Request) context.Context,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(wrt http.ResponseWriter, req *http.Request) {
			scope, assertOk := req.Context().Value(constant.ContextScopeName).(*models.RequestScope)
			if !assertOk {
				logger.Error(apperrors.ErrAssertionFailed.Error())
				return
			}

			// gateway-owned requests are marked NoProxy before this
			// stage runs, they are dispatched by the router itself
			if scope.AccessDenied || scope.NoProxy {
				next.ServeHTTP(wrt, req)
				return
			}

			route := router.Match(req.URL.Path)
			if route == nil {
				scope.Logger.Debug("no route for path", zap.String("path", req.URL.Path))
				wrt.WriteHeader(http.StatusNotFound)
				scope.AccessDenied = true
				return
			}
			scope.RouteTarget = route.Target

			resolved := resolver.Resolve(scope, route.Target)

			var roles []string
			if scope.Identity != nil {
				roles = scope.Identity.User.Roles
			}

			decision := authorization.Decide(
				resolved.Rules,
				req.URL.Path,
				roles,
				scope.Authenticated(),
			)

			metrics.AuthzDecisionMetric.WithLabelValues(decision.String()).Inc()

			if decision != authorization.AllowedAuthz {
				scope.Logger.Info("access denied",
					zap.String("decision", decision.String()),
					zap.String("path", req.URL.Path),
					zap.String("target", route.Target),
				)
				accessForbidden(wrt, req)
				return
			}

			next.ServeHTTP(wrt, req)
		})
	}
}
