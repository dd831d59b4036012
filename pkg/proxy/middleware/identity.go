package middleware

import (
	"errors"
	"net/http"

	"github.com/secgate/secgate/pkg/apperrors"
	"github.com/secgate/secgate/pkg/constant"
	"github.com/secgate/secgate/pkg/identity"
	"github.com/secgate/secgate/pkg/proxy/cookie"
	"github.com/secgate/secgate/pkg/proxy/core"
	"github.com/secgate/secgate/pkg/proxy/metrics"
	"github.com/secgate/secgate/pkg/proxy/models"
	"go.uber.org/zap"
)

/*
	IdentityMiddleware resolves the canonical user for the request: the
	authenticators produce an opaque authentication result, the mapper
	chain turns it into a user, the customizers post-process it and the
	result is attached to the request scope. An anonymous request passes
	through without identity; an ambiguous identity terminates the
	request with a redirect to the login page and an invalidated session.
*/
func IdentityMiddleware(
	logger *zap.Logger,
	authenticators []identity.Authenticator,
	mappers *identity.MapperChain,
	customizers *identity.CustomizerChain,
	cookManager *cookie.Manager,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(wrt http.ResponseWriter, req *http.Request) {
			scope, assertOk := req.Context().Value(constant.ContextScopeName).(*models.RequestScope)
			if !assertOk {
				logger.Error(apperrors.ErrAssertionFailed.Error())
				return
			}

			// identity is resolved for gateway-owned endpoints as well,
			// whoami reports it
			if scope.AccessDenied {
				next.ServeHTTP(wrt, req)
				return
			}

			// @step: the external authentication step, first authenticator
			// producing a result wins
			var credentials any
			for _, authenticator := range authenticators {
				result, err := authenticator.Authenticate(req)
				if err != nil {
					scope.Logger.Error("authentication failed", zap.Error(err))
					wrt.WriteHeader(http.StatusInternalServerError)
					core.RevokeProxy(logger, req)
					return
				}
				if result != nil {
					credentials = result
					break
				}
			}

			user, err := mappers.Resolve(req.Context(), credentials)
			if err != nil {
				if errors.Is(err, apperrors.ErrDuplicateAccount) {
					scope.Logger.Warn("duplicate account conflict, cannot resolve identity")
					metrics.IdentityResolutionMetric.WithLabelValues("duplicate").Inc()
					cookManager.ClearSessionCookie(req, wrt)
					core.RedirectToURL(
						logger,
						constant.LoginURL+"?error="+constant.DuplicateAccountError,
						wrt,
						req,
						http.StatusFound,
					)
					scope.AccessDenied = true
					return
				}

				scope.Logger.Error("identity mapping failed", zap.Error(err))
				metrics.IdentityResolutionMetric.WithLabelValues("error").Inc()
				wrt.WriteHeader(http.StatusInternalServerError)
				core.RevokeProxy(logger, req)
				return
			}

			if user == nil {
				// anonymous, not an error: access rules decide downstream
				metrics.IdentityResolutionMetric.WithLabelValues("anonymous").Inc()
				next.ServeHTTP(wrt, req)
				return
			}

			if err := customizers.Apply(req.Context(), user); err != nil {
				scope.Logger.Error("user customization failed", zap.Error(err))
				metrics.IdentityResolutionMetric.WithLabelValues("error").Inc()
				wrt.WriteHeader(http.StatusInternalServerError)
				core.RevokeProxy(logger, req)
				return
			}

			metrics.IdentityResolutionMetric.WithLabelValues("resolved").Inc()
			scope.Identity = user
			scope.Logger.Debug("resolved identity", zap.String("user", user.User.String()))

			next.ServeHTTP(wrt, req)
		})
	}
}
