package core

import (
	"context"
	"net/http"

	"github.com/secgate/secgate/pkg/apperrors"
	"github.com/secgate/secgate/pkg/constant"
	"github.com/secgate/secgate/pkg/proxy/models"
	"go.uber.org/zap"
)

// RedirectToURL redirects the user and aborts the context.
func RedirectToURL(
	logger *zap.Logger,
	url string,
	wrt http.ResponseWriter,
	req *http.Request,
	statusCode int,
) context.Context {
	wrt.Header().Add(
		"Cache-Control",
		"no-cache, no-store, must-revalidate, max-age=0",
	)

	http.Redirect(wrt, req, url, statusCode)
	return RevokeProxy(logger, req)
}

// RevokeProxy is responsible for stopping middleware from proxying the request.
func RevokeProxy(logger *zap.Logger, req *http.Request) context.Context {
	var scope *models.RequestScope
	ctxVal := req.Context().Value(constant.ContextScopeName)

	switch ctxVal {
	case nil:
		scope = &models.RequestScope{AccessDenied: true}
	default:
		var assertOk bool
		scope, assertOk = ctxVal.(*models.RequestScope)
		if !assertOk {
			logger.Error(apperrors.ErrAssertionFailed.Error())
			scope = &models.RequestScope{AccessDenied: true}
		}
	}

	scope.AccessDenied = true

	return context.WithValue(req.Context(), constant.ContextScopeName, scope)
}

// AccessForbidden writes the 403 response and aborts the context.
func AccessForbidden(
	logger *zap.Logger,
	wrt http.ResponseWriter,
	req *http.Request,
) context.Context {
	wrt.WriteHeader(http.StatusForbidden)
	return RevokeProxy(logger, req)
}
