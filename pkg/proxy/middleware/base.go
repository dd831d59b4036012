package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	uuid "github.com/gofrs/uuid"
	"github.com/secgate/secgate/pkg/constant"
	"github.com/secgate/secgate/pkg/proxy/core"
	"github.com/secgate/secgate/pkg/proxy/metrics"
	"github.com/secgate/secgate/pkg/proxy/models"
	"github.com/secgate/secgate/pkg/proxy/target"
	"github.com/secgate/secgate/pkg/utils"

	"github.com/PuerkitoBio/purell"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secgate/secgate/pkg/apperrors"
	"go.uber.org/zap"
)

const (
	normalizeFlags purell.NormalizationFlags = purell.FlagRemoveDotSegments | purell.FlagRemoveDuplicateSlashes
)

// EntrypointMiddleware is custom filtering for incoming requests.
func EntrypointMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(wrt http.ResponseWriter, req *http.Request) {
			// @step: create a context for the request
			scope := &models.RequestScope{}
			// Save the exact formatting of the incoming request so we can use it later
			scope.Path = req.URL.Path
			scope.RawPath = req.URL.RawPath
			scope.Logger = logger

			// We want to Normalize the URL so that we can more easily and accurately
			// parse it to apply the access rules.
			purell.NormalizeURL(req.URL, normalizeFlags)

			// ensure we have a slash in the url
			if !strings.HasPrefix(req.URL.Path, "/") {
				req.URL.Path = "/" + req.URL.Path
			}
			req.URL.RawPath = req.URL.EscapedPath()

			resp := middleware.NewWrapResponseWriter(wrt, 1)
			start := time.Now()

			logger.Debug("Incoming request", zap.String("incoming request-path", req.URL.Path))

			// All the processing, including forwarding the request upstream and getting the response,
			// happens here in this chain.
			next.ServeHTTP(resp, req.WithContext(context.WithValue(req.Context(), constant.ContextScopeName, scope)))

			// @metric record the time taken then response code
			metrics.LatencyMetric.Observe(time.Since(start).Seconds())
			metrics.StatusMetric.WithLabelValues(strconv.Itoa(resp.Status()), req.Method).Inc()

			// place back the original uri for any later consumers
			req.URL.Path = scope.Path
			req.URL.RawPath = scope.RawPath
		})
	}
}

// RequestIDMiddleware is responsible for adding a request id if none found.
func RequestIDMiddleware(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(wrt http.ResponseWriter, req *http.Request) {
			if v := req.Header.Get(header); v == "" {
				uuid, err := uuid.NewV1()
				if err != nil {
					wrt.WriteHeader(http.StatusInternalServerError)
				}
				req.Header.Set(header, uuid.String())
			}

			next.ServeHTTP(wrt, req)
		})
	}
}

// LoggingMiddleware is a custom http logger.
func LoggingMiddleware(
	logger *zap.Logger,
	verbose bool,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			resp, assertOk := w.(middleware.WrapResponseWriter)
			if !assertOk {
				logger.Error(apperrors.ErrAssertionFailed.Error())
				return
			}

			scope, assertOk := req.Context().Value(constant.ContextScopeName).(*models.RequestScope)
			if !assertOk {
				logger.Error(apperrors.ErrAssertionFailed.Error())
				return
			}

			addr := utils.RealIP(req)
			if verbose {
				requestLogger := logger.With(
					zap.Any("headers", req.Header),
					zap.String("path", req.URL.Path),
					zap.String("method", req.Method),
					zap.String("client_ip", addr),
				)
				scope.Logger = requestLogger
			}

			next.ServeHTTP(resp, req)

			scope.Logger.Info("client request",
				zap.Duration("latency", time.Since(start)),
				zap.Int("status", resp.Status()),
				zap.Int("bytes", resp.BytesWritten()),
				zap.String("remote_addr", req.RemoteAddr),
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path))
		})
	}
}

// ResponseHeaderMiddleware is responsible for adding response headers.
func ResponseHeaderMiddleware(headers map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(wrt http.ResponseWriter, req *http.Request) {
			// @step: inject any custom response headers
			for k, v := range headers {
				wrt.Header().Set(k, v)
			}

			next.ServeHTTP(wrt, req)
		})
	}
}

// ProxyDenyMiddleware marks requests for the gateway-owned endpoints so
// they are never forwarded upstream. Only the endpoints actually served
// on this listener are marked, and only for GET; anything else is an
// ordinary proxied request subject to the route access rules.
func ProxyDenyMiddleware(logger *zap.Logger, endpoints ...string) func(http.Handler) http.Handler {
	owned := make(map[string]struct{}, len(endpoints))
	for _, path := range endpoints {
		owned[path] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(wrt http.ResponseWriter, req *http.Request) {
			scope, assertOk := req.Context().Value(constant.ContextScopeName).(*models.RequestScope)
			if !assertOk {
				logger.Error(apperrors.ErrAssertionFailed.Error())
				return
			}

			if req.Method == http.MethodGet {
				if _, found := owned[req.URL.Path]; found {
					scope.NoProxy = true
				}
			}

			next.ServeHTTP(wrt, req)
		})
	}
}

// MethodCheckMiddleware rejects non-standard http methods upfront.
func MethodCheckMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		logger.Info("enabling the method check middleware")

		return http.HandlerFunc(func(wrt http.ResponseWriter, req *http.Request) {
			if !utils.IsValidHTTPMethod(req.Method) {
				logger.Warn("method not implemented ", zap.String("method", req.Method))
				wrt.WriteHeader(http.StatusNotImplemented)
				return
			}

			next.ServeHTTP(wrt, req)
		})
	}
}

/*
	ProxyMiddleware is responsible for handing the request over to the
	reverse proxy of the matched route once the inner chain completed
	without denying it
*/
func ProxyMiddleware(
	logger *zap.Logger,
	router *target.Router,
	upstreams map[string]core.ReverseProxy,
	customHeaders map[string]string,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(wrt http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(wrt, req)

			// @step: retrieve the request scope
			ctxVal := req.Context().Value(constant.ContextScopeName)
			var scope *models.RequestScope
			if ctxVal != nil {
				var assertOk bool
				scope, assertOk = ctxVal.(*models.RequestScope)
				if !assertOk {
					logger.Error(apperrors.ErrAssertionFailed.Error())
					return
				}
				if scope.AccessDenied || scope.NoProxy {
					return
				}
			}

			route := router.Match(req.URL.Path)
			if route == nil {
				wrt.WriteHeader(http.StatusNotFound)
				return
			}

			upstream, found := upstreams[route.Target]
			if !found {
				logger.Error("no upstream proxy for route", zap.String("target", route.Target))
				wrt.WriteHeader(http.StatusBadGateway)
				return
			}

			// @step: add the proxy forwarding headers
			req.Header.Set(constant.HeaderXRealIP, utils.RealIP(req))
			if xff := req.Header.Get(constant.HeaderXForwardedFor); xff == "" {
				req.Header.Set(constant.HeaderXForwardedFor, utils.RealIP(req))
			}
			if xfh := req.Header.Get(constant.HeaderXForwardedHost); xfh == "" {
				req.Header.Set(constant.HeaderXForwardedHost, req.Host)
			}

			// @step: add any custom headers to the request
			for k, v := range customHeaders {
				req.Header.Set(k, v)
			}

			// Restore the unprocessed original path, so that we pass upstream exactly
			// what we received as the resource request.
			if scope != nil {
				req.URL.Path = scope.Path
				req.URL.RawPath = scope.RawPath
			}

			logger.Debug("forwarding request to upstream",
				zap.String("URL", req.URL.Path),
				zap.String("target", route.Target),
			)
			upstream.ServeHTTP(wrt, req)
		})
	}
}
