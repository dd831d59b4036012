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

package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"time"

	httplog "log"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/secgate/secgate/pkg/apperrors"
	"github.com/secgate/secgate/pkg/config"
	"github.com/secgate/secgate/pkg/constant"
	"github.com/secgate/secgate/pkg/identity"
	"github.com/secgate/secgate/pkg/proxy/cookie"
	proxycore "github.com/secgate/secgate/pkg/proxy/core"
	"github.com/secgate/secgate/pkg/proxy/handlers"
	gwheaders "github.com/secgate/secgate/pkg/proxy/headers"
	"github.com/secgate/secgate/pkg/proxy/metrics"
	gwmiddleware "github.com/secgate/secgate/pkg/proxy/middleware"
	"github.com/secgate/secgate/pkg/proxy/target"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func init() {
	prometheus.MustRegister(metrics.LatencyMetric)
	prometheus.MustRegister(metrics.StatusMetric)
	prometheus.MustRegister(metrics.IdentityResolutionMetric)
	prometheus.MustRegister(metrics.AuthzDecisionMetric)
	prometheus.MustRegister(metrics.UpstreamErrorMetric)
}

// Gateway is the authenticating reverse proxy service.
type Gateway struct {
	Config          Configuration
	Log             *zap.Logger
	Router          chi.Router
	adminRouter     chi.Router
	cookManager     *cookie.Manager
	upstreams       map[string]proxycore.ReverseProxy
	metricsHandler  http.Handler
	accessForbidden func(wrt http.ResponseWriter, req *http.Request) context.Context
}

// Configuration bundles the static config with the programmatically
// registered collaborators: the directory demultiplexer, the external
// authenticators and the optional account provisioner.
type Configuration struct {
	Gateway        *config.Config
	Demultiplexer  *identity.Demultiplexer
	Authenticators []identity.Authenticator
	Provisioner    identity.AccountProvisioner
}

// NewGateway creates the gateway from configuration. All wiring errors,
// bad role patterns, bad url patterns, dangling directory references,
// surface here and prevent the service from starting.
//
//nolint:cyclop
func NewGateway(cfg Configuration, log *zap.Logger) (*Gateway, error) {
	var err error
	if log == nil {
		log, err = createLogger(cfg.Gateway)
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.Gateway.IsValid(); err != nil {
		return nil, err
	}
	if cfg.Demultiplexer == nil {
		return nil, apperrors.ErrNoDirectories
	}
	for _, dir := range cfg.Gateway.Directories {
		if !cfg.Demultiplexer.Has(dir.Name) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownDirectory, dir.Name)
		}
	}

	log.Info(
		"starting the service",
		zap.String("prog", constant.Prog),
		zap.String("author", constant.Author),
		zap.String("version", proxycore.Version),
	)

	svc := &Gateway{
		Config:         cfg,
		Log:            log,
		metricsHandler: promhttp.Handler(),
	}

	svc.cookManager = &cookie.Manager{
		CookieDomain:   cfg.Gateway.CookieDomain,
		SameSiteCookie: cfg.Gateway.SameSiteCookie,
		HTTPOnlyCookie: cfg.Gateway.HTTPOnlyCookie,
		SecureCookie:   cfg.Gateway.SecureCookie,
	}

	roleMapper, err := identity.NewRoleMapper(cfg.Gateway.RolesMappings)
	if err != nil {
		return nil, err
	}

	mappers := identity.NewMapperChain(
		identity.NewLDAPAccountMapper(cfg.Demultiplexer),
		identity.NewOAuth2AccountMapper(cfg.Demultiplexer, cfg.Gateway.OAuth2Directory),
		identity.NewPreauthMapper(cfg.Demultiplexer, cfg.Gateway.PreauthDirectory),
	)

	customizerList := []identity.Customizer{identity.NewRolesCustomizer(roleMapper)}
	if cfg.Gateway.ProvisionAccounts && cfg.Provisioner != nil {
		customizerList = append(customizerList, identity.NewProvisioningCustomizer(cfg.Provisioner))
	}
	customizers := identity.NewCustomizerChain(customizerList...)

	// copy the registered authenticators, appending in place could alias
	// the caller's backing array
	authenticators := make([]identity.Authenticator, 0, len(cfg.Authenticators)+1)
	authenticators = append(authenticators, cfg.Authenticators...)
	if cfg.Gateway.EnablePreauth {
		authenticators = append(authenticators, identity.PreauthAuthenticator{})
	}

	router := target.NewRouter(cfg.Gateway.Routes)
	resolver, err := target.NewConfigResolver(cfg.Gateway)
	if err != nil {
		return nil, err
	}

	if err := svc.createUpstreamProxies(); err != nil {
		return nil, err
	}

	svc.accessForbidden = func(wrt http.ResponseWriter, req *http.Request) context.Context {
		return proxycore.AccessForbidden(log, wrt, req)
	}

	engine := chi.NewRouter()
	engine.NotFound(handlers.EmptyHandler)
	engine.MethodNotAllowed(handlers.EmptyHandler)
	engine.Use(gwmiddleware.MethodCheckMiddleware(log))
	engine.Use(chimiddleware.Recoverer)

	if cfg.Gateway.EnableRequestID {
		log.Info("enabled the correlation request id middleware")
		engine.Use(gwmiddleware.RequestIDMiddleware(cfg.Gateway.RequestIDHeader))
	}

	engine.Use(gwmiddleware.EntrypointMiddleware(log))

	if cfg.Gateway.EnableLogging {
		engine.Use(gwmiddleware.LoggingMiddleware(log, cfg.Gateway.Verbose))
	}

	if cfg.Gateway.EnableSecurityFilter {
		engine.Use(gwmiddleware.SecurityMiddleware(
			log,
			cfg.Gateway.Hostnames,
			cfg.Gateway.EnableBrowserXSSFilter,
			cfg.Gateway.ContentSecurityPolicy,
			cfg.Gateway.EnableContentNoSniff,
			cfg.Gateway.EnableFrameDeny,
			svc.accessForbidden,
		))
	}

	if len(cfg.Gateway.ResponseHeaders) > 0 {
		engine.Use(gwmiddleware.ResponseHeaderMiddleware(cfg.Gateway.ResponseHeaders))
	}

	// the proxying wrapper runs outermost of the identity stages: the
	// inner chain resolves identity, authorizes and rewrites headers,
	// the wrapper forwards whatever was not denied
	engine.Use(gwmiddleware.ProxyMiddleware(log, router, svc.upstreams, cfg.Gateway.Headers))

	// step: the gateway-owned endpoints must be marked before the
	// authorization stage runs. The deny set mirrors the routes
	// registered below, a reserved path not served on this listener is
	// an ordinary proxied path under the access rules.
	gatewayEndpoints := []string{constant.LoginURL, constant.LogoutURL, constant.WhoamiURL}
	if cfg.Gateway.ListenAdmin == "" {
		gatewayEndpoints = append(gatewayEndpoints, constant.HealthURL)
		if cfg.Gateway.EnableMetrics {
			gatewayEndpoints = append(gatewayEndpoints, constant.MetricsURL)
		}
	}
	engine.Use(gwmiddleware.ProxyDenyMiddleware(log, gatewayEndpoints...))

	engine.Use(gwmiddleware.IdentityMiddleware(
		log,
		authenticators,
		mappers,
		customizers,
		svc.cookManager,
	))
	engine.Use(gwmiddleware.AuthorizationMiddleware(log, router, resolver, svc.accessForbidden))
	engine.Use(gwmiddleware.IdentityHeadersMiddleware(log, resolver, gwheaders.DefaultPipeline()))

	metricsHandler := handlers.ProxyMetricsHandler(
		cfg.Gateway.LocalhostMetrics,
		func(wrt http.ResponseWriter, req *http.Request) { svc.accessForbidden(wrt, req) },
		svc.metricsHandler,
	)
	if cfg.Gateway.EnableMetrics {
		log.Info("enabled the service metrics middleware", zap.String("path", constant.MetricsURL))
	}

	// the admin endpoints stay on the main listener unless a separate
	// one is set
	engine.Get(constant.LoginURL, handlers.LoginHandler(log))
	engine.Get(constant.LogoutURL, handlers.LogoutHandler(svc.cookManager))
	engine.Get(constant.WhoamiURL, handlers.WhoamiHandler(log))
	if cfg.Gateway.ListenAdmin == "" {
		engine.Get(constant.HealthURL, handlers.HealthHandler)
		if cfg.Gateway.EnableMetrics {
			engine.Get(constant.MetricsURL, metricsHandler)
		}
	}

	if cfg.Gateway.ListenAdmin != "" {
		adminEngine := chi.NewRouter()
		adminEngine.MethodNotAllowed(handlers.EmptyHandler)
		adminEngine.NotFound(handlers.EmptyHandler)
		adminEngine.Use(chimiddleware.Recoverer)
		adminEngine.Get(constant.HealthURL, handlers.HealthHandler)
		if cfg.Gateway.EnableMetrics {
			adminEngine.Get(constant.MetricsURL, metricsHandler)
		}
		svc.adminRouter = adminEngine
	}

	svc.Router = engine
	return svc, nil
}

// createLogger is responsible for creating the service logger
func createLogger(cfg *config.Config) (*zap.Logger, error) {
	httplog.SetOutput(io.Discard) // disable the http logger

	if cfg.DisableAllLogging {
		return zap.NewNop(), nil
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.DisableStacktrace = true
	zapConfig.DisableCaller = true
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	// are we enabling json logging?
	if !cfg.EnableJSONLogging {
		zapConfig.Encoding = "console"
	}

	// are we running verbose mode?
	if cfg.Verbose {
		httplog.SetOutput(os.Stderr)
		zapConfig.DisableCaller = false
		zapConfig.Development = true
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	return zapConfig.Build()
}

// createUpstreamProxies builds one reverse proxy per distinct route
// target. Transport failures map to 503 for connectivity problems and
// 502 for everything else, an unreachable upstream is not a server bug.
func (r *Gateway) createUpstreamProxies() error {
	cfg := r.Config.Gateway
	r.upstreams = make(map[string]proxycore.ReverseProxy, len(cfg.Routes))

	dialer := &net.Dialer{
		KeepAlive: 10 * time.Second,
		Timeout:   cfg.UpstreamTimeout,
	}

	for _, route := range cfg.Routes {
		if _, exists := r.upstreams[route.Target]; exists {
			continue
		}

		endpoint, err := url.Parse(route.Target)
		if err != nil {
			return errors.Join(apperrors.ErrInvalidRouteTarget, err)
		}

		proxy := httputil.NewSingleHostReverseProxy(endpoint)
		proxy.Transport = &http.Transport{
			DialContext:       dialer.DialContext,
			MaxIdleConns:      cfg.MaxIdleConns,
			ForceAttemptHTTP2: true,
		}

		targetHost := endpoint.Host
		logger := r.Log
		proxy.ErrorHandler = func(wrt http.ResponseWriter, req *http.Request, err error) {
			metrics.UpstreamErrorMetric.WithLabelValues(targetHost).Inc()

			status := http.StatusBadGateway
			var netErr net.Error
			if errors.As(err, &netErr) || isConnectionError(err) {
				status = http.StatusServiceUnavailable
			}

			logger.Error(apperrors.ErrUpstreamUnreachable.Error(),
				zap.String("target", targetHost),
				zap.Int("status", status),
				zap.Error(err),
			)
			wrt.WriteHeader(status)
		}

		r.upstreams[route.Target] = proxy
	}

	return nil
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	return errors.As(err, &opErr) || errors.As(err, &dnsErr)
}

// Run starts the gateway and blocks until the context is cancelled,
// then shuts down gracefully.
//
//nolint:cyclop
func (r *Gateway) Run(ctx context.Context) error {
	cfg := r.Config.Gateway

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      r.Router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	errCh := make(chan error, 2)

	go func() {
		r.Log.Info("gateway listening", zap.String("interface", cfg.Listen))

		var err error
		if cfg.TLSCertificate != "" {
			err = server.ListenAndServeTLS(cfg.TLSCertificate, cfg.TLSPrivateKey)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- errors.Join(apperrors.ErrStartMainHTTP, err)
		}
	}()

	var adminServer *http.Server
	if cfg.ListenAdmin != "" && r.adminRouter != nil {
		adminServer = &http.Server{
			Addr:    cfg.ListenAdmin,
			Handler: r.adminRouter,
		}
		go func() {
			r.Log.Info("admin endpoint listening", zap.String("interface", cfg.ListenAdmin))

			var err error
			if cfg.ListenAdminScheme == constant.SecureScheme && cfg.TLSCertificate != "" {
				err = adminServer.ListenAndServeTLS(cfg.TLSCertificate, cfg.TLSPrivateKey)
			} else {
				err = adminServer.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- errors.Join(apperrors.ErrStartAdminHTTP, err)
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerGraceTimeout)
	defer cancel()

	if adminServer != nil {
		_ = adminServer.Shutdown(shutdownCtx)
	}
	return server.Shutdown(shutdownCtx)
}
