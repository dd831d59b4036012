package utils

import (
	"net/http"
	"strings"

	"github.com/secgate/secgate/pkg/constant"
)

var allHTTPMethods = []string{
	http.MethodDelete,
	http.MethodGet,
	http.MethodHead,
	http.MethodOptions,
	http.MethodPatch,
	http.MethodPost,
	http.MethodPut,
	http.MethodTrace,
}

// RealIP retrieves the client ip address from a http request, taking the
// forwarding headers set by a fronting proxy into account.
func RealIP(req *http.Request) string {
	realIP := req.Header.Get(constant.HeaderXRealIP)
	forwardedFor := req.Header.Get(constant.HeaderXForwardedFor)

	switch {
	case forwardedFor != "":
		idx := strings.Index(forwardedFor, ", ")
		if idx == -1 {
			idx = len(forwardedFor)
		}
		return forwardedFor[:idx]
	case realIP != "":
		return realIP
	}

	addr := req.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		addr = addr[:idx]
	}
	return addr
}

// IsValidHTTPMethod checks the method is a standard http method.
func IsValidHTTPMethod(method string) bool {
	for _, x := range allHTTPMethods {
		if method == x {
			return true
		}
	}
	return false
}

// CanonicalRole normalizes a role name to its ROLE_ prefixed form, the
// comparison of role names is insensitive to the prefix but not to case.
func CanonicalRole(role string) string {
	if strings.HasPrefix(role, constant.RolePrefix) {
		return role
	}
	return constant.RolePrefix + role
}

// HasRole checks whether the held roles contain at least one of the wanted
// roles, normalizing the ROLE_ prefix on both sides.
func HasRole(wanted, held []string) bool {
	for _, want := range wanted {
		for _, have := range held {
			if CanonicalRole(want) == CanonicalRole(have) {
				return true
			}
		}
	}
	return false
}

// ContainsString is a helper for checking membership of a string slice.
func ContainsString(value string, list []string) bool {
	for _, x := range list {
		if x == value {
			return true
		}
	}
	return false
}
