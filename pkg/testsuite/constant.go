package testsuite

const (
	FakeAdminRole     = "ROLE_ADMIN"
	FakeUserRole      = "ROLE_USER"
	FakeAdminURL      = "/app/admin"
	FakeAdminAllURL   = FakeAdminURL + "/**"
	FakePublicURL     = "/app/public"
	FakePublicAllURL  = FakePublicURL + "/**"
	FakeForbiddenURL  = "/app/internal"
	FakeForbiddenAll  = FakeForbiddenURL + "/**"
	FakeTestURL       = "/app/data"
	FakeDirectory     = "corp"
	ValidUsername     = "alice"
	ValidUserEmail    = "alice@example.com"
	SharedEmail       = "shared@example.com"
	TestProxyAccepted = "Proxy-Accepted"

	// headers driving the fake oauth2 authenticator
	TestOAuth2SubjectHeader = "X-Test-OAuth2-Subject"
	TestOAuth2EmailHeader   = "X-Test-OAuth2-Email"
)
