package server

// Route path constants
// All bridge routes are defined here to ensure consistency and prevent typos
const (
	// Flow entry points
	RouteLogin    = "/auth/login"
	RouteRegister = "/auth/register"
	RouteSocial   = "/auth/social/{provider}"

	// Provider return
	RouteCallback         = "/auth/callback"
	RouteCallbackFragment = "/auth/callback/fragment"

	// Session surface
	RouteLogout  = "/auth/logout"
	RouteSession = "/auth/session"
	RouteRefresh = "/auth/refresh"

	// Page-script support
	RouteBootstrap = "/auth/bootstrap"

	RouteHealthz = "/healthz"
)
