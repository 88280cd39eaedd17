package server

import "net/http"

func (s *Server) initRoutes() {
	// Flow entry points
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteRegister, ChainMiddleware(s.RegisterHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteSocial, ChainMiddleware(s.SocialHandler(), s.BrowserMiddleware()...))

	// Provider return
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.CallbackHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteCallback, ChainMiddleware(s.CallbackHandler(), s.APIMiddleware()...)) // For form_post response mode
	s.RegisterRouteHandler("POST "+RouteCallbackFragment, ChainMiddleware(s.FragmentCallbackHandler(), s.APIMiddleware()...))

	// Session surface
	s.RegisterRouteHandler("GET "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteSession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))

	// Page-script support
	s.RegisterRouteHandler("GET "+RouteBootstrap, ChainMiddleware(s.BootstrapHandler(), s.APIMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteHealthz, s.HealthzHandler())
}

func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}
