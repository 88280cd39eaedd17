package server

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/djokodonev/egav-web-frontend/authflow"
	"github.com/djokodonev/egav-web-frontend/authflow/flowrepo"
	"github.com/djokodonev/egav-web-frontend/bootstrap"
	"github.com/djokodonev/egav-web-frontend/exchange"
	"github.com/djokodonev/egav-web-frontend/identity"
	"github.com/djokodonev/egav-web-frontend/internal/config"
	"github.com/djokodonev/egav-web-frontend/server/session"
	"github.com/djokodonev/egav-web-frontend/tokenstore"
)

// Server is the bridge's HTTP surface. Every route resolves the tenant from
// the request host before acting; nothing except the bootstrap base URL is
// statically configured.
type Server struct {
	env    string // Environment (e.g., "DEV", "production")
	mux    *http.ServeMux
	routes []string
	config config.Config

	resolver   *bootstrap.Resolver
	initiator  *authflow.Initiator
	exchanger  *exchange.Client
	identities *identity.Client
	store      *tokenstore.Store
	sessions   *session.Manager
}

func New(cfg config.Config) (*Server, error) {
	resolver, err := bootstrap.NewResolver(cfg.GetBootstrapBaseURL())
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create tenant resolver: %w", err)
	}

	flows := flowrepo.NewInMemoryRepo()
	initiator, err := authflow.NewInitiator(flows)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create flow initiator: %w", err)
	}

	exchanger, err := exchange.NewClient(flows,
		exchange.WithFlowTimeout(cfg.GetFlowStateTimeout()))
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create exchange client: %w", err)
	}

	s := &Server{
		env:        cfg.GetEnv(),
		mux:        http.NewServeMux(),
		config:     cfg,
		resolver:   resolver,
		initiator:  initiator,
		exchanger:  exchanger,
		identities: identity.NewClient(),
		store:      tokenstore.New(cfg.GetAccessCookieName(), cfg.GetRefreshCookieName()),
		sessions: session.NewManager(session.NewInMemoryRepo(), exchanger,
			session.WithMaxAge(cfg.GetMaxSessionAge())),
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Shutdown stops every session's refresh scheduler.
func (s *Server) Shutdown() {
	s.sessions.Shutdown()
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}

// hostname strips any port from the request host before tenant resolution.
func hostname(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.Host); err == nil {
		return host
	}
	return r.Host
}
