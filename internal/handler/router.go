package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	authHandler "github.com/planextra/backend/internal/handler/auth"
	realtimeHandler "github.com/planextra/backend/internal/handler/realtime"
	taskHandler "github.com/planextra/backend/internal/handler/task"
	wsHandler "github.com/planextra/backend/internal/handler/workspace"
	middlewarePkg "github.com/planextra/backend/internal/middleware"
	authService "github.com/planextra/backend/internal/service/auth"
	"github.com/planextra/backend/internal/service/authz"
	taskService "github.com/planextra/backend/internal/service/task"
	workspaceService "github.com/planextra/backend/internal/service/workspace"
)

// Deps carries everything the router wires together.
type Deps struct {
	Auth         *authService.Service
	Gate         *authz.Gate
	Workspaces   *workspaceService.Service
	Tasks        *taskService.Service
	Realtime     *realtimeHandler.Handler
	ClientOrigin string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.ClientOrigin))

	auth := authHandler.New(deps.Auth)
	workspaces := wsHandler.New(deps.Workspaces)
	tasks := taskHandler.New(deps.Tasks)

	r.Route("/api", func(api chi.Router) {
		auth.RegisterRoutes(api)

		// Everything below requires a valid bearer token.
		api.Group(func(protected chi.Router) {
			protected.Use(middlewarePkg.RequireAuth(deps.Gate))
			auth.RegisterProtectedRoutes(protected)
			workspaces.RegisterRoutes(protected)
			tasks.RegisterRoutes(protected)
		})
	})

	// The realtime endpoint authenticates during its own handshake.
	deps.Realtime.RegisterRoutes(r)

	return r
}
