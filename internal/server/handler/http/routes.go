package http

import (
	"net/http"

	"github.com/atinyakov/zkkeeper/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter mounts the API under /api.
//
// Routes:
//
//	POST /api/rpc                     → rpcHandler.Public      (CORS, CallerOrigin)
//	POST /api/register                → authHandler.Register   (CertAuth)
//	POST /api/login                   → authHandler.Login      (CertAuth)
//	POST /api/admin/rpc               → rpcHandler.Admin       (CertAuth)
//	GET  /api/pending                 → pendingHandler.List    (CertAuth)
//	POST /api/pending/abandon         → pendingHandler.Abandon (CertAuth)
//	POST /api/pending/{id}/decision   → pendingHandler.Decide  (CertAuth)
//
// Only the public endpoint answers CORS preflights; approver routes stay
// same-origin.
func NewRouter(
	authHandler *AuthHandler,
	rpcHandler *RPCHandler,
	pendingHandler *PendingHandler,
	allowedOrigins []string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	// Only allow requests with Content-Type: application/json
	r.Use(chiMiddleware.AllowContentType("application/json"))
	r.Use(middleware.WithRequestLogging(logger))

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: allowedOrigins,
				AllowedMethods: []string{http.MethodPost},
				AllowedHeaders: []string{"Content-Type", "X-Caller-Origin"},
				MaxAge:         300,
			}))
			r.Use(middleware.CallerOrigin)
			r.Post("/rpc", rpcHandler.Public)
			// Preflights are answered by the CORS handler before reaching here.
			r.Options("/rpc", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.CertAuth)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/admin/rpc", rpcHandler.Admin)
			r.Get("/pending", pendingHandler.List)
			r.Post("/pending/abandon", pendingHandler.Abandon)
			r.Post("/pending/{id}/decision", pendingHandler.Decide)
		})
	})

	return r
}
