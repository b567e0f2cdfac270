package handler

import (
	"net/http"
	"time"

	"mediatrack/internal/catalog"
	"mediatrack/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	Registry           *service.Registry
	Catalog            catalog.Provider // optional
	JWTSecret          string
	CORSOrigins        []string
	RateLimitPerMinute int
}

func NewRouter(cfg RouterConfig) http.Handler {
	watchH := NewWatchlistHandler(cfg.Catalog)
	ratingH := NewRatingHandler()
	socialH := NewSocialHandler()
	sessionH := NewSessionHandler(cfg.Registry)
	catalogH := NewCatalogHandler(cfg.Catalog)

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(JWTAuth(cfg.JWTSecret))
		if cfg.RateLimitPerMinute > 0 {
			r.Use(httprate.Limit(cfg.RateLimitPerMinute, time.Minute,
				httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
					return IdentityFromContext(r.Context()).UID, nil
				})))
		}

		r.Get("/catalog/search", catalogH.Search)

		r.Route("/me", func(r chi.Router) {
			r.Post("/signout", sessionH.SignOut)

			r.Group(func(r chi.Router) {
				r.Use(Sessions(cfg.Registry))

				r.Get("/", sessionH.GetMe)
				r.Get("/ws", sessionH.Stream)

				r.Get("/watchlist", watchH.GetWatchlist)
				r.Post("/watchlist", watchH.AddToWatchlist)
				r.Put("/watchlist/{id}/category", watchH.MoveToCategory)
				r.Put("/watchlist/{id}/notes", watchH.UpdateNotes)
				r.Delete("/watchlist/{id}", watchH.RemoveFromWatchlist)

				r.Get("/lists", watchH.GetLists)
				r.Post("/lists", watchH.CreateList)
				r.Delete("/lists/{listId}", watchH.DeleteList)
				r.Post("/lists/{listId}/items", watchH.AddListItem)
				r.Delete("/lists/{listId}/items/{id}", watchH.RemoveListItem)

				r.Get("/ratings", ratingH.GetMyRatings)
				r.Put("/ratings/{key}", ratingH.PutMyRating)
				r.Delete("/ratings/{key}", ratingH.DeleteMyRating)

				r.Get("/profile", socialH.GetMyProfile)
				r.Patch("/profile", socialH.PatchMyProfile)
				r.Patch("/profile/privacy", socialH.PatchMyPrivacy)

				r.Post("/following/reconcile", socialH.Reconcile)
				r.Post("/following/{uid}", socialH.Follow)
				r.Delete("/following/{uid}", socialH.Unfollow)

				r.Get("/users/search", socialH.SearchUsers)
				r.Get("/users/suggested", socialH.SuggestedUsers)
			})
		})

		r.Route("/users/{uid}", func(r chi.Router) {
			r.Use(Sessions(cfg.Registry))
			r.Get("/", socialH.GetUser)
			r.Get("/followers", socialH.GetFollowers)
			r.Get("/following", socialH.GetFollowing)
		})
	})

	return r
}
