package router

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	hrest "engagement-service/internal/handler/http"
	wshandler "engagement-service/internal/handler/ws"
	"engagement-service/internal/middleware"
)

// SetupRoutes configures the HTTP routes for the engagement service
func SetupRoutes(
	r chi.Router,
	h *hrest.EngagementHandler,
	wsHandler *wshandler.WSHandler,
	auth *middleware.Verifier,
	rdb *redis.Client,
) chi.Router {
	// ---- Global Middleware ----
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
		},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(middleware.RateLimiter(rdb, 100, time.Minute, 10*time.Minute, "global"))

	// ============================================================
	// Engagement routes (all require auth)
	// ============================================================
	r.Route("/api/v1/engagements", func(r chi.Router) {
		r.Use(auth.Middleware)

		// Start a new engagement (broadcast to one or more providers)
		r.Post("/requests", h.StartRequest)

		// Mailbox
		r.Get("/notifications", h.ListNotifications)
		r.Get("/notifications/unread/count", h.CountUnread)
		r.Patch("/notifications/{id}/read", h.MarkAsRead)
		r.Delete("/notifications/{id}", h.DeleteNotification)

		// Protocol transitions
		r.Post("/notifications/{id}/accept", h.Accept)
		r.Post("/notifications/{id}/reject", h.Reject)
		r.Post("/notifications/{id}/contact", h.Contact)
		r.Post("/notifications/{id}/confirm", h.Confirm)
		r.Post("/notifications/{id}/reschedule", h.Reschedule)
		r.Post("/notifications/{id}/cancel", h.Cancel)
		r.Post("/notifications/{id}/rating", h.SubmitRating)

		// Contact audit trail
		r.Get("/contact-pending", h.ListContactPending)

		// WebSocket endpoint (full snapshot on every change)
		r.Get("/notifications/ws", wsHandler.HandleMailbox)
	})

	r.Route("/api/v1/reviews", func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Get("/", h.ListReviews)
	})

	return r
}
