package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Chats
		r.Post("/chats", h.CreateChat)
		r.Get("/chats", h.ListChats)
		r.Get("/chats/{id}", h.GetChat)
		r.Delete("/chats/{id}", h.DeleteChat)

		// Turn processing and state tracks
		r.Post("/chats/{id}/turns", h.SubmitTurn)
		r.Get("/chats/{id}/messages", h.ListChatMessages)
		r.Get("/chats/{id}/units", h.ListChatUnits)

		// Image description utility
		r.Post("/chats/{id}/describe-image", h.DescribeImage)

		// Challenge sub-flow
		r.Post("/chats/{id}/challenge", h.IssueChallenge)
		r.Post("/chats/{id}/challenge/validate", h.ValidateChallenge)
		r.Get("/chats/{id}/challenge", h.GetChallengeStatus)
	})
}
