package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/ahmedmirza994/whatsapp-sub001/auth"
)

type RouterConfig struct {
	Gate           *auth.Gate
	Users          *UserHandler
	Conversations  *ConversationHandler
	Messages       *MessageHandler
	Sockets        *WebSocketHandler
	AllowedOrigins []string
}

// NewRouter wires the REST and WebSocket routes. Everything except signup
// and login sits behind the authentication gate.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler)

	r.Route("/api", func(api chi.Router) {
		api.Post("/signup", cfg.Users.Signup)
		api.Post("/login", cfg.Users.Login)

		api.Group(func(authed chi.Router) {
			authed.Use(cfg.Gate.Middleware)

			authed.Get("/me", cfg.Users.Me)
			authed.Post("/me/picture", cfg.Users.UploadProfilePicture)
			authed.Get("/users/search", cfg.Users.Search)
			authed.Get("/files/{filename}", cfg.Users.GetFile)

			authed.Route("/conversations", func(conversations chi.Router) {
				conversations.Post("/", cfg.Conversations.Create)
				conversations.Get("/", cfg.Conversations.List)
				conversations.Get("/{conversationID}", cfg.Conversations.Get)
				conversations.Post("/{conversationID}/participants", cfg.Conversations.AddParticipant)
				conversations.Delete("/{conversationID}/participants/me", cfg.Conversations.Leave)

				conversations.Post("/{conversationID}/messages", cfg.Messages.Send)
				conversations.Get("/{conversationID}/messages", cfg.Messages.History)
				conversations.Delete("/{conversationID}/messages/{messageID}", cfg.Messages.Delete)
				conversations.Get("/{conversationID}/messages/search", cfg.Messages.Search)
			})

			authed.Get("/ws", cfg.Sockets.Handle)
		})
	})

	return r
}
