package routes

import (
	"github.com/Dosada05/field-control/handlers"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func SetupRoutes(
	router *chi.Mux,
	controlHandler *handlers.ControlHandler,
	matchHandler *handlers.MatchHandler,
	teamHandler *handlers.TeamHandler,
	bracketHandler *handlers.BracketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
	}))

	router.Route("/control", func(r chi.Router) {
		r.Get("/", controlHandler.GetControl)
		r.Post("/", controlHandler.PostControl)
	})
	router.Get("/ws/control", controlHandler.ServeWs)

	router.Route("/matches", func(r chi.Router) {
		r.Get("/", matchHandler.List)
		r.Post("/", matchHandler.Create)
		r.Get("/{id}", matchHandler.Get)
		r.Delete("/{id}", matchHandler.Delete)
		r.Put("/{id}/events", matchHandler.ReplaceEvents)
	})

	router.Route("/teams", func(r chi.Router) {
		r.Get("/", teamHandler.List)
		r.Post("/", teamHandler.Create)
		r.Get("/{id}", teamHandler.Get)
		r.Put("/{id}", teamHandler.Update)
		r.Delete("/{id}", teamHandler.Delete)
	})

	router.Route("/bracket", func(r chi.Router) {
		r.Get("/", bracketHandler.List)
		r.Post("/", bracketHandler.Generate)
		r.Put("/winner", bracketHandler.UpdateWinner)
		r.Delete("/", bracketHandler.Delete)
	})
}
