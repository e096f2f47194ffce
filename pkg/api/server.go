package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/morningstar-transit/morningstar/pkg/api/routes"
	"github.com/rs/zerolog/log"
)

func NewApp(state *routes.State) *fiber.App {
	webApp := fiber.New(fiber.Config{
		UnescapePath:          true,
		DisableStartupMessage: true,
	})
	webApp.Use(NewLogger())

	webApp.Get("/", routes.Banner)
	webApp.Get("/served_today", state.ServedToday)
	webApp.Get("/stop/:name", state.StopArrivals)
	webApp.Get("/from/:from/to/:to", state.StoptimesBetween)
	webApp.Get("/status", state.Status)

	return webApp
}

// SetupServer serves until ctx is cancelled
func SetupServer(ctx context.Context, listen string, state *routes.State) error {
	webApp := NewApp(state)

	go func() {
		<-ctx.Done()
		if err := webApp.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Failed to shut down web server")
		}
	}()

	log.Info().Str("listen", listen).Msg("Starting web server")

	return webApp.Listen(listen)
}
