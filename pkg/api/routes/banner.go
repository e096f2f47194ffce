package routes

import "github.com/gofiber/fiber/v2"

const banner = "Hello from morningstar! Try /served_today, /stop/<name>, /from/<a>/to/<b> or /status"

func Banner(c *fiber.Ctx) error {
	return c.SendString(banner)
}
