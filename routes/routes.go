package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/avelkins10/kin-hvac-tool-sub001/controllers"
	"github.com/avelkins10/kin-hvac-tool-sub001/middlewares"
)

// Register wires all HTTP routes.
func Register(app *fiber.App) {
	api := app.Group("/api")

	// Public auth endpoints
	api.Post("/registration", controllers.Register)
	api.Post("/login", controllers.Login)
	api.Post("/logout", controllers.Logout)

	// Lender callbacks authenticate with their own credentials, not JWT.
	app.Post("/webhooks/finance/:provider", controllers.FinanceWebhook)

	// Protected endpoints (JWT auth)
	protected := api.Group("")
	protected.Use(middlewares.IsAuthenticatedHeader())

	// Idempotency guard FIRST (not tied to request TX)
	protected.Use(middlewares.Idempotency())

	// Then per-request tenant transaction (pins search_path and commits/rolls back)
	protected.Use(middlewares.TenantTx())

	// Proposals
	protected.Post("/proposal", controllers.CreateProposal)
	protected.Get("/proposals", controllers.GetProposals)
	protected.Get("/proposal/:id", controllers.GetProposal)
	protected.Put("/proposal/:id", controllers.UpdateProposal)

	// Financing
	protected.Post("/finance/lightreach/apply", controllers.ApplyFinance)
	protected.Get("/finance/lightreach/status/:applicationId", controllers.FinanceStatus)
	protected.Get("/finance/lightreach/quote/:accountId", controllers.GetFinanceQuote)
	protected.Post("/finance/lightreach/quote/:accountId", controllers.CreateFinanceQuote)
	protected.Delete("/finance/lightreach/quote/:accountId", controllers.VoidFinanceQuote)
}
