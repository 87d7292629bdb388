package controllers

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/avelkins10/kin-hvac-tool-sub001/database"
	"github.com/avelkins10/kin-hvac-tool-sub001/finance"
	"github.com/avelkins10/kin-hvac-tool-sub001/logger"
	"github.com/avelkins10/kin-hvac-tool-sub001/mailer"
	"github.com/avelkins10/kin-hvac-tool-sub001/models"
)

// Mail is the outbound mailer for status notifications. Wired in main;
// defaults to a no-op so webhook ingestion never depends on mail config.
var Mail mailer.Mailer = mailer.NopMailer{}

// webhookPayload covers both callback shapes the lender has shipped: the
// current {event, accountId, accountReference, status, ...} body and the
// legacy {applicationId, status} body. referenceId is an alias some older
// callbacks used for accountReference.
type webhookPayload struct {
	Event            string         `json:"event"`
	AccountID        string         `json:"accountId"`
	AccountReference string         `json:"accountReference"`
	ReferenceID      string         `json:"referenceId"`
	ApplicationID    string         `json:"applicationId"`
	Status           string         `json:"status"`
	ConsumerName     string         `json:"consumerName"`
	Data             map[string]any `json:"data"`
}

// wellKnownWebhookFields are the keys the payload struct binds; anything else
// in the body is carried along into the stored response payload.
var wellKnownWebhookFields = map[string]bool{
	"event": true, "accountId": true, "accountReference": true,
	"referenceId": true, "applicationId": true, "status": true,
	"consumerName": true, "data": true,
}

// accountLookupKeys resolves the account id and reference across the wire
// shapes. The legacy body identifies the account via applicationId.
func (p *webhookPayload) accountLookupKeys() (accountID, reference string) {
	accountID = p.AccountID
	if accountID == "" {
		accountID = p.ApplicationID
	}
	reference = p.AccountReference
	if reference == "" {
		reference = p.ReferenceID
	}
	return accountID, reference
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// authenticateWebhook checks the lender's callback credentials. Three schemes
// are accepted because the lender console has offered all three over time:
// a shared api key header, clientId/clientSecret headers, and HTTP Basic
// carrying the same client pair. With no credentials configured the endpoint
// denies everything unless WEBHOOK_ALLOW_UNAUTHENTICATED=true.
func authenticateWebhook(c *fiber.Ctx) bool {
	apiKey := os.Getenv("LIGHTREACH_WEBHOOK_API_KEY")
	clientID := os.Getenv("LIGHTREACH_WEBHOOK_CLIENT_ID")
	clientSecret := os.Getenv("LIGHTREACH_WEBHOOK_CLIENT_SECRET")

	if apiKey == "" && clientID == "" {
		if os.Getenv("WEBHOOK_ALLOW_UNAUTHENTICATED") == "true" {
			logger.L().Warn("webhook credentials not configured, accepting unauthenticated callback")
			return true
		}
		return false
	}

	if apiKey != "" {
		got := c.Get("apiKey")
		if got == "" {
			got = c.Get("api_key")
		}
		if got != "" && secureEqual(got, apiKey) {
			return true
		}
	}

	if clientID != "" {
		if secureEqual(c.Get("clientId"), clientID) && secureEqual(c.Get("clientSecret"), clientSecret) {
			return true
		}
		if auth := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(auth, "Basic ") {
			raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
			if err == nil {
				if user, pass, ok := strings.Cut(string(raw), ":"); ok {
					if secureEqual(user, clientID) && secureEqual(pass, clientSecret) {
						return true
					}
				}
			}
		}
	}

	return false
}

// FinanceWebhook ingests lender status callbacks. The contract with the
// lender is deliberately forgiving: unknown events are acknowledged as
// no-ops and an unmatched account answers 200 so the lender stops retrying
// a callback we can never route.
func FinanceWebhook(c *fiber.Ctx) error {
	if c.Params("provider") != finance.LenderLightReach {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown provider"})
	}
	if !authenticateWebhook(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid webhook credentials"})
	}

	var payload webhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed webhook payload"})
	}
	accountID, reference := payload.accountLookupKeys()
	if accountID == "" && reference == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "accountId, accountReference or applicationId is required"})
	}

	log := logger.L().With(
		zap.String("event", payload.Event),
		zap.String("accountId", accountID),
	)

	route, err := lookupRoute(accountID, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Info("webhook for unknown account acknowledged")
			return c.JSON(fiber.Map{"received": true, "message": "Application not found"})
		}
		return err
	}

	newStatus, recognized := finance.MapWebhookEvent(payload.Event, payload.Status)
	if !recognized {
		log.Info("unrecognized webhook event acknowledged as no-op")
		return c.JSON(fiber.Map{
			"received":      true,
			"applicationId": route.ApplicationID,
			"message":       "Event ignored",
		})
	}

	tenantDB, err := database.TenantSession(route.TenantSchema)
	if err != nil {
		return err
	}

	var app models.FinanceApplication
	if err := tenantDB.Where("id = ?", route.ApplicationID).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("webhook route points at missing application", zap.String("applicationId", route.ApplicationID))
			return c.JSON(fiber.Map{"received": true, "message": "Application not found"})
		}
		return err
	}

	update := map[string]any{
		"status":    string(newStatus),
		"lastEvent": payload.Event,
	}
	if payload.Status != "" {
		update["lenderStatus"] = payload.Status
	}
	if extra := webhookExtras(c.Body(), payload.Data); len(extra) > 0 {
		update["webhook"] = extra
	}
	merged, err := finance.MergeResponse(app.ResponsePayload, update)
	if err != nil {
		return err
	}

	previous := app.Status
	app.Status = string(newStatus)
	app.ResponsePayload = merged
	if err := tenantDB.Save(&app).Error; err != nil {
		return err
	}

	if previous != app.Status {
		notifyStatusChange(c, tenantDB, &app, payload.Event, log)
	}

	return c.JSON(fiber.Map{
		"received":      true,
		"applicationId": app.ID,
		"status":        app.Status,
		"event":         payload.Event,
	})
}

// webhookExtras collects everything the lender sent beyond the bound fields:
// the explicit data object plus any top-level keys we do not recognize, so
// payload additions on the lender side land in the audit trail unasked.
func webhookExtras(body []byte, data map[string]any) map[string]any {
	extra := map[string]any{}
	raw := map[string]any{}
	if err := json.Unmarshal(body, &raw); err == nil {
		for k, v := range raw {
			if !wellKnownWebhookFields[k] {
				extra[k] = v
			}
		}
	}
	for k, v := range data {
		extra[k] = v
	}
	return extra
}

func lookupRoute(accountID, referenceID string) (*models.FinanceAccountRoute, error) {
	var route models.FinanceAccountRoute
	tbl := database.DB.Table("public.finance_account_routes")
	if accountID != "" {
		if err := tbl.Where("external_id = ?", accountID).First(&route).Error; err == nil {
			return &route, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if referenceID != "" {
		if err := database.DB.Table("public.finance_account_routes").
			Where("proposal_ref = ?", referenceID).First(&route).Error; err != nil {
			return nil, err
		}
		return &route, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// notifyStatusChange sends decision emails. Mail failures are logged and
// swallowed; the webhook has already been persisted and must still be acked.
func notifyStatusChange(c *fiber.Ctx, tenantDB *gorm.DB, app *models.FinanceApplication, event string, log *zap.Logger) {
	ctx := c.UserContext()

	var proposal models.Proposal
	if err := tenantDB.Where("id = ?", app.ProposalID).First(&proposal).Error; err != nil {
		log.Warn("proposal lookup for notification failed", zap.Error(err))
		return
	}
	name := strings.TrimSpace(proposal.CustomerFirstName + " " + proposal.CustomerLastName)

	var subject, body string
	switch finance.ApplicationStatus(app.Status) {
	case finance.StatusApproved:
		subject, body = mailer.ApprovalSubject(), mailer.ApprovalBody(name)
	case finance.StatusDenied:
		subject, body = mailer.DenialSubject(), mailer.DenialBody(name)
	case finance.StatusConditional:
		subject, body = mailer.ConditionalSubject(), mailer.ConditionalBody(name)
	}
	if subject != "" && proposal.CustomerEmail != "" {
		if err := Mail.Send(ctx, proposal.CustomerEmail, subject, body); err != nil {
			log.Warn("customer notification failed", zap.Error(err))
		}
	}

	if internal := os.Getenv("MAIL_INTERNAL_RECIPIENT"); internal != "" {
		err := Mail.Send(ctx, internal,
			mailer.InternalStatusSubject(app.ID, app.Status),
			mailer.InternalStatusBody(app.ID, app.ProposalID, app.Status, event))
		if err != nil {
			log.Warn("internal notification failed", zap.Error(err))
		}
	}
}
