package controllers

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/avelkins10/kin-hvac-tool-sub001/database"
	"github.com/avelkins10/kin-hvac-tool-sub001/finance"
	"github.com/avelkins10/kin-hvac-tool-sub001/logger"
	"github.com/avelkins10/kin-hvac-tool-sub001/middlewares"
	"github.com/avelkins10/kin-hvac-tool-sub001/models"
	"github.com/avelkins10/kin-hvac-tool-sub001/utils"
)

// newProvider is swapped in tests.
var newProvider = finance.NewProvider

type applyDTO struct {
	ProposalID      string `json:"proposalId" validate:"required"`
	ApplicationData struct {
		SSN           string `json:"ssn"`
		Email         string `json:"email"`
		Phone         string `json:"phone"`
		SalesRepName  string `json:"salesRepName"`
		SalesRepEmail string `json:"salesRepEmail"`
	} `json:"applicationData"`
}

// ApplyFinance submits a proposal to the lender and persists the resulting
// FinanceApplication. The tenant transaction scopes the proposal lookup, so
// a caller can only ever submit proposals owned by their own company.
func ApplyFinance(c *fiber.Ctx) error {
	lender := finance.LenderLightReach

	var dto applyDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}

	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant context missing")
	}

	var proposal models.Proposal
	if err := tenantDB.Where("id = ?", dto.ProposalID).First(&proposal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "proposal not found", "code": "PROPOSAL_NOT_FOUND",
			})
		}
		return err
	}

	// Duplicate-submission guard: an active application younger than seven
	// days blocks resubmission; anything older is assumed abandoned.
	var existing []models.FinanceApplication
	if err := tenantDB.Where("proposal_id = ? AND lender = ?", proposal.ID, lender).Find(&existing).Error; err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, app := range existing {
		if finance.IsActiveDuplicate(finance.ApplicationStatus(app.Status), app.CreatedAt, now) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":                 "an active application already exists for this proposal",
				"code":                  finance.CodeDuplicate,
				"existingApplicationId": app.ID,
			})
		}
	}

	// This lender's comfort-plan product prices off a system design; a
	// proposal that cannot produce one is a domain error, not a generic 400.
	design := proposal.SystemDesign()
	if design == nil {
		return finance.NewSystemDesignError("proposal needs selected equipment and home square footage before applying")
	}

	data := &finance.ApplicationData{
		FirstName:    proposal.CustomerFirstName,
		LastName:     proposal.CustomerLastName,
		Email:        proposal.CustomerEmail,
		Phone:        proposal.CustomerPhone,
		SSN:          dto.ApplicationData.SSN,
		Street:       proposal.Street,
		City:         proposal.City,
		State:        proposal.State,
		Zip:          proposal.Zip,
		SystemPrice:  proposal.SystemPrice,
		ProposalRef:  proposal.ID,
		SystemDesign: design,
	}
	if dto.ApplicationData.Email != "" {
		data.Email = dto.ApplicationData.Email
	}
	if dto.ApplicationData.Phone != "" {
		data.Phone = dto.ApplicationData.Phone
	}
	data.SalesRepName = dto.ApplicationData.SalesRepName
	data.SalesRepEmail = dto.ApplicationData.SalesRepEmail
	if data.SalesRepName == "" {
		if userID, _ := c.Locals("userID").(string); userID != "" {
			var rep models.User
			if err := database.DB.Table("public.users").Where("id = ?", userID).First(&rep).Error; err == nil {
				data.SalesRepName = rep.FirstName + " " + rep.LastName
				data.SalesRepEmail = rep.Email
			}
		}
	}

	provider, err := newProvider(lender, logger.L())
	if err != nil {
		return err
	}

	resp, err := provider.CreateApplication(c.UserContext(), data)
	if err != nil {
		return err
	}

	// The stored snapshot is for audit and resubmission review; the SSN and
	// friends never land in the database.
	var inputMap map[string]any
	if blob, err := utils.MarshalJSON(data); err == nil {
		_ = json.Unmarshal(blob, &inputMap)
	}
	inputPayload, _ := utils.MarshalJSON(finance.Redact(inputMap))
	responsePayload, err := finance.MergeResponse(nil, map[string]any{
		"status":       string(resp.Status),
		"lenderStatus": resp.LenderStatus,
		"message":      resp.Message,
		"account":      resp.Raw,
	})
	if err != nil {
		return err
	}

	app := models.FinanceApplication{
		ProposalID:      proposal.ID,
		Lender:          lender,
		Status:          string(resp.Status),
		ExternalID:      resp.ApplicationID,
		InputPayload:    inputPayload,
		ResponsePayload: responsePayload,
	}
	if err := tenantDB.Create(&app).Error; err != nil {
		return err
	}

	// Public routing index so webhooks (which carry no tenant context) can
	// find their way back to this row. This write happens on the shared
	// connection, outside the per-request tenant transaction: if that
	// transaction later rolls back, the route row dangles, which is harmless
	// because the webhook path acks routes whose application is missing.
	schema, _ := c.Locals("schema").(string)
	route := models.FinanceAccountRoute{
		ExternalID:    resp.ApplicationID,
		ProposalRef:   proposal.ID,
		Lender:        lender,
		TenantSchema:  schema,
		ApplicationID: app.ID,
	}
	if err := database.DB.Table("public.finance_account_routes").Create(&route).Error; err != nil {
		logger.L().Error("could not record webhook route", zap.Error(err), zap.String("applicationId", app.ID))
	}

	return c.Status(fiber.StatusCreated).JSON(app)
}

// FinanceStatus is the staleness-aware read path. Records younger than five
// minutes are served from cache; a lender failure on refresh falls back to
// the cached record with a warning rather than failing a polling UI.
func FinanceStatus(c *fiber.Ctx) error {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant context missing")
	}

	var app models.FinanceApplication
	if err := tenantDB.Where("id = ?", c.Params("applicationId")).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "application not found", "code": finance.CodeNotFound,
			})
		}
		return err
	}

	now := time.Now().UTC()
	forceRefresh := c.Query("refresh") == "true"

	if !forceRefresh && finance.IsFresh(app.UpdatedAt, now) {
		return c.JSON(fiber.Map{
			"application": app,
			"cached":      true,
			"cacheAge":    finance.CacheAge(app.UpdatedAt, now),
		})
	}

	// No external id yet (test/offline submissions): cache is all we have.
	if app.ExternalID == "" {
		if len(app.ResponsePayload) > 0 {
			return c.JSON(fiber.Map{
				"application": app,
				"cached":      true,
				"cacheAge":    finance.CacheAge(app.UpdatedAt, now),
			})
		}
		return finance.NewValidationError("applicationId", "application has not been submitted to the lender")
	}

	provider, err := newProvider(app.Lender, logger.L())
	if err != nil {
		return err
	}

	st, err := provider.GetApplicationStatus(c.UserContext(), app.ExternalID)
	if err != nil {
		var fe *finance.Error
		if errors.As(err, &fe) && fe.Code == finance.CodeNotFound {
			// "Does not exist" is not a transient lender failure; surface it.
			return err
		}
		if len(app.ResponsePayload) > 0 {
			logger.L().Warn("lender status refresh failed, serving cache",
				zap.String("applicationId", app.ID), zap.Error(err))
			return c.JSON(fiber.Map{
				"application": app,
				"cached":      true,
				"cacheAge":    finance.CacheAge(app.UpdatedAt, now),
				"warning":     "lender unavailable; returning last known status",
			})
		}
		return err
	}

	update := map[string]any{
		"status":       string(st.Status),
		"lenderStatus": st.LenderStatus,
		"account":      st.Raw,
	}
	if st.Message != "" {
		update["message"] = st.Message
	}

	// Best-effort: a missing schedule must never fail an otherwise
	// successful status fetch.
	if st.Status == finance.StatusApproved || st.Status == finance.StatusConditional {
		sched, serr := provider.GetPaymentSchedule(c.UserContext(), app.ExternalID, &finance.ScheduleOptions{Amount: st.TotalCost})
		if serr != nil {
			logger.L().Warn("payment schedule fetch failed",
				zap.String("applicationId", app.ID), zap.Error(serr))
		} else {
			update["paymentSchedule"] = sched
		}
	}

	merged, err := finance.MergeResponse(app.ResponsePayload, update)
	if err != nil {
		return err
	}

	app.Status = string(st.Status)
	app.ResponsePayload = merged
	if err := tenantDB.Save(&app).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"application": app,
		"cached":      false,
		"cacheAge":    0,
	})
}

// findApplicationByAccount scopes quote operations to the caller's tenant.
func findApplicationByAccount(c *fiber.Ctx) (*gorm.DB, *models.FinanceApplication, error) {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return nil, nil, fiber.NewError(fiber.StatusInternalServerError, "tenant context missing")
	}
	var app models.FinanceApplication
	if err := tenantDB.Where("external_id = ?", c.Params("accountId")).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, &finance.Error{
				Code: finance.CodeNotFound, StatusCode: 404, Message: "no application for this account",
			}
		}
		return nil, nil, err
	}
	return tenantDB, &app, nil
}

func quoteProvider(lender string) (finance.QuoteProvider, error) {
	p, err := newProvider(lender, logger.L())
	if err != nil {
		return nil, err
	}
	qp, ok := p.(finance.QuoteProvider)
	if !ok {
		return nil, finance.NewUnsupportedLenderError(lender)
	}
	return qp, nil
}

func GetFinanceQuote(c *fiber.Ctx) error {
	_, app, err := findApplicationByAccount(c)
	if err != nil {
		return err
	}
	qp, err := quoteProvider(app.Lender)
	if err != nil {
		return err
	}
	quote, err := qp.GetQuote(c.UserContext(), app.ExternalID)
	if err != nil {
		return err
	}
	return c.JSON(quote)
}

type createQuoteDTO struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

// CreateFinanceQuote creates a lender quote and appends it to the
// application's quotes list; earlier quotes are never replaced.
func CreateFinanceQuote(c *fiber.Ctx) error {
	var dto createQuoteDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}

	tenantDB, app, err := findApplicationByAccount(c)
	if err != nil {
		return err
	}
	qp, err := quoteProvider(app.Lender)
	if err != nil {
		return err
	}

	quote, err := qp.CreateQuote(c.UserContext(), app.ExternalID, dto.Amount)
	if err != nil {
		return err
	}

	merged, err := finance.AppendQuote(app.ResponsePayload, map[string]any{
		"quoteId":   quote.QuoteID,
		"status":    quote.Status,
		"amount":    quote.Amount,
		"createdAt": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	app.ResponsePayload = merged
	if err := tenantDB.Save(app).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(quote)
}

func VoidFinanceQuote(c *fiber.Ctx) error {
	quoteID := c.Query("quoteId")
	if quoteID == "" {
		return finance.NewValidationError("quoteId", "quoteId query parameter is required")
	}

	tenantDB, app, err := findApplicationByAccount(c)
	if err != nil {
		return err
	}
	qp, err := quoteProvider(app.Lender)
	if err != nil {
		return err
	}

	quote, err := qp.VoidQuote(c.UserContext(), app.ExternalID, quoteID)
	if err != nil {
		return err
	}

	merged, err := finance.AppendQuote(app.ResponsePayload, map[string]any{
		"quoteId":  quote.QuoteID,
		"status":   "voided",
		"voidedAt": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	app.ResponsePayload = merged
	if err := tenantDB.Save(app).Error; err != nil {
		return err
	}

	return c.JSON(quote)
}
