package finance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

const (
	stagingBaseURL    = "https://api.staging.palmetto.finance"
	productionBaseURL = "https://api.palmetto.finance"
)

// Config holds the lender connection settings, read from the environment.
type Config struct {
	BaseURL    string
	AuthURL    string
	Username   string
	Password   string
	TestMode   bool
	MaxRetries int
}

// ConfigFromEnv builds a lender Config. LIGHTREACH_ENV selects the staging or
// production base URL unless LIGHTREACH_BASE_URL overrides it outright.
func ConfigFromEnv() Config {
	base := os.Getenv("LIGHTREACH_BASE_URL")
	if base == "" {
		if os.Getenv("LIGHTREACH_ENV") == "production" {
			base = productionBaseURL
		} else {
			base = stagingBaseURL
		}
	}
	base = strings.TrimSuffix(base, "/")

	authURL := os.Getenv("LIGHTREACH_AUTH_URL")
	if authURL == "" {
		authURL = base + "/auth/login"
	}

	return Config{
		BaseURL:  base,
		AuthURL:  authURL,
		Username: os.Getenv("LIGHTREACH_API_USERNAME"),
		Password: os.Getenv("LIGHTREACH_API_PASSWORD"),
		TestMode: os.Getenv("LIGHTREACH_TEST_MODE") == "true",
	}
}

// ApplicationData is the normalized finance vocabulary for one submission.
type ApplicationData struct {
	FirstName     string        `json:"firstName" validate:"required"`
	LastName      string        `json:"lastName" validate:"required"`
	Email         string        `json:"email" validate:"required"`
	Phone         string        `json:"phone" validate:"required"`
	SSN           string        `json:"ssn,omitempty"`
	Street        string        `json:"street"`
	City          string        `json:"city"`
	State         string        `json:"state"`
	Zip           string        `json:"zip"`
	SystemPrice   float64       `json:"systemPrice"`
	SalesRepName  string        `json:"salesRepName,omitempty"`
	SalesRepEmail string        `json:"salesRepEmail,omitempty"`
	ProposalRef   string        `json:"proposalRef,omitempty"`
	SystemDesign  *SystemDesign `json:"systemDesign,omitempty"`
}

// SystemDesign carries the equipment and home data the lender uses for more
// accurate comfort-plan pricing.
type SystemDesign struct {
	SquareFootage float64      `json:"squareFootage"`
	Systems       []SystemUnit `json:"systems"`
}

type SystemUnit struct {
	Name    string  `json:"name"`
	Tonnage float64 `json:"tonnage,omitempty"`
	SEER2   float64 `json:"seer2,omitempty"`
	Price   float64 `json:"price"`
}

// ApplicationResponse is the normalized result of a create or status call.
type ApplicationResponse struct {
	ApplicationID string            `json:"applicationId"`
	Status        ApplicationStatus `json:"status"`
	LenderStatus  string            `json:"lenderStatus,omitempty"`
	Message       string            `json:"message,omitempty"`
	TotalCost     float64           `json:"totalCost,omitempty"`
	Raw           map[string]any    `json:"raw,omitempty"`
}

// PricingProduct is one entry of the lender's raw product list.
type PricingProduct struct {
	ProductID       string          `json:"productId"`
	TermYears       int             `json:"termYears"`
	EscalationRate  float64         `json:"escalationRate"`
	Payments        []YearlyPayment `json:"payments"`
	TotalAmountPaid float64         `json:"totalAmountPaid"`
}

// YearlyPayment is the monthly payment in effect for one contract year.
type YearlyPayment struct {
	Year           int     `json:"year"`
	MonthlyPayment float64 `json:"monthlyPayment"`
}

// PaymentSchedule is the single representative schedule convenience callers
// want, extracted from the first pricing product.
type PaymentSchedule struct {
	TotalFinanced  float64         `json:"totalFinanced"`
	TermYears      int             `json:"termYears"`
	EscalationRate float64         `json:"escalationRate"`
	MonthlyPayment float64         `json:"monthlyPayment"`
	Schedule       []YearlyPayment `json:"schedule"`
}

// ScheduleOptions tune GetPaymentSchedule.
type ScheduleOptions struct {
	Amount       float64
	SystemDesign *SystemDesign
}

type Stipulation struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
}

type Quote struct {
	QuoteID   string         `json:"quoteId"`
	Status    string         `json:"status"`
	Amount    float64        `json:"amount"`
	CreatedAt string         `json:"createdAt,omitempty"`
	Raw       map[string]any `json:"raw,omitempty"`
}

type SigningLink struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

// LightReachClient translates between the normalized finance vocabulary and
// the LightReach/Palmetto wire format. It is the only component with
// lender-specific knowledge.
type LightReachClient struct {
	baseURL    string
	tokens     *tokenManager
	httpClient *http.Client
	maxRetries int
	testMode   bool
	log        *zap.Logger
}

func NewLightReachClient(cfg Config, log *zap.Logger) *LightReachClient {
	if log == nil {
		log = zap.NewNop()
	}
	httpClient := &http.Client{Timeout: requestTimeout}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &LightReachClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		tokens:     newTokenManager(cfg.AuthURL, cfg.Username, cfg.Password, httpClient),
		httpClient: httpClient,
		maxRetries: maxRetries,
		testMode:   cfg.TestMode,
		log:        log.With(zap.String("lender", "lightreach")),
	}
}

var (
	digitsOnly = regexp.MustCompile(`\D`)
	stateRe    = regexp.MustCompile(`^[A-Za-z]{2}$`)
	zipRe      = regexp.MustCompile(`^\d{5}(\d{4})?$`)
)

// validateApplicationData is the cheap local rejection before any network
// call.
func validateApplicationData(data *ApplicationData) error {
	if data == nil {
		return NewValidationError("applicationData", "application data is required")
	}
	if strings.TrimSpace(data.FirstName) == "" {
		return NewValidationError("firstName", "first name is required")
	}
	if strings.TrimSpace(data.LastName) == "" {
		return NewValidationError("lastName", "last name is required")
	}
	if _, err := mail.ParseAddress(data.Email); err != nil {
		return NewValidationError("email", "invalid email address")
	}
	if len(digitsOnly.ReplaceAllString(data.Phone, "")) < 10 {
		return NewValidationError("phone", "phone must contain at least 10 digits")
	}
	if !stateRe.MatchString(strings.TrimSpace(data.State)) {
		return NewValidationError("state", "state must be a 2-letter code")
	}
	if !zipRe.MatchString(digitsOnly.ReplaceAllString(data.Zip, "")) {
		return NewValidationError("zip", "zip must be 5 or 9 digits")
	}
	if data.SystemPrice <= 0 {
		return NewValidationError("systemPrice", "system price must be positive")
	}
	return nil
}

// CreateApplication validates locally, builds the lender's account-creation
// payload and returns a normalized response. Either the response carries a
// non-empty application id and a status from the closed enum, or a typed
// error is returned; never a partially populated success.
func (c *LightReachClient) CreateApplication(ctx context.Context, data *ApplicationData) (*ApplicationResponse, error) {
	if err := validateApplicationData(data); err != nil {
		return nil, err
	}

	if c.testMode {
		return mockCreateApplication(data), nil
	}

	payload := map[string]any{
		"applicant": map[string]any{
			"firstName": strings.TrimSpace(data.FirstName),
			"lastName":  strings.TrimSpace(data.LastName),
			"email":     strings.TrimSpace(data.Email),
			"phone":     digitsOnly.ReplaceAllString(data.Phone, ""),
		},
		"address": map[string]any{
			"street": data.Street,
			"city":   data.City,
			"state":  strings.ToUpper(strings.TrimSpace(data.State)),
			"zip":    digitsOnly.ReplaceAllString(data.Zip, ""),
		},
		"totalCost": data.SystemPrice,
	}
	if data.SSN != "" {
		payload["applicant"].(map[string]any)["ssn"] = digitsOnly.ReplaceAllString(data.SSN, "")
	}
	if data.SalesRepName != "" || data.SalesRepEmail != "" {
		payload["salesRep"] = map[string]any{
			"name":  data.SalesRepName,
			"email": data.SalesRepEmail,
		}
	}
	if data.SystemDesign != nil {
		payload["systemDesign"] = data.SystemDesign
	}
	if data.ProposalRef != "" {
		payload["externalReference"] = data.ProposalRef
	}

	var created struct {
		ID      string `json:"id"`
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	raw, err := c.call(ctx, http.MethodPost, "/api/v2/accounts", payload, &created, "")
	if err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, NewAPIError(500, "lender response missing account id", map[string]any{"body": string(raw)})
	}

	rawMap := map[string]any{}
	_ = json.Unmarshal(raw, &rawMap)

	return &ApplicationResponse{
		ApplicationID: created.ID,
		Status:        MapLenderStatus(created.Status),
		LenderStatus:  created.Status,
		Message:       created.Message,
		Raw:           rawMap,
	}, nil
}

// GetApplicationStatus fetches the account by external id. A lender 404 is a
// distinct not-found condition; the status route falls back to cache only on
// other lender failures.
func (c *LightReachClient) GetApplicationStatus(ctx context.Context, id string) (*ApplicationResponse, error) {
	if id == "" {
		return nil, NewValidationError("applicationId", "application id is required")
	}

	if c.testMode || strings.HasPrefix(id, testAccountPrefix) {
		return mockApplicationStatus(id)
	}

	var acct struct {
		ID        string  `json:"id"`
		Status    string  `json:"status"`
		Message   string  `json:"message"`
		TotalCost float64 `json:"totalCost"`
	}
	raw, err := c.call(ctx, http.MethodGet, "/api/accounts/"+id, nil, &acct, id)
	if err != nil {
		return nil, err
	}

	rawMap := map[string]any{}
	_ = json.Unmarshal(raw, &rawMap)

	return &ApplicationResponse{
		ApplicationID: acct.ID,
		Status:        MapLenderStatus(acct.Status),
		LenderStatus:  acct.Status,
		Message:       acct.Message,
		TotalCost:     acct.TotalCost,
		Raw:           rawMap,
	}, nil
}

// GetPricing posts the financed amount (plus optional system-design hints)
// and returns the lender's raw product list.
func (c *LightReachClient) GetPricing(ctx context.Context, accountID string, amount float64, design *SystemDesign) ([]PricingProduct, error) {
	if accountID == "" {
		return nil, NewValidationError("accountId", "account id is required")
	}
	if amount <= 0 {
		return nil, NewValidationError("amount", "financed amount must be positive")
	}

	if c.testMode || strings.HasPrefix(accountID, testAccountPrefix) {
		return mockPricing(amount), nil
	}

	payload := map[string]any{"totalFinancedAmount": amount}
	if design != nil {
		payload["systemDesign"] = design
	}

	var products []PricingProduct
	if _, err := c.call(ctx, http.MethodPost, "/api/v2/accounts/"+accountID+"/pricing/hvac", payload, &products, accountID); err != nil {
		return nil, err
	}
	return products, nil
}

// GetPaymentSchedule composes GetApplicationStatus (for total cost) with
// GetPricing and extracts the first product's schedule. Callers wanting the
// full product list use GetPricing directly.
func (c *LightReachClient) GetPaymentSchedule(ctx context.Context, id string, opts *ScheduleOptions) (*PaymentSchedule, error) {
	amount := 0.0
	var design *SystemDesign
	if opts != nil {
		amount = opts.Amount
		design = opts.SystemDesign
	}
	if amount <= 0 {
		status, err := c.GetApplicationStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		amount = status.TotalCost
	}
	if amount <= 0 {
		return nil, NewAPIError(500, "lender did not report a total cost for this account", nil)
	}

	products, err := c.GetPricing(ctx, id, amount, design)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, NewAPIError(500, "lender returned no pricing products", nil)
	}

	first := products[0]
	monthly := 0.0
	if len(first.Payments) > 0 {
		monthly = first.Payments[0].MonthlyPayment
	}
	return &PaymentSchedule{
		TotalFinanced:  amount,
		TermYears:      first.TermYears,
		EscalationRate: first.EscalationRate,
		MonthlyPayment: monthly,
		Schedule:       first.Payments,
	}, nil
}

// GetStipulations lists outstanding approval conditions for the account.
func (c *LightReachClient) GetStipulations(ctx context.Context, accountID string) ([]Stipulation, error) {
	if accountID == "" {
		return nil, NewValidationError("accountId", "account id is required")
	}
	var stips []Stipulation
	if _, err := c.call(ctx, http.MethodGet, "/api/accounts/"+accountID+"/stipulations", nil, &stips, accountID); err != nil {
		return nil, err
	}
	return stips, nil
}

// GetSigningLink requests an e-signature link for the current contract.
func (c *LightReachClient) GetSigningLink(ctx context.Context, accountID string) (*SigningLink, error) {
	if accountID == "" {
		return nil, NewValidationError("accountId", "account id is required")
	}
	var link SigningLink
	raw, err := c.call(ctx, http.MethodPost, "/api/accounts/"+accountID+"/contracts/current/signing-link", map[string]any{}, &link, accountID)
	if err != nil {
		return nil, err
	}
	if link.URL == "" {
		return nil, NewAPIError(500, "lender response missing signing link url", map[string]any{"body": string(raw)})
	}
	return &link, nil
}

// GetQuote fetches the current quote for the account.
func (c *LightReachClient) GetQuote(ctx context.Context, accountID string) (*Quote, error) {
	if accountID == "" {
		return nil, NewValidationError("accountId", "account id is required")
	}
	if c.testMode || strings.HasPrefix(accountID, testAccountPrefix) {
		return mockQuote(accountID, 0), nil
	}
	var q Quote
	raw, err := c.call(ctx, http.MethodGet, "/api/accounts/"+accountID+"/quote/current", nil, &q, accountID)
	if err != nil {
		return nil, err
	}
	rawMap := map[string]any{}
	_ = json.Unmarshal(raw, &rawMap)
	q.Raw = rawMap
	return &q, nil
}

// CreateQuote creates a quote for the financed amount.
func (c *LightReachClient) CreateQuote(ctx context.Context, accountID string, amount float64) (*Quote, error) {
	if accountID == "" {
		return nil, NewValidationError("accountId", "account id is required")
	}
	if amount <= 0 {
		return nil, NewValidationError("amount", "quote amount must be positive")
	}
	if c.testMode || strings.HasPrefix(accountID, testAccountPrefix) {
		return mockQuote(accountID, amount), nil
	}
	var q Quote
	raw, err := c.call(ctx, http.MethodPost, "/api/v2/accounts/"+accountID+"/quote", map[string]any{"amount": amount}, &q, accountID)
	if err != nil {
		return nil, err
	}
	if q.QuoteID == "" {
		return nil, NewAPIError(500, "lender response missing quote id", map[string]any{"body": string(raw)})
	}
	rawMap := map[string]any{}
	_ = json.Unmarshal(raw, &rawMap)
	q.Raw = rawMap
	return &q, nil
}

// VoidQuote voids an existing quote.
func (c *LightReachClient) VoidQuote(ctx context.Context, accountID, quoteID string) (*Quote, error) {
	if accountID == "" {
		return nil, NewValidationError("accountId", "account id is required")
	}
	if quoteID == "" {
		return nil, NewValidationError("quoteId", "quote id is required")
	}
	if c.testMode || strings.HasPrefix(accountID, testAccountPrefix) {
		q := mockQuote(accountID, 0)
		q.QuoteID = quoteID
		q.Status = "voided"
		return q, nil
	}
	var q Quote
	if _, err := c.call(ctx, http.MethodDelete, "/api/accounts/"+accountID+"/quote/"+quoteID, nil, &q, accountID); err != nil {
		return nil, err
	}
	if q.QuoteID == "" {
		q.QuoteID = quoteID
	}
	if q.Status == "" {
		q.Status = "voided"
	}
	return &q, nil
}

// call performs one authenticated lender round trip through the token
// manager and the retry wrapper, decodes 2xx bodies into out, and turns
// everything else into a typed error. The raw body is returned for callers
// that keep the full payload.
func (c *LightReachClient) call(ctx context.Context, method, path string, payload any, out any, notFoundID string) ([]byte, error) {
	token, err := c.tokens.getToken(ctx)
	if err != nil {
		return nil, err
	}

	var body []byte
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, NewAPIError(500, fmt.Sprintf("could not encode request: %v", err), nil)
		}
	}

	url := c.baseURL + path
	resp, err := doWithRetry(ctx, c.httpClient, func(ctx context.Context) (*http.Request, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	}, c.maxRetries)
	if err != nil {
		c.log.Error("lender call failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewAPIError(500, fmt.Sprintf("could not read lender response: %v", err), nil)
	}

	if resp.StatusCode == http.StatusNotFound && notFoundID != "" {
		return nil, NewNotFoundError(notFoundID)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := NewAPIError(resp.StatusCode, lenderErrorMessage(raw), map[string]any{"body": string(raw)})
		c.log.Warn("lender api error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Any("details", Redact(apiErr.Details)),
		)
		return nil, apiErr
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, NewAPIError(500, fmt.Sprintf("invalid lender response: %v", err), map[string]any{"body": string(raw)})
		}
	}
	return raw, nil
}

// lenderErrorMessage digs a human-readable message out of an error body.
func lenderErrorMessage(raw []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return "lender request failed"
}
