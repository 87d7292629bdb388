package controllers

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/avelkins10/kin-hvac-tool-sub001/database"
	"github.com/avelkins10/kin-hvac-tool-sub001/middlewares"
)

func webhookApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middlewares.ErrorHandler})
	app.Post("/webhooks/finance/:provider", FinanceWebhook)
	return app
}

func mockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	prev := database.DB
	database.DB = gdb
	t.Cleanup(func() { database.DB = prev })
	return mock
}

func postWebhook(t *testing.T, app *fiber.App, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhooks/finance/lightreach", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func TestWebhookDeniedWithoutConfiguredCredentials(t *testing.T) {
	t.Setenv("LIGHTREACH_WEBHOOK_API_KEY", "")
	t.Setenv("LIGHTREACH_WEBHOOK_CLIENT_ID", "")
	t.Setenv("WEBHOOK_ALLOW_UNAUTHENTICATED", "")

	code, _ := postWebhook(t, webhookApp(), `{"event":"approved","accountId":"acct-1"}`, nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)
}

func TestWebhookRejectsWrongAPIKey(t *testing.T) {
	t.Setenv("LIGHTREACH_WEBHOOK_API_KEY", "expected-key")
	t.Setenv("LIGHTREACH_WEBHOOK_CLIENT_ID", "")

	code, _ := postWebhook(t, webhookApp(), `{"event":"approved","accountId":"acct-1"}`,
		map[string]string{"apiKey": "wrong-key"})
	assert.Equal(t, fiber.StatusUnauthorized, code)
}

func TestWebhookAcceptsBasicClientCredentials(t *testing.T) {
	t.Setenv("LIGHTREACH_WEBHOOK_API_KEY", "")
	t.Setenv("LIGHTREACH_WEBHOOK_CLIENT_ID", "client-1")
	t.Setenv("LIGHTREACH_WEBHOOK_CLIENT_SECRET", "hunter2")

	mock := mockDB(t)
	mock.ExpectQuery(`SELECT .* FROM "public"\."finance_account_routes" WHERE external_id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "external_id", "proposal_ref", "lender", "tenant_schema", "application_id"}))

	auth := "Basic " + base64.StdEncoding.EncodeToString([]byte("client-1:hunter2"))
	code, body := postWebhook(t, webhookApp(), `{"event":"approved","accountId":"acct-unknown"}`,
		map[string]string{"Authorization": auth})

	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, true, body["received"])
	assert.Equal(t, "Application not found", body["message"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookMalformedBody(t *testing.T) {
	t.Setenv("LIGHTREACH_WEBHOOK_API_KEY", "expected-key")
	t.Setenv("LIGHTREACH_WEBHOOK_CLIENT_ID", "")

	code, _ := postWebhook(t, webhookApp(), `{nope`,
		map[string]string{"apiKey": "expected-key"})
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestWebhookRequiresAccountOrReference(t *testing.T) {
	t.Setenv("LIGHTREACH_WEBHOOK_API_KEY", "expected-key")
	t.Setenv("LIGHTREACH_WEBHOOK_CLIENT_ID", "")

	code, _ := postWebhook(t, webhookApp(), `{"event":"approved"}`,
		map[string]string{"apiKey": "expected-key"})
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestWebhookUnknownAccountAcknowledged(t *testing.T) {
	t.Setenv("LIGHTREACH_WEBHOOK_API_KEY", "")
	t.Setenv("LIGHTREACH_WEBHOOK_CLIENT_ID", "")
	t.Setenv("WEBHOOK_ALLOW_UNAUTHENTICATED", "true")

	mock := mockDB(t)
	mock.ExpectQuery(`SELECT .* FROM "public"\."finance_account_routes" WHERE external_id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "external_id", "proposal_ref", "lender", "tenant_schema", "application_id"}))

	code, body := postWebhook(t, webhookApp(), `{"event":"approved","accountId":"acct-unknown"}`, nil)

	assert.Equal(t, fiber.StatusOK, code, "unknown accounts are acked so the lender stops retrying")
	assert.Equal(t, "Application not found", body["message"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookAccountReferenceFallbackLookup(t *testing.T) {
	t.Setenv("LIGHTREACH_WEBHOOK_API_KEY", "")
	t.Setenv("LIGHTREACH_WEBHOOK_CLIENT_ID", "")
	t.Setenv("WEBHOOK_ALLOW_UNAUTHENTICATED", "true")

	mock := mockDB(t)
	mock.ExpectQuery(`SELECT .* FROM "public"\."finance_account_routes" WHERE proposal_ref`).
		WithArgs("prop-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "external_id", "proposal_ref", "lender", "tenant_schema", "application_id"}))

	code, body := postWebhook(t, webhookApp(), `{"event":"approved","accountReference":"prop-1"}`, nil)

	assert.Equal(t, fiber.StatusOK, code, "a reference-only payload must be processed, not rejected")
	assert.Equal(t, true, body["received"])
	assert.Equal(t, "Application not found", body["message"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookLegacyApplicationIDShape(t *testing.T) {
	t.Setenv("LIGHTREACH_WEBHOOK_API_KEY", "")
	t.Setenv("LIGHTREACH_WEBHOOK_CLIENT_ID", "")
	t.Setenv("WEBHOOK_ALLOW_UNAUTHENTICATED", "true")

	mock := mockDB(t)
	mock.ExpectQuery(`SELECT .* FROM "public"\."finance_account_routes" WHERE external_id`).
		WithArgs("app-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "external_id", "proposal_ref", "lender", "tenant_schema", "application_id"}))

	code, body := postWebhook(t, webhookApp(), `{"applicationId":"app-1","status":"approved"}`, nil)

	assert.Equal(t, fiber.StatusOK, code, "the legacy body identifies the account via applicationId")
	assert.Equal(t, true, body["received"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookReferenceIDAliasStillAccepted(t *testing.T) {
	t.Setenv("LIGHTREACH_WEBHOOK_API_KEY", "")
	t.Setenv("LIGHTREACH_WEBHOOK_CLIENT_ID", "")
	t.Setenv("WEBHOOK_ALLOW_UNAUTHENTICATED", "true")

	mock := mockDB(t)
	mock.ExpectQuery(`SELECT .* FROM "public"\."finance_account_routes" WHERE proposal_ref`).
		WithArgs("prop-2", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "external_id", "proposal_ref", "lender", "tenant_schema", "application_id"}))

	code, _ := postWebhook(t, webhookApp(), `{"event":"approved","referenceId":"prop-2"}`, nil)

	assert.Equal(t, fiber.StatusOK, code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookExtrasCollectsUnboundFields(t *testing.T) {
	body := []byte(`{"event":"approved","accountId":"acct-1","milestone":"NTP","data":{"installerId":"inst-9"}}`)
	extra := webhookExtras(body, map[string]any{"installerId": "inst-9"})

	assert.Equal(t, "NTP", extra["milestone"], "unrecognized top-level keys are kept")
	assert.Equal(t, "inst-9", extra["installerId"])
	assert.NotContains(t, extra, "event")
	assert.NotContains(t, extra, "accountId")
}

func TestWebhookUnrecognizedEventIsNoOp(t *testing.T) {
	t.Setenv("LIGHTREACH_WEBHOOK_API_KEY", "")
	t.Setenv("LIGHTREACH_WEBHOOK_CLIENT_ID", "")
	t.Setenv("WEBHOOK_ALLOW_UNAUTHENTICATED", "true")

	mock := mockDB(t)
	mock.ExpectQuery(`SELECT .* FROM "public"\."finance_account_routes" WHERE external_id`).
		WillReturnRows(sqlmock.
			NewRows([]string{"id", "external_id", "proposal_ref", "lender", "tenant_schema", "application_id"}).
			AddRow(1, "acct-1", "prop-1", "lightreach", "tenant_acme", "app-uuid-1"))

	code, body := postWebhook(t, webhookApp(), `{"event":"documentUploaded","accountId":"acct-1"}`, nil)

	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, true, body["received"])
	assert.Equal(t, "Event ignored", body["message"])
	assert.Equal(t, "app-uuid-1", body["applicationId"])
	assert.NoError(t, mock.ExpectationsWereMet(), "an unrecognized event must not touch tenant data")
}
