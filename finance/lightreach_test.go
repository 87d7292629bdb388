package finance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validData() *ApplicationData {
	return &ApplicationData{
		FirstName:   "Jamie",
		LastName:    "Rivera",
		Email:       "jamie.rivera@example.com",
		Phone:       "(512) 555-0147",
		Street:      "100 Main St",
		City:        "Austin",
		State:       "tx",
		Zip:         "78701",
		SystemPrice: 18500,
	}
}

func TestValidateApplicationData(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ApplicationData)
		field  string
	}{
		{"missing first name", func(d *ApplicationData) { d.FirstName = "  " }, "firstName"},
		{"missing last name", func(d *ApplicationData) { d.LastName = "" }, "lastName"},
		{"bad email", func(d *ApplicationData) { d.Email = "not-an-email" }, "email"},
		{"short phone", func(d *ApplicationData) { d.Phone = "555-0147" }, "phone"},
		{"bad state", func(d *ApplicationData) { d.State = "Texas" }, "state"},
		{"bad zip", func(d *ApplicationData) { d.Zip = "787" }, "zip"},
		{"zero price", func(d *ApplicationData) { d.SystemPrice = 0 }, "systemPrice"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := validData()
			tc.mutate(data)
			err := validateApplicationData(data)
			var fe *Error
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, CodeValidation, fe.Code)
			assert.Equal(t, tc.field, fe.Field)
		})
	}

	assert.NoError(t, validateApplicationData(validData()))
}

// lenderServer fakes the auth endpoint plus one handler for everything else.
func lenderServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *LightReachClient) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewLightReachClient(Config{
		BaseURL:    srv.URL,
		AuthURL:    srv.URL + "/auth/login",
		Username:   "svc-user",
		Password:   "secret",
		MaxRetries: 1,
	}, nil)
	client.httpClient = srv.Client()
	client.tokens.httpClient = srv.Client()
	return srv, client
}

func TestCreateApplicationHappyPath(t *testing.T) {
	var sent map[string]any
	_, client := lenderServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v2/accounts", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "acct-123",
			"status": "1 - Created",
		})
	})

	data := validData()
	data.SSN = "500-10-1234"
	data.ProposalRef = "prop-9"

	resp, err := client.CreateApplication(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, "acct-123", resp.ApplicationID)
	assert.Equal(t, StatusSubmitted, resp.Status)
	assert.Equal(t, "1 - Created", resp.LenderStatus)

	applicant := sent["applicant"].(map[string]any)
	assert.Equal(t, "500101234", applicant["ssn"], "ssn is sent digits-only")
	address := sent["address"].(map[string]any)
	assert.Equal(t, "TX", address["state"], "state is uppercased")
	assert.Equal(t, "prop-9", sent["externalReference"])
	assert.EqualValues(t, 18500, sent["totalCost"])
}

func TestCreateApplicationRejectsLocallyBeforeNetwork(t *testing.T) {
	_, client := lenderServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no lender call expected for invalid input")
	})

	data := validData()
	data.Email = "nope"
	_, err := client.CreateApplication(context.Background(), data)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, CodeValidation, fe.Code)
}

func TestCreateApplicationMissingAccountID(t *testing.T) {
	_, client := lenderServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "1 - Created"})
	})

	_, err := client.CreateApplication(context.Background(), validData())
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, CodeAPIError, fe.Code)
}

func TestGetApplicationStatusMapsContractSigned(t *testing.T) {
	_, client := lenderServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/accounts/acct-123", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":        "acct-123",
			"status":    "7 - Contract Signed",
			"totalCost": 18500,
		})
	})

	resp, err := client.GetApplicationStatus(context.Background(), "acct-123")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, resp.Status)
	assert.EqualValues(t, 18500, resp.TotalCost)
}

func TestGetApplicationStatusUnknownStatusStaysPending(t *testing.T) {
	_, client := lenderServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "acct-123",
			"status": "9 - Some Future Milestone",
		})
	})

	resp, err := client.GetApplicationStatus(context.Background(), "acct-123")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, resp.Status, "unknown lender statuses must not drop the application")
}

func TestGetApplicationStatusNotFound(t *testing.T) {
	_, client := lenderServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := client.GetApplicationStatus(context.Background(), "acct-gone")
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, CodeNotFound, fe.Code)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
}

func TestGetApplicationStatusLenderErrorMessage(t *testing.T) {
	_, client := lenderServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "upstream melted"})
	})

	_, err := client.GetApplicationStatus(context.Background(), "acct-123")
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, CodeAPIError, fe.Code)
	assert.Equal(t, http.StatusBadGateway, fe.StatusCode)
	assert.Equal(t, "upstream melted", fe.Message)
}

func TestGetPaymentScheduleUsesFirstProduct(t *testing.T) {
	_, client := lenderServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v2/accounts/acct-123/pricing/hvac", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 20000, body["totalFinancedAmount"])
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{
				"productId": "comfort-10", "termYears": 10, "escalationRate": 0,
				"payments": []map[string]any{{"year": 1, "monthlyPayment": 309.2}},
			},
			{"productId": "comfort-15", "termYears": 15},
		})
	})

	sched, err := client.GetPaymentSchedule(context.Background(), "acct-123", &ScheduleOptions{Amount: 20000})
	require.NoError(t, err)
	assert.Equal(t, 10, sched.TermYears)
	assert.EqualValues(t, 309.2, sched.MonthlyPayment)
	assert.EqualValues(t, 20000, sched.TotalFinanced)
}

func TestCreateQuoteAndVoid(t *testing.T) {
	_, client := lenderServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v2/accounts/acct-123/quote":
			_ = json.NewEncoder(w).Encode(map[string]any{"quoteId": "q-1", "status": "active", "amount": 20000})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/accounts/acct-123/quote/q-1":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	})

	q, err := client.CreateQuote(context.Background(), "acct-123", 20000)
	require.NoError(t, err)
	assert.Equal(t, "q-1", q.QuoteID)

	voided, err := client.VoidQuote(context.Background(), "acct-123", "q-1")
	require.NoError(t, err)
	assert.Equal(t, "q-1", voided.QuoteID)
	assert.Equal(t, "voided", voided.Status)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LIGHTREACH_BASE_URL", "")
	t.Setenv("LIGHTREACH_AUTH_URL", "")
	t.Setenv("LIGHTREACH_ENV", "production")
	cfg := ConfigFromEnv()
	assert.Equal(t, productionBaseURL, cfg.BaseURL)
	assert.Equal(t, productionBaseURL+"/auth/login", cfg.AuthURL)

	t.Setenv("LIGHTREACH_ENV", "")
	cfg = ConfigFromEnv()
	assert.Equal(t, stagingBaseURL, cfg.BaseURL)

	t.Setenv("LIGHTREACH_BASE_URL", "https://lender.internal/")
	cfg = ConfigFromEnv()
	assert.Equal(t, "https://lender.internal", cfg.BaseURL)
}
