package finance

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/avelkins10/kin-hvac-tool-sub001/utils"
)

// testAccountPrefix marks accounts created in test mode; calls against them
// never leave the process.
const testAccountPrefix = "TEST-"

// paymentFactor10yr is the 10-year / 0% escalation monthly payment factor
// used by the deterministic pricing mock.
const paymentFactor10yr = 0.01546

type testScenario struct {
	tag     string
	status  ApplicationStatus
	message string
}

// testScenarios is the SSN-keyed scenario table that lets the whole flow be
// exercised without live credentials.
var testScenarios = map[string]testScenario{
	"500101010": {"DEN", StatusDenied, "Low credit score"},
	"500101005": {"CON", StatusConditional, "Approved with stipulations"},
	"500101001": {"PEN", StatusPending, "Manual review required"},
}

var defaultScenario = testScenario{"APP", StatusApproved, "Approved"}

func scenarioForSSN(ssn string) testScenario {
	if s, ok := testScenarios[digitsOnly.ReplaceAllString(ssn, "")]; ok {
		return s
	}
	return defaultScenario
}

// testAccountID derives a stable account id from the applicant so repeated
// submissions of the same test data produce the same account. The scenario
// tag is embedded so status calls can replay the outcome without state.
func testAccountID(tag, email string) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("%s%s-%s", testAccountPrefix, tag, hex.EncodeToString(sum[:4]))
}

func mockCreateApplication(data *ApplicationData) *ApplicationResponse {
	sc := scenarioForSSN(data.SSN)
	resp := &ApplicationResponse{
		ApplicationID: testAccountID(sc.tag, data.Email),
		Status:        sc.status,
		LenderStatus:  string(sc.status),
		Message:       sc.message,
		TotalCost:     data.SystemPrice,
		Raw: map[string]any{
			"testMode":  true,
			"totalCost": data.SystemPrice,
		},
	}
	if sc.status == StatusConditional || sc.status == StatusApproved {
		resp.Raw["monthlyPayment"] = utils.Round2(data.SystemPrice * paymentFactor10yr)
	}
	return resp
}

func mockApplicationStatus(id string) (*ApplicationResponse, error) {
	if !strings.HasPrefix(id, testAccountPrefix) {
		return nil, NewNotFoundError(id)
	}
	sc := defaultScenario
	parts := strings.SplitN(strings.TrimPrefix(id, testAccountPrefix), "-", 2)
	for _, s := range testScenarios {
		if s.tag == parts[0] {
			sc = s
			break
		}
	}
	return &ApplicationResponse{
		ApplicationID: id,
		Status:        sc.status,
		LenderStatus:  string(sc.status),
		Message:       sc.message,
		Raw:           map[string]any{"testMode": true},
	}, nil
}

func mockPricing(amount float64) []PricingProduct {
	monthly := utils.Round2(amount * paymentFactor10yr)
	payments := make([]YearlyPayment, 10)
	for i := range payments {
		payments[i] = YearlyPayment{Year: i + 1, MonthlyPayment: monthly}
	}
	return []PricingProduct{{
		ProductID:       "test-comfort-plan-10yr",
		TermYears:       10,
		EscalationRate:  0,
		Payments:        payments,
		TotalAmountPaid: utils.Round2(monthly * 12 * 10),
	}}
}

func mockQuote(accountID string, amount float64) *Quote {
	sum := sha1.Sum([]byte(accountID))
	return &Quote{
		QuoteID: "TESTQ-" + hex.EncodeToString(sum[:4]),
		Status:  "active",
		Amount:  utils.Round2(amount),
		Raw:     map[string]any{"testMode": true},
	}
}
