package finance

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelkins10/kin-hvac-tool-sub001/utils"
)

func testModeClient() *LightReachClient {
	return NewLightReachClient(Config{TestMode: true}, nil)
}

func TestTestModeDeniedScenario(t *testing.T) {
	data := validData()
	data.SSN = "500-10-1010"

	resp, err := testModeClient().CreateApplication(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, StatusDenied, resp.Status)
	assert.Equal(t, "Low credit score", resp.Message)
	assert.True(t, strings.HasPrefix(resp.ApplicationID, "TEST-DEN-"))
	assert.NotContains(t, resp.Raw, "monthlyPayment", "a denial has no payment")
}

func TestTestModeConditionalScenarioPricesPayment(t *testing.T) {
	data := validData()
	data.SSN = "500101005"
	data.SystemPrice = 20000

	resp, err := testModeClient().CreateApplication(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, StatusConditional, resp.Status)
	assert.Equal(t, "Approved with stipulations", resp.Message)
	assert.Equal(t, utils.Round2(20000*0.01546), resp.Raw["monthlyPayment"])
}

func TestTestModeDefaultsToApproved(t *testing.T) {
	resp, err := testModeClient().CreateApplication(context.Background(), validData())
	require.NoError(t, err)

	assert.Equal(t, StatusApproved, resp.Status)
	assert.True(t, strings.HasPrefix(resp.ApplicationID, "TEST-APP-"))
}

func TestTestModeAccountIDIsStable(t *testing.T) {
	c := testModeClient()
	first, err := c.CreateApplication(context.Background(), validData())
	require.NoError(t, err)
	second, err := c.CreateApplication(context.Background(), validData())
	require.NoError(t, err)

	assert.Equal(t, first.ApplicationID, second.ApplicationID,
		"resubmitting the same applicant reuses the account id")
}

func TestTestModeStatusReplaysScenario(t *testing.T) {
	c := testModeClient()
	data := validData()
	data.SSN = "500101010"

	created, err := c.CreateApplication(context.Background(), data)
	require.NoError(t, err)

	// A live-mode client still answers TEST- accounts locally.
	live := NewLightReachClient(Config{}, nil)
	status, err := live.GetApplicationStatus(context.Background(), created.ApplicationID)
	require.NoError(t, err)

	assert.Equal(t, StatusDenied, status.Status)
	assert.Equal(t, "Low credit score", status.Message)
}

func TestTestModePricing(t *testing.T) {
	products, err := testModeClient().GetPricing(context.Background(), "TEST-APP-1234", 20000, nil)
	require.NoError(t, err)
	require.Len(t, products, 1)

	p := products[0]
	assert.Equal(t, 10, p.TermYears)
	require.Len(t, p.Payments, 10)
	assert.Equal(t, utils.Round2(20000*0.01546), p.Payments[0].MonthlyPayment)
	assert.Zero(t, p.EscalationRate)
}
