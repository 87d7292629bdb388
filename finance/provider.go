package finance

import (
	"context"

	"go.uber.org/zap"
)

// Provider is the capability surface the orchestration routes depend on.
// New lenders are added in NewProvider, never by touching calling code.
type Provider interface {
	CreateApplication(ctx context.Context, data *ApplicationData) (*ApplicationResponse, error)
	GetApplicationStatus(ctx context.Context, id string) (*ApplicationResponse, error)
	GetPaymentSchedule(ctx context.Context, id string, opts *ScheduleOptions) (*PaymentSchedule, error)
}

// QuoteProvider is the optional quote lifecycle surface.
type QuoteProvider interface {
	GetQuote(ctx context.Context, accountID string) (*Quote, error)
	CreateQuote(ctx context.Context, accountID string, amount float64) (*Quote, error)
	VoidQuote(ctx context.Context, accountID, quoteID string) (*Quote, error)
}

const LenderLightReach = "lightreach"

// NewProvider returns the client for the given lender identifier,
// configured from the environment.
func NewProvider(id string, log *zap.Logger) (Provider, error) {
	switch id {
	case LenderLightReach:
		return NewLightReachClient(ConfigFromEnv(), log), nil
	default:
		return nil, NewUnsupportedLenderError(id)
	}
}

// AvailableLenders returns the static supported set.
func AvailableLenders() []string {
	return []string{LenderLightReach}
}
