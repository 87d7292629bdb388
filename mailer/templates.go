package mailer

import "fmt"

// Customer-facing financing decision emails. Kept as plain HTML strings; the
// proposal frontend owns all richer rendering.

func ApprovalSubject() string { return "Your financing application was approved" }

func ApprovalBody(customerName string) string {
	return fmt.Sprintf(`<p>Hi %s,</p>
<p>Good news! Your HVAC financing application has been <strong>approved</strong>.
Your comfort specialist will reach out shortly with next steps and your
contract signing link.</p>`, customerName)
}

func DenialSubject() string { return "Update on your financing application" }

func DenialBody(customerName string) string {
	return fmt.Sprintf(`<p>Hi %s,</p>
<p>We were unable to approve your HVAC financing application at this time.
A letter with details will follow from the lender. Your comfort specialist
can walk you through alternative payment options.</p>`, customerName)
}

func ConditionalSubject() string { return "Your financing application needs one more step" }

func ConditionalBody(customerName string) string {
	return fmt.Sprintf(`<p>Hi %s,</p>
<p>Your HVAC financing application has been <strong>conditionally approved</strong>.
The lender needs a few additional documents before final approval; your
comfort specialist will contact you with the list.</p>`, customerName)
}

func InternalStatusSubject(applicationID, status string) string {
	return fmt.Sprintf("Financing application %s is now %s", applicationID, status)
}

func InternalStatusBody(applicationID, proposalID, status, event string) string {
	return fmt.Sprintf(`<p>Financing application <strong>%s</strong> (proposal %s)
changed to status <strong>%s</strong> via lender event <code>%s</code>.</p>`,
		applicationID, proposalID, status, event)
}
