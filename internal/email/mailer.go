package email

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"hazeltrade/internal/catalog"
)

// InviteParams carries everything the invite email template needs
type InviteParams struct {
	To          string
	ContactName string
	CompanyName string
	Role        catalog.PartyRole
	DealNumber  string
	Product     string
	Quantity    string
	Value       string
	Location    string
	BrokerName  string
	InviteLink  string
}

// Mailer delivers deal invites. Delivery is best-effort: callers log and
// continue on failure.
type Mailer interface {
	SendInvite(params InviteParams) error
}

// SMTPMailer sends over a plain SMTP relay
type SMTPMailer struct {
	host string
	port string
	user string
	pass string
	from string
}

func NewSMTPMailer(host, port, user, pass, from string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, user: user, pass: pass, from: from}
}

func (m *SMTPMailer) SendInvite(params InviteParams) error {
	roleLabel := "Seller"
	verifyDoc := "Proof of Product (POP)"
	if params.Role == catalog.RoleBuyer {
		roleLabel = "Buyer"
		verifyDoc = "Proof of Funds (POF)"
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Hello %s,\r\n\r\n", params.ContactName)
	fmt.Fprintf(&body, "You've been invited to participate as the %s in a commodity trading deal on Hazel Trade.\r\n\r\n", roleLabel)
	body.WriteString("Deal Information:\r\n")
	fmt.Fprintf(&body, "- Deal Number: %s\r\n", params.DealNumber)
	fmt.Fprintf(&body, "- Product: %s\r\n", params.Product)
	fmt.Fprintf(&body, "- Quantity: %s\r\n", params.Quantity)
	fmt.Fprintf(&body, "- Estimated Value: %s\r\n", params.Value)
	fmt.Fprintf(&body, "- Location: %s\r\n", params.Location)
	fmt.Fprintf(&body, "- Broker: %s\r\n\r\n", params.BrokerName)
	fmt.Fprintf(&body, "To accept this invitation, visit:\r\n%s\r\n\r\n", params.InviteLink)
	fmt.Fprintf(&body, "After signing up, upload your %s so the deal can be matched.\r\n\r\n", verifyDoc)
	body.WriteString("This invite link will expire in 30 days.\r\n")

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Deal %s — %s invitation\r\n\r\n%s",
		m.from, params.To, params.DealNumber, roleLabel, body.String())

	addr := m.host + ":" + m.port
	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.pass, m.host)
	}
	return smtp.SendMail(addr, auth, m.from, []string{params.To}, []byte(msg))
}

// LogMailer writes invites to the process log instead of sending; the
// development default when no SMTP host is configured.
type LogMailer struct{}

func (LogMailer) SendInvite(params InviteParams) error {
	log.Printf("invite email (not sent): to=%s role=%s deal=%s link=%s",
		params.To, params.Role, params.DealNumber, params.InviteLink)
	return nil
}
