package mail

import (
	"fmt"
	"net/smtp"
	"strings"

	applog "tradepost/internal/log"
)

// Mailer sends transactional mail over plain SMTP. A nil Mailer (or one with
// no host configured) drops messages silently so local setups work without a
// relay.
type Mailer struct {
	Host string
	Port string
	User string
	Pass string
	From string

	// BaseURL is the public origin used to build links in message bodies.
	BaseURL string
}

func New(host, port, user, pass, from, baseURL string) *Mailer {
	if host == "" {
		return nil
	}
	return &Mailer{Host: host, Port: port, User: user, Pass: pass, From: from, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (m *Mailer) send(to, subject, body string) {
	if m == nil || m.Host == "" {
		return
	}
	msg := strings.Join([]string{
		"From: " + m.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if m.User != "" {
		auth = smtp.PlainAuth("", m.User, m.Pass, m.Host)
	}
	addr := m.Host + ":" + m.Port
	if err := smtp.SendMail(addr, auth, m.From, []string{to}, []byte(msg)); err != nil {
		applog.Event("mail_send_failed", err, map[string]any{"to": to, "subject": subject})
	}
}

// SendVerification delivers the email-verification link for a new account.
// Delivery runs on the caller's goroutine budget; failures are logged, never
// surfaced to the registering user.
func (m *Mailer) SendVerification(to, name, token string) {
	if m == nil {
		return
	}
	link := fmt.Sprintf("%s/api/v1/auth/verify?token=%s", m.BaseURL, token)
	body := fmt.Sprintf("Hi %s,\n\nConfirm your email address by opening the link below:\n\n%s\n\nIf you did not create this account you can ignore this message.\n", name, link)
	m.send(to, "Confirm your email", body)
}

// SendOrderConfirmation notifies a buyer that their order was placed.
func (m *Mailer) SendOrderConfirmation(to, name, orderID string, totalCents int64, currency string) {
	if m == nil {
		return
	}
	body := fmt.Sprintf("Hi %s,\n\nYour order %s has been placed. Total: %d.%02d %s.\n\nWe will let you know once payment is confirmed.\n",
		name, orderID, totalCents/100, totalCents%100, currency)
	m.send(to, "Order "+orderID+" received", body)
}

// SendPaymentConfirmed notifies a buyer that their charge settled and the
// order moved into fulfilment.
func (m *Mailer) SendPaymentConfirmed(to, name, orderID string, amountCents int64, currency string) {
	if m == nil {
		return
	}
	body := fmt.Sprintf("Hi %s,\n\nPayment of %d.%02d %s for order %s is confirmed. The seller is preparing your items.\n",
		name, amountCents/100, amountCents%100, currency, orderID)
	m.send(to, "Payment received for order "+orderID, body)
}
