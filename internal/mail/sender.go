package mail

import (
	"fmt"

	"ms-leadflow/internal/config"
	"ms-leadflow/internal/logger"
	"ms-leadflow/internal/models"

	gomail "gopkg.in/gomail.v2"
)

// Sender delivers transactional email over SMTP. Delivery is best effort:
// the dispatcher logs failures and moves on, the notification record is the
// durable receipt.
type Sender struct {
	cfg config.EmailConfig
	log *logger.Logger
}

func NewSender(cfg config.EmailConfig, log *logger.Logger) *Sender {
	return &Sender{cfg: cfg, log: log}
}

func (s *Sender) SendPaymentConfirmation(lead *models.Lead, order *models.Order) error {
	if !s.cfg.Enabled {
		s.log.Info("MAIL", "SMTP disabled, skipping confirmation email")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.FromAddress)
	m.SetHeader("To", lead.Email)
	m.SetHeader("Subject", "Your payment is confirmed")
	m.SetBody("text/html", fmt.Sprintf(
		"<p>Hi %s,</p><p>Your payment of %.2f %s for the <b>%s</b> plan has been confirmed.</p><p>Order reference: %s</p>",
		lead.Name,
		float64(order.AmountCents)/100,
		order.Currency,
		order.Plan,
		order.ID,
	))

	d := gomail.NewDialer(s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUsername, s.cfg.SMTPPassword)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send confirmation email: %w", err)
	}

	s.log.Info("MAIL", fmt.Sprintf("Confirmation email sent to %s for order %s", lead.Email, order.ID))
	return nil
}
