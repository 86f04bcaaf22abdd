package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendPaymentFailed(toEmail, orgName string, amountMinor int64, currency string) error
	SendTrialEnding(toEmail, orgName string, daysLeft int) error
	SendCancellationConfirmed(toEmail, orgName string, retentionUntil string) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	clientURL   string
}

func NewEmailService(host string, port int, username, password, senderEmail, clientURL string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
		clientURL:   clientURL,
	}
}

func (s *emailService) SendPaymentFailed(toEmail, orgName string, amountMinor int64, currency string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Payment Failed for Your Subscription")

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Payment Failed</h2>
			<p>We could not process the payment of %.2f %s for <b>%s</b>.</p>
			<p>Your subscription is now past due. Please update your payment method to avoid interruption:</p>
			<a href="%s/billing/payment-methods" style="background-color: #007BFF; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">Update Payment Method</a>
			<p>We will retry the charge automatically over the next few days.</p>
		</div>
	`, float64(amountMinor)/100, currency, orgName, s.clientURL)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send payment failed notice to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Payment failed notice sent to %s\n", toEmail)
	return nil
}

func (s *emailService) SendTrialEnding(toEmail, orgName string, daysLeft int) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Your Trial Is Ending Soon")

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Your trial ends in %d day(s)</h2>
			<p>The trial for <b>%s</b> is almost over. Add a payment method to keep your plan:</p>
			<a href="%s/billing" style="background-color: #4CAF50; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">Choose a Plan</a>
			<p>If you do nothing, your organization will return to the free plan.</p>
		</div>
	`, daysLeft, orgName, s.clientURL)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send trial ending notice to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Trial ending notice sent to %s\n", toEmail)
	return nil
}

func (s *emailService) SendCancellationConfirmed(toEmail, orgName string, retentionUntil string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Subscription Cancelled")

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Subscription cancelled</h2>
			<p>The paid subscription for <b>%s</b> has ended and the account is now on the free plan.</p>
			<p>Your data is kept until <b>%s</b>. Reactivate before then to restore your previous plan:</p>
			<a href="%s/billing" style="background-color: #007BFF; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">Reactivate</a>
		</div>
	`, orgName, retentionUntil, s.clientURL)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send cancellation notice to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Cancellation notice sent to %s\n", toEmail)
	return nil
}
