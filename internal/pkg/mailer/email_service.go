package mailer

import (
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendMeetingSummary(toEmail, meetingID, summary string) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
}

func NewEmailService(host string, port int, username, password, senderEmail string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
	}
}

func (s *emailService) SendMeetingSummary(toEmail, meetingID, summary string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", fmt.Sprintf("Standup summary for %s", meetingID))

	// The summary is markdown; keep the email readable without a renderer.
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Meeting summary: %s</h2>
			<pre style="white-space: pre-wrap; font-family: inherit;">%s</pre>
		</div>
	`, meetingID, htmlEscape(summary))

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send summary for %s to %s: %v\n", meetingID, toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Summary for %s sent to %s\n", meetingID, toEmail)
	return nil
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
