package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

type Mailer struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	Enabled bool
}

func NewMailer(apiKey, fromName, fromEmail string) *Mailer {
	m := &Mailer{
		Enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}
	if m.Enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}
	return m
}

func (m *Mailer) Send(toEmail, toName, subject, text, html string) (string, error) {
	if !m.Enabled {
		return "", errors.New("mailer disabled (missing MAILERSEND_API_KEY or MAILER_FROM)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	msg.SetSubject(subject)
	if strings.TrimSpace(text) != "" {
		msg.SetText(text)
	}
	if strings.TrimSpace(html) != "" {
		msg.SetHTML(html)
	}

	res, err := m.client.Email.Send(ctx, msg)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return "", fmt.Errorf("mailersend returned %d: %s", res.StatusCode, string(body))
	}

	return res.Header.Get("X-Message-Id"), nil
}

func (m *Mailer) SendCodeShare(toEmail, meetingTitle, encoded string) error {
	subject := fmt.Sprintf("Check-in code for %s", meetingTitle)
	text := fmt.Sprintf(
		"A check-in code was issued for %s.\n\n"+
			"Paste the string below into the scanner's manual entry, or render it as a QR code:\n\n%s\n",
		meetingTitle, encoded)
	html := fmt.Sprintf(
		"<p>A check-in code was issued for <strong>%s</strong>.</p>"+
			"<p>Paste the string below into the scanner's manual entry, or render it as a QR code:</p>"+
			"<pre>%s</pre>",
		meetingTitle, encoded)

	_, err := m.Send(toEmail, "", subject, text, html)
	return err
}

var _ Service = (*Mailer)(nil)
