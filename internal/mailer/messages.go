package mailer

import (
	"fmt"
	"time"
)

type Message struct {
	Subject string
	Body    string
}

func AccessCodeMessage(name, code string, expiresAt *time.Time) Message {
	body := fmt.Sprintf("Hello %s,\n\nYour Alpha access code is: %s\n", greetingName(name), code)
	if expiresAt != nil {
		body += fmt.Sprintf("It is valid until %s UTC.\n", expiresAt.UTC().Format("2006-01-02 15:04"))
	}
	body += "\nUse it on the Alpha login page together with your registered details.\n\nThe Alpha Network"
	return Message{Subject: "Your Alpha access code", Body: body}
}

func RequestReceivedMessage(name string) Message {
	return Message{
		Subject: "We received your Alpha pass request",
		Body: fmt.Sprintf("Hello %s,\n\nThank you for requesting an Alpha pass. "+
			"Our team will review your answers and email you an access code once approved.\n\nThe Alpha Network",
			greetingName(name)),
	}
}

func BookingMessage(name, date string) Message {
	return Message{
		Subject: "Your Alpha booking is confirmed",
		Body: fmt.Sprintf("Hello %s,\n\nYour booking for %s is confirmed.\n\nThe Alpha Network",
			greetingName(name), date),
	}
}

func greetingName(name string) string {
	if name == "" {
		return "there"
	}
	return name
}
