package bot

import (
	"fmt"
	"log/slog"

	"alphagate/entity"
)

const (
	topicAccepted = "accepted"
	topicRejected = "rejected"
)

// SendMessageWithLevel forwards a log record to the admins.
func (t *TgBot) SendMessageWithLevel(msg string, level slog.Level) {
	if level >= slog.LevelError {
		t.notifyAdmins(msg)
		return
	}
	for _, id := range t.adminIds {
		t.digest.Add(id, level.String(), msg)
	}
}

// AccessRequested announces a new request with an Approve button.
func (t *TgBot) AccessRequested(req *entity.AccessRequest) {
	text := "New access request\n" + formatRequest(req)
	keyboard := buildApproveButton(req.ID.Hex())
	for _, id := range t.adminIds {
		t.sendWithKeyboard(id, text, keyboard)
	}
}

// LoginAttempted queues the attempt for the next digest.
func (t *TgBot) LoginAttempted(record *entity.LoginRecord) {
	topic := topicRejected
	if record.Accepted {
		topic = topicAccepted
	}
	msg := fmt.Sprintf("%s %s %s", record.Name, record.Email, record.IP)
	for _, id := range t.adminIds {
		t.digest.Add(id, topic, msg)
	}
}
