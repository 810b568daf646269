package bot

import (
	"fmt"
	"log/slog"
	"strings"

	"alphagate/entity"
	"alphagate/lib/apperr"
	"alphagate/lib/clock"
	"alphagate/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

func (t *TgBot) plainResponse(chatId int64, text string) {
	if text == "" {
		t.log.With("id", chatId).Debug("empty message")
		return
	}
	if t.api == nil {
		return
	}

	_, err := t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		t.log.With(slog.Int64("id", chatId)).Debug("sending message", sl.Err(err))
		_, err = t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{})
		if err != nil {
			t.log.With(slog.Int64("id", chatId)).Debug("sending safe message", sl.Err(err))
		}
	}
}

// sendWithKeyboard sends a message with an inline keyboard attached.
func (t *TgBot) sendWithKeyboard(chatId int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	if text == "" || t.api == nil {
		return
	}
	_, err := t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{
		ParseMode:   "MarkdownV2",
		ReplyMarkup: keyboard,
	})
	if err != nil {
		t.log.With(slog.Int64("id", chatId)).Debug("sending message with keyboard", sl.Err(err))
		_, err = t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{
			ReplyMarkup: keyboard,
		})
		if err != nil {
			t.log.With(slog.Int64("id", chatId)).Debug("sending message with keyboard fallback", sl.Err(err))
		}
	}
}

func Sanitize(input string) string {
	const reservedChars = "\\_*[]()~`>#+-=|{}.!"
	var sb strings.Builder
	sb.Grow(len(input))
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			sb.WriteRune('\\')
		}
		sb.WriteRune(char)
	}
	return sb.String()
}

func (t *TgBot) notifyAdmins(msg string) {
	for _, id := range t.adminIds {
		t.plainResponse(id, msg)
	}
}

func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			parts = append(parts, text)
			break
		}
		cutAt := maxLen
		nlIdx := strings.LastIndex(text[:maxLen], "\n")
		if nlIdx > 0 {
			cutAt = nlIdx + 1
		}
		parts = append(parts, text[:cutAt])
		text = text[cutAt:]
	}
	return parts
}

// principal identifies a Telegram admin in issuedBy/approvedBy fields.
func principal(user *tgbotapi.User) *entity.Principal {
	p := &entity.Principal{ID: fmt.Sprintf("tg:%d", user.Id)}
	if user.Username != "" {
		p.Name = "@" + user.Username
	} else {
		p.Name = strings.TrimSpace(user.FirstName + " " + user.LastName)
	}
	return p
}

func formatRequest(req *entity.AccessRequest) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*%s*\n", Sanitize(req.Name)))
	sb.WriteString(Sanitize(fmt.Sprintf("%s | %s", req.Email, req.FullMobile())))
	if req.City != "" {
		sb.WriteString(Sanitize(" | " + req.City))
	}
	sb.WriteString("\n")
	if req.Qualification != "" || req.Specialization != "" {
		sb.WriteString(Sanitize(strings.TrimSpace(req.Qualification+" "+req.Specialization)) + "\n")
	}
	sb.WriteString(fmt.Sprintf("`%s` %s", req.ID.Hex(), Sanitize(clock.Format(req.CreatedAt))))
	return sb.String()
}

// reportError logs the error and sends a neutral message to the admin.
func (t *TgBot) reportError(chatId int64, command string, err error) {
	t.log.Error("bot command failed",
		slog.String("command", command),
		slog.Int64("user_id", chatId),
		sl.Err(err),
	)
	t.plainResponse(chatId, fmt.Sprintf("Command failed: %s", Sanitize(apperr.Message(err))))
}
