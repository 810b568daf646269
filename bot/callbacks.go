package bot

import (
	"context"
	"fmt"
	"strings"

	"alphagate/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

// Callback data is limited to 64 bytes; an ObjectID hex is 24.
const cbApprove = "a:" // a:<request id>

func buildApproveButton(requestId string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{{
			{Text: "Approve", CallbackData: cbApprove + requestId},
		}},
	}
}

func (t *TgBot) onApproveCallback(_ *tgbotapi.Bot, ctx *ext.Context) error {
	cb := ctx.CallbackQuery
	chatId := cb.From.Id
	if !t.isAdmin(chatId) || t.core == nil {
		_, _ = cb.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "Admin access required"})
		return nil
	}
	requestId := strings.TrimPrefix(cb.Data, cbApprove)

	c, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	code, err := t.core.ApproveRequest(c, requestId, principal(&cb.From))
	if err != nil {
		_, _ = cb.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "Not approved"})
		t.reportError(chatId, "approve", err)
		return nil
	}
	_, _ = cb.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "Approved"})

	if msg := cb.Message; msg != nil {
		if im, ok := msg.(tgbotapi.Message); ok {
			_, _, err = t.api.EditMessageText(
				fmt.Sprintf("%s\n\nApproved by %s", Sanitize(im.Text), Sanitize(principal(&cb.From).Identity())),
				&tgbotapi.EditMessageTextOpts{
					ChatId:    chatId,
					MessageId: im.MessageId,
					ParseMode: "MarkdownV2",
				},
			)
			if err != nil {
				t.log.Debug("editing request message", sl.Err(err))
			}
		}
	}
	t.plainResponse(chatId, fmt.Sprintf("Request `%s` approved, code `%s`", requestId, code.Code))
	return nil
}
