package bot

import (
	"fmt"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

// start tells the user their chat id so it can be added to telegram.admin_ids.
func (t *TgBot) start(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if t.isAdmin(chatId) {
		t.applyMenu(adminMenu, tgbotapi.BotCommandScopeChat{ChatId: chatId})
		t.plainResponse(chatId, "Admin notifications are on\\. Send /help for commands\\.")
		return nil
	}
	t.log.Info("unknown telegram user", "id", chatId, "username", ctx.EffectiveUser.Username)
	t.plainResponse(chatId, fmt.Sprintf("This bot serves administrators only\\. Your id is `%d`\\.", chatId))
	return nil
}

func (t *TgBot) help(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.isAdmin(chatId) {
		t.plainResponse(chatId, "Admin access required\\.")
		return nil
	}
	t.plainResponse(chatId, helpText)
	return nil
}

const helpText = "*Commands*\n" +
	"/requests \\- pending access requests\n" +
	"/approve `<id>` \\- approve a request and send its code\n" +
	"/code `[days]` \\- generate a single use code, optional expiry in days\n" +
	"/help \\- this message"
