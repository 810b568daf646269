package bot

import (
	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

// menu is the command list shown behind the "/" button for one audience.
type menu struct {
	name     string
	commands []tgbotapi.BotCommand
}

var (
	guestMenu = menu{name: "guest", commands: []tgbotapi.BotCommand{
		{Command: "start", Description: "Show your chat id"},
	}}
	adminMenu = menu{name: "admin", commands: []tgbotapi.BotCommand{
		{Command: "requests", Description: "List access requests awaiting approval"},
		{Command: "approve", Description: "Approve a request and mail its code"},
		{Command: "code", Description: "Issue a single use code, optional days to expiry"},
		{Command: "help", Description: "Show available commands"},
	}}
)

// publishMenus installs the guest menu for everyone and the admin menu in
// each configured admin chat.
func (t *TgBot) publishMenus() {
	t.applyMenu(guestMenu, tgbotapi.BotCommandScopeDefault{})
	for _, id := range t.adminIds {
		t.applyMenu(adminMenu, tgbotapi.BotCommandScopeChat{ChatId: id})
	}
}

func (t *TgBot) applyMenu(m menu, scope tgbotapi.BotCommandScope) {
	_, err := t.api.SetMyCommands(m.commands, &tgbotapi.SetMyCommandsOpts{Scope: scope})
	if err != nil {
		t.log.Warn("publishing command menu", "menu", m.name, "error", err)
	}
}
