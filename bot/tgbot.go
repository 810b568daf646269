// Package bot implements the Telegram admin bot.
//
// Layout:
//   - tgbot.go     TgBot struct, lifecycle (Start/Stop), Core interface
//   - commands.go  /start, /help
//   - admin.go     /requests, /approve, /code
//   - callbacks.go inline Approve button
//   - menus.go     per-admin command menus
//   - messaging.go log forwarding and domain event notifications
//   - digest.go    DigestBuffer for batched login attempt reports
//   - helpers.go   Sanitize, plainResponse, notifyAdmins, splitMessage
//
// Only chats listed in the configured admin ids are served; everyone else gets a refusal.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"alphagate/entity"
	"alphagate/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/callbackquery"
)

const commandTimeout = 30 * time.Second

type BotConfig struct {
	AdminIds          []int64
	DigestIntervalMin int
}

// Core is the part of the application the bot drives.
type Core interface {
	PendingAccessRequests(ctx context.Context) ([]*entity.AccessRequest, error)
	ApproveRequest(ctx context.Context, id string, approver *entity.Principal) (*entity.AccessCode, error)
	GenerateCode(ctx context.Context, spec *entity.IssueSpec, issuer *entity.Principal) (*entity.AccessCode, error)
}

type TgBot struct {
	log      *slog.Logger
	api      *tgbotapi.Bot
	core     Core
	updater  *ext.Updater
	digest   *DigestBuffer
	adminIds []int64
	config   BotConfig
}

func NewTgBot(apiKey string, log *slog.Logger, cfg BotConfig) (*TgBot, error) {
	if cfg.DigestIntervalMin == 0 {
		cfg.DigestIntervalMin = 60
	}

	tgBot := &TgBot{
		log:      log.With(sl.Module("tgbot")),
		adminIds: slices.Clone(cfg.AdminIds),
		config:   cfg,
	}
	tgBot.digest = NewDigestBuffer(tgBot.plainResponse, time.Duration(cfg.DigestIntervalMin)*time.Minute)

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	tgBot.api = api

	return tgBot, nil
}

func (t *TgBot) SetCore(core Core) {
	t.core = core
}

// Start polls for updates and blocks until Stop.
func (t *TgBot) Start() error {
	t.digest.StartTicker()

	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			t.log.Error("handling update:", sl.Err(err))
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	t.updater = ext.NewUpdater(dispatcher, nil)

	dispatcher.AddHandler(handlers.NewCommand("start", t.start))
	dispatcher.AddHandler(handlers.NewCommand("help", t.help))

	dispatcher.AddHandler(handlers.NewCommand("requests", t.requests))
	dispatcher.AddHandler(handlers.NewCommand("approve", t.approve))
	dispatcher.AddHandler(handlers.NewCommand("code", t.code))

	dispatcher.AddHandler(handlers.NewCallback(callbackquery.Prefix(cbApprove), t.onApproveCallback))

	t.publishMenus()

	err := t.updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start polling: %w", err)
	}
	t.log.Info("telegram bot started", slog.Int("admins", len(t.adminIds)))

	t.updater.Idle()
	return nil
}

func (t *TgBot) Stop() {
	t.digest.Stop()
	if t.updater != nil {
		t.log.Info("stopping telegram bot")
		t.updater.Stop()
	}
}

func (t *TgBot) isAdmin(chatId int64) bool {
	return slices.Contains(t.adminIds, chatId)
}
