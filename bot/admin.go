package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"alphagate/entity"
	"alphagate/lib/clock"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

const maxListedRequests = 20

// requests lists pending access requests, each with an Approve button.
func (t *TgBot) requests(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.isAdmin(chatId) || t.core == nil {
		t.plainResponse(chatId, "Admin access required\\.")
		return nil
	}

	c, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	pending, err := t.core.PendingAccessRequests(c)
	if err != nil {
		t.reportError(chatId, "requests", err)
		return nil
	}
	if len(pending) == 0 {
		t.plainResponse(chatId, "No pending requests\\.")
		return nil
	}

	t.plainResponse(chatId, fmt.Sprintf("*Pending requests* \\(%d\\)", len(pending)))
	for i, req := range pending {
		if i == maxListedRequests {
			t.plainResponse(chatId, fmt.Sprintf("\\.\\.\\. and %d more", len(pending)-maxListedRequests))
			break
		}
		t.sendWithKeyboard(chatId, formatRequest(req), buildApproveButton(req.ID.Hex()))
	}
	return nil
}

func (t *TgBot) approve(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.isAdmin(chatId) || t.core == nil {
		t.plainResponse(chatId, "Admin access required\\.")
		return nil
	}

	args := strings.Fields(ctx.EffectiveMessage.Text)
	if len(args) < 2 {
		t.plainResponse(chatId, "Usage: `/approve <id>`")
		return nil
	}

	c, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	code, err := t.core.ApproveRequest(c, args[1], principal(ctx.EffectiveUser))
	if err != nil {
		t.reportError(chatId, "approve", err)
		return nil
	}
	t.plainResponse(chatId, fmt.Sprintf("Approved, code `%s`", code.Code))
	return nil
}

// code generates an ad-hoc single use code.
func (t *TgBot) code(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.isAdmin(chatId) || t.core == nil {
		t.plainResponse(chatId, "Admin access required\\.")
		return nil
	}

	spec, err := parseCodeArgs(ctx.EffectiveMessage.Text)
	if err != nil {
		t.plainResponse(chatId, "Usage: `/code [days]`")
		return nil
	}

	c, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	code, err := t.core.GenerateCode(c, spec, principal(ctx.EffectiveUser))
	if err != nil {
		t.reportError(chatId, "code", err)
		return nil
	}

	expires := "never"
	if code.ExpiresAt != nil {
		expires = clock.Format(*code.ExpiresAt)
	}
	t.plainResponse(chatId, fmt.Sprintf("Code `%s`\nExpires: %s", code.Code, Sanitize(expires)))
	return nil
}

func parseCodeArgs(text string) (*entity.IssueSpec, error) {
	spec := &entity.IssueSpec{Note: "telegram"}
	args := strings.Fields(text)
	if len(args) < 2 {
		return spec, nil
	}
	days, err := strconv.Atoi(args[1])
	if err != nil || days < 0 {
		return nil, fmt.Errorf("invalid days: %q", args[1])
	}
	spec.ExpiresInDays = days
	return spec, nil
}
