package botapp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	tginfra "github.com/zetalvx/mediagate/internal/infra/telegram"
	deliverysvc "github.com/zetalvx/mediagate/internal/services/delivery"
	membershipsvc "github.com/zetalvx/mediagate/internal/services/membership"
	paymentsvc "github.com/zetalvx/mediagate/internal/services/payments"
)

// Handlers never return errors to the listen loop for per-user failures; a
// broken update must not take the bot down.

func (a *App) handleCommand(ctx context.Context, upd tginfra.CommandUpdate) error {
	switch decodeCommand(upd.Command) {
	case IntentStart:
		a.onStart(ctx, upd.ChatID, upd.UserID)
	case IntentStatus:
		a.onStatus(ctx, upd.ChatID, upd.UserID)
	case IntentGetContent:
		a.onGetContent(ctx, upd.ChatID, upd.UserID)
	case IntentBuy:
		a.onBuy(ctx, upd.ChatID, upd.UserID)
	default:
		a.reply(ctx, upd.ChatID, welcomeText)
	}
	return nil
}

func (a *App) handleText(ctx context.Context, upd tginfra.TextUpdate) error {
	switch decodeText(upd.Text) {
	case IntentStatus:
		a.onStatus(ctx, upd.ChatID, upd.UserID)
	case IntentGetContent:
		a.onGetContent(ctx, upd.ChatID, upd.UserID)
	}
	return nil
}

func (a *App) handleCallback(ctx context.Context, upd tginfra.CallbackUpdate) error {
	if err := a.bot.AnswerCallback(ctx, upd.CallbackID, ""); err != nil {
		a.logger.Warn("failed to answer callback", zap.Error(err))
	}

	if decodeCallback(upd.Data) == IntentBuy && upd.ChatID != 0 {
		a.onBuy(ctx, upd.ChatID, upd.UserID)
	}
	return nil
}

func (a *App) handleChannelPost(ctx context.Context, upd tginfra.ChannelPostUpdate) error {
	source := strings.TrimPrefix(strings.TrimSpace(a.cfg.Bot.SourceChannel), "@")
	if source == "" || !strings.EqualFold(upd.ChannelUsername, source) {
		return nil
	}

	item, added, err := a.catalogService.Ingest(ctx, upd.FileRef, upd.Kind)
	if err != nil {
		a.logger.Error("catalog ingest failed",
			zap.String("kind", string(upd.Kind)),
			zap.Error(err),
		)
		return nil
	}
	if added {
		a.logger.Info("catalog item ingested",
			zap.Int64("item_id", item.ID),
			zap.String("kind", string(item.Kind)),
		)
	}
	return nil
}

func (a *App) onStart(ctx context.Context, chatID, userID int64) {
	if err := a.entitlementService.Register(ctx, userID); err != nil {
		a.logger.Error("register user failed", zap.Int64("user_id", userID), zap.Error(err))
		a.reply(ctx, chatID, somethingWrongText)
		return
	}

	if err := a.bot.SendMenu(ctx, chatID, welcomeText, menuButtons); err != nil {
		a.logger.Warn("send menu failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	a.logActivity(ctx, fmt.Sprintf("user %d started the bot", userID))
}

func (a *App) onStatus(ctx context.Context, chatID, userID int64) {
	snap, err := a.entitlementService.Status(ctx, userID)
	if err != nil {
		a.logger.Error("entitlement status failed", zap.Int64("user_id", userID), zap.Error(err))
		a.reply(ctx, chatID, somethingWrongText)
		return
	}
	a.reply(ctx, chatID, renderStatus(snap))
}

func (a *App) onGetContent(ctx context.Context, chatID, userID int64) {
	member, err := a.membershipService.Check(ctx, userID)
	if err != nil {
		if errors.Is(err, membershipsvc.ErrOracleUnavailable) {
			a.reply(ctx, chatID, oracleDownText)
			return
		}
		a.logger.Error("membership check failed", zap.Int64("user_id", userID), zap.Error(err))
		a.reply(ctx, chatID, somethingWrongText)
		return
	}

	res, err := a.deliveryService.Request(ctx, userID, member)
	if err != nil {
		var quotaErr *deliverysvc.QuotaExceededError
		switch {
		case errors.Is(err, deliverysvc.ErrNotAMember):
			a.reply(ctx, chatID, joinFirstText)
		case errors.As(err, &quotaErr):
			text := renderQuotaExceeded(quotaErr.Limit, quotaErr.ResetIn)
			if err := a.bot.SendInlineButton(ctx, chatID, text+"\n\n"+buyPitchText, upgradeButtonLabel, callbackUpgrade); err != nil {
				a.logger.Warn("send upgrade prompt failed", zap.Int64("user_id", userID), zap.Error(err))
			}
		case errors.Is(err, deliverysvc.ErrNoItemsAvailable):
			a.reply(ctx, chatID, noItemsText)
		default:
			a.logger.Error("delivery request failed", zap.Int64("user_id", userID), zap.Error(err))
			a.reply(ctx, chatID, somethingWrongText)
		}
		return
	}

	if err := a.bot.SendItem(ctx, chatID, res.Item.FileRef, res.Item.Kind); err != nil {
		a.logger.Error("send content item failed",
			zap.Int64("user_id", userID),
			zap.Int64("item_id", res.Item.ID),
			zap.Error(err),
		)
		a.reply(ctx, chatID, deliveryFailedText)
		return
	}

	a.logActivity(ctx, fmt.Sprintf("user %d received item %d (%d/%d used)",
		userID, res.Item.ID, res.QuotaUsed, res.Limit))
}

func (a *App) onBuy(ctx context.Context, chatID, userID int64) {
	if err := a.entitlementService.Register(ctx, userID); err != nil {
		a.logger.Error("register user failed", zap.Int64("user_id", userID), zap.Error(err))
		a.reply(ctx, chatID, somethingWrongText)
		return
	}

	rec, err := a.paymentService.Initiate(ctx, userID)
	if err != nil {
		if errors.Is(err, paymentsvc.ErrValidation) {
			a.reply(ctx, chatID, somethingWrongText)
			return
		}
		a.logger.Error("payment initiate failed", zap.Int64("user_id", userID), zap.Error(err))
		a.reply(ctx, chatID, somethingWrongText)
		return
	}

	payURL := fmt.Sprintf(a.cfg.Payment.PayURLPattern, rec.Ref)
	if err := a.bot.SendPayButton(ctx, chatID, paymentPendingText, payButtonLabel, payURL); err != nil {
		a.logger.Warn("send pay button failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	a.logActivity(ctx, fmt.Sprintf("user %d initiated payment %s", userID, rec.Ref))
}

func (a *App) reply(ctx context.Context, chatID int64, text string) {
	if err := a.bot.SendText(ctx, chatID, text); err != nil {
		a.logger.Warn("send reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
