package telegram

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/timer-bot/internal/domain"
)

// ensureUser makes sure a user row exists before any command touches
// timers. The upsert is idempotent, so first contact via any command
// registers the user.
func (r *Router) ensureUser(ctx context.Context, chatID int64, name string) bool {
	if err := r.repo.AddUser(ctx, chatID, name); err != nil {
		r.log.Error("add user failed", zap.Int64("chatID", chatID), zap.Error(err))
		r.reply(chatID, textInternalError)
		return false
	}
	return true
}

func (r *Router) handleStart(ctx context.Context, chatID int64, name string) {
	if !r.ensureUser(ctx, chatID, name) {
		return
	}
	r.log.Info("user started bot", zap.Int64("chatID", chatID), zap.String("name", name))
	r.reply(chatID, textWelcome)
}

func (r *Router) handleHelp(chatID int64) {
	r.reply(chatID, helpText(r.limits))
}

func (r *Router) handleTimer(ctx context.Context, chatID int64, name string, args []string) {
	if len(args) != 1 {
		r.reply(chatID, textTimerUsage)
		return
	}
	hours, err := domain.ParseHours(args[0], r.limits.MinHours, r.limits.MaxHours)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotANumber):
			r.reply(chatID, textHoursNotANumber)
		default:
			r.reply(chatID, hoursRangeText(r.limits))
		}
		return
	}

	if !r.ensureUser(ctx, chatID, name) {
		return
	}

	tm, err := r.repo.AddTimer(ctx, chatID, hours)
	switch {
	case errors.Is(err, domain.ErrLimitExceeded):
		r.reply(chatID, limitText(r.limits.MaxTimers))
	case err != nil:
		r.log.Error("add timer failed", zap.Int64("chatID", chatID), zap.Error(err))
		r.reply(chatID, textInternalError)
	default:
		r.log.Info("timer created",
			zap.Int64("chatID", chatID),
			zap.Int64("timerID", tm.ID),
			zap.Int("timerNumber", tm.Number),
		)
		r.reply(chatID, timerCreatedText(tm))
	}
}

func (r *Router) handleList(ctx context.Context, chatID int64, name string) {
	if !r.ensureUser(ctx, chatID, name) {
		return
	}
	timers, err := r.repo.ListActive(ctx, chatID)
	if err != nil {
		r.log.Error("list timers failed", zap.Int64("chatID", chatID), zap.Error(err))
		r.reply(chatID, textInternalError)
		return
	}
	if len(timers) == 0 {
		r.reply(chatID, textNoTimers)
		return
	}
	r.reply(chatID, timerListText(timers, time.Now().UTC()))
}

func (r *Router) handleDelete(ctx context.Context, chatID int64, name string, args []string) {
	if len(args) != 1 {
		r.reply(chatID, textDeleteUsage)
		return
	}
	number, err := strconv.Atoi(args[0])
	if err != nil {
		r.reply(chatID, textNumberNotANumber)
		return
	}

	if !r.ensureUser(ctx, chatID, name) {
		return
	}

	found, err := r.repo.DeleteTimer(ctx, chatID, number)
	if err != nil {
		r.log.Error("delete timer failed",
			zap.Int64("chatID", chatID),
			zap.Int("timerNumber", number),
			zap.Error(err),
		)
		r.reply(chatID, textInternalError)
		return
	}
	if !found {
		r.reply(chatID, timerNotFoundText(number))
		return
	}
	r.log.Info("timer deleted", zap.Int64("chatID", chatID), zap.Int("timerNumber", number))
	r.reply(chatID, timerDeletedText(number))
}
