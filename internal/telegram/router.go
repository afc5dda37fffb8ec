package telegram

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/timer-bot/internal/store"
)

// Limits holds the front-end validation bounds, taken from config.
type Limits struct {
	MaxTimers int
	MinHours  int
	MaxHours  int
}

// Router wires Telegram updates to command handlers.
type Router struct {
	bot    *tgbotapi.BotAPI
	log    *zap.Logger
	repo   store.Repo
	limits Limits
}

// NewRouter creates a new Telegram router.
func NewRouter(bot *tgbotapi.BotAPI, log *zap.Logger, repo store.Repo, limits Limits) *Router {
	return &Router{
		bot:    bot,
		log:    log,
		repo:   repo,
		limits: limits,
	}
}

// HandleUpdate routes a single update to the appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	chatID := msg.Chat.ID
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return
	}
	cmd, args := fields[0], fields[1:]

	switch {
	case strings.HasPrefix(cmd, "/start"):
		r.handleStart(ctx, chatID, displayName(msg))
	case strings.HasPrefix(cmd, "/help"):
		r.handleHelp(chatID)
	case strings.HasPrefix(cmd, "/timer"):
		r.handleTimer(ctx, chatID, displayName(msg), args)
	case strings.HasPrefix(cmd, "/list"):
		r.handleList(ctx, chatID, displayName(msg))
	case strings.HasPrefix(cmd, "/delete"):
		r.handleDelete(ctx, chatID, displayName(msg), args)
	default:
		r.reply(chatID, textUnknown)
	}
}

// Send delivers a plain text message to the given chat. This makes
// Router satisfy scheduler.NotifySink.
func (r *Router) Send(userID int64, text string) error {
	_, err := r.bot.Send(tgbotapi.NewMessage(userID, text))
	return err
}

func (r *Router) reply(chatID int64, text string) {
	if err := r.Send(chatID, text); err != nil {
		r.log.Error("reply failed", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func displayName(msg *tgbotapi.Message) string {
	if msg.From == nil {
		return strconv.FormatInt(msg.Chat.ID, 10)
	}
	if msg.From.UserName != "" {
		return msg.From.UserName
	}
	return strconv.FormatInt(msg.From.ID, 10)
}
