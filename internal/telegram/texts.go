package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/ykvlv/timer-bot/internal/domain"
)

const endTimeLayout = "02.01.2006 15:04"

const (
	textWelcome = "👋 Hi! I manage countdown timers.\n\n" +
		"Commands:\n" +
		"/timer <hours> — start a timer\n" +
		"/list — show active timers\n" +
		"/delete <number> — cancel a timer\n" +
		"/help — show help"

	textUnknown = "I don't know that command. Try /help."

	textInternalError = "Something went wrong. Please try again later."

	textTimerUsage = "❌ Wrong format.\n" +
		"Use: /timer <hours>\n" +
		"Example: /timer 5"

	textDeleteUsage = "❌ Wrong format.\n" +
		"Use: /delete <number>\n" +
		"Example: /delete 1"

	textHoursNotANumber  = "❌ Duration must be a whole number of hours."
	textNumberNotANumber = "❌ Timer number must be a whole number."

	textNoTimers = "You have no active timers."
)

func helpText(l Limits) string {
	return fmt.Sprintf(
		"📝 Commands:\n\n"+
			"1️⃣ /timer <hours> — start a timer\n"+
			"   Example: /timer 5 — a 5 hour timer\n\n"+
			"2️⃣ /list — show all active timers\n\n"+
			"3️⃣ /delete <number> — cancel a timer by its number\n"+
			"   Example: /delete 1 — cancel timer #1\n\n"+
			"❗️ At most %d active timers\n"+
			"⏰ Minimum duration: %d h\n"+
			"⏰ Maximum duration: %d h",
		l.MaxTimers, l.MinHours, l.MaxHours,
	)
}

func hoursRangeText(l Limits) string {
	return fmt.Sprintf("❌ Duration must be between %d and %d hours.", l.MinHours, l.MaxHours)
}

func limitText(maxTimers int) string {
	return fmt.Sprintf(
		"❌ Active timer limit reached (%d).\nCancel one with /delete first.",
		maxTimers,
	)
}

func timerCreatedText(t *domain.Timer) string {
	return fmt.Sprintf(
		"✅ Timer #%d set!\n⏰ Ends at: %s\n⌛️ Duration: %d h",
		t.Number, t.EndTime.Format(endTimeLayout), t.DurationHours,
	)
}

func timerListText(timers []domain.Timer, now time.Time) string {
	var b strings.Builder
	b.WriteString("📋 Your active timers:\n\n")
	for _, t := range timers {
		left := t.Remaining(now)
		h := int(left.Hours())
		m := int(left.Minutes()) % 60
		fmt.Fprintf(&b,
			"🔔 Timer #%d\n⏰ Ends at: %s\n⌛️ Left: %dh %dm\n\n",
			t.Number, t.EndTime.Format(endTimeLayout), h, m,
		)
	}
	return strings.TrimRight(b.String(), "\n")
}

func timerDeletedText(number int) string {
	return fmt.Sprintf("✅ Timer #%d cancelled.", number)
}

func timerNotFoundText(number int) string {
	return fmt.Sprintf("❌ Timer #%d not found.", number)
}
