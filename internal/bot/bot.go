package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"discipline-engine/internal/engine"
	"discipline-engine/internal/model"
	"discipline-engine/internal/repository"
	"discipline-engine/internal/service"
)

const (
	cbDonePrefix     = "done:"
	cbLatePrefix     = "late:"
	cbSkipPrefix     = "skip:"
	cbUndoPrefix     = "undo:"
	cbStudyLogPrefix = "studylog:"
	cbRemindOKPrefix = "remindok:"
	cbHowToPrefix    = "howto:"
)

// Bot aggregates the Telegram API with the discipline services.
type Bot struct {
	api         *tgbotapi.BotAPI
	users       *repository.UserRepository
	schedules   *service.ScheduleService
	punishments *service.PunishmentService
	planner     *service.PlannerService
	coach       *service.CoachService
	reminders   *engine.ReminderScheduler
	clock       engine.Clock
	logger      *zap.Logger

	mu            sync.Mutex
	conversations map[int64]*conversationState
}

func New(token string, users *repository.UserRepository, schedules *service.ScheduleService, punishments *service.PunishmentService, planner *service.PlannerService, coach *service.CoachService, clock engine.Clock, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	logger.Info("bot authorized", zap.String("account", api.Self.UserName))

	return &Bot{
		api:           api,
		users:         users,
		schedules:     schedules,
		punishments:   punishments,
		planner:       planner,
		coach:         coach,
		clock:         clock,
		logger:        logger,
		conversations: make(map[int64]*conversationState),
	}, nil
}

// SetReminderScheduler wires the scheduler in after construction; the
// bot is its notifier and the scheduler serves the bot's confirmations.
func (b *Bot) SetReminderScheduler(s *engine.ReminderScheduler) {
	b.reminders = s
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.logger.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.logger.Error("handle callback", zap.Error(err))
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.logger.Error("handle message", zap.Error(err))
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		b.clearConversation(msg.From.ID)
		b.logger.Debug("command",
			zap.Int64("from", msg.From.ID),
			zap.String("command", msg.Command()))
		return b.handleCommand(ctx, msg)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "Unclear orders. Use /today for the schedule or /help for the full command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "today":
		return b.handleToday(ctx, msg)
	case "punishments":
		return b.handlePunishments(ctx, msg)
	case "clearpunishments":
		return b.handleClearPunishments(ctx, msg)
	case "plan":
		return b.startPlanConversation(ctx, msg)
	case "study":
		return b.handleStudy(ctx, msg)
	case "screentime":
		return b.handleScreenTime(ctx, msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "coach":
		return b.handleCoach(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Dialog cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. Check /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	text := fmt.Sprintf(
		"Listen up, %s.\n<b>I run your day now.</b> Every slot on the schedule gets done, done late, or punished.\n\n"+
			"Commands:\n"+
			"• /today — today's schedule and the current slot\n"+
			"• /study — log study minutes for the running block\n"+
			"• /plan — build a multi-day study plan\n"+
			"• /punishments — your open consequences\n"+
			"• /report — end-of-day review\n"+
			"• /coach — a kick when you need one\n"+
			"• /help — everything else",
		escape(user.DisplayName()),
	)

	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "<b>Commands</b>\n" +
		"• /today — the day's timeline with action buttons\n" +
		"• /study — log how many minutes you actually studied\n" +
		"• /plan — break a topic into subtopics across your study slots\n" +
		"• /punishments — open punishment queue, oldest first\n" +
		"• /screentime &lt;minutes&gt; — report today's phone usage; over the limit earns a consequence\n" +
		"• /clearpunishments — wipe the queue after serving it\n" +
		"• /report — end-of-day performance review\n" +
		"• /coach — on-demand motivational message\n" +
		"• /cancel — abort the current dialog\n\n" +
		"Reminders fire when a slot starts. Confirm within the window or the slot is skipped and punished."
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleToday(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	sched, err := b.schedules.Today(ctx, user.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load the schedule: %s", escape(err.Error())))
	}
	sched.SortTasks()
	active := engine.ActiveTask(sched.Tasks, engine.MinuteOfDay(b.clock.Now()))

	out := tgbotapi.NewMessage(msg.Chat.ID, formatTimeline(sched, active))
	out.ParseMode = tgbotapi.ModeHTML
	out.ReplyMarkup = timelineKeyboard(sched)
	_, err = b.api.Send(out)
	return err
}

func (b *Bot) handlePunishments(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	open, err := b.punishments.Open(ctx, user.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load punishments: %s", escape(err.Error())))
	}
	if len(open) == 0 {
		return b.sendText(msg.Chat.ID, "Queue is empty. Keep it that way.")
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, formatPunishments(open))
	out.ParseMode = tgbotapi.ModeHTML
	out.ReplyMarkup = punishmentKeyboard(open)
	_, err = b.api.Send(out)
	return err
}

func (b *Bot) handleClearPunishments(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	if err := b.punishments.ClearAll(ctx, user.ID); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not clear the queue: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, "Queue cleared. You served your sentence, now stay clean.")
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	sched, err := b.schedules.Today(ctx, user.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load the schedule: %s", escape(err.Error())))
	}
	open, err := b.punishments.Open(ctx, user.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load punishments: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, escape(b.coach.EndOfDayReport(ctx, sched, len(open))))
}

func (b *Bot) handleCoach(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	sched, err := b.schedules.Today(ctx, user.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load the schedule: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, escape(b.coach.DailyKickstart(ctx, sched)))
}

func (b *Bot) handleStudy(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	active, err := b.schedules.ActiveTask(ctx, user.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not resolve the current slot: %s", escape(err.Error())))
	}
	if active == nil || active.Kind != model.KindStudy {
		return b.sendText(msg.Chat.ID, "No study block is running right now. Use the log buttons under /today for a specific slot.")
	}

	ref := engine.TaskRef{UserID: user.ID, Date: engine.DateKey(b.clock.Now()), SlotID: active.SlotID}

	// "/study 120" logs directly, a bare "/study" asks for the number.
	if args := strings.TrimSpace(msg.CommandArguments()); args != "" {
		minutes, err := strconv.Atoi(args)
		if err != nil || minutes < 0 {
			return b.sendText(msg.Chat.ID, "Minutes must be a number, zero or more. Example: /study 120")
		}
		return b.applyAndReport(ctx, msg.Chat.ID, ref, engine.EventLogStudy, minutes)
	}
	return b.startStudyLog(msg.Chat.ID, msg.From.ID, ref, active)
}

func (b *Bot) handleScreenTime(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, fmt.Sprintf(
			"Report today's screen time in minutes, e.g. /screentime 90. The limit is %d.", engine.ScreenTimeLimitMinutes))
	}
	minutes, err := strconv.Atoi(args)
	if err != nil || minutes < 0 {
		return b.sendText(msg.Chat.ID, "Minutes must be a number, zero or more.")
	}

	punishment, err := b.punishments.EscalateScreenTime(ctx, user.ID, minutes)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not record that: %s", escape(err.Error())))
	}
	if punishment == nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf(
			"%d minutes, within the %d minute limit. Discipline holds.", minutes, engine.ScreenTimeLimitMinutes))
	}
	if err := b.sendText(msg.Chat.ID, fmt.Sprintf(
		"🚨 %d minutes of screen time, %d over the limit.", minutes, minutes-engine.ScreenTimeLimitMinutes)); err != nil {
		return err
	}
	return b.announcePunishment(msg.Chat.ID, punishment)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warn("callback ack", zap.Error(err))
	}

	user, err := b.ensureUser(ctx, cb.From)
	if err != nil {
		return err
	}
	chatID := cb.Message.Chat.ID
	data := cb.Data

	switch {
	case strings.HasPrefix(data, cbDonePrefix):
		return b.applyFromCallback(ctx, chatID, user, data, cbDonePrefix, engine.EventMarkDone)
	case strings.HasPrefix(data, cbLatePrefix):
		return b.applyFromCallback(ctx, chatID, user, data, cbLatePrefix, engine.EventMarkLate)
	case strings.HasPrefix(data, cbSkipPrefix):
		return b.applyFromCallback(ctx, chatID, user, data, cbSkipPrefix, engine.EventMarkSkipped)
	case strings.HasPrefix(data, cbUndoPrefix):
		return b.applyFromCallback(ctx, chatID, user, data, cbUndoPrefix, engine.EventUndo)
	case strings.HasPrefix(data, cbStudyLogPrefix):
		ref, err := parseTaskCallback(data, cbStudyLogPrefix, user.ID)
		if err != nil {
			return nil
		}
		sched, err := b.schedules.Today(ctx, user.ID)
		if err != nil {
			return b.sendText(chatID, fmt.Sprintf("Could not load the schedule: %s", escape(err.Error())))
		}
		task := sched.TaskBySlot(ref.SlotID)
		if task == nil {
			return b.sendText(chatID, "That slot is gone from today's schedule.")
		}
		return b.startStudyLog(chatID, cb.From.ID, ref, task)
	case strings.HasPrefix(data, cbRemindOKPrefix):
		ref, err := parseTaskCallback(data, cbRemindOKPrefix, user.ID)
		if err != nil {
			return nil
		}
		if b.reminders != nil && b.reminders.Confirm(ref) {
			return b.sendText(chatID, "Confirmed. Now execute.")
		}
		return b.sendText(chatID, "That confirmation window is closed.")
	case strings.HasPrefix(data, cbHowToPrefix):
		id := strings.TrimPrefix(data, cbHowToPrefix)
		p, err := b.punishments.Get(ctx, id)
		if err != nil {
			return b.sendText(chatID, "That punishment no longer exists.")
		}
		return b.sendText(chatID, escape(b.coach.PunishmentInstructions(ctx, p)))
	default:
		return nil
	}
}

func (b *Bot) applyFromCallback(ctx context.Context, chatID int64, user *model.User, data, prefix string, ev engine.Event) error {
	ref, err := parseTaskCallback(data, prefix, user.ID)
	if err != nil {
		return nil
	}
	return b.applyAndReport(ctx, chatID, ref, ev, 0)
}

func (b *Bot) announcePunishment(chatID int64, p *model.Punishment) error {
	text := fmt.Sprintf("⚡️ <b>Consequence:</b> %s\nFor: %s", escape(p.Text), escape(p.TaskLabel))
	out := tgbotapi.NewMessage(chatID, text)
	out.ParseMode = tgbotapi.ModeHTML
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📖 How to do it", cbHowToPrefix+p.ID),
		),
	)
	_, err := b.api.Send(out)
	return err
}

// Notify implements the reminder notifier: a slot just started and the
// confirmation window is open.
func (b *Bot) Notify(ref engine.TaskRef, label string) {
	chatID, ok := b.chatFor(ref.UserID)
	if !ok {
		return
	}
	text := fmt.Sprintf("⏰ <b>%s</b> starts now. Confirm before the window closes or the slot is skipped.", escape(label))
	out := tgbotapi.NewMessage(chatID, text)
	out.ParseMode = tgbotapi.ModeHTML
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ On it", fmt.Sprintf("%s%s:%d", cbRemindOKPrefix, ref.Date, ref.SlotID)),
		),
	)
	if _, err := b.api.Send(out); err != nil {
		b.logger.Warn("send reminder", zap.Int64("chat", chatID), zap.Error(err))
	}
}

// Alarm implements the reminder alarm sink: the confirmation window
// expired without an answer.
func (b *Bot) Alarm(ref engine.TaskRef, label string) {
	chatID, ok := b.chatFor(ref.UserID)
	if !ok {
		return
	}
	text := fmt.Sprintf("🚨 No confirmation for <b>%s</b>. The slot is marked skipped. Check /punishments.", escape(label))
	if err := b.sendText(chatID, text); err != nil {
		b.logger.Warn("send alarm", zap.Int64("chat", chatID), zap.Error(err))
	}
}

// SendDayReport is wired as the day-complete hook: every slot of the
// schedule reached a terminal state.
func (b *Bot) SendDayReport(userID uint, sched *model.Schedule) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	chatID, ok := b.chatFor(userID)
	if !ok {
		return
	}
	open, err := b.punishments.Open(ctx, userID)
	if err != nil {
		b.logger.Warn("load punishments for report", zap.Uint("user", userID), zap.Error(err))
	}
	text := b.coach.EndOfDayReport(ctx, sched, len(open))
	if err := b.sendText(chatID, "🏁 <b>Day complete.</b>\n"+escape(text)); err != nil {
		b.logger.Warn("send day report", zap.Int64("chat", chatID), zap.Error(err))
	}
}

// RolloverDay materializes today's schedule for every known user and
// arms its reminders. Runs shortly after midnight and once at boot.
func (b *Bot) RolloverDay(ctx context.Context) error {
	users, err := b.users.ListAll(ctx)
	if err != nil {
		return err
	}
	date := engine.DateKey(b.clock.Now())
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		sched, err := b.schedules.Today(ctx, user.ID)
		if err != nil {
			b.logger.Warn("rollover schedule", zap.Uint("user", user.ID), zap.Error(err))
			continue
		}
		if b.reminders != nil {
			b.reminders.Arm(user.ID, date, sched.Tasks)
		}
	}
	b.logger.Info("day rolled over", zap.String("date", date))
	return nil
}

// SendKickstarts delivers the morning motivational message to everyone.
func (b *Bot) SendKickstarts(ctx context.Context) error {
	users, err := b.users.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		sched, err := b.schedules.Today(ctx, user.ID)
		if err != nil {
			b.logger.Warn("kickstart schedule", zap.Uint("user", user.ID), zap.Error(err))
			continue
		}
		text := b.coach.DailyKickstart(ctx, sched)
		if err := b.sendText(user.TelegramID, "🔥 "+escape(text)); err != nil {
			b.logger.Warn("send kickstart", zap.Int64("chat", user.TelegramID), zap.Error(err))
		}
	}
	return nil
}

func (b *Bot) chatFor(userID uint) (int64, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	user, err := b.users.FindByID(ctx, userID)
	if err != nil {
		b.logger.Warn("resolve chat", zap.Uint("user", userID), zap.Error(err))
		return 0, false
	}
	return user.TelegramID, true
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.users.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

// parseTaskCallback splits "prefix:DATE:SLOT" callback data.
func parseTaskCallback(data, prefix string, userID uint) (engine.TaskRef, error) {
	raw := strings.TrimPrefix(data, prefix)
	idx := strings.LastIndex(raw, ":")
	if idx < 0 {
		return engine.TaskRef{}, fmt.Errorf("malformed callback %q", data)
	}
	slot, err := strconv.Atoi(raw[idx+1:])
	if err != nil {
		return engine.TaskRef{}, fmt.Errorf("malformed slot in callback %q", data)
	}
	return engine.TaskRef{UserID: userID, Date: raw[:idx], SlotID: slot}, nil
}
