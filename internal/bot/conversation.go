package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"discipline-engine/internal/engine"
	"discipline-engine/internal/model"
	"discipline-engine/internal/service"
)

type conversationStage int

const (
	stagePlanSubject conversationStage = iota
	stagePlanTopic
	stagePlanDates
	stagePlanManual
	stageStudyMinutes
)

type conversationState struct {
	stage conversationStage
	plan  service.PlanInput

	studyRef      engine.TaskRef
	studyDuration int
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func (b *Bot) startPlanConversation(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	intro := "🗺 New study plan."
	if goals, err := b.planner.Goals(ctx, user.ID); err == nil && len(goals) > 0 {
		latest := goals[0]
		intro = fmt.Sprintf("🗺 New study plan. Your last one was <b>%s: %s</b> (until %s).",
			escape(latest.Subject), escape(latest.MainTopic), latest.EndDate)
	}
	b.setConversation(msg.From.ID, &conversationState{stage: stagePlanSubject})
	return b.sendText(msg.Chat.ID, intro+"\n<b>Step 1:</b> which subject? (e.g. Maths)")
}

func (b *Bot) startStudyLog(chatID int64, fromID int64, ref engine.TaskRef, task *model.Task) error {
	if task.Kind != model.KindStudy {
		return b.sendText(chatID, "That slot is not a study block.")
	}
	b.setConversation(fromID, &conversationState{
		stage:         stageStudyMinutes,
		studyRef:      ref,
		studyDuration: task.DurationMinutes,
	})
	return b.sendText(chatID, fmt.Sprintf(
		"📚 <b>%s</b> is scheduled for %d minutes.\nHow many minutes did you actually study? Be honest, I will know.",
		escape(taskTitle(*task)), task.DurationMinutes))
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stagePlanSubject:
		if text == "" {
			return b.sendText(msg.Chat.ID, "The subject cannot be empty.")
		}
		state.plan.Subject = text
		state.stage = stagePlanTopic
		return b.sendText(msg.Chat.ID, "<b>Step 2:</b> what main topic should the plan cover?")
	case stagePlanTopic:
		if text == "" {
			return b.sendText(msg.Chat.ID, "The topic cannot be empty.")
		}
		state.plan.MainTopic = text
		state.stage = stagePlanDates
		return b.sendText(msg.Chat.ID, "<b>Step 3:</b> date range as <code>2025-11-01 2025-11-14</code>.")
	case stagePlanDates:
		start, end, err := parseDateRange(text)
		if err != nil {
			return b.sendText(msg.Chat.ID, "Cannot read that. Send two dates like <code>2025-11-01 2025-11-14</code>.")
		}
		state.plan.StartDate = start
		state.plan.EndDate = end
		state.stage = stagePlanManual
		return b.sendText(msg.Chat.ID, "<b>Step 4:</b> list your own subtopics, comma separated. They go first in the plan. Send <code>-</code> to let me generate everything.")
	case stagePlanManual:
		if text != "-" && !strings.EqualFold(text, "skip") {
			for _, part := range strings.Split(text, ",") {
				if name := strings.TrimSpace(part); name != "" {
					state.plan.ManualSubtopics = append(state.plan.ManualSubtopics, name)
				}
			}
		}
		b.clearConversation(msg.From.ID)
		return b.finishPlan(ctx, msg, state.plan)
	case stageStudyMinutes:
		minutes, err := strconv.Atoi(text)
		if err != nil || minutes < 0 {
			return b.sendText(msg.Chat.ID, "Minutes must be a number, zero or more.")
		}
		b.clearConversation(msg.From.ID)
		return b.applyAndReport(ctx, msg.Chat.ID, state.studyRef, engine.EventLogStudy, minutes)
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Dialog reset. Start again with /plan or /study.")
	}
}

func (b *Bot) finishPlan(ctx context.Context, msg *tgbotapi.Message, input service.PlanInput) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	result, err := b.planner.CreatePlan(ctx, user.ID, input)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the plan: %s", escape(err.Error())))
	}

	var out strings.Builder
	out.WriteString(fmt.Sprintf("🗺 <b>Plan for %s: %s</b>\n", escape(input.Subject), escape(input.MainTopic)))
	out.WriteString(fmt.Sprintf("%s to %s, %d subtopics.\n\n", result.Goal.StartDate, result.Goal.EndDate, len(result.Goal.Subtopics)))
	for _, sub := range result.Goal.Subtopics {
		out.WriteString(fmt.Sprintf("%d. %s\n", sub.Position+1, escape(sub.Name)))
	}
	out.WriteString(fmt.Sprintf("\nPlaced into %d study slots.", result.Allocated))
	if result.Remaining > 0 {
		out.WriteString(fmt.Sprintf(" %d subtopics did not fit the range; extend it or plan again later.", result.Remaining))
	}
	return b.sendText(msg.Chat.ID, out.String())
}

// applyAndReport runs a transition and translates the outcome for the
// chat, punishment announcement included.
func (b *Bot) applyAndReport(ctx context.Context, chatID int64, ref engine.TaskRef, ev engine.Event, minutes int) error {
	task, punishment, err := b.schedules.Apply(ctx, ref, ev, minutes)
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrInvalidTransition):
		return b.sendText(chatID, "That move is not allowed from the slot's current state.")
	case errors.Is(err, service.ErrTransitionInFlight):
		return b.sendText(chatID, "Hold on, the previous action for that slot is still being applied.")
	case errors.Is(err, service.ErrTaskNotFound):
		return b.sendText(chatID, "That slot is gone from today's schedule.")
	default:
		return b.sendText(chatID, fmt.Sprintf("Could not apply that: %s", escape(err.Error())))
	}

	if err := b.sendText(chatID, transitionMessage(task, ev)); err != nil {
		return err
	}
	if punishment != nil {
		return b.announcePunishment(chatID, punishment)
	}
	return nil
}

func parseDateRange(text string) (time.Time, time.Time, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("expected two dates, got %d fields", len(fields))
	}
	start, err := time.Parse("2006-01-02", fields[0])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.Parse("2006-01-02", fields[1])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end before start")
	}
	return start, end, nil
}
