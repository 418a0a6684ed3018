package lib

import (
    "context"
    "fmt"
    "log/slog"
    "regexp"
    "strings"

    tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
    "github.com/rferdous/microtask-bot/internal/rowstore"
)

var phoneRx = regexp.MustCompile(`^\(\d{3}\) \d{3}-\d{4}$`)

const maxListedTasks = 20

// cmdGetTask hands the worker a task. The cheap pending-task precheck runs
// outside the lock; the check repeats on the fresh snapshot inside it, where
// the available-task scan and the Assigned write also live, so two workers
// cannot win the same row and one worker cannot win two.
func (b *Bot) cmdGetTask(ctx context.Context, chatID int64, u *User) {
    rows, err := b.tasks.Rows(ctx, false)
    if err != nil {
        slog.Error("load tasks", "err", err)
        b.reply(chatID, "The task list is unavailable right now. Please try again shortly.")
        return
    }
    if pendingTask(rows, u.Name) != nil {
        b.reply(chatID, "You already have an unfinished task.")
        return
    }

    if !b.assignMu.TryLock() {
        b.reply(chatID, "Another user is taking a task right now. Please try again in a few seconds.")
        return
    }
    defer b.assignMu.Unlock()

    rows, err = b.tasks.Rows(ctx, true)
    if err != nil {
        slog.Error("refresh tasks", "err", err)
        b.reply(chatID, "Could not fetch tasks. Please try again.")
        return
    }
    // The unlocked precheck ran on a possibly stale snapshot; a double-tap
    // straddling the lock would otherwise win a second task.
    if pendingTask(rows, u.Name) != nil {
        b.reply(chatID, "You already have an unfinished task.")
        return
    }

    if b.chooseMode {
        b.sendTaskList(chatID, rows)
        return
    }

    var available *rowstore.Row
    for _, r := range rows {
        if r.Get(rowstore.ColStatus) == rowstore.StatusAvailable {
            available = r
            break
        }
    }
    if available == nil {
        b.reply(chatID, "Sorry, there are no new tasks at the moment.")
        return
    }
    b.assignAndPresent(ctx, chatID, u, available, 0)
}

// sendTaskList renders the first 20 available rows as buttons. The actual
// assignment happens in cbSelectTask, which re-validates the row because
// this list may already be stale when the worker taps it.
func (b *Bot) sendTaskList(chatID int64, rows []*rowstore.Row) {
    var kb [][]tgbotapi.InlineKeyboardButton
    for _, r := range rows {
        if r.Get(rowstore.ColStatus) != rowstore.StatusAvailable {
            continue
        }
        kb = append(kb, tgbotapi.NewInlineKeyboardRow(
            tgbotapi.NewInlineKeyboardButtonData(emailLocalPart(r.Get(rowstore.ColEmail)), "select_task_"+r.Get(rowstore.ColTaskID)),
        ))
        if len(kb) == maxListedTasks {
            break
        }
    }
    if len(kb) == 0 {
        b.reply(chatID, "Sorry, there are no new tasks at the moment.")
        return
    }
    msg := tgbotapi.NewMessage(chatID, "Pick a task:")
    msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(kb...)
    b.send(msg)
}

// cbSelectTask finishes the multi-choice flow. The listed row may have been
// taken since the list was rendered, so availability is re-validated under
// the assignment lock.
func (b *Bot) cbSelectTask(ctx context.Context, chatID int64, u *User, taskID string, messageID int) {
    if !b.assignMu.TryLock() {
        b.reply(chatID, "Another user is taking a task right now. Please try again in a few seconds.")
        return
    }
    defer b.assignMu.Unlock()

    rows, err := b.tasks.Rows(ctx, true)
    if err != nil {
        slog.Error("refresh tasks", "err", err)
        b.reply(chatID, "Could not fetch tasks. Please try again.")
        return
    }
    if pendingTask(rows, u.Name) != nil {
        b.editText(chatID, messageID, "You already have an unfinished task.")
        return
    }
    row := rowstore.FindByTaskID(rows, taskID)
    if row == nil || row.Get(rowstore.ColStatus) != rowstore.StatusAvailable {
        b.editText(chatID, messageID, "That task is no longer available. Use Get Task to pick another.")
        return
    }
    b.assignAndPresent(ctx, chatID, u, row, messageID)
}

func (b *Bot) assignAndPresent(ctx context.Context, chatID int64, u *User, row *rowstore.Row, editMessageID int) {
    row.Set(rowstore.ColStatus, rowstore.StatusAssigned)
    row.Set(rowstore.ColAssignedTo, u.Name)
    if err := b.tasksTbl.SaveRow(ctx, row); err != nil {
        slog.Error("assign task", "task", row.Get(rowstore.ColTaskID), "user", u.Name, "err", err)
        b.tasks.Invalidate()
        b.reply(chatID, "Something went wrong while assigning the task. Please try again.")
        return
    }
    if _, err := b.tasks.Rows(ctx, true); err != nil {
        slog.Warn("refresh tasks after assign", "err", err)
    }
    slog.Info("task assigned", "task", row.Get(rowstore.ColTaskID), "user", u.Name)

    x, y := b.progress.Values(ctx)
    text := taskDetailText(fmt.Sprintf("Your new task (%d/%d)", x, y), row, "")
    kb := taskKeyboard(row.Get(rowstore.ColTaskID))
    if editMessageID != 0 {
        edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, editMessageID, text, kb)
        edit.ParseMode = tgbotapi.ModeHTML
        b.send(edit)
        return
    }
    msg := tgbotapi.NewMessage(chatID, text)
    msg.ParseMode = tgbotapi.ModeHTML
    msg.ReplyMarkup = kb
    b.send(msg)
}

// cbSubmitPrompt arms the awaiting-phone state; the next free-text message
// from this user is treated as the phone number.
func (b *Bot) cbSubmitPrompt(chatID, userID int64, taskID string, messageID int) {
    sess, _ := b.sessions.Get(userID)
    sess.State = StateAwaitingPhone
    sess.TaskID = taskID
    sess.MessageID = messageID
    b.sessions.Set(userID, sess)
    b.reply(chatID, "Please send the phone number, like (555) 123-4567.")
}

func (b *Bot) handlePhoneInput(ctx context.Context, chatID int64, u *User, text string, sess Session) {
    phone := strings.TrimSpace(text)
    if !phoneRx.MatchString(phone) {
        // Bad input re-prompts; the pending session stays armed.
        b.reply(chatID, "That doesn't look right. The number must be like (555) 123-4567. Please send it again.")
        return
    }

    row, err := b.taskByID(ctx, sess.TaskID)
    if err != nil {
        slog.Error("load task for submit", "task", sess.TaskID, "err", err)
        b.reply(chatID, "Could not submit right now. Please try again.")
        return
    }
    // The task may have been reassigned or rejected since the prompt; never
    // overwrite a row this worker no longer owns.
    if row == nil || row.Get(rowstore.ColStatus) != rowstore.StatusAssigned || row.Get(rowstore.ColAssignedTo) != u.Name {
        b.sessions.Clear(chatIDOf(u))
        msg := tgbotapi.NewMessage(chatID, "Sorry, this task could not be submitted.")
        msg.ReplyMarkup = b.mainMenuKeyboard(chatIDOf(u))
        b.send(msg)
        return
    }

    row.Set(rowstore.ColPhoneNumber, phone)
    row.Set(rowstore.ColStatus, rowstore.StatusCompleted)
    if err := b.tasksTbl.SaveRow(ctx, row); err != nil {
        slog.Error("complete task", "task", sess.TaskID, "err", err)
        b.tasks.Invalidate()
        b.reply(chatID, "Something went wrong while submitting. Please try again.")
        return
    }
    if _, err := b.tasks.Rows(ctx, true); err != nil {
        slog.Warn("refresh tasks after submit", "err", err)
    }
    if err := b.updateStats(ctx, u, 1); err != nil {
        slog.Error("update stats", "user", u.ID, "err", err)
    }
    b.sessions.Clear(chatIDOf(u))
    slog.Info("task completed", "task", sess.TaskID, "user", u.Name)

    if sess.MessageID != 0 {
        done := taskDetailText("Task completed:", row, phone)
        edit := tgbotapi.NewEditMessageText(chatID, sess.MessageID, done)
        edit.ParseMode = tgbotapi.ModeHTML
        b.send(edit)
    }
    msg := tgbotapi.NewMessage(chatID, "✅ Thank you! The task was submitted.")
    msg.ReplyMarkup = b.mainMenuKeyboard(chatIDOf(u))
    b.send(msg)
}

func (b *Bot) cbRejectMenu(chatID int64, taskID string, messageID int) {
    kb := tgbotapi.NewInlineKeyboardMarkup(
        tgbotapi.NewInlineKeyboardRow(
            tgbotapi.NewInlineKeyboardButtonData("🚫 Account create problem", "confirm_reject_problem_"+taskID),
        ),
        tgbotapi.NewInlineKeyboardRow(
            tgbotapi.NewInlineKeyboardButtonData("⏰ Do later", "confirm_reject_later_"+taskID),
        ),
        tgbotapi.NewInlineKeyboardRow(
            tgbotapi.NewInlineKeyboardButtonData("↩️ Back", "back_to_task_"+taskID),
        ),
    )
    b.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, "Why do you want to reject this task?", kb))
}

func (b *Bot) cbConfirmReject(chatID int64, reason, taskID string, messageID int) {
    kb := tgbotapi.NewInlineKeyboardMarkup(
        tgbotapi.NewInlineKeyboardRow(
            tgbotapi.NewInlineKeyboardButtonData("✅ Yes", "final_reject_"+reason+"_"+taskID),
        ),
        tgbotapi.NewInlineKeyboardRow(
            tgbotapi.NewInlineKeyboardButtonData("❌ No", "back_to_task_"+taskID),
        ),
    )
    b.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, "Are you sure?", kb))
}

func (b *Bot) cbFinalReject(ctx context.Context, chatID int64, u *User, reason, taskID string, messageID int) {
    row, err := b.taskByID(ctx, taskID)
    if err != nil {
        slog.Error("load task for reject", "task", taskID, "err", err)
        b.reply(chatID, "Could not reject right now. Please try again.")
        return
    }
    if row == nil || row.Get(rowstore.ColStatus) != rowstore.StatusAssigned || row.Get(rowstore.ColAssignedTo) != u.Name {
        b.editText(chatID, messageID, "This task can no longer be rejected.")
        return
    }

    var response string
    switch reason {
    case reasonProblem:
        row.Set(rowstore.ColStatus, rowstore.StatusRejected)
        response = "The task was rejected."
    case reasonLater:
        row.Set(rowstore.ColStatus, rowstore.StatusAvailable)
        row.Set(rowstore.ColAssignedTo, "")
        response = "The task was returned to the pool."
    default:
        return
    }
    if err := b.tasksTbl.SaveRow(ctx, row); err != nil {
        slog.Error("reject task", "task", taskID, "reason", reason, "err", err)
        b.tasks.Invalidate()
        b.reply(chatID, "Something went wrong while rejecting. Please try again.")
        return
    }
    if _, err := b.tasks.Rows(ctx, true); err != nil {
        slog.Warn("refresh tasks after reject", "err", err)
    }
    slog.Info("task rejected", "task", taskID, "user", u.Name, "reason", reason)

    b.editText(chatID, messageID, response)
    msg := tgbotapi.NewMessage(chatID, "Ready for your next task.")
    msg.ReplyMarkup = b.mainMenuKeyboard(chatIDOf(u))
    b.send(msg)
}

// cbBackToTask restores the original task-detail view; nothing is mutated.
func (b *Bot) cbBackToTask(ctx context.Context, chatID int64, taskID string, messageID int) {
    row, err := b.taskByID(ctx, taskID)
    if err != nil || row == nil {
        return
    }
    edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID,
        taskDetailText("Your new task", row, ""), taskKeyboard(taskID))
    edit.ParseMode = tgbotapi.ModeHTML
    b.send(edit)
}

func (b *Bot) taskByID(ctx context.Context, taskID string) (*rowstore.Row, error) {
    rows, err := b.tasks.Rows(ctx, false)
    if err != nil {
        return nil, err
    }
    return rowstore.FindByTaskID(rows, taskID), nil
}

func pendingTask(rows []*rowstore.Row, workerName string) *rowstore.Row {
    for _, r := range rows {
        if r.Get(rowstore.ColStatus) == rowstore.StatusAssigned && r.Get(rowstore.ColAssignedTo) == workerName {
            return r
        }
    }
    return nil
}

func taskKeyboard(taskID string) tgbotapi.InlineKeyboardMarkup {
    return tgbotapi.NewInlineKeyboardMarkup(
        tgbotapi.NewInlineKeyboardRow(
            tgbotapi.NewInlineKeyboardButtonData("✅ Submit phone number", "submit_phone_"+taskID),
        ),
        tgbotapi.NewInlineKeyboardRow(
            tgbotapi.NewInlineKeyboardButtonData("❌ Reject", "reject_"+taskID),
        ),
    )
}

func taskDetailText(title string, row *rowstore.Row, submittedPhone string) string {
    var sb strings.Builder
    fmt.Fprintf(&sb, "<b>%s</b>\n\n", esc(title))
    fmt.Fprintf(&sb, "<b>Email:</b> <code>%s</code>\n", esc(row.Get(rowstore.ColEmail)))
    fmt.Fprintf(&sb, "<b>Password:</b> <code>%s</code>\n", esc(row.Get(rowstore.ColPassword)))
    fmt.Fprintf(&sb, "<b>Recovery Mail:</b> <code>%s</code>\n", esc(row.Get(rowstore.ColRecoveryMail)))
    if submittedPhone != "" {
        fmt.Fprintf(&sb, "\n<b>Submitted phone number:</b> <code>%s</code>", esc(submittedPhone))
    } else {
        sb.WriteString("\nSend the phone number here when the task is done.")
    }
    return sb.String()
}

func esc(s string) string {
    return tgbotapi.EscapeText(tgbotapi.ModeHTML, s)
}

func emailLocalPart(email string) string {
    if i := strings.IndexByte(email, '@'); i > 0 {
        return email[:i]
    }
    return email
}
