package lib

import (
    "context"
    "fmt"
    "log/slog"
    "strings"

    tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
    "github.com/rferdous/microtask-bot/internal/rowstore"
)

// showAdminPanel lists every registered user with approve/revoke buttons.
func (b *Bot) showAdminPanel(ctx context.Context, chatID int64) {
    rows, err := b.users.Rows(ctx, false)
    if err != nil {
        slog.Error("load users for panel", "err", err)
        b.reply(chatID, "Could not load the user list. Please try again.")
        return
    }
    if len(rows) == 0 {
        b.reply(chatID, "There are no registered users.")
        return
    }

    var sb strings.Builder
    sb.WriteString("Registered users:\n\n")
    var kb [][]tgbotapi.InlineKeyboardButton
    for _, r := range rows {
        name := r.Get(rowstore.ColUserName)
        id := r.Get(rowstore.ColUserID)
        icon := "❌"
        if strings.ToLower(r.Get(rowstore.ColAccess)) == rowstore.AccessYes {
            icon = "✅"
        }
        fmt.Fprintf(&sb, "%s %s — %s\n", icon, name, id)
        kb = append(kb, tgbotapi.NewInlineKeyboardRow(
            tgbotapi.NewInlineKeyboardButtonData("Approve "+name, "/approve_"+id),
            tgbotapi.NewInlineKeyboardButtonData("Revoke "+name, "/revoke_"+id),
        ))
    }
    msg := tgbotapi.NewMessage(chatID, sb.String())
    msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(kb...)
    b.send(msg)
}

// clearCaches drops every snapshot and every live session.
func (b *Bot) clearCaches(chatID int64) {
    b.tasks.Invalidate()
    b.users.Invalidate()
    b.progress.Invalidate()
    b.sessions.ClearAll()
    slog.Info("all caches cleared by admin")
    b.reply(chatID, "✅ All caches were cleared.")
}

func (b *Bot) editText(chatID int64, messageID int, text string) {
    if messageID == 0 {
        b.reply(chatID, text)
        return
    }
    b.send(tgbotapi.NewEditMessageText(chatID, messageID, text))
}
