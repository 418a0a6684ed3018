package lib

import (
    "context"
    "fmt"
    "log/slog"
    "strconv"
    "strings"
    "time"

    tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
    "github.com/rferdous/microtask-bot/internal/rowstore"
)

const dateLayout = "2006-01-02"

// User is a value snapshot of one UserStats row.
type User struct {
    RowNum   int
    ID       string
    Name     string
    Total    int
    Daily    int
    LastDate string
    Access   string
}

func userFromRow(r *rowstore.Row) *User {
    return &User{
        RowNum:   r.Num,
        ID:       r.Get(rowstore.ColUserID),
        Name:     r.Get(rowstore.ColUserName),
        Total:    atoi(r.Get(rowstore.ColTotalCompleted)),
        Daily:    atoi(r.Get(rowstore.ColDailyCompleted)),
        LastDate: r.Get(rowstore.ColLastCompletedDate),
        Access:   strings.ToLower(r.Get(rowstore.ColAccess)),
    }
}

func (b *Bot) findUser(ctx context.Context, tgID int64) (*User, error) {
    rows, err := b.users.Rows(ctx, false)
    if err != nil {
        return nil, err
    }
    id := strconv.FormatInt(tgID, 10)
    for _, r := range rows {
        if r.Get(rowstore.ColUserID) == id {
            return userFromRow(r), nil
        }
    }
    return nil, nil
}

func (b *Bot) userRow(ctx context.Context, userID string, force bool) (*rowstore.Row, error) {
    rows, err := b.users.Rows(ctx, force)
    if err != nil {
        return nil, err
    }
    for _, r := range rows {
        if r.Get(rowstore.ColUserID) == userID {
            return r, nil
        }
    }
    return nil, rowstore.ErrNotFound
}

// registerUser appends a fresh row with zero counters and no access, then
// pings the admin with a shortcut into the approval panel.
func (b *Bot) registerUser(ctx context.Context, tgID int64, name string) error {
    err := b.usersTbl.AppendRow(ctx, map[string]string{
        rowstore.ColUserID:            strconv.FormatInt(tgID, 10),
        rowstore.ColUserName:          name,
        rowstore.ColTotalCompleted:    "0",
        rowstore.ColDailyCompleted:    "0",
        rowstore.ColLastCompletedDate: "",
        rowstore.ColAccess:            rowstore.AccessNo,
    })
    if err != nil {
        return err
    }
    if _, err := b.users.Rows(ctx, true); err != nil {
        slog.Warn("refresh users after register", "err", err)
    }

    if b.adminID != 0 {
        msg := tgbotapi.NewMessage(b.adminID, fmt.Sprintf("New user: %s (%d)\n\nUse the admin panel to approve.", name, tgID))
        msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
            tgbotapi.NewInlineKeyboardRow(
                tgbotapi.NewInlineKeyboardButtonData("⚙️ Open admin panel", "/admin_panel"),
            ),
        )
        b.send(msg)
    }
    return nil
}

// setAccess flips the Access flag, patches any live session's cached user
// record, and notifies both sides.
func (b *Bot) setAccess(ctx context.Context, adminChatID int64, targetID, access string) {
    row, err := b.userRow(ctx, targetID, true)
    if err != nil {
        b.reply(adminChatID, fmt.Sprintf("No user with ID %s.", targetID))
        return
    }
    row.Set(rowstore.ColAccess, access)
    if err := b.usersTbl.SaveRow(ctx, row); err != nil {
        slog.Error("save access", "user", targetID, "err", err)
        // The cached row was already flipped; drop the snapshot so the
        // unsaved access value cannot leak out of findUser.
        b.users.Invalidate()
        b.reply(adminChatID, "Could not change access, try again.")
        return
    }
    if _, err := b.users.Rows(ctx, true); err != nil {
        slog.Warn("refresh users after access change", "err", err)
    }
    b.sessions.PatchUserAccess(targetID, access)

    name := row.Get(rowstore.ColUserName)
    b.reply(adminChatID, fmt.Sprintf("Access for %q is now %q.", name, access))

    if tgID, err := strconv.ParseInt(targetID, 10, 64); err == nil {
        if access == rowstore.AccessYes {
            msg := tgbotapi.NewMessage(tgID, "Congratulations! The admin approved your account. You can use the bot now.")
            msg.ReplyMarkup = b.mainMenuKeyboard(tgID)
            b.send(msg)
        } else {
            b.reply(tgID, "Sorry, the admin suspended your account access.")
        }
    }
    b.showAdminPanel(ctx, adminChatID)
}

// updateStats bumps the total counter and either bumps or restarts the
// daily counter depending on whether the last completion was today.
func (b *Bot) updateStats(ctx context.Context, u *User, count int) error {
    row, err := b.userRow(ctx, u.ID, false)
    if err != nil {
        return err
    }
    today := b.today()
    daily := atoi(row.Get(rowstore.ColDailyCompleted))
    if sameCalendarDay(row.Get(rowstore.ColLastCompletedDate), today) {
        daily += count
    } else {
        daily = count
    }
    total := atoi(row.Get(rowstore.ColTotalCompleted)) + count

    row.Set(rowstore.ColDailyCompleted, strconv.Itoa(daily))
    row.Set(rowstore.ColTotalCompleted, strconv.Itoa(total))
    row.Set(rowstore.ColLastCompletedDate, today)
    if err := b.usersTbl.SaveRow(ctx, row); err != nil {
        b.users.Invalidate()
        return err
    }
    if _, err := b.users.Rows(ctx, true); err != nil {
        slog.Warn("refresh users after stats update", "user", u.ID, "err", err)
    }
    return nil
}

// todaysCount treats the daily counter as stale unless the last completion
// date is today.
func (b *Bot) todaysCount(u *User) int {
    if sameCalendarDay(u.LastDate, b.today()) {
        return u.Daily
    }
    return 0
}

func (b *Bot) cmdMyStats(ctx context.Context, chatID int64, u *User) {
    latest, err := b.findUser(ctx, chatIDOf(u))
    if err != nil || latest == nil {
        b.reply(chatID, "Sorry, your record could not be found.")
        return
    }
    msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("📊 Your work summary, %s\n\n- Completed today: %d\n- Completed total: %d",
        latest.Name, b.todaysCount(latest), latest.Total))
    msg.ReplyMarkup = b.mainMenuKeyboard(chatIDOf(u))
    b.send(msg)
}

func chatIDOf(u *User) int64 {
    id, _ := strconv.ParseInt(u.ID, 10, 64)
    return id
}

func (b *Bot) today() string {
    return time.Now().In(b.tz).Format(dateLayout)
}

// sameCalendarDay is the single source of truth for the daily-counter reset;
// both the writer and the display path go through it.
func sameCalendarDay(date, today string) bool {
    date = strings.TrimSpace(date)
    if date == "" {
        return false
    }
    if t, err := time.Parse(dateLayout, date); err == nil {
        date = t.Format(dateLayout)
    }
    return date == today
}

func atoi(s string) int {
    n, _ := strconv.Atoi(strings.TrimSpace(s))
    return n
}
