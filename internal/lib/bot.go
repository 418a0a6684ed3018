package lib

import (
    "context"
    "log/slog"
    "strings"
    "sync"
    "time"

    tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
    "github.com/rferdous/microtask-bot/internal/cache"
    "github.com/rferdous/microtask-bot/internal/rowstore"
)

// Telegram is the slice of the bot API the handlers use. *tgbotapi.BotAPI
// satisfies it; tests plug in a fake.
type Telegram interface {
    Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
    Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Options struct {
    AdminID    int64
    TZ         *time.Location
    CacheTTL   time.Duration
    ChooseMode bool
}

type Bot struct {
    api      Telegram
    tasksTbl rowstore.Table
    usersTbl rowstore.Table

    tasks    *cache.TableCache
    users    *cache.TableCache
    progress *cache.Progress
    sessions *Sessions

    adminID    int64
    tz         *time.Location
    chooseMode bool

    // assignMu serializes the assignment critical section only; submit and
    // reject rely on the re-check-before-write pattern instead.
    assignMu sync.Mutex
}

func New(api Telegram, tasksTbl, usersTbl rowstore.Table, progress rowstore.ProgressReader, opts Options) *Bot {
    tz := opts.TZ
    if tz == nil {
        tz = time.Local
    }
    return &Bot{
        api:        api,
        tasksTbl:   tasksTbl,
        usersTbl:   usersTbl,
        tasks:      cache.NewTableCache("tasks", tasksTbl, opts.CacheTTL),
        users:      cache.NewTableCache("user_stats", usersTbl, opts.CacheTTL),
        progress:   cache.NewProgress(progress, opts.CacheTTL),
        sessions:   NewSessions(),
        adminID:    opts.AdminID,
        tz:         tz,
        chooseMode: opts.ChooseMode,
    }
}

// HandleUpdate is the entry point for one inbound webhook event. Runs on its
// own goroutine; the webhook response never waits for it.
func (b *Bot) HandleUpdate(u tgbotapi.Update) {
    ctx := context.Background()
    switch {
    case u.Message != nil:
        m := u.Message
        if m.From == nil {
            return
        }
        b.handleCommand(ctx, m.Chat.ID, m.From.ID, m.Text, 0)
    case u.CallbackQuery != nil:
        cq := u.CallbackQuery
        if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
            slog.Warn("answer callback", "err", err)
        }
        if cq.Message == nil {
            return
        }
        b.handleCommand(ctx, cq.Message.Chat.ID, cq.From.ID, cq.Data, cq.Message.MessageID)
    }
}

func (b *Bot) handleCommand(ctx context.Context, chatID, userID int64, command string, messageID int) {
    defer func() {
        if r := recover(); r != nil {
            slog.Error("handler panic", "user", userID, "command", command, "panic", r)
            b.reply(chatID, "Something went wrong. Please try again.")
        }
    }()
    command = strings.TrimSpace(command)

    sess, _ := b.sessions.Get(userID)
    user := sess.User
    if user == nil {
        u, err := b.findUser(ctx, userID)
        if err != nil {
            slog.Error("find user", "user", userID, "err", err)
            b.reply(chatID, "The service is unavailable right now. Please try again shortly.")
            return
        }
        if u != nil {
            b.sessions.SetUser(userID, u)
            user = u
        }
    }

    // Unrecognized senders go through free-text name capture first.
    if user == nil {
        if command != "" && !strings.HasPrefix(command, "/") && len([]rune(command)) > 2 {
            name := command
            if err := b.registerUser(ctx, userID, name); err != nil {
                slog.Error("register user", "user", userID, "err", err)
                b.reply(chatID, "Registration failed. Please try again.")
                return
            }
            b.reply(chatID, "Congratulations "+name+"! Your registration is complete. Please wait for admin approval.")
        } else {
            b.reply(chatID, "Welcome! To use the bot, please send your name.")
        }
        return
    }

    if userID == b.adminID {
        switch {
        case command == "/admin_panel":
            b.showAdminPanel(ctx, chatID)
            return
        case command == "/clearcache":
            b.clearCaches(chatID)
            return
        case strings.HasPrefix(command, "/approve_"):
            b.setAccess(ctx, chatID, strings.TrimPrefix(command, "/approve_"), rowstore.AccessYes)
            return
        case strings.HasPrefix(command, "/revoke_"):
            b.setAccess(ctx, chatID, strings.TrimPrefix(command, "/revoke_"), rowstore.AccessNo)
            return
        }
    }

    if user.Access != rowstore.AccessYes {
        b.reply(chatID, "Sorry, you are not approved yet. Please wait for the admin to approve you.")
        return
    }

    if sess.State == StateAwaitingPhone {
        b.handlePhoneInput(ctx, chatID, user, command, sess)
        return
    }

    switch command {
    case "/start":
        msg := tgbotapi.NewMessage(chatID, "Welcome, "+user.Name+"! What would you like to do?")
        msg.ReplyMarkup = b.mainMenuKeyboard(userID)
        b.send(msg)
        return
    case "/get_task":
        b.cmdGetTask(ctx, chatID, user)
        return
    case "/my_stats":
        b.cmdMyStats(ctx, chatID, user)
        return
    }

    if a, ok := parseAction(command); ok {
        switch a.kind {
        case actSubmitPhone:
            b.cbSubmitPrompt(chatID, userID, a.taskID, messageID)
        case actRejectMenu:
            b.cbRejectMenu(chatID, a.taskID, messageID)
        case actConfirmReject:
            b.cbConfirmReject(chatID, a.reason, a.taskID, messageID)
        case actFinalReject:
            b.cbFinalReject(ctx, chatID, user, a.reason, a.taskID, messageID)
        case actBackToTask:
            b.cbBackToTask(ctx, chatID, a.taskID, messageID)
        case actSelectTask:
            b.cbSelectTask(ctx, chatID, user, a.taskID, messageID)
        }
        return
    }

    msg := tgbotapi.NewMessage(chatID, "Use the menu to pick an action.")
    msg.ReplyMarkup = b.mainMenuKeyboard(userID)
    b.send(msg)
}

func (b *Bot) mainMenuKeyboard(userID int64) tgbotapi.InlineKeyboardMarkup {
    rows := [][]tgbotapi.InlineKeyboardButton{
        tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Get Task", "/get_task")),
        tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📊 My Stats", "/my_stats")),
    }
    if userID == b.adminID {
        rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⚙️ Admin Panel", "/admin_panel")))
    }
    return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) send(c tgbotapi.Chattable) {
    if _, err := b.api.Send(c); err != nil {
        slog.Error("telegram send", "err", err)
    }
}

func (b *Bot) reply(chatID int64, text string) {
    b.send(tgbotapi.NewMessage(chatID, text))
}
