package lib

import (
    "context"
    "testing"

    tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
    "github.com/rferdous/microtask-bot/internal/rowstore"
)

func TestAdminPanelListsUsersWithButtons(t *testing.T) {
    users := &fakeTable{rows: []*rowstore.Row{
        userRow(2, 100, "Alice", 0, 0, "", rowstore.AccessYes),
        userRow(3, 200, "Bob", 0, 0, "", rowstore.AccessNo),
        userRow(4, adminID, "Admin", 0, 0, "", rowstore.AccessYes),
    }}
    b, tg := newTestBot(&fakeTable{}, users, Options{})

    b.handleCommand(context.Background(), adminID, adminID, "/admin_panel", 0)

    msgs := tg.messagesTo(adminID)
    if len(msgs) != 1 {
        t.Fatalf("got %d panel messages, want 1", len(msgs))
    }
    text := msgs[0].Text
    if !containsText([]string{text}, "✅ Alice") || !containsText([]string{text}, "❌ Bob") {
        t.Fatalf("panel text wrong:\n%s", text)
    }

    kb, ok := msgs[0].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
    if !ok {
        t.Fatalf("panel has no inline keyboard")
    }
    if len(kb.InlineKeyboard) != 3 {
        t.Fatalf("got %d button rows, want one per user", len(kb.InlineKeyboard))
    }
    row := kb.InlineKeyboard[0]
    if len(row) != 2 || *row[0].CallbackData != "/approve_100" || *row[1].CallbackData != "/revoke_100" {
        t.Fatalf("first button row = %+v", row)
    }
}

func TestAdminPanelEmpty(t *testing.T) {
    users := &fakeTable{rows: []*rowstore.Row{
        userRow(2, adminID, "Admin", 0, 0, "", rowstore.AccessYes),
    }}
    b, tg := newTestBot(&fakeTable{}, users, Options{})

    // Drain the only row so the panel has nothing to show.
    users.mu.Lock()
    users.rows = nil
    users.mu.Unlock()
    b.users.Invalidate()
    b.sessions.SetUser(adminID, &User{ID: "900", Name: "Admin", Access: rowstore.AccessYes})

    b.handleCommand(context.Background(), adminID, adminID, "/admin_panel", 0)

    if !containsText(tg.texts(), "no registered users") {
        t.Fatalf("expected empty-panel message, got %q", tg.texts())
    }
}

func TestClearCacheDropsSnapshotsAndSessions(t *testing.T) {
    tasks := &fakeTable{rows: []*rowstore.Row{
        taskRow(2, "t1", "job@mail.test", rowstore.StatusAvailable, ""),
    }}
    users := &fakeTable{rows: []*rowstore.Row{
        userRow(2, 100, "Alice", 0, 0, "", rowstore.AccessYes),
        userRow(3, adminID, "Admin", 0, 0, "", rowstore.AccessYes),
    }}
    b, tg := newTestBot(tasks, users, Options{})

    // Warm both caches and arm a session.
    b.handleCommand(context.Background(), 100, 100, "/start", 0)
    b.sessions.Set(100, Session{State: StateAwaitingPhone, TaskID: "t1"})
    tasksLoads := tasks.loads
    usersLoads := users.loads

    b.handleCommand(context.Background(), adminID, adminID, "/clearcache", 0)

    if _, ok := b.sessions.Get(100); ok {
        t.Fatalf("sessions survived the flush")
    }
    if !containsText(tg.texts(), "caches were cleared") {
        t.Fatalf("no confirmation, got %q", tg.texts())
    }

    // The next reads go back to the store.
    b.handleCommand(context.Background(), 100, 100, "/get_task", 0)
    if tasks.loads <= tasksLoads || users.loads <= usersLoads {
        t.Fatalf("caches were not invalidated (task loads %d -> %d, user loads %d -> %d)",
            tasksLoads, tasks.loads, usersLoads, users.loads)
    }
}
