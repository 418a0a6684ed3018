package lib

import (
    "context"
    "errors"
    "strconv"
    "strings"
    "sync"
    "time"

    tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
    "github.com/rferdous/microtask-bot/internal/rowstore"
)

// --- fakes ---

// fakeTable mimics the store: loads hand out copies, saves replace the
// canonical row, like the real adapters do.
type fakeTable struct {
    mu       sync.Mutex
    rows     []*rowstore.Row
    loadErr  error
    saveErr  error
    loads    int
    appended []map[string]string
}

func (f *fakeTable) LoadRows(ctx context.Context) ([]*rowstore.Row, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.loads++
    if f.loadErr != nil {
        return nil, f.loadErr
    }
    out := make([]*rowstore.Row, len(f.rows))
    for i, r := range f.rows {
        out[i] = rowstore.NewRow(r.Num, r.Fields())
    }
    return out, nil
}

func (f *fakeTable) SaveRow(ctx context.Context, row *rowstore.Row) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.saveErr != nil {
        return f.saveErr
    }
    for i, r := range f.rows {
        if r.Num == row.Num {
            f.rows[i] = rowstore.NewRow(row.Num, row.Fields())
            return nil
        }
    }
    return rowstore.ErrNotFound
}

func (f *fakeTable) AppendRow(ctx context.Context, fields map[string]string) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    cp := map[string]string{}
    for k, v := range fields {
        cp[k] = v
    }
    f.appended = append(f.appended, cp)
    f.rows = append(f.rows, rowstore.NewRow(len(f.rows)+2, cp))
    return nil
}

func (f *fakeTable) row(num int) *rowstore.Row {
    f.mu.Lock()
    defer f.mu.Unlock()
    for _, r := range f.rows {
        if r.Num == num {
            return r
        }
    }
    return nil
}

func (f *fakeTable) countByStatus(status string) int {
    f.mu.Lock()
    defer f.mu.Unlock()
    n := 0
    for _, r := range f.rows {
        if r.Get(rowstore.ColStatus) == status {
            n++
        }
    }
    return n
}

type fakeProgress struct{ x, y int }

func (f *fakeProgress) LoadProgress(ctx context.Context) (int, int, error) {
    return f.x, f.y, nil
}

// fakeTelegram records everything the bot tried to send.
type fakeTelegram struct {
    mu   sync.Mutex
    sent []tgbotapi.Chattable
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.sent = append(f.sent, c)
    return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeTelegram) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
    return &tgbotapi.APIResponse{Ok: true}, nil
}

// texts flattens sent messages and edits to their visible text.
func (f *fakeTelegram) texts() []string {
    f.mu.Lock()
    defer f.mu.Unlock()
    var out []string
    for _, c := range f.sent {
        switch m := c.(type) {
        case tgbotapi.MessageConfig:
            out = append(out, m.Text)
        case tgbotapi.EditMessageTextConfig:
            out = append(out, m.Text)
        }
    }
    return out
}

func (f *fakeTelegram) messagesTo(chatID int64) []tgbotapi.MessageConfig {
    f.mu.Lock()
    defer f.mu.Unlock()
    var out []tgbotapi.MessageConfig
    for _, c := range f.sent {
        if m, ok := c.(tgbotapi.MessageConfig); ok && m.ChatID == chatID {
            out = append(out, m)
        }
    }
    return out
}

func (f *fakeTelegram) reset() {
    f.mu.Lock()
    f.sent = nil
    f.mu.Unlock()
}

// --- fixtures ---

const adminID int64 = 900

var errAssert = errors.New("store unavailable")

func taskRow(num int, id, email, status, assignedTo string) *rowstore.Row {
    return rowstore.NewRow(num, map[string]string{
        rowstore.ColTaskID:       id,
        rowstore.ColEmail:        email,
        rowstore.ColPassword:     "pw-" + id,
        rowstore.ColRecoveryMail: "rec-" + id + "@mail.test",
        rowstore.ColStatus:       status,
        rowstore.ColAssignedTo:   assignedTo,
    })
}

func userRow(num int, tgID int64, name string, total, daily int, lastDate, access string) *rowstore.Row {
    return rowstore.NewRow(num, map[string]string{
        rowstore.ColUserID:            strconv.FormatInt(tgID, 10),
        rowstore.ColUserName:          name,
        rowstore.ColTotalCompleted:    strconv.Itoa(total),
        rowstore.ColDailyCompleted:    strconv.Itoa(daily),
        rowstore.ColLastCompletedDate: lastDate,
        rowstore.ColAccess:            access,
    })
}

func newTestBot(tasks, users *fakeTable, opts Options) (*Bot, *fakeTelegram) {
    tg := &fakeTelegram{}
    if opts.AdminID == 0 {
        opts.AdminID = adminID
    }
    if opts.TZ == nil {
        opts.TZ = time.UTC
    }
    b := New(tg, tasks, users, &fakeProgress{x: 3, y: 10}, opts)
    return b, tg
}

func containsText(texts []string, substr string) bool {
    for _, t := range texts {
        if substr != "" && strings.Contains(t, substr) {
            return true
        }
    }
    return false
}
