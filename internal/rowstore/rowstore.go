package rowstore

import (
    "context"
    "errors"
    "sync"

    "github.com/google/uuid"
)

// Task sheet columns.
const (
    ColTaskID       = "TaskID"
    ColEmail        = "Email"
    ColPassword     = "Password"
    ColRecoveryMail = "Recovery Mail"
    ColPhoneNumber  = "PhoneNumber"
    ColStatus       = "Status"
    ColAssignedTo   = "AssignedTo"
)

// User stats sheet columns.
const (
    ColUserID            = "UserID"
    ColUserName          = "UserName"
    ColTotalCompleted    = "TotalCompleted"
    ColDailyCompleted    = "DailyCompleted"
    ColLastCompletedDate = "LastCompletedDate"
    ColAccess            = "Access"
)

const (
    StatusAvailable = "Available"
    StatusAssigned  = "Assigned"
    StatusCompleted = "Completed"
    StatusRejected  = "Rejected"
)

const (
    AccessYes = "yes"
    AccessNo  = "no"
)

var TaskColumns = []string{ColTaskID, ColEmail, ColPassword, ColRecoveryMail, ColPhoneNumber, ColStatus, ColAssignedTo}

var UserColumns = []string{ColUserID, ColUserName, ColTotalCompleted, ColDailyCompleted, ColLastCompletedDate, ColAccess}

var ErrNotFound = errors.New("row not found")

// Row is one record of a logical table. Num is the physical position inside
// the backing store; nothing above the adapter should address rows by it.
// Cached rows are shared across handler goroutines, so field access is
// guarded.
type Row struct {
    Num int

    mu     sync.RWMutex
    fields map[string]string
}

func NewRow(num int, fields map[string]string) *Row {
    if fields == nil {
        fields = map[string]string{}
    }
    return &Row{Num: num, fields: fields}
}

func (r *Row) Get(col string) string {
    r.mu.RLock()
    defer r.mu.RUnlock()
    return r.fields[col]
}

func (r *Row) Set(col, val string) {
    r.mu.Lock()
    r.fields[col] = val
    r.mu.Unlock()
}

// Fields returns a copy, so rows can be handed out without aliasing.
func (r *Row) Fields() map[string]string {
    r.mu.RLock()
    defer r.mu.RUnlock()
    out := make(map[string]string, len(r.fields))
    for k, v := range r.fields {
        out[k] = v
    }
    return out
}

// Table is a logical spreadsheet table.
type Table interface {
    LoadRows(ctx context.Context) ([]*Row, error)
    SaveRow(ctx context.Context, row *Row) error
    AppendRow(ctx context.Context, fields map[string]string) error
}

// ProgressReader reads the global x/y progress pair kept in the two fixed
// cells of the auxiliary Stats tab.
type ProgressReader interface {
    LoadProgress(ctx context.Context) (x, y int, err error)
}

// ensureTaskIDs backfills a durable opaque id into task rows that arrived
// from the external sync without one. Runs at the adapter boundary so nothing
// above it ever has to fall back to row positions.
func ensureTaskIDs(ctx context.Context, t Table, rows []*Row) error {
    for _, r := range rows {
        if r.Get(ColTaskID) != "" {
            continue
        }
        r.Set(ColTaskID, uuid.NewString())
        if err := t.SaveRow(ctx, r); err != nil {
            return err
        }
    }
    return nil
}

// FindByTaskID resolves a durable task id to its current row.
func FindByTaskID(rows []*Row, id string) *Row {
    for _, r := range rows {
        if r.Get(ColTaskID) == id {
            return r
        }
    }
    return nil
}
