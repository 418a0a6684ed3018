package rowstore

import (
    "sync"
    "testing"
)

func TestFindByTaskID(t *testing.T) {
    rows := []*Row{
        NewRow(2, map[string]string{ColTaskID: "a"}),
        NewRow(3, map[string]string{ColTaskID: "b"}),
    }
    if got := FindByTaskID(rows, "b"); got == nil || got.Num != 3 {
        t.Fatalf("FindByTaskID(b) = %v", got)
    }
    if got := FindByTaskID(rows, "missing"); got != nil {
        t.Fatalf("FindByTaskID(missing) = %v, want nil", got)
    }
    if got := FindByTaskID(nil, "a"); got != nil {
        t.Fatalf("FindByTaskID on nil slice = %v, want nil", got)
    }
}

func TestRowFieldsReturnsCopy(t *testing.T) {
    r := NewRow(2, map[string]string{ColStatus: StatusAvailable})
    f := r.Fields()
    f[ColStatus] = StatusRejected
    if got := r.Get(ColStatus); got != StatusAvailable {
        t.Fatalf("Fields copy leaked back into the row: %q", got)
    }
}

func TestRowConcurrentAccess(t *testing.T) {
    r := NewRow(2, nil)
    var wg sync.WaitGroup
    for i := 0; i < 8; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            for j := 0; j < 100; j++ {
                r.Set(ColStatus, StatusAssigned)
                _ = r.Get(ColStatus)
                _ = r.Fields()
            }
        }()
    }
    wg.Wait()
    if got := r.Get(ColStatus); got != StatusAssigned {
        t.Fatalf("status = %q", got)
    }
}

func TestColumnLetter(t *testing.T) {
    if got := columnLetter(0); got != "A" {
        t.Fatalf("columnLetter(0) = %q", got)
    }
    if got := columnLetter(len(TaskColumns) - 1); got != "G" {
        t.Fatalf("columnLetter(last task col) = %q", got)
    }
}
