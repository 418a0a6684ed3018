package rowstore

import (
    "sync"
    "testing"
)

func TestSheetsHeaderConcurrentPublishAndRead(t *testing.T) {
    tbl := NewSheetsTable(nil, "sheet", "Sheet1", false)

    var wg sync.WaitGroup
    for i := 0; i < 4; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            for j := 0; j < 200; j++ {
                tbl.setHeader(append([]string(nil), TaskColumns...))
            }
        }()
        wg.Add(1)
        go func() {
            defer wg.Done()
            for j := 0; j < 200; j++ {
                if h := tbl.headerSnapshot(); h != nil && len(h) != len(TaskColumns) {
                    t.Errorf("partial header observed: %v", h)
                    return
                }
            }
        }()
    }
    wg.Wait()
}

func TestSheetsHeaderSnapshotIsStable(t *testing.T) {
    tbl := NewSheetsTable(nil, "sheet", "Sheet1", false)
    tbl.setHeader([]string{"A", "B"})

    snap := tbl.headerSnapshot()
    tbl.setHeader([]string{"A", "B", "C"})

    if len(snap) != 2 || snap[0] != "A" || snap[1] != "B" {
        t.Fatalf("held snapshot changed under a concurrent publish: %v", snap)
    }
    if got := tbl.headerSnapshot(); len(got) != 3 {
        t.Fatalf("new header not visible: %v", got)
    }
}
