package rowstore

import (
    "context"
    "fmt"
    "sync"

    "google.golang.org/api/option"
    "google.golang.org/api/sheets/v4"
)

// NewSheetsService authenticates against the Sheets API with a service
// account credentials file.
func NewSheetsService(ctx context.Context, credentialsFile string) (*sheets.Service, error) {
    svc, err := sheets.NewService(ctx,
        option.WithCredentialsFile(credentialsFile),
        option.WithScopes(sheets.SpreadsheetsScope),
    )
    if err != nil {
        return nil, fmt.Errorf("sheets service: %w", err)
    }
    return svc, nil
}

// SheetsTable adapts one tab of a Google spreadsheet to the Table contract.
// Row.Num is the sheet row number (header row is 1, first data row is 2).
type SheetsTable struct {
    svc           *sheets.Service
    spreadsheetID string
    tab           string
    backfillIDs   bool

    // Saves run concurrently with cache refreshes, so the header is only
    // touched through setHeader/headerSnapshot.
    mu     sync.Mutex
    header []string
}

func NewSheetsTable(svc *sheets.Service, spreadsheetID, tab string, backfillIDs bool) *SheetsTable {
    return &SheetsTable{svc: svc, spreadsheetID: spreadsheetID, tab: tab, backfillIDs: backfillIDs}
}

func (t *SheetsTable) LoadRows(ctx context.Context) ([]*Row, error) {
    resp, err := t.svc.Spreadsheets.Values.Get(t.spreadsheetID, t.tab+"!A1:Z").Context(ctx).Do()
    if err != nil {
        return nil, fmt.Errorf("load %s: %w", t.tab, err)
    }
    if len(resp.Values) == 0 {
        return nil, fmt.Errorf("load %s: missing header row", t.tab)
    }
    var header []string
    for _, c := range resp.Values[0] {
        header = append(header, fmt.Sprint(c))
    }
    t.setHeader(header)
    var rows []*Row
    for i, rec := range resp.Values[1:] {
        fields := map[string]string{}
        for j, col := range header {
            if j < len(rec) {
                fields[col] = fmt.Sprint(rec[j])
            }
        }
        rows = append(rows, NewRow(i+2, fields))
    }
    if t.backfillIDs {
        if err := ensureTaskIDs(ctx, t, rows); err != nil {
            return nil, err
        }
    }
    return rows, nil
}

func (t *SheetsTable) SaveRow(ctx context.Context, row *Row) error {
    header, err := t.ensureHeader(ctx)
    if err != nil {
        return err
    }
    values := make([]interface{}, len(header))
    for i, col := range header {
        values[i] = row.Get(col)
    }
    rng := fmt.Sprintf("%s!A%d:%s%d", t.tab, row.Num, columnLetter(len(header)-1), row.Num)
    vr := &sheets.ValueRange{Values: [][]interface{}{values}}
    if _, err := t.svc.Spreadsheets.Values.Update(t.spreadsheetID, rng, vr).
        ValueInputOption("RAW").Context(ctx).Do(); err != nil {
        return fmt.Errorf("save %s row %d: %w", t.tab, row.Num, err)
    }
    return nil
}

func (t *SheetsTable) AppendRow(ctx context.Context, fields map[string]string) error {
    header, err := t.ensureHeader(ctx)
    if err != nil {
        return err
    }
    values := make([]interface{}, len(header))
    for i, col := range header {
        values[i] = fields[col]
    }
    vr := &sheets.ValueRange{Values: [][]interface{}{values}}
    if _, err := t.svc.Spreadsheets.Values.Append(t.spreadsheetID, t.tab+"!A1", vr).
        ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do(); err != nil {
        return fmt.Errorf("append to %s: %w", t.tab, err)
    }
    return nil
}

// setHeader publishes a fresh header; the slice is never mutated afterwards,
// so readers can hold the returned snapshot without further locking.
func (t *SheetsTable) setHeader(header []string) {
    t.mu.Lock()
    t.header = header
    t.mu.Unlock()
}

func (t *SheetsTable) headerSnapshot() []string {
    t.mu.Lock()
    defer t.mu.Unlock()
    return t.header
}

func (t *SheetsTable) ensureHeader(ctx context.Context) ([]string, error) {
    if h := t.headerSnapshot(); h != nil {
        return h, nil
    }
    resp, err := t.svc.Spreadsheets.Values.Get(t.spreadsheetID, t.tab+"!1:1").Context(ctx).Do()
    if err != nil {
        return nil, fmt.Errorf("header of %s: %w", t.tab, err)
    }
    if len(resp.Values) == 0 {
        return nil, fmt.Errorf("header of %s: empty", t.tab)
    }
    var header []string
    for _, c := range resp.Values[0] {
        header = append(header, fmt.Sprint(c))
    }
    t.setHeader(header)
    return header, nil
}

func columnLetter(i int) string { return string(rune('A' + i)) }

// SheetsProgress reads the x/y pair from the fixed cells of the Stats tab.
type SheetsProgress struct {
    svc           *sheets.Service
    spreadsheetID string
    cells         string
}

func NewSheetsProgress(svc *sheets.Service, spreadsheetID string) *SheetsProgress {
    return &SheetsProgress{svc: svc, spreadsheetID: spreadsheetID, cells: "Stats!A2:B2"}
}

func (p *SheetsProgress) LoadProgress(ctx context.Context) (int, int, error) {
    resp, err := p.svc.Spreadsheets.Values.Get(p.spreadsheetID, p.cells).Context(ctx).Do()
    if err != nil {
        return 0, 0, fmt.Errorf("load progress: %w", err)
    }
    var x, y int
    if len(resp.Values) > 0 {
        rec := resp.Values[0]
        if len(rec) > 0 {
            fmt.Sscan(fmt.Sprint(rec[0]), &x)
        }
        if len(rec) > 1 {
            fmt.Sscan(fmt.Sprint(rec[1]), &y)
        }
    }
    return x, y, nil
}
