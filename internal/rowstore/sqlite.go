package rowstore

import (
    "context"
    "database/sql"
    "fmt"
    "strings"

    _ "modernc.org/sqlite"
)

// SQLiteStore keeps the two logical tables in a local sqlite file. Used for
// local and single-box deployments where the spreadsheet service is not
// wanted; the contract is identical to the Sheets backend.
type SQLiteStore struct {
    SQL *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
    dsn := path + "?_pragma=busy_timeout(5000)"
    s, err := sql.Open("sqlite", dsn)
    if err != nil {
        return nil, err
    }
    s.SetMaxOpenConns(1)
    if err := migrate(context.Background(), s); err != nil {
        return nil, err
    }
    return &SQLiteStore{SQL: s}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
    stmts := []string{
        `CREATE TABLE IF NOT EXISTS tasks (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            ` + columnDefs(TaskColumns) + `
        );`,
        `CREATE TABLE IF NOT EXISTS user_stats (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            ` + columnDefs(UserColumns) + `
        );`,
        `CREATE TABLE IF NOT EXISTS progress (
            id INTEGER PRIMARY KEY CHECK (id = 1),
            x INTEGER NOT NULL DEFAULT 0,
            y INTEGER NOT NULL DEFAULT 0
        );`,
        `INSERT OR IGNORE INTO progress (id, x, y) VALUES (1, 0, 0);`,
    }
    for _, s := range stmts {
        if _, err := db.ExecContext(ctx, s); err != nil {
            return err
        }
    }
    return nil
}

func columnDefs(cols []string) string {
    defs := make([]string, len(cols))
    for i, c := range cols {
        defs[i] = quoteIdent(c) + ` TEXT NOT NULL DEFAULT ''`
    }
    return strings.Join(defs, ",\n            ")
}

func quoteIdent(c string) string { return `"` + c + `"` }

func (s *SQLiteStore) Tasks() Table {
    return &sqliteTable{db: s.SQL, name: "tasks", cols: TaskColumns, backfillIDs: true}
}

func (s *SQLiteStore) Users() Table {
    return &sqliteTable{db: s.SQL, name: "user_stats", cols: UserColumns}
}

func (s *SQLiteStore) LoadProgress(ctx context.Context) (int, int, error) {
    var x, y int
    err := s.SQL.QueryRowContext(ctx, `SELECT x, y FROM progress WHERE id=1`).Scan(&x, &y)
    if err != nil {
        return 0, 0, err
    }
    return x, y, nil
}

type sqliteTable struct {
    db          *sql.DB
    name        string
    cols        []string
    backfillIDs bool
}

func (t *sqliteTable) LoadRows(ctx context.Context) ([]*Row, error) {
    quoted := make([]string, len(t.cols))
    for i, c := range t.cols {
        quoted[i] = quoteIdent(c)
    }
    q := fmt.Sprintf(`SELECT id, %s FROM %s ORDER BY id`, strings.Join(quoted, ", "), t.name)
    rs, err := t.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rs.Close()

    var rows []*Row
    for rs.Next() {
        var id int
        vals := make([]sql.NullString, len(t.cols))
        dest := make([]any, 0, len(t.cols)+1)
        dest = append(dest, &id)
        for i := range vals {
            dest = append(dest, &vals[i])
        }
        if err := rs.Scan(dest...); err != nil {
            return nil, err
        }
        fields := map[string]string{}
        for i, c := range t.cols {
            fields[c] = vals[i].String
        }
        rows = append(rows, NewRow(id, fields))
    }
    if err := rs.Err(); err != nil {
        return nil, err
    }
    if t.backfillIDs {
        if err := ensureTaskIDs(ctx, t, rows); err != nil {
            return nil, err
        }
    }
    return rows, nil
}

func (t *sqliteTable) SaveRow(ctx context.Context, row *Row) error {
    sets := make([]string, len(t.cols))
    args := make([]any, 0, len(t.cols)+1)
    for i, c := range t.cols {
        sets[i] = quoteIdent(c) + `=?`
        args = append(args, row.Get(c))
    }
    args = append(args, row.Num)
    q := fmt.Sprintf(`UPDATE %s SET %s WHERE id=?`, t.name, strings.Join(sets, ", "))
    res, err := t.db.ExecContext(ctx, q, args...)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrNotFound
    }
    return nil
}

func (t *sqliteTable) AppendRow(ctx context.Context, fields map[string]string) error {
    quoted := make([]string, len(t.cols))
    marks := make([]string, len(t.cols))
    args := make([]any, len(t.cols))
    for i, c := range t.cols {
        quoted[i] = quoteIdent(c)
        marks[i] = "?"
        args[i] = fields[c]
    }
    q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, t.name, strings.Join(quoted, ", "), strings.Join(marks, ", "))
    _, err := t.db.ExecContext(ctx, q, args...)
    return err
}
