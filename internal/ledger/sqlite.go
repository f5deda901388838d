package ledger

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteLedger keeps ledger rows in a local SQLite file. Cells are stored
// verbatim so reads return exactly what was appended.
type SQLiteLedger struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// Serialize access; appends from both transports share one file.
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS ledger_rows (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		recorded_at TEXT NOT NULL DEFAULT '',
		employee    TEXT NOT NULL DEFAULT '',
		category    TEXT NOT NULL DEFAULT '',
		phone       TEXT NOT NULL DEFAULT '',
		note        TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT '',
		appended_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_ledger_rows_phone ON ledger_rows(phone);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteLedger{db: db}, nil
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func (l *SQLiteLedger) AppendRow(ctx context.Context, row []string) error {
	if len(row) > NumColumns {
		return fmt.Errorf("row has %d cells, ledger has %d columns", len(row), NumColumns)
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO ledger_rows (recorded_at, employee, category, phone, note, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		Cell(row, ColTimestamp), Cell(row, ColEmployee), Cell(row, ColCategory),
		Cell(row, ColPhone), Cell(row, ColNote), Cell(row, ColStatus),
	)
	return err
}

func (l *SQLiteLedger) ReadAllRows(ctx context.Context) ([][]string, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT recorded_at, employee, category, phone, note, status
		 FROM ledger_rows ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		row := make([]string, NumColumns)
		if err := rows.Scan(&row[ColTimestamp], &row[ColEmployee], &row[ColCategory],
			&row[ColPhone], &row[ColNote], &row[ColStatus]); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
