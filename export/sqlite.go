package export

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"nfex/batch"
	"nfex/nfe"
)

// DefaultTableName is used when no table name was configured.
const DefaultTableName = "nfe"

// WriteSQLite creates database at path with single table holding all rows.
// Decimal columns are REAL, everything else is TEXT, absent values are NULL.
// Rows are inserted in one transaction, so database never has partial data.
func WriteSQLite(path string, t *batch.Table, table string) (err error) {
	if len(table) == 0 {
		table = DefaultTableName
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate)
	if err != nil {
		return fmt.Errorf("unable to open database: %w", err)
	}
	defer func() {
		err = multierr.Append(err, conn.Close())
	}()

	if err := sqlitex.ExecuteTransient(conn, createTableSQL(table, t.Columns), nil); err != nil {
		return fmt.Errorf("unable to create table %q: %w", table, err)
	}

	defer sqlitex.Save(conn)(&err)

	insert := insertSQL(table, len(t.Columns))
	for i, row := range t.Rows {
		args := make([]any, len(row))
		for j, v := range row {
			args[j] = cellValue(v)
		}
		if err := sqlitex.Execute(conn, insert, &sqlitex.ExecOptions{Args: args}); err != nil {
			return fmt.Errorf("unable to insert row %d: %w", i+1, err)
		}
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func createTableSQL(table string, cols []batch.Column) string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(quoteIdent(table))
	sb.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(quoteIdent(c.Name))
		if c.Kind == nfe.KindDecimal {
			sb.WriteString(" REAL NOT NULL")
		} else {
			sb.WriteString(" TEXT")
		}
	}
	sb.WriteString(")")
	return sb.String()
}

func insertSQL(table string, n int) string {
	return "INSERT INTO " + quoteIdent(table) + " VALUES (" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}
