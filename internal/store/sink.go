package store

import (
	"context"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/datamock/internal/dataset"
	"github.com/roach88/datamock/internal/ir"
)

var orderPattern = regexp.MustCompile(
	`(?i)^\s*[A-Za-z_][A-Za-z0-9_]*(\s+(ASC|DESC))?(\s*,\s*[A-Za-z_][A-Za-z0-9_]*(\s+(ASC|DESC))?)*\s*$`,
)

// attach makes schema addressable as "<schema>.<table>". Schemas are
// in-memory and live as long as the connection.
func (s *Store) attach(ctx context.Context, schema string) error {
	if err := checkIdent(schema); err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_database_list`)
	if err != nil {
		return errors.Wrap(err, "list schemas")
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return errors.Wrap(err, "scan schema name")
		}
		if name == schema {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "iterate schemas")
	}
	rows.Close()

	if _, err := s.db.ExecContext(ctx, `ATTACH DATABASE ':memory:' AS `+quote(schema)); err != nil {
		return errors.Wrapf(err, "attach schema %s", schema)
	}
	return nil
}

// LoadDataset replaces table <schema>.<d.Name> with the dataset rows.
// The whole load runs in one transaction.
func (s *Store) LoadDataset(ctx context.Context, schema string, d *dataset.Dataset) error {
	if err := checkIdent(d.Name); err != nil {
		return err
	}
	if err := s.attach(ctx, schema); err != nil {
		return err
	}
	table := quote(schema) + "." + quote(d.Name)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "load dataset: begin tx")
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
		return errors.Wrapf(err, "drop %s.%s", schema, d.Name)
	}
	if len(d.Columns) == 0 {
		return tx.Commit()
	}

	defs := make([]string, len(d.Columns))
	names := make([]string, len(d.Columns))
	marks := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		defs[i] = quote(c.Name) + " " + sqlType(c.Type)
		names[i] = quote(c.Name)
		marks[i] = "?"
	}
	if _, err := tx.ExecContext(ctx, `CREATE TABLE `+table+` (`+strings.Join(defs, ", ")+`)`); err != nil {
		return errors.Wrapf(err, "create %s.%s", schema, d.Name)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO `+table+` (`+strings.Join(names, ", ")+`) VALUES (`+strings.Join(marks, ", ")+`)`)
	if err != nil {
		return errors.Wrapf(err, "prepare insert into %s.%s", schema, d.Name)
	}
	defer stmt.Close()

	for i, row := range d.Rows {
		args := make([]any, len(d.Columns))
		for j, c := range d.Columns {
			if args[j], err = toSQL(row.Get(c.Name)); err != nil {
				return errors.Wrapf(err, "row %d column %s", i, c.Name)
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return errors.Wrapf(err, "insert row %d into %s.%s", i, schema, d.Name)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "load dataset: commit")
	}
	return nil
}

// RunArtefact materializes query into table dest, replacing it.
func (s *Store) RunArtefact(ctx context.Context, dest, query string) error {
	if err := checkIdent(dest); err != nil {
		return err
	}
	query = strings.TrimRight(strings.TrimSpace(query), ";")
	if query == "" {
		return errors.New("artefact query is empty")
	}

	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+quote(dest)); err != nil {
		return errors.Wrapf(err, "drop %s", dest)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE `+quote(dest)+` AS `+query); err != nil {
		return errors.WithHint(errors.Wrap(err, "run artefact query"), "the artefact SQL must be a single SELECT")
	}
	return nil
}

// SelectQuery reads rows from one table.
type SelectQuery struct {
	Table  string // table or schema.table
	Where  string // column compared with Search; empty selects every row
	Search ir.Value
	Order  string // "col [ASC|DESC], ..."
}

// Select returns the rows of q.Table as records, in q.Order order.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) Select(ctx context.Context, q SelectQuery) ([]ir.Object, error) {
	var parts []string
	for _, p := range strings.Split(q.Table, ".") {
		if err := checkIdent(p); err != nil {
			return nil, err
		}
		parts = append(parts, quote(p))
	}
	if len(parts) > 2 {
		return nil, errors.Wrapf(ErrInvalidIdentifier, "%q", q.Table)
	}

	query := `SELECT * FROM ` + strings.Join(parts, ".")
	var args []any
	if q.Where != "" {
		if err := checkIdent(q.Where); err != nil {
			return nil, err
		}
		arg, err := toSQL(q.Search)
		if err != nil {
			return nil, err
		}
		query += ` WHERE ` + quote(q.Where) + ` = ?`
		args = append(args, arg)
	}
	if q.Order != "" {
		if !orderPattern.MatchString(q.Order) {
			return nil, errors.Wrapf(ErrInvalidIdentifier, "order %q", q.Order)
		}
		query += ` ORDER BY ` + q.Order
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "select from %s", q.Table)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "read columns")
	}

	out := []ir.Object{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}
		row := make(ir.Object, len(columns))
		for i, name := range columns {
			row[name] = fromSQL(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate rows")
	}
	return out, nil
}
