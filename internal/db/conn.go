package db

import (
	"context"
	"database/sql"
	"time"
)

// Conn is a connection checked out by Provider.WithConn. It is only valid
// inside the callback; do not keep it.
//
// Each method is one statement and, outside an explicit transaction, one
// autocommitted unit of work. Multi-statement atomicity is not offered here.
type Conn struct {
	raw     *sql.Conn
	dialect Dialect
}

// Dialect returns the dialect of the backend this connection talks to.
func (c *Conn) Dialect() Dialect {
	return c.dialect
}

// QueryOne runs a read and returns its first row, or nil if there is none.
// An empty result is not an error.
func (c *Conn) QueryOne(ctx context.Context, query string, args ...any) (*Row, error) {
	rows, err := c.query(ctx, query, args, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// QueryAll runs a read and returns every row, fully read into memory.
func (c *Conn) QueryAll(ctx context.Context, query string, args ...any) ([]Row, error) {
	return c.query(ctx, query, args, -1)
}

// Exec runs a write (INSERT/UPDATE/DELETE) and returns the number of rows it
// affected. The write is committed when Exec returns.
func (c *Conn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	q := c.dialect.Rebind(query)

	res, err := c.raw.ExecContext(ctx, q, c.bind(args)...)
	if err != nil {
		return 0, &QueryError{Query: q, Err: err}
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, &QueryError{Query: q, Err: err}
	}
	return n, nil
}

// query reads at most limit rows (all of them when limit < 0).
func (c *Conn) query(ctx context.Context, query string, args []any, limit int) ([]Row, error) {
	q := c.dialect.Rebind(query)

	rows, err := c.raw.QueryContext(ctx, q, c.bind(args)...)
	if err != nil {
		return nil, &QueryError{Query: q, Err: err}
	}
	defer rows.Close()

	out, err := materialize(rows, limit)
	if err != nil {
		return nil, &QueryError{Query: q, Err: err}
	}
	return out, nil
}

// bind encodes time arguments for the active backend. Everything else goes
// to the driver untouched.
func (c *Conn) bind(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case time.Time:
			out[i] = c.dialect.TimeArg(v)
		case *time.Time:
			if v == nil {
				out[i] = nil
			} else {
				out[i] = c.dialect.TimeArg(*v)
			}
		default:
			out[i] = a
		}
	}
	return out
}

// materialize copies rows into Row values.
//
// Scanning into *any makes database/sql hand over the driver's own value
// (and copy []byte), so what ends up in Row survives rows.Close and the
// connection going back to the pool.
func materialize(rows *sql.Rows, limit int) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for (limit < 0 || len(out) < limit) && rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, Row{columns: cols, values: values})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
