package pg

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/hanpama/pgway/gateway"
	"github.com/hanpama/pgway/utils"
	"github.com/jackc/pgconn"
	"github.com/rs/zerolog"
)

// ErrScopeOrder is returned when a transaction scope is completed while a
// more deeply nested scope is still open, or completed twice.
var ErrScopeOrder = errors.New("transaction scopes must complete in stack order")

type (
	// Execer is the statement surface a Session drives. It must be a
	// single database connection: transaction and savepoint statements
	// are connection-scoped.
	Execer interface {
		Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	}

	// Session tracks transaction nesting for one connection. Level 0
	// opens a real transaction; deeper levels open savepoints named after
	// their level. A Session must not be shared across concurrent
	// goroutines: interleaved scopes would corrupt savepoint naming.
	Session struct {
		conn  Execer
		id    string
		level int
	}

	// Tx is one open transaction or savepoint scope.
	Tx struct {
		s     *Session
		id    string
		level int
		done  bool
	}
)

func NewSession(conn Execer) *Session {
	return &Session{conn: conn, id: utils.GenRandomShortID()}
}

// Begin opens a new scope: BEGIN at level 0, SAVEPOINT otherwise. The
// nesting counter is incremented only after the statement succeeds.
func (s *Session) Begin(ctx context.Context) (*Tx, error) {
	tx := &Tx{s: s, id: utils.GenKSortedID("tx_"), level: s.level}
	sql := "BEGIN"
	if tx.level > 0 {
		sql = "SAVEPOINT " + savepointName(tx.level)
	}
	if _, err := s.conn.Exec(ctx, sql); err != nil {
		return nil, err
	}
	s.level++
	zerolog.Ctx(ctx).Debug().
		Str("session", s.id).
		Str("tx", tx.id).
		Int("level", tx.level).
		Msg("opened transaction scope")
	return tx, nil
}

// Commit completes the scope successfully: COMMIT at level 0, RELEASE
// SAVEPOINT otherwise. The counter is decremented even when the statement
// fails.
func (tx *Tx) Commit(ctx context.Context) error {
	if err := tx.end(); err != nil {
		return err
	}
	sql := "COMMIT"
	if tx.level > 0 {
		sql = "RELEASE SAVEPOINT " + savepointName(tx.level)
	}
	_, err := tx.s.conn.Exec(ctx, sql)
	return err
}

// Rollback abandons the scope: ROLLBACK at level 0, ROLLBACK TO SAVEPOINT
// otherwise. Outer scopes stay open.
func (tx *Tx) Rollback(ctx context.Context) error {
	if err := tx.end(); err != nil {
		return err
	}
	sql := "ROLLBACK"
	if tx.level > 0 {
		sql = "ROLLBACK TO SAVEPOINT " + savepointName(tx.level)
	}
	_, err := tx.s.conn.Exec(ctx, sql)
	return err
}

func (tx *Tx) end() error {
	if tx.done || tx.level != tx.s.level-1 {
		return ErrScopeOrder
	}
	tx.done = true
	tx.s.level--
	return nil
}

// WithTx runs fn inside a new scope on s. The scope is rolled back when fn
// returns an error and committed otherwise; fn's error is propagated either
// way.
func (s *Session) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("error in Rollback: %s (while handling: %w)", rbErr.Error(), err)
		}
		return err
	}
	return tx.Commit(ctx)
}

func savepointName(level int) string {
	return gateway.QuoteIdentifier(strconv.Itoa(level))
}
