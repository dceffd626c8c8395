// Package executor runs SQL against the project database and shapes the
// outcome into rows or an affected-row count.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/apperrors"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/logging"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/retry"
	sqlutil "github.com/TharinduNimesh/api-builder-sub001/pkg/sql"
)

const (
	DefaultStatementTimeout = 30 * time.Second
	DefaultAcquireTimeout   = 5 * time.Second
)

// Config bounds how long the engine waits for a connection and for a statement.
type Config struct {
	StatementTimeout time.Duration
	AcquireTimeout   time.Duration
	AcquireRetry     *retry.Config
}

// Result is the shaped outcome of one execution. Statements that return rows
// fill Columns and Rows; others only report RowsAffected.
type Result struct {
	Columns      []string         `json:"columns,omitempty"`
	Rows         []map[string]any `json:"rows,omitempty"`
	RowCount     int              `json:"row_count"`
	RowsAffected int64            `json:"rows_affected"`
	ReturnsRows  bool             `json:"-"`
	WarnReplace  bool             `json:"warnReplace"`
}

// Executor is what the dispatcher and the authoring services need from the engine.
type Executor interface {
	Execute(ctx context.Context, sqlText string, args []any) (*Result, error)
	ExecuteScript(ctx context.Context, sqlText string) (*Result, error)
}

// Engine executes statements over a shared pgx pool. A connection is held for
// exactly one call and always released.
type Engine struct {
	pool   *pgxpool.Pool
	cfg    Config
	logger *zap.Logger
}

// NewEngine creates an engine. Zero timeouts fall back to the defaults.
func NewEngine(pool *pgxpool.Pool, cfg Config, logger *zap.Logger) *Engine {
	if cfg.StatementTimeout <= 0 {
		cfg.StatementTimeout = DefaultStatementTimeout
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}
	if cfg.AcquireRetry == nil {
		cfg.AcquireRetry = retry.AcquireConfig()
	}
	return &Engine{
		pool:   pool,
		cfg:    cfg,
		logger: logger.Named("executor"),
	}
}

// Execute runs a single parameterized statement. args are always sent as bind
// parameters and never rendered into sqlText.
func (e *Engine) Execute(ctx context.Context, sqlText string, args []any) (*Result, error) {
	conn, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	stmtCtx, cancel := e.statementContext(ctx)
	defer cancel()

	rows, err := conn.Query(stmtCtx, sqlText, args...)
	if err != nil {
		return nil, e.fail(err, sqlText)
	}
	defer rows.Close()

	result := &Result{}
	fieldDescs := rows.FieldDescriptions()
	if len(fieldDescs) > 0 {
		result.ReturnsRows = true
		result.Columns = make([]string, len(fieldDescs))
		for i, fd := range fieldDescs {
			result.Columns[i] = fd.Name
		}

		result.Rows = make([]map[string]any, 0)
		for rows.Next() {
			values, err := rows.Values()
			if err != nil {
				return nil, e.fail(err, sqlText)
			}
			result.Rows = append(result.Rows, rowMap(result.Columns, values))
		}
		result.RowCount = len(result.Rows)
	} else {
		// pgx defers execution errors until the result is consumed.
		for rows.Next() {
		}
	}

	if err := rows.Err(); err != nil {
		return nil, e.fail(err, sqlText)
	}
	result.RowsAffected = rows.CommandTag().RowsAffected()

	return result, nil
}

// ExecuteScript runs author-supplied SQL verbatim over the simple protocol, so
// a script may hold several statements. PostgreSQL runs them in one implicit
// transaction. The rows of the last row-returning statement are returned and
// WarnReplace reports a CREATE OR REPLACE anywhere in the script.
func (e *Engine) ExecuteScript(ctx context.Context, sqlText string) (*Result, error) {
	warnReplace := sqlutil.HasCreateOrReplace(sqlText)

	conn, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	stmtCtx, cancel := e.statementContext(ctx)
	defer cancel()

	results, err := conn.Conn().PgConn().Exec(stmtCtx, sqlText).ReadAll()
	if err != nil {
		return nil, e.fail(err, sqlText)
	}

	typeMap := conn.Conn().TypeMap()
	out := &Result{WarnReplace: warnReplace}
	for _, res := range results {
		if res.Err != nil {
			return nil, e.fail(res.Err, sqlText)
		}
		out.RowsAffected += res.CommandTag.RowsAffected()
		if len(res.FieldDescriptions) == 0 {
			continue
		}

		columns, rows, err := decodeResult(typeMap, res)
		if err != nil {
			return nil, e.fail(err, sqlText)
		}
		out.ReturnsRows = true
		out.Columns = columns
		out.Rows = rows
		out.RowCount = len(rows)
	}

	return out, nil
}

// acquire takes a connection from the pool, retrying transient dial errors
// until the acquire timeout expires.
func (e *Engine) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, e.cfg.AcquireTimeout)
	defer cancel()

	var conn *pgxpool.Conn
	err := retry.DoIfRetryable(acquireCtx, e.cfg.AcquireRetry, func() error {
		c, err := e.pool.Acquire(acquireCtx)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err == nil {
		return conn, nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(acquireCtx.Err(), context.DeadlineExceeded) {
		e.logger.Warn("Timed out waiting for a database connection",
			zap.Duration("acquire_timeout", e.cfg.AcquireTimeout),
			zap.Int32("total_conns", e.pool.Stat().TotalConns()))
		return nil, &apperrors.ExecutionError{
			Kind:    apperrors.Timeout,
			Message: "timed out waiting for a database connection",
			Err:     err,
		}
	}

	e.logger.Error("Failed to acquire database connection", zap.String("error", logging.SanitizeError(err)))
	return nil, &apperrors.ExecutionError{
		Kind:    apperrors.Unknown,
		Message: unknownMessage,
		Err:     fmt.Errorf("acquire connection: %w", err),
	}
}

// statementContext detaches the statement from caller cancellation so a
// disconnecting client does not abort it, and applies the statement timeout.
func (e *Engine) statementContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), e.cfg.StatementTimeout)
}

// fail classifies err and logs it. Unknown failures are logged in full
// (credentials scrubbed); classified ones at debug.
func (e *Engine) fail(err error, sqlText string) error {
	classified := Classify(err)
	if classified.Kind == apperrors.Unknown {
		e.logger.Error("Statement failed",
			zap.String("sql", truncate(sqlText)),
			zap.String("error", logging.SanitizeError(err)))
	} else {
		e.logger.Debug("Statement rejected by database",
			zap.String("kind", string(classified.Kind)),
			zap.String("message", classified.Message))
	}
	return classified
}

func decodeResult(m *pgtype.Map, res *pgconn.Result) ([]string, []map[string]any, error) {
	columns := make([]string, len(res.FieldDescriptions))
	for i, fd := range res.FieldDescriptions {
		columns[i] = fd.Name
	}

	rows := make([]map[string]any, 0, len(res.Rows))
	for _, raw := range res.Rows {
		values := make([]any, len(raw))
		for i, src := range raw {
			v, err := decodeValue(m, res.FieldDescriptions[i], src)
			if err != nil {
				return nil, nil, fmt.Errorf("decode column %s: %w", columns[i], err)
			}
			values[i] = v
		}
		rows = append(rows, rowMap(columns, values))
	}
	return columns, rows, nil
}

func decodeValue(m *pgtype.Map, fd pgconn.FieldDescription, src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	if t, ok := m.TypeForOID(fd.DataTypeOID); ok {
		return t.Codec.DecodeValue(m, fd.DataTypeOID, fd.Format, src)
	}
	if fd.Format == pgtype.TextFormatCode {
		return string(src), nil
	}
	return src, nil
}

func rowMap(columns []string, values []any) map[string]any {
	row := make(map[string]any, len(columns))
	for i, col := range columns {
		row[col] = jsonValue(values[i])
	}
	return row
}

// jsonValue converts driver values whose default JSON form is unhelpful.
func jsonValue(v any) any {
	switch val := v.(type) {
	case [16]byte:
		return uuid.UUID(val).String()
	default:
		return v
	}
}

func truncate(s string) string {
	if len(s) <= logging.MaxQueryLogLength {
		return s
	}
	return s[:logging.MaxQueryLogLength] + "..."
}

var _ Executor = (*Engine)(nil)
