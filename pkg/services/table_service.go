package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/executor"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/logging"
)

// TableService runs author-supplied DDL and DML against the project database.
type TableService interface {
	// Execute runs sqlText as a script. The result's WarnReplace flag reports
	// a CREATE OR REPLACE clause.
	Execute(ctx context.Context, sqlText string) (*executor.Result, error)
}

type tableService struct {
	exec   executor.Executor
	logger *zap.Logger
}

// NewTableService creates a new TableService.
func NewTableService(exec executor.Executor, logger *zap.Logger) TableService {
	return &tableService{
		exec:   exec,
		logger: logger.Named("table-service"),
	}
}

var _ TableService = (*tableService)(nil)

func (s *tableService) Execute(ctx context.Context, sqlText string) (*executor.Result, error) {
	if strings.TrimSpace(sqlText) == "" {
		return nil, invalidDefinition("sql is required")
	}

	result, err := s.exec.ExecuteScript(ctx, sqlText)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Author SQL executed",
		zap.String("sql", logging.SanitizeSQL(sqlText)),
		zap.Int64("rows_affected", result.RowsAffected),
		zap.Bool("warn_replace", result.WarnReplace))
	return result, nil
}
