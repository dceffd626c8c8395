package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/access"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/apperrors"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/audit"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/auth"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/binding"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/executor"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/models"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/routing"
	sqlutil "github.com/TharinduNimesh/api-builder-sub001/pkg/sql"
)

// Request is one call to a dynamic endpoint.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
	// BodyErr is set when the body could not be read, for example because it
	// exceeded the size limit. It is reported only once the caller is
	// authorized.
	BodyErr  error
	Auth     access.AuthContext
	ClientIP string
}

// FunctionRequest is one invocation of a database function. Body holds the
// {"args": [...]} payload, decoded only after authorization.
type FunctionRequest struct {
	Schema   string
	Name     string
	Body     []byte
	BodyErr  error
	Auth     access.AuthContext
	ClientIP string
}

// Dispatcher runs dynamic endpoint requests and function invocations. The
// order is fixed: resolve, authorize, bind, execute. Nothing reaches the
// database unless every earlier step succeeded.
type Dispatcher struct {
	registry  *routing.Registry
	exec      executor.Executor
	functions FunctionService
	auditor   *audit.SecurityAuditor
	logger    *zap.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(
	registry *routing.Registry,
	exec executor.Executor,
	functions FunctionService,
	auditor *audit.SecurityAuditor,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		exec:      exec,
		functions: functions,
		auditor:   auditor,
		logger:    logger.Named("dispatcher"),
	}
}

// Handle resolves req to an endpoint and runs it.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (*executor.Result, error) {
	ctx = auth.WithAuthContext(ctx, req.Auth)

	match, err := d.registry.Match(req.Method, req.Path)
	if err != nil {
		if errors.Is(err, routing.ErrAmbiguousMatch) {
			d.logger.Error("Ambiguous endpoint match",
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.Error(err))
		}
		return nil, err
	}
	def := match.Endpoint
	target := audit.Target{Kind: "endpoint", Name: def.Method + " " + def.Path}

	decision := access.Authorize(def.AccessPolicy(), req.Auth)
	if !decision.Allowed {
		if decision.Reason != access.ReasonNotFound {
			d.auditor.LogAccessDenied(ctx, target, string(decision.Reason), req.ClientIP)
		}
		return nil, decision.Err()
	}
	if req.BodyErr != nil {
		return nil, req.BodyErr
	}

	args, err := binding.Bind(def.Params, binding.Request{
		PathValues: match.PathValues,
		Query:      req.Query,
		Body:       req.Body,
	})
	if err != nil {
		d.auditor.LogParameterValidation(ctx, target, err.Error(), req.ClientIP)
		return nil, err
	}
	d.auditArgs(ctx, target, args.Names, args.Values, req.ClientIP)

	sqlText, values, err := prepareStatement(def, args)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("Executing endpoint",
		zap.String("endpoint_id", def.ID.String()),
		zap.String("route", target.Name),
		zap.String("args", args.Describe()))

	return d.exec.Execute(ctx, sqlText, values)
}

// HandleFunction invokes a database function on behalf of the caller: resolve
// and authorize, then decode the arguments, then call.
func (d *Dispatcher) HandleFunction(ctx context.Context, req FunctionRequest) (*executor.Result, error) {
	ctx = auth.WithAuthContext(ctx, req.Auth)
	target := audit.Target{Kind: "function", Name: req.Schema + "." + req.Name}

	def, err := d.functions.Authorize(ctx, req.Schema, req.Name, req.Auth)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUnauthenticated):
			d.auditor.LogAccessDenied(ctx, target, string(access.ReasonUnauthenticated), req.ClientIP)
		case errors.Is(err, apperrors.ErrForbidden):
			d.auditor.LogAccessDenied(ctx, target, string(access.ReasonForbidden), req.ClientIP)
		}
		return nil, err
	}
	if req.BodyErr != nil {
		return nil, req.BodyErr
	}

	args, err := binding.DecodeArgs(req.Body)
	if err != nil {
		d.auditor.LogParameterValidation(ctx, target, err.Error(), req.ClientIP)
		return nil, err
	}

	names := make([]string, len(args))
	for i := range args {
		names[i] = positionalName(i)
	}
	d.auditArgs(ctx, target, names, args, req.ClientIP)

	return d.functions.Call(ctx, def, args)
}

// auditArgs flags argument values that look like SQL. They are still bound
// as parameters, so the request continues.
func (d *Dispatcher) auditArgs(ctx context.Context, target audit.Target, names []string, values []any, clientIP string) {
	for _, hit := range sqlutil.CheckAllParameters(names, values) {
		d.auditor.LogInjectionAttempt(ctx, target, audit.SQLInjectionDetails{
			ParamName:   hit.ParamName,
			ParamValue:  hit.ParamValue,
			Fingerprint: hit.Fingerprint,
		}, clientIP)
	}
}

// prepareStatement picks the binding style of the template: {{name}}
// placeholders are rewritten to positions, ordinal templates take the
// values in declaration order.
func prepareStatement(def *models.EndpointDefinition, args *binding.BoundArgs) (string, []any, error) {
	if sqlutil.HasNamedParameters(def.SQL) {
		return sqlutil.SubstituteParameters(def.SQL, args.ByName)
	}
	return def.SQL, args.Values[:min(len(args.Values), sqlutil.MaxOrdinal(def.SQL))], nil
}

func positionalName(i int) string {
	return fmt.Sprintf("args[%d]", i)
}
