// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/auth"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection flags an argument value.
	// Values are always sent as bind parameters, so this is advisory only.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventAccessDenied is logged when the enforcer refuses a protected target.
	EventAccessDenied SecurityEventType = "access_denied"
	// EventParameterValidation is logged when request arguments fail to bind.
	EventParameterValidation SecurityEventType = "parameter_validation_failure"
)

// Target names what the caller tried to reach: an endpoint route such as
// "GET /widgets/:id" or a function such as "public.monthly_total".
type Target struct {
	Kind string `json:"kind"` // endpoint, function
	Name string `json:"name"`
}

// SecurityEvent represents an auditable security event.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	ProjectID uuid.UUID         `json:"project_id"`
	Target    Target            `json:"target"`
	UserID    string            `json:"user_id,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// SQLInjectionDetails contains specifics of a flagged argument value.
type SQLInjectionDetails struct {
	ParamName   string `json:"param_name"`
	ParamValue  string `json:"param_value"`
	Fingerprint string `json:"fingerprint"`
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger    *zap.Logger
	projectID uuid.UUID
}

// NewSecurityAuditor creates a new security auditor with a dedicated
// "security_audit" logger namespace.
func NewSecurityAuditor(logger *zap.Logger, projectID uuid.UUID) *SecurityAuditor {
	return &SecurityAuditor{
		logger:    logger.Named("security_audit"),
		projectID: projectID,
	}
}

// LogInjectionAttempt records an argument value that looks like SQL injection.
// The request still proceeds; the value is bound as data, never spliced into SQL.
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, target Target, details SQLInjectionDetails, clientIP string) {
	details.ParamValue = logging.SanitizeValue(details.ParamValue)
	event := a.newEvent(ctx, EventSQLInjectionAttempt, target, clientIP, details, "critical")

	a.logger.Error("SQL injection pattern in request argument",
		zap.String("event_json", marshalEvent(event)),
		zap.String("target", target.Name),
		zap.String("param_name", details.ParamName),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("client_ip", clientIP),
		zap.String("user_id", event.UserID),
		zap.String("severity", event.Severity),
	)
}

// LogAccessDenied records a refused invocation of a protected target.
// Inactive targets are reported to callers as missing and are not logged here.
func (a *SecurityAuditor) LogAccessDenied(ctx context.Context, target Target, reason, clientIP string) {
	event := a.newEvent(ctx, EventAccessDenied, target, clientIP, map[string]string{"reason": reason}, "warning")

	a.logger.Warn("Access denied",
		zap.String("event_json", marshalEvent(event)),
		zap.String("target", target.Name),
		zap.String("reason", reason),
		zap.String("client_ip", clientIP),
		zap.String("user_id", event.UserID),
		zap.String("severity", event.Severity),
	)
}

// LogParameterValidation records a request whose arguments could not be bound.
// These are typically caller mistakes rather than attacks.
func (a *SecurityAuditor) LogParameterValidation(ctx context.Context, target Target, errorMessage, clientIP string) {
	event := a.newEvent(ctx, EventParameterValidation, target, clientIP, map[string]string{"error": errorMessage}, "info")

	a.logger.Info("Parameter validation failed",
		zap.String("event_json", marshalEvent(event)),
		zap.String("target", target.Name),
		zap.String("error", errorMessage),
		zap.String("client_ip", clientIP),
		zap.String("user_id", event.UserID),
	)
}

func (a *SecurityAuditor) newEvent(ctx context.Context, eventType SecurityEventType, target Target, clientIP string, details any, severity string) SecurityEvent {
	return SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		ProjectID: a.projectID,
		Target:    target,
		UserID:    auth.GetUserIDFromContext(ctx),
		ClientIP:  clientIP,
		Details:   details,
		Severity:  severity,
	}
}

// marshalEvent ignores the error: every field is a plain value type.
func marshalEvent(event SecurityEvent) string {
	b, _ := json.Marshal(event)
	return string(b)
}
