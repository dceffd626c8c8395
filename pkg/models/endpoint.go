// Package models contains domain types for the API builder runtime.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// HTTP methods an endpoint definition may declare.
const (
	MethodGet    = "GET"
	MethodPost   = "POST"
	MethodPut    = "PUT"
	MethodDelete = "DELETE"
)

// ValidMethods contains all methods accepted for endpoint definitions.
var ValidMethods = []string{MethodGet, MethodPost, MethodPut, MethodDelete}

// IsValidMethod checks if the given method may be used by an endpoint.
func IsValidMethod(method string) bool {
	for _, m := range ValidMethods {
		if m == method {
			return true
		}
	}
	return false
}

// Parameter locations.
const (
	LocationPath  = "path"
	LocationQuery = "query"
	LocationBody  = "body"
)

// Parameter types.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
)

// ParameterSpec declares one argument of an endpoint and where to read it from.
type ParameterSpec struct {
	Name     string `json:"name" yaml:"name"`
	Location string `json:"in" yaml:"in"`               // path, query, body
	Type     string `json:"type,omitempty" yaml:"type"` // string (default), number, boolean
	Required bool   `json:"required" yaml:"required"`
}

// UnmarshalJSON accepts "location" as an alias for "in".
func (p *ParameterSpec) UnmarshalJSON(data []byte) error {
	type alias ParameterSpec
	var aux struct {
		alias
		LocationAlias string `json:"location"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = ParameterSpec(aux.alias)
	if p.Location == "" {
		p.Location = aux.LocationAlias
	}
	return nil
}

// EffectiveType returns the declared type, defaulting to string.
func (p ParameterSpec) EffectiveType() string {
	if p.Type == "" {
		return TypeString
	}
	return p.Type
}

// EndpointDefinition is a stored route that runs author-supplied SQL.
type EndpointDefinition struct {
	ID           uuid.UUID       `json:"id" yaml:"-"`
	ProjectID    uuid.UUID       `json:"project_id" yaml:"-"`
	Method       string          `json:"method" yaml:"method"`
	Path         string          `json:"path" yaml:"path"`
	SQL          string          `json:"sql" yaml:"sql"`
	Description  *string         `json:"description,omitempty" yaml:"description,omitempty"`
	IsActive     bool            `json:"is_active" yaml:"is_active"`
	IsProtected  bool            `json:"is_protected" yaml:"is_protected"`
	AllowedRoles []string        `json:"allowed_roles" yaml:"allowed_roles,omitempty"`
	Params       []ParameterSpec `json:"params" yaml:"params,omitempty"`
	CreatedAt    time.Time       `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time       `json:"updated_at" yaml:"-"`
}

// AccessPolicy returns the protection fields checked before the endpoint runs.
func (e *EndpointDefinition) AccessPolicy() AccessPolicy {
	return AccessPolicy{
		IsActive:     e.IsActive,
		IsProtected:  e.IsProtected,
		AllowedRoles: e.AllowedRoles,
	}
}

// Clone returns a deep copy so callers can never mutate registry state.
func (e *EndpointDefinition) Clone() *EndpointDefinition {
	if e == nil {
		return nil
	}
	c := *e
	if e.Description != nil {
		d := *e.Description
		c.Description = &d
	}
	if e.AllowedRoles != nil {
		c.AllowedRoles = append([]string(nil), e.AllowedRoles...)
	}
	if e.Params != nil {
		c.Params = append([]ParameterSpec(nil), e.Params...)
	}
	return &c
}

// AccessPolicy holds the protection fields shared by endpoints and functions.
type AccessPolicy struct {
	IsActive     bool
	IsProtected  bool
	AllowedRoles []string
}
