package models

import "time"

// FunctionDefinition is catalog metadata for an installed database function.
// Parameters, ReturnType and Definition always come from the database catalog.
type FunctionDefinition struct {
	Schema       string    `json:"schema"`
	Name         string    `json:"name"`
	FullName     string    `json:"full_name"`
	Parameters   string    `json:"parameters"`
	ReturnType   string    `json:"return_type"`
	Definition   string    `json:"definition"`
	IsProtected  bool      `json:"is_protected"`
	AllowedRoles []string  `json:"allowed_roles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AccessPolicy returns the protection fields checked before invocation.
// Installed functions are always active; a dropped function has no definition.
func (f *FunctionDefinition) AccessPolicy() AccessPolicy {
	return AccessPolicy{
		IsActive:     true,
		IsProtected:  f.IsProtected,
		AllowedRoles: f.AllowedRoles,
	}
}

// FunctionCatalogEntry is what the database catalog reports for a function.
type FunctionCatalogEntry struct {
	Schema     string
	Name       string
	Arguments  string // pg_get_function_arguments
	IdentArgs  string // pg_get_function_identity_arguments
	ReturnType string
	Definition string
}

// FunctionAccess stores the protection settings and bookkeeping timestamps
// the runtime keeps for a function.
type FunctionAccess struct {
	Schema         string
	Name           string
	IsProtected    bool
	AllowedRoles   []string
	DefinitionHash string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
