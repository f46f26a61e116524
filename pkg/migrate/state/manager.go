// package state
//
// run and table lifecycle states plus the audit log every table outcome is
// written to
package state

import (
	"context"
	"fmt"
	"strings"
)

// Status : outcome recorded in the audit log
type Status string

const (
	Success Status = "SUCCESS"
	Failure Status = "FAILURE"
)

// TableState : where a single table is in its migration
type TableState string

const (
	Pending   TableState = "PENDING"
	Migrating TableState = "MIGRATING"
	Succeeded TableState = "SUCCESS"
	Failed    TableState = "FAILURE"
)

// RunState : where the whole run is
type RunState string

const (
	Running    RunState = "RUNNING"
	Committed  RunState = "COMMITTED"
	RolledBack RunState = "ROLLED_BACK"
)

// AuditMode : which connection the audit entries are written through
type AuditMode string

const (
	// Separate : failure entries are autocommitted on their own connection so
	// they outlive the rollback, success entries ride the run transaction
	Separate AuditMode = "separate"
	// Shared : every entry rides the run transaction
	Shared AuditMode = "shared"
)

// ParseAuditMode : empty means Separate
func ParseAuditMode(s string) (AuditMode, error) {
	switch AuditMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Separate:
		return Separate, nil
	case Shared:
		return Shared, nil
	}
	return "", fmt.Errorf("unknown audit mode %q (want %s or %s)", s, Separate, Shared)
}

// Entry : one audit log row. The timestamp is assigned by the database.
type Entry struct {
	TableName string `json:"table_name"`
	Status    Status `json:"status"`
	Message   string `json:"message"`
}

// Logger : appends audit entries. Write only.
type Logger interface {
	Record(ctx context.Context, tableName string, status Status, message string) error
}
