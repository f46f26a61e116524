package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/baderkha/ora2pg/pkg/migrate/report"
	"github.com/baderkha/ora2pg/pkg/migrate/state"
	"github.com/baderkha/ora2pg/pkg/migrate/table"
	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5"
)

// DefaultBatchRecordSize : rows per fetch / insert batch
const DefaultBatchRecordSize = 10000

// Config : configuration for the job
type Config[S any, T any] struct {
	Job
	SourceConfig S `json:"source"`
	Target       T `json:"target"`
}

// Job : everything about a run that does not depend on the database kinds
type Job struct {
	BatchRecordSize int               `json:"max_batch_record_size"`
	Tables          table.Descriptors `json:"tables"`
	View            View              `json:"view"`
	Audit           Audit             `json:"audit"`
	Report          report.Options    `json:"report"`
	// Preflight : check destination tables and columns before migrating
	Preflight bool `json:"preflight"`
}

// View : derived view refreshed once every table went in
type View struct {
	Name string `json:"name"`
	// Statement : overrides the default REFRESH MATERIALIZED VIEW <name>
	Statement string `json:"statement"`
}

// RefreshStatement : empty when no view is configured
func (v View) RefreshStatement() string {
	if v.Statement != "" {
		return v.Statement
	}
	if v.Name == "" {
		return ""
	}
	return "REFRESH MATERIALIZED VIEW " + pgx.Identifier(strings.Split(v.Name, ".")).Sanitize()
}

type Audit struct {
	Table string          `json:"table"`
	Mode  state.AuditMode `json:"mode"`
}

// WithDefaults : fills batch size, audit settings and derived statements
func (j Job) WithDefaults() Job {
	if j.BatchRecordSize <= 0 {
		j.BatchRecordSize = DefaultBatchRecordSize
	}
	if j.Audit.Table == "" {
		j.Audit.Table = state.DefaultTable
	}
	// unknown modes are left alone for Validate to report
	if mode, err := state.ParseAuditMode(string(j.Audit.Mode)); err == nil {
		j.Audit.Mode = mode
	}
	j.Tables = j.Tables.WithDefaults()
	return j
}

func (j Job) Validate() error {
	var finalErr error
	if j.BatchRecordSize <= 0 {
		finalErr = multierror.Append(finalErr, fmt.Errorf("max_batch_record_size must be positive, got %d", j.BatchRecordSize))
	}
	if _, err := state.ParseAuditMode(string(j.Audit.Mode)); err != nil {
		finalErr = multierror.Append(finalErr, err)
	}
	if err := j.Tables.Validate(); err != nil {
		finalErr = multierror.Append(finalErr, err)
	}
	if j.View.Name == "" && j.View.Statement != "" {
		finalErr = multierror.Append(finalErr, errors.New("view.statement needs view.name for the audit entry"))
	}
	return finalErr
}
