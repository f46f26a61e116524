package table

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrNoTables : a job has to migrate at least one table
	ErrNoTables = errors.New("no tables configured")
)

// Row : one source row, positionally aligned with Descriptor.Columns
type Row = []any

// Batch : at most batch size rows fetched and written together
type Batch []Row

// Descriptor : static description of how one table is copied.
// Loaded once from the job file and never mutated afterwards.
type Descriptor struct {
	TableName      string   `json:"table_name"`
	Columns        []string `json:"columns"`
	SourceQuery    string   `json:"source_query"`
	InsertTemplate string   `json:"insert_template"`
	// DependsOn : tables that must be listed (and so migrated) before this one
	DependsOn []string `json:"depends_on,omitempty"`
}

// WithDefaults : fills in the source query and insert template from the
// table name and column list when they were left empty
func (d Descriptor) WithDefaults() Descriptor {
	cols := make([]string, len(d.Columns))
	copy(cols, d.Columns)
	d.Columns = cols
	if d.SourceQuery == "" && d.TableName != "" && len(cols) > 0 {
		d.SourceQuery = fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), d.TableName)
	}
	if d.InsertTemplate == "" && d.TableName != "" && len(cols) > 0 {
		placeholders := make([]string, len(cols))
		for i := range cols {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		}
		d.InsertTemplate = fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s)",
			d.TableName,
			strings.Join(cols, ", "),
			strings.Join(placeholders, ", "),
		)
	}
	return d
}

// Validate : checks a single descriptor is usable
func (d Descriptor) Validate() error {
	var err error
	if strings.TrimSpace(d.TableName) == "" {
		err = multierror.Append(err, errors.New("table_name is required"))
	}
	if len(d.Columns) == 0 {
		err = multierror.Append(err, fmt.Errorf("%s : columns are required", d.TableName))
	}
	for i, c := range d.Columns {
		if strings.TrimSpace(c) == "" {
			err = multierror.Append(err, fmt.Errorf("%s : column %d is blank", d.TableName, i))
		}
	}
	if d.SourceQuery == "" {
		err = multierror.Append(err, fmt.Errorf("%s : source_query is required", d.TableName))
	}
	if d.InsertTemplate == "" {
		err = multierror.Append(err, fmt.Errorf("%s : insert_template is required", d.TableName))
	}
	return err
}

// Descriptors : the ordered list of tables for a run. Order is the migration
// order, nothing gets reordered.
type Descriptors []Descriptor

// WithDefaults : applies Descriptor.WithDefaults to every entry
func (ds Descriptors) WithDefaults() Descriptors {
	out := make(Descriptors, len(ds))
	for i, d := range ds {
		out[i] = d.WithDefaults()
	}
	return out
}

// Names : table names in migration order
func (ds Descriptors) Names() []string {
	names := make([]string, len(ds))
	for i, d := range ds {
		names[i] = d.TableName
	}
	return names
}

// Validate : validates every descriptor, rejects duplicates and checks each
// depends_on entry appears earlier in the list
func (ds Descriptors) Validate() error {
	if len(ds) == 0 {
		return ErrNoTables
	}
	var (
		finalErr error
		seen     = make(map[string]int, len(ds))
	)
	for i, d := range ds {
		if err := d.Validate(); err != nil {
			finalErr = multierror.Append(finalErr, err)
		}
		key := strings.ToLower(d.TableName)
		if prev, ok := seen[key]; ok && key != "" {
			finalErr = multierror.Append(finalErr, fmt.Errorf("%s : listed twice (positions %d and %d)", d.TableName, prev, i))
			continue
		}
		for _, dep := range d.DependsOn {
			if _, ok := seen[strings.ToLower(dep)]; !ok {
				finalErr = multierror.Append(finalErr, fmt.Errorf("%s : depends on %s which is not listed before it", d.TableName, dep))
			}
		}
		seen[key] = i
	}
	return finalErr
}
