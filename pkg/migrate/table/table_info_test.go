package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hrTables() Descriptors {
	return Descriptors{
		{TableName: "departments", Columns: []string{"dept_id", "dept_name", "location"}},
		{TableName: "employees", Columns: []string{"emp_id", "first_name", "dept_id"}, DependsOn: []string{"departments"}},
		{TableName: "projects", Columns: []string{"project_id", "project_name"}},
		{TableName: "employee_projects", Columns: []string{"emp_proj_id", "emp_id", "project_id"}, DependsOn: []string{"employees", "projects"}},
	}.WithDefaults()
}

func TestWithDefaultsDerivesStatements(t *testing.T) {
	d := Descriptor{TableName: "departments", Columns: []string{"dept_id", "dept_name", "location"}}.WithDefaults()

	assert.Equal(t, "SELECT dept_id, dept_name, location FROM departments", d.SourceQuery)
	assert.Equal(t, "INSERT INTO departments (dept_id, dept_name, location) VALUES ($1, $2, $3)", d.InsertTemplate)
}

func TestWithDefaultsKeepsExplicitStatements(t *testing.T) {
	d := Descriptor{
		TableName:      "projects",
		Columns:        []string{"project_id"},
		SourceQuery:    "SELECT project_id FROM hr.projects WHERE 1=1",
		InsertTemplate: "INSERT INTO projects (project_id) VALUES ($1)",
	}.WithDefaults()

	assert.Equal(t, "SELECT project_id FROM hr.projects WHERE 1=1", d.SourceQuery)
	assert.Equal(t, "INSERT INTO projects (project_id) VALUES ($1)", d.InsertTemplate)
}

func TestWithDefaultsDoesNotShareColumns(t *testing.T) {
	orig := Descriptor{TableName: "t", Columns: []string{"a", "b"}}
	d := orig.WithDefaults()
	d.Columns[0] = "changed"
	assert.Equal(t, "a", orig.Columns[0])
}

func TestDescriptorsValidate(t *testing.T) {
	require.NoError(t, hrTables().Validate())
	assert.Equal(t, []string{"departments", "employees", "projects", "employee_projects"}, hrTables().Names())
}

func TestDescriptorsValidateEmpty(t *testing.T) {
	assert.ErrorIs(t, Descriptors{}.Validate(), ErrNoTables)
}

func TestDescriptorsValidateRejectsDependencyListedLater(t *testing.T) {
	ds := Descriptors{
		{TableName: "employees", Columns: []string{"emp_id"}, DependsOn: []string{"departments"}},
		{TableName: "departments", Columns: []string{"dept_id"}},
	}.WithDefaults()

	err := ds.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "employees : depends on departments")
}

func TestDescriptorsValidateAggregatesProblems(t *testing.T) {
	ds := Descriptors{
		{TableName: "departments", Columns: []string{"dept_id"}},
		{TableName: "departments", Columns: []string{"dept_id"}},
		{TableName: "", Columns: nil},
	}.WithDefaults()

	err := ds.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listed twice")
	assert.Contains(t, err.Error(), "table_name is required")
	assert.Contains(t, err.Error(), "columns are required")
}
