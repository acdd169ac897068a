package harness

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Setup lists records inserted verbatim before the steps run.
	Setup []SeedObj `yaml:"setup,omitempty"`

	// Fields lists field metadata stored before the steps run.
	Fields []SeedField `yaml:"fields,omitempty"`

	// Steps are the store operations under test, run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final stored state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SeedObj is a record inserted during setup. Omitted timestamps are taken
// from the scenario clock, so seed order is creation order.
type SeedObj struct {
	ID            string         `yaml:"id"`
	App           string         `yaml:"app"`
	Group         string         `yaml:"group,omitempty"`
	Tag           string         `yaml:"tag"`
	Record        map[string]any `yaml:"record"`
	CreatedAt     string         `yaml:"createdAt,omitempty"`
	DeletedAt     string         `yaml:"deletedAt,omitempty"`
	ShouldIndex   bool           `yaml:"shouldIndex,omitempty"`
	FieldsToIndex []string       `yaml:"fieldsToIndex,omitempty"`
}

// SeedField is field metadata stored during setup.
type SeedField struct {
	App   string   `yaml:"app"`
	Tag   string   `yaml:"tag"`
	Path  string   `yaml:"path"`
	Types []string `yaml:"types"`
	Array bool     `yaml:"array,omitempty"`
}

// Step is one store operation. Which fields apply depends on Op.
type Step struct {
	Op  string `yaml:"op"`
	App string `yaml:"app,omitempty"`
	Tag string `yaml:"tag,omitempty"`

	// Query is the Query DSL as written in JSON. App fills in appId when
	// the query does not set it.
	Query map[string]any   `yaml:"query,omitempty"`
	Sort  []map[string]any `yaml:"sort,omitempty"`

	// UseFields passes the stored field metadata of (App, Tag) to the
	// step's read or write.
	UseFields bool `yaml:"useFields,omitempty"`

	Page           int    `yaml:"page,omitempty"`
	Limit          int    `yaml:"limit,omitempty"`
	IncludeDeleted bool   `yaml:"includeDeleted,omitempty"`
	ReferenceDate  string `yaml:"referenceDate,omitempty"`

	Update   map[string]any `yaml:"update,omitempty"`
	Strategy string         `yaml:"strategy,omitempty"`

	Items          []map[string]any `yaml:"items,omitempty"`
	ConflictOnKeys []string         `yaml:"conflictOnKeys,omitempty"`
	OnConflict     string           `yaml:"onConflict,omitempty"`

	Count      int  `yaml:"count,omitempty"`
	BatchSize  int  `yaml:"batchSize,omitempty"`
	DeleteMany bool `yaml:"deleteMany,omitempty"`
	HardDelete bool `yaml:"hardDelete,omitempty"`

	Expect *StepExpect `yaml:"expect,omitempty"`
}

// StepExpect specifies the expected step outcome. Nil fields are not
// checked.
type StepExpect struct {
	// Count is the number of records returned, updated, or deleted.
	// For bulkUpsert it is totalProcessed.
	Count *int `yaml:"count,omitempty"`

	// IDs are the returned record ids in order (read, update).
	IDs []string `yaml:"ids,omitempty"`

	HasMore *bool `yaml:"hasMore,omitempty"`

	New     *int `yaml:"new,omitempty"`
	Updated *int `yaml:"updated,omitempty"`
	Ignored *int `yaml:"ignored,omitempty"`
	Failed  *int `yaml:"failed,omitempty"`

	// ErrorCode expects the step to fail with this QueryError or
	// ParamError code.
	ErrorCode string `yaml:"errorCode,omitempty"`
}

// Step op constants.
const (
	OpRead       = "read"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpBulkUpsert = "bulkUpsert"
	OpBulkUpdate = "bulkUpdate"
	OpBulkDelete = "bulkDelete"
	OpCleanup    = "cleanup"
)

var knownOps = map[string]bool{
	OpRead: true, OpUpdate: true, OpDelete: true,
	OpBulkUpsert: true, OpBulkUpdate: true, OpBulkDelete: true,
	OpCleanup: true,
}

// Assertion validates final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "ids": ids of (App, Tag) in Scope, newest first
	// - "count": number of records of (App, Tag) in Scope
	// - "record": payload of record ID
	Type string `yaml:"type"`

	App string `yaml:"app,omitempty"`
	Tag string `yaml:"tag,omitempty"`

	// Scope is live (default), all, or deleted.
	Scope string `yaml:"scope,omitempty"`

	IDs    []string       `yaml:"ids,omitempty"`
	Count  int            `yaml:"count,omitempty"`
	ID     string         `yaml:"id,omitempty"`
	Record map[string]any `yaml:"record,omitempty"`
}

// Assertion type constants.
const (
	AssertIDs    = "ids"
	AssertCount  = "count"
	AssertRecord = "record"
)

//go:embed scenarios/*.yaml
var builtin embed.FS

// Builtin returns the embedded scenarios sorted by name.
func Builtin() ([]*Scenario, error) {
	entries, err := fs.ReadDir(builtin, "scenarios")
	if err != nil {
		return nil, fmt.Errorf("read embedded scenarios: %w", err)
	}

	var out []*Scenario
	for _, e := range entries {
		data, err := builtin.ReadFile(path.Join("scenarios", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		s, err := ParseScenario(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(p string) (*Scenario, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML. It returns an error if the document
// is malformed, contains unknown fields (typos), or is missing required
// fields.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, seed := range s.Setup {
		if seed.ID == "" || seed.App == "" || seed.Tag == "" {
			return fmt.Errorf("setup[%d]: id, app, and tag are required", i)
		}
	}

	for i, f := range s.Fields {
		if f.App == "" || f.Tag == "" || f.Path == "" {
			return fmt.Errorf("fields[%d]: app, tag, and path are required", i)
		}
	}

	for i, step := range s.Steps {
		if !knownOps[step.Op] {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Scope {
	case "", "live", "all", "deleted":
	default:
		return fmt.Errorf("assertions[%d]: unknown scope %q", index, a.Scope)
	}

	switch a.Type {
	case AssertIDs, AssertCount:
		if a.App == "" || a.Tag == "" {
			return fmt.Errorf("assertions[%d]: app and tag are required for %s", index, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertRecord:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for record", index)
		}
		if a.Record == nil {
			return fmt.Errorf("assertions[%d]: record is required for record", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
