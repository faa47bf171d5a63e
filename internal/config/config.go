// Package config loads a suite's config.yaml: the artefact query to run
// against the generated datasets, where obtained rows are fetched from, the
// sink database and generator settings.
//
// Values come from, lowest precedence first: built-in defaults, config.yaml,
// DATAMOCK_* environment variables (DATAMOCK_GENERATOR_SEED overrides
// generator.seed). The merged settings are checked against an embedded JSON
// Schema before decoding.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
)

// FileName is the optional config file next to test.yaml.
const FileName = "config.yaml"

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "DATAMOCK"

// DatasetPrefix is the prefix every test dataset name must carry.
const DatasetPrefix = "ds_mock"

var (
	// ErrInvalidConfig is returned when config.yaml does not match the schema.
	ErrInvalidConfig = errors.New("invalid suite config")

	// ErrGovernance is returned for dataset names outside the ds_mock namespace.
	ErrGovernance = errors.New("dataset name violates governance rule")
)

//go:embed config.schema.json
var schemaSource string

// Suite is the decoded config of one suite directory.
type Suite struct {
	Dir         string      `mapstructure:"-"`
	Query       Query       `mapstructure:"query"`
	Environment Environment `mapstructure:"environment"`
	Generator   Generator   `mapstructure:"generator"`
}

// Query describes the artefact under test.
type Query struct {
	SQL         string            `mapstructure:"sql"`         // file relative to the suite dir
	Destination string            `mapstructure:"destination"` // table the artefact result is written to
	Params      map[string]string `mapstructure:"params"`      // ${name} substitutions
	Persist     []string          `mapstructure:"persist"`     // tables referenced verbatim, never rewritten
	Fetch       Fetch             `mapstructure:"fetch"`
}

// Fetch selects the obtained rows.
type Fetch struct {
	Table  string `mapstructure:"table"`  // read from here when no SQL is configured
	Search string `mapstructure:"search"` // literal or build metadata name (person_key, ...)
	Where  string `mapstructure:"where"`  // column compared with search
	Order  string `mapstructure:"order"`
}

// Environment names where datasets live.
type Environment struct {
	DefaultDatasetTest string `mapstructure:"default_dataset_test"`
	Database           string `mapstructure:"database"`
}

// Generator configures value generation.
type Generator struct {
	Seed int64  `mapstructure:"seed"` // 0 seeds from entropy
	Now  string `mapstructure:"now"`  // fixed "now", YYYY-MM-DD[ HH:MM:SS]; empty reads the wall clock
}

// SetDefaults registers every key with its default, which is also what
// makes the key visible to environment overrides.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("query.sql", "")
	v.SetDefault("query.destination", "result")
	v.SetDefault("query.params", map[string]any{})
	v.SetDefault("query.persist", []string{})
	v.SetDefault("query.fetch.table", "")
	v.SetDefault("query.fetch.search", "")
	v.SetDefault("query.fetch.where", "")
	v.SetDefault("query.fetch.order", "")
	v.SetDefault("environment.default_dataset_test", DatasetPrefix)
	v.SetDefault("environment.database", ":memory:")
	v.SetDefault("generator.seed", 0)
	v.SetDefault("generator.now", "")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Default returns the configuration used when a suite has no config.yaml.
// Environment overrides still apply.
func Default() (*Suite, error) {
	return decode(newViper(), "")
}

// Load reads dir/config.yaml. A missing file yields the defaults.
func Load(dir string) (*Suite, error) {
	v := newViper()

	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "failed to stat config file %s", path)
	}

	return decode(v, dir)
}

func decode(v *viper.Viper, dir string) (*Suite, error) {
	if err := validate(v.AllSettings()); err != nil {
		return nil, err
	}

	var s Suite
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	s.Dir = dir
	if err := CheckDataset(s.Environment.DefaultDatasetTest); err != nil {
		return nil, err
	}
	if _, err := s.Now(); err != nil {
		return nil, err
	}
	return &s, nil
}

// CheckDataset enforces the ds_mock namespace for test datasets.
func CheckDataset(name string) error {
	if !strings.HasPrefix(name, DatasetPrefix) {
		return errors.WithHint(
			errors.Wrapf(ErrGovernance, "%q", name),
			"test dataset names must start with "+DatasetPrefix,
		)
	}
	return nil
}

// SQLPath returns the artefact SQL file path, or "" when none is configured.
func (s *Suite) SQLPath() string {
	if s.Query.SQL == "" {
		return ""
	}
	if filepath.IsAbs(s.Query.SQL) {
		return s.Query.SQL
	}
	return filepath.Join(s.Dir, s.Query.SQL)
}

// ReadSQL returns the artefact SQL text, or "" when none is configured.
func (s *Suite) ReadSQL() (string, error) {
	path := s.SQLPath()
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to read artefact SQL")
	}
	return string(data), nil
}

// Now parses generator.now. The zero time means "use the wall clock".
func (s *Suite) Now() (time.Time, error) {
	t, err := ParseNow(s.Generator.Now)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "generator.now")
	}
	return t, nil
}

// ParseNow parses a fixed "now" given as YYYY-MM-DD, YYYY-MM-DD HH:MM:SS or
// RFC 3339. Blank input yields the zero time.
func ParseNow(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.DateTime, time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.WithHint(
		errors.Wrapf(ErrInvalidConfig, "%q", raw),
		"use YYYY-MM-DD or YYYY-MM-DD HH:MM:SS",
	)
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

const schemaURL = "https://datamock.schemas.local/config.schema.json"

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaURL, strings.NewReader(schemaSource)); err != nil {
			compileErr = errors.Wrap(err, "config schema load failed")
			return
		}
		compiledSchema, compileErr = c.Compile(schemaURL)
		if compileErr != nil {
			compileErr = errors.Wrap(compileErr, "config schema compile failed")
		}
	})
	return compiledSchema, compileErr
}

// validate checks merged settings against the embedded schema. Settings are
// round-tripped through JSON so the validator sees plain JSON types.
func validate(settings map[string]any) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}

	data, err := json.Marshal(settings)
	if err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return errors.Wrap(err, "failed to decode config")
	}

	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return errors.WithDetail(errors.Wrapf(ErrInvalidConfig, "%v", ve), ve.GoString())
		}
		return errors.Wrapf(ErrInvalidConfig, "%v", err)
	}
	return nil
}
