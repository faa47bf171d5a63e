// Package mocker builds the datasets of one test case.
//
// A build walks the case's mockup events in declaration order. For each
// event it resolves references to earlier instances and computes the event
// date (resolver.go), matches the type token to a template and instantiates
// it once, or once per parent (expander.go), and records every snapshot in
// the InstanceStore. Once all events are processed the store is grouped by
// type token into datasets (aggregate.go).
//
// All mutable state (store, date cursor, inheritance counter) belongs to a
// single build, so one Mocker can run builds for different cases in
// parallel.
package mocker

import (
	"log/slog"
	"time"

	"github.com/roach88/datamock/internal/component"
	"github.com/roach88/datamock/internal/dataset"
	"github.com/roach88/datamock/internal/generator"
	"github.com/roach88/datamock/internal/interval"
	"github.com/roach88/datamock/internal/ir"
	"github.com/roach88/datamock/internal/template"
	"github.com/roach88/datamock/internal/testcase"
)

const (
	keyBaseDate = "base_date"
	keyMidnight = "midnight"
)

// Mocker builds test cases against a template registry.
type Mocker struct {
	registry *template.Registry
	clock    interval.Clock
	seed     int64
	ids      generator.IDGenerator
	logger   *slog.Logger
}

// Option configures a Mocker.
type Option func(*Mocker)

// WithRegistry sets the template registry. Default: template.Default().
func WithRegistry(r *template.Registry) Option {
	return func(m *Mocker) { m.registry = r }
}

// WithClock sets the clock read by "**" aliases and alias base dates.
func WithClock(c interval.Clock) Option {
	return func(m *Mocker) { m.clock = c }
}

// WithSeed seeds the value generator of every build. 0 means random.
func WithSeed(seed int64) Option {
	return func(m *Mocker) { m.seed = seed }
}

// WithIDGenerator sets the build id source. Default: UUIDv7.
func WithIDGenerator(ids generator.IDGenerator) Option {
	return func(m *Mocker) { m.ids = ids }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Mocker) { m.logger = l }
}

// New creates a Mocker.
func New(opts ...Option) *Mocker {
	m := &Mocker{
		registry: template.Default(),
		clock:    interval.SystemClock{},
		ids:      generator.UUIDv7Generator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the registry builds match against.
func (m *Mocker) Registry() *template.Registry {
	return m.registry
}

// Result is the output of one successful build.
type Result struct {
	BuildID       string
	Suite         string
	Testcase      string
	Person        *component.Person
	PersonKey     string
	Documentation testcase.Documentation
	BaseDate      string // YYYY-MM-DD HH:MM:SS
	LastDate      string // cursor after the last event
	Unittests     []testcase.Unittest

	// Order lists type tokens by first appearance in the mockup.
	Order    []string
	Datasets map[string]*dataset.Dataset

	// Keys lists instance store keys in insertion order.
	Keys []string
}

// Dataset returns the dataset for a type token.
func (r *Result) Dataset(token string) (*dataset.Dataset, bool) {
	d, ok := r.Datasets[token]
	return d, ok
}

// Value renders every dataset as {token: [rows]}.
func (r *Result) Value() ir.Object {
	out := make(ir.Object, len(r.Datasets))
	for token, d := range r.Datasets {
		out[token] = d.Value()
	}
	return out
}

// Hash returns the content hash of the produced datasets.
func (r *Result) Hash() (string, error) {
	return ir.Hash(ir.DomainBuild, r.Value())
}

// build is the per-case state threaded through the resolver and expander.
type build struct {
	tc       *testcase.Case
	registry *template.Registry
	gen      *generator.Generator
	clock    interval.Clock
	logger   *slog.Logger
	person   *component.Person
	base     time.Time
	midnight bool // event dates drop their time of day

	store     *InstanceStore
	cursor    time.Time // last computed event date, zero before the first event
	inherited int       // instances produced from parents so far
}

// NextBuildID draws a build id from the configured generator.
func (m *Mocker) NextBuildID() string {
	return m.ids.Generate()
}

// Build runs every mockup event of tc and groups the instances into
// datasets. Any error aborts the build and no partial result is returned.
func (m *Mocker) Build(suite string, tc *testcase.Case) (*Result, error) {
	return m.BuildWithID(m.NextBuildID(), suite, tc)
}

// BuildWithID is Build with a caller-chosen build id, for callers that log
// failed builds under the same id.
func (m *Mocker) BuildWithID(buildID, suite string, tc *testcase.Case) (*Result, error) {
	start := time.Now()
	logger := m.logger.With("build_id", buildID, "suite", suite, "testcase", tc.ID)
	logger.Info("build started", "events", len(tc.Events))

	b := &build{
		tc:       tc,
		registry: m.registry,
		gen:      generator.New(m.seed),
		clock:    m.clock,
		logger:   logger,
		store:    NewInstanceStore(),
	}

	if err := b.settings(); err != nil {
		return nil, err
	}

	person, err := component.NewPerson(b.base, tc.Person, b.gen)
	if err != nil {
		return nil, buildError(ErrCodeConfig, "", testcase.KeyPerson, err, "invalid person")
	}
	b.person = person

	for _, key := range []string{testcase.KeyDocumentation, testcase.KeyUnittests, testcase.KeyMockup} {
		if !tc.Has(key) {
			return nil, buildError(ErrCodeConfig, "", key, nil, "missing %s", key)
		}
	}

	tokens := make([]string, len(tc.Events))
	var order []string
	seen := map[string]bool{}
	for i, ev := range tc.Events {
		token, err := typeToken(ev.Title)
		if err != nil {
			return nil, buildError(ErrCodeShape, ev.Title, "", err, "title must look like project.dataset.table")
		}
		tokens[i] = token
		if !seen[token] {
			seen[token] = true
			order = append(order, token)
		}
	}

	for i, ev := range tc.Events {
		tree, err := b.resolve(ev)
		if err != nil {
			return nil, err
		}
		if err := b.expand(ev, tokens[i], tree); err != nil {
			return nil, err
		}
	}

	result := &Result{
		BuildID:       buildID,
		Suite:         suite,
		Testcase:      tc.ID,
		Person:        person,
		PersonKey:     person.Key,
		Documentation: tc.Doc(),
		BaseDate:      interval.Format(b.base),
		LastDate:      ir.Text(timeValue(b.cursor)),
		Unittests:     tc.Unittests,
		Order:         order,
		Datasets:      Aggregate(b.store, order),
		Keys:          b.store.Keys(),
	}

	logger.Info("build finished",
		"instances", b.store.Len(),
		"datasets", len(order),
		"duration", time.Since(start),
	)
	return result, nil
}

// settings resolves the case base date.
func (b *build) settings() error {
	if !b.tc.Has(testcase.KeySettings) {
		return buildError(ErrCodeConfig, "", testcase.KeySettings, nil, "missing settings")
	}
	raw, ok := b.tc.Settings[keyBaseDate]
	if !ok || ir.IsNull(raw) {
		return buildError(ErrCodeConfig, "", keyBaseDate, nil, "missing settings.base_date")
	}
	base, err := interval.ParseBaseDate(ir.Text(raw), b.clock)
	if err != nil {
		return buildError(ErrCodeGrammar, "", keyBaseDate, err, "invalid base date")
	}
	if v, ok := b.tc.Settings[keyMidnight]; ok && !ir.IsNull(v) {
		flag, ok := v.(ir.Bool)
		if !ok {
			return buildError(ErrCodeConfig, "", keyMidnight, nil, "settings.midnight must be a boolean")
		}
		b.midnight = bool(flag)
	}
	b.base = base
	return nil
}
