package harness

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/roach88/datamock/internal/config"
	"github.com/roach88/datamock/internal/interval"
	"github.com/roach88/datamock/internal/ir"
	"github.com/roach88/datamock/internal/mocker"
	"github.com/roach88/datamock/internal/store"
	"github.com/roach88/datamock/internal/template"
	"github.com/roach88/datamock/internal/testcase"
)

// Harness runs test cases against one sink database.
type Harness struct {
	store  *store.Store
	config *config.Suite
	mocker *mocker.Mocker
	logger *slog.Logger
	owned  bool // store was opened by Load and is closed by Close

	seed     int64
	now      time.Time
	registry *template.Registry
	database string
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithMocker replaces the mocker built from the suite config.
func WithMocker(m *mocker.Mocker) Option {
	return func(h *Harness) { h.mocker = m }
}

// WithSeed overrides generator.seed.
func WithSeed(seed int64) Option {
	return func(h *Harness) { h.seed = seed }
}

// WithNow overrides generator.now.
func WithNow(now time.Time) Option {
	return func(h *Harness) { h.now = now }
}

// WithRegistry sets the template registry of the built mocker.
func WithRegistry(r *template.Registry) Option {
	return func(h *Harness) { h.registry = r }
}

// WithDatabase makes Load open path instead of environment.database.
func WithDatabase(path string) Option {
	return func(h *Harness) { h.database = path }
}

// New creates a harness over an open store. The store stays owned by the
// caller.
func New(st *store.Store, cfg *config.Suite, opts ...Option) *Harness {
	h := &Harness{
		store:  st,
		config: cfg,
		logger: slog.Default(),
		seed:   cfg.Generator.Seed,
	}
	// Load validated generator.now already.
	h.now, _ = cfg.Now()

	for _, opt := range opts {
		opt(h)
	}

	if h.mocker == nil {
		mopts := []mocker.Option{mocker.WithSeed(h.seed), mocker.WithLogger(h.logger)}
		if !h.now.IsZero() {
			mopts = append(mopts, mocker.WithClock(interval.StaticClock{Time: h.now}))
		}
		if h.registry != nil {
			mopts = append(mopts, mocker.WithRegistry(h.registry))
		}
		h.mocker = mocker.New(mopts...)
	}
	return h
}

// Load reads the suite in dir with its config.yaml and opens the configured
// sink database. Close releases the database.
func Load(dir string, opts ...Option) (*Harness, *testcase.Suite, error) {
	suite, err := testcase.LoadSuite(dir)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, nil, err
	}

	h := New(nil, cfg, opts...)
	path := cfg.Environment.Database
	if h.database != "" {
		path = h.database
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open sink database %s", path)
	}
	h.store = st
	h.owned = true
	return h, suite, nil
}

// Close closes the store when the harness opened it.
func (h *Harness) Close() error {
	if !h.owned {
		return nil
	}
	return h.store.Close()
}

// Store returns the sink database.
func (h *Harness) Store() *store.Store {
	return h.store
}

// Build builds a case without touching the sink.
func (h *Harness) Build(suite string, tc *testcase.Case) (*mocker.Result, error) {
	return h.mocker.Build(suite, tc)
}

// RunSuite runs the cases named in ids, or every case when ids is empty.
// Case failures are reported in the results; the error is reserved for
// unknown ids and log write failures.
func (h *Harness) RunSuite(ctx context.Context, suite *testcase.Suite, ids ...string) ([]*Result, error) {
	cases := suite.Cases
	if len(ids) > 0 {
		cases = make([]*testcase.Case, 0, len(ids))
		for _, id := range ids {
			tc, err := suite.Case(id)
			if err != nil {
				return nil, err
			}
			cases = append(cases, tc)
		}
	}

	results := make([]*Result, 0, len(cases))
	for _, tc := range cases {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := h.Run(ctx, suite.Name, tc)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Run builds one case, runs the artefact against its datasets and
// evaluates the unittests. Build and sink failures end up in Result.Err
// with status error; only failing to write the logs returns an error.
func (h *Harness) Run(ctx context.Context, suite string, tc *testcase.Case) (*Result, error) {
	start := time.Now()
	res := NewResult(suite, tc.ID, h.mocker.NextBuildID())
	logger := h.logger.With("build_id", res.BuildID, "suite", suite, "testcase", tc.ID)

	if err := h.execute(ctx, res, tc); err != nil {
		res.fail(err)
		logger.Error("case errored", "error", err)
	}
	res.Duration = time.Since(start)

	if err := h.record(ctx, res); err != nil {
		return nil, err
	}
	logger.Info("case finished",
		"status", res.Status(),
		"units", len(res.Units),
		"failed", len(res.Failed()),
		"duration", res.Duration,
	)
	return res, nil
}

func (h *Harness) execute(ctx context.Context, res *Result, tc *testcase.Case) error {
	built, err := h.mocker.BuildWithID(res.BuildID, res.Suite, tc)
	if err != nil {
		return err
	}
	res.Build = built

	schema := h.config.Environment.DefaultDatasetTest
	for _, token := range built.Order {
		if h.persisted(tc, token) {
			h.logger.Debug("dataset persisted, not loaded", "token", token)
			continue
		}
		if err := h.store.LoadDataset(ctx, schema, built.Datasets[token]); err != nil {
			return errors.Wrapf(err, "load dataset %s", token)
		}
	}

	table, err := h.artefact(ctx, built, tc)
	if err != nil {
		return err
	}

	fetch := h.config.Query.Fetch
	rows, err := h.store.Select(ctx, store.SelectQuery{
		Table:  table,
		Where:  fetch.Where,
		Search: h.search(built),
		Order:  fetch.Order,
	})
	if err != nil {
		return errors.Wrap(err, "fetch obtained rows")
	}
	res.Obtained = rows

	for _, unit := range built.Unittests {
		res.AddUnit(Evaluate(rows, unit))
	}
	return nil
}

// persisted reports whether every title mocking token is listed in
// query.persist. Those tables are read verbatim by the artefact.
func (h *Harness) persisted(tc *testcase.Case, token string) bool {
	found := false
	for _, ev := range tc.Events {
		if ev.Title[strings.LastIndex(ev.Title, ".")+1:] != token {
			continue
		}
		if !slices.Contains(h.config.Query.Persist, ev.Title) {
			return false
		}
		found = true
	}
	return found
}

// artefact runs the configured SQL and returns the table holding the
// obtained rows.
func (h *Harness) artefact(ctx context.Context, built *mocker.Result, tc *testcase.Case) (string, error) {
	schema := h.config.Environment.DefaultDatasetTest

	sql, err := h.config.ReadSQL()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(sql) == "" {
		table := h.config.Query.Fetch.Table
		if table == "" {
			if len(built.Order) != 1 {
				return "", errors.WithHint(
					errors.New("no artefact to read obtained rows from"),
					"set query.sql or query.fetch.table in config.yaml",
				)
			}
			table = built.Order[0]
		}
		if !strings.Contains(table, ".") {
			table = schema + "." + table
		}
		return table, nil
	}

	titles := make([]string, len(tc.Events))
	for i, ev := range tc.Events {
		titles[i] = ev.Title
	}
	rendered, err := Render(sql, h.vars(built), titles, schema, h.config.Query.Persist)
	if err != nil {
		return "", err
	}

	dest := h.config.Query.Destination
	if err := h.store.RunArtefact(ctx, dest, rendered); err != nil {
		return "", err
	}
	return dest, nil
}

// vars are the ${param} values: configured params, then build variables.
func (h *Harness) vars(built *mocker.Result) map[string]string {
	vars := make(map[string]string, len(h.config.Query.Params)+6)
	for k, v := range h.config.Query.Params {
		vars[k] = v
	}
	for k, v := range buildVars(built) {
		vars[k] = ir.Text(v)
	}
	vars["dataset"] = h.config.Environment.DefaultDatasetTest
	return vars
}

func buildVars(built *mocker.Result) ir.Object {
	return ir.Object{
		"build_id":   ir.String(built.BuildID),
		"suite":      ir.String(built.Suite),
		"testcase":   ir.String(built.Testcase),
		"person_key": ir.String(built.PersonKey),
		"base_date":  ir.String(built.BaseDate),
	}
}

// search resolves query.fetch.search: a build variable name or a literal.
func (h *Harness) search(built *mocker.Result) ir.Value {
	s := h.config.Query.Fetch.Search
	if v, ok := buildVars(built)[s]; ok {
		return v
	}
	return ir.String(s)
}

// record appends the case to the builds and unit_results logs.
func (h *Harness) record(ctx context.Context, res *Result) error {
	rec := store.BuildRecord{
		ID:       res.BuildID,
		Suite:    res.Suite,
		Testcase: res.Testcase,
		Status:   res.Status(),
		Duration: res.Duration,
	}
	if res.Err != nil {
		rec.Message = res.Err.Error()
	}
	if b := res.Build; b != nil {
		rec.PersonKey = b.PersonKey
		rec.BaseDate = b.BaseDate
		hash, err := b.Hash()
		if err != nil {
			return err
		}
		rec.Hash = hash
	}
	if err := h.store.WriteBuild(ctx, rec); err != nil {
		return err
	}

	for _, u := range res.Units {
		if err := h.store.WriteUnitResult(ctx, store.UnitResult{
			BuildID:  res.BuildID,
			Name:     u.Name,
			Expected: u.Expected,
			Obtained: u.Obtained,
			Passed:   u.Passed,
			Message:  u.Message,
		}); err != nil {
			return err
		}
	}
	return nil
}
