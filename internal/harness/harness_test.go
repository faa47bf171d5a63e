package harness

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datamock/internal/ir"
	"github.com/roach88/datamock/internal/mocker"
	"github.com/roach88/datamock/internal/store"
	"github.com/roach88/datamock/internal/testcase"
	"github.com/roach88/datamock/internal/testutil"
)

const sampleSuite = `
tc_sample:
  settings: {base_date: 2024-01-10}
  documentation: {desc: two chained samples, tags: [harness]}
  unittests:
    my_string_should_be_in_sequence: [first, second]
    my_string_should_be_distinct: true
    my_datetime_should_not_have_datetime_before: "2024-01-05 00:00:00"
  mockup:
    - p.ds_mock.sample:
        my_string: first
        my_integer: 1
        when: D-5
    - p.ds_mock.sample:
        my_string: second
        when: "*D+1"

tc_wrong:
  settings: {base_date: 2024-01-10}
  documentation: expectations that do not hold
  unittests:
    my_string_should_be_in_sequence: [second, first]
    my_string_should_be_sorted: true
  mockup:
    - p.ds_mock.sample:
        my_string: first
    - p.ds_mock.sample:
        my_string: second
        when: D+1

tc_broken:
  settings: {base_date: 2024-01-10}
  documentation: bad title
  unittests: {}
  mockup:
    - not_a_title:
        my_string: first
`

const artefactSuite = `
tc_atendimento:
  settings: {base_date: 2024-01-10}
  documentation: artefact over mocked visits
  unittests:
    id_atendimento_should_be_in_sequence: [1, 2]
    id_atendimento_should_be_distinct: true
    valid_record_should_be_in_sequence: [true, true, false]
    exames_should_have_on_array_length_sequence: [2, 0, 0]
    dt_atendimento_should_not_have_datetime_before: "2024-01-01 00:00:00"
  mockup:
    - p.ds_prod.sample:
        my_string: a
    - p.ds_prod.sample:
        my_string: b
    - p.ds_prod.fato_atendimento:
        id_atendimento: 1
        exames: [row_1, row_2]
        when: D-3
    - p.ds_prod.fato_atendimento:
        id_atendimento: 2
        when: D-2
    - p.ds_prod.fato_atendimento:
        id_atendimento: 3
        valid_record: false
        when: D-1
`

const artefactConfig = `
query:
  sql: query.sql
  destination: obtained
  params:
    min_id: 0
  fetch:
    search: person_key
    where: person_key
    order: id_atendimento
generator:
  seed: 42
  now: "2024-06-01 12:00:00"
`

const artefactSQL = "SELECT id_atendimento, person_key, dt_atendimento, exames, valid_record\n" +
	"FROM `p.ds_prod.fato_atendimento`\n" +
	"WHERE id_atendimento > ${MIN_ID}\n"

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadSuite(t *testing.T, files map[string]string) (*Harness, *testcase.Suite) {
	t.Helper()
	dir := testutil.WriteSuite(t, "lab_suite", files)
	h, suite, err := Load(dir, WithLogger(quiet()), WithSeed(7))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h, suite
}

func runCase(t *testing.T, h *Harness, suite *testcase.Suite, id string) *Result {
	t.Helper()
	tc, err := suite.Case(id)
	require.NoError(t, err)
	res, err := h.Run(context.Background(), suite.Name, tc)
	require.NoError(t, err)
	return res
}

func TestRunFetchesSingleDataset(t *testing.T) {
	h, suite := loadSuite(t, map[string]string{"test.yaml": sampleSuite})

	res := runCase(t, h, suite, "tc_sample")
	require.NoError(t, res.Err)
	assert.True(t, res.Pass, res.Errors)
	assert.Equal(t, store.StatusPassed, res.Status())
	assert.Equal(t, "lab_suite", res.Suite)
	require.Len(t, res.Units, 3)
	for _, u := range res.Units {
		assert.True(t, u.Passed, u.Message)
	}

	require.Len(t, res.Obtained, 2)
	assert.Equal(t, ir.String("first"), res.Obtained[0]["my_string"])
	assert.Equal(t, ir.String("2024-01-06 00:00:00"), res.Obtained[1]["my_datetime"])
}

func TestRunArtefactQuery(t *testing.T) {
	h, suite := loadSuite(t, map[string]string{
		"test.yaml":   artefactSuite,
		"config.yaml": artefactConfig,
		"query.sql":   artefactSQL,
	})

	res := runCase(t, h, suite, "tc_atendimento")
	require.NoError(t, res.Err)
	assert.True(t, res.Pass, res.Errors)
	require.Len(t, res.Units, 5)

	require.Len(t, res.Obtained, 3)
	for _, row := range res.Obtained {
		assert.Equal(t, ir.String(res.Build.PersonKey), row["person_key"])
	}
	exames, ok := res.Obtained[0]["exames"].(ir.List)
	require.True(t, ok)
	require.Len(t, exames, 2)
	assert.Equal(t, ir.String("a"), exames[0].(ir.Object)["my_string"])

	ctx := context.Background()
	builds, err := h.Store().ReadBuilds(ctx, "lab_suite", "tc_atendimento")
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, res.BuildID, builds[0].ID)
	assert.Equal(t, store.StatusPassed, builds[0].Status)
	assert.Equal(t, res.Build.PersonKey, builds[0].PersonKey)
	assert.Equal(t, "2024-01-10 00:00:00", builds[0].BaseDate)
	assert.NotEmpty(t, builds[0].Hash)

	units, err := h.Store().ReadUnitResults(ctx, res.BuildID)
	require.NoError(t, err)
	require.Len(t, units, 5)
	assert.Equal(t, "id_atendimento_should_be_in_sequence", units[0].Name)
	assert.Equal(t, ir.List{ir.Int(1), ir.Int(2)}, units[0].Obtained)
	assert.True(t, units[0].Passed)
}

func TestRunSkipsPersistedDatasets(t *testing.T) {
	h, suite := loadSuite(t, map[string]string{
		"test.yaml":   artefactSuite,
		"config.yaml": strings.Replace(artefactConfig, "query:\n", "query:\n  persist: [p.ds_prod.sample]\n", 1),
		"query.sql":   artefactSQL,
	})

	res := runCase(t, h, suite, "tc_atendimento")
	require.NoError(t, res.Err)
	assert.True(t, res.Pass, res.Errors)

	schema := h.config.Environment.DefaultDatasetTest
	count := func(table string) int {
		rows, err := h.Store().Query(context.Background(),
			"SELECT count(*) FROM "+schema+".sqlite_master WHERE type = 'table' AND name = ?", table)
		require.NoError(t, err)
		defer rows.Close()
		require.True(t, rows.Next())
		var n int
		require.NoError(t, rows.Scan(&n))
		return n
	}
	assert.Equal(t, 0, count("sample"))
	assert.Equal(t, 1, count("fato_atendimento"))
}

func TestRunRecordsFailedUnits(t *testing.T) {
	h, suite := loadSuite(t, map[string]string{"test.yaml": sampleSuite})

	res := runCase(t, h, suite, "tc_wrong")
	require.NoError(t, res.Err)
	assert.False(t, res.Pass)
	assert.Equal(t, store.StatusFailed, res.Status())

	failed := res.Failed()
	require.Len(t, failed, 2)
	assert.Contains(t, failed[0].Message, "Assertion failed: my_string_should_be_in_sequence")
	assert.Equal(t, ir.List{ir.String("first"), ir.String("second")}, failed[0].Obtained)
	assert.Contains(t, failed[1].Message, "unknown assertion")

	units, err := h.Store().ReadUnitResults(context.Background(), res.BuildID)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.False(t, units[0].Passed)
	assert.NotEmpty(t, units[0].Message)
}

func TestRunRecordsBuildErrors(t *testing.T) {
	h, suite := loadSuite(t, map[string]string{"test.yaml": sampleSuite})

	res := runCase(t, h, suite, "tc_broken")
	require.Error(t, res.Err)
	assert.True(t, mocker.IsShapeError(res.Err))
	assert.True(t, errors.Is(res.Err, mocker.ErrInvalidTitle))
	assert.Nil(t, res.Build)
	assert.Equal(t, store.StatusError, res.Status())

	builds, err := h.Store().ReadBuilds(context.Background(), "lab_suite", "tc_broken")
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, store.StatusError, builds[0].Status)
	assert.Contains(t, builds[0].Message, "SHAPE")
}

func TestRunUnknownParamIsCaseError(t *testing.T) {
	h, suite := loadSuite(t, map[string]string{
		"test.yaml":   artefactSuite,
		"config.yaml": artefactConfig,
		"query.sql":   "SELECT * FROM ${nope}",
	})

	res := runCase(t, h, suite, "tc_atendimento")
	assert.True(t, errors.Is(res.Err, ErrUnknownParam))
	assert.NotNil(t, res.Build)
	assert.Equal(t, store.StatusError, res.Status())
}

func TestRunWithoutArtefactNeedsTable(t *testing.T) {
	h, suite := loadSuite(t, map[string]string{"test.yaml": artefactSuite})

	res := runCase(t, h, suite, "tc_atendimento")
	require.Error(t, res.Err)
	assert.Contains(t, errors.GetAllHints(res.Err), "set query.sql or query.fetch.table in config.yaml")
}

func TestRunSuite(t *testing.T) {
	h, suite := loadSuite(t, map[string]string{"test.yaml": sampleSuite})
	ctx := context.Background()

	results, err := h.RunSuite(ctx, suite)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{store.StatusPassed, store.StatusFailed, store.StatusError},
		[]string{results[0].Status(), results[1].Status(), results[2].Status()})

	results, err = h.RunSuite(ctx, suite, "tc_sample")
	require.NoError(t, err)
	require.Len(t, results, 1)

	_, err = h.RunSuite(ctx, suite, "tc_404")
	assert.True(t, errors.Is(err, testcase.ErrCaseNotFound))
}

func TestRunIsDeterministicWithSeed(t *testing.T) {
	files := map[string]string{
		"test.yaml":   artefactSuite,
		"config.yaml": artefactConfig,
		"query.sql":   artefactSQL,
	}
	h1, s1 := loadSuite(t, files)
	h2, s2 := loadSuite(t, files)

	a := runCase(t, h1, s1, "tc_atendimento")
	b := runCase(t, h2, s2, "tc_atendimento")

	ha, err := a.Build.Hash()
	require.NoError(t, err)
	hb, err := b.Build.Hash()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.NotEqual(t, a.BuildID, b.BuildID)
}
