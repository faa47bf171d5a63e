package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datamock/internal/testutil"
)

const passingSuite = `
tc_sample:
  settings: {base_date: 2024-01-10}
  documentation: {desc: two chained samples, tags: [cli]}
  unittests:
    my_string_should_be_in_sequence: [first, second]
    my_string_should_be_distinct: true
  mockup:
    - p.ds_mock.sample:
        my_string: first
        when: D-5
    - p.ds_mock.sample:
        my_string: second
        when: "*D+1"

tc_other:
  settings: {base_date: 2024-01-10}
  documentation: one sample
  unittests:
    my_string_should_be_in_sequence: [only]
  mockup:
    - p.ds_mock.sample:
        my_string: only
`

const failingSuite = `
tc_wrong:
  settings: {base_date: 2024-01-10}
  documentation: expectations that do not hold
  unittests:
    my_string_should_be_in_sequence: [second, first]
  mockup:
    - p.ds_mock.sample:
        my_string: first
    - p.ds_mock.sample:
        my_string: second
        when: D+1
`

// execute runs the root command with args and returns stdout and the error.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// decode unmarshals the data field of a JSON response into v.
func decode(t *testing.T, out string, v interface{}) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status, out)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "datamock", cmd.Use)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"build", "test", "list", "templates", "match"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	for _, flag := range []string{"verbose", "format", "seed", "now"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "missing flag %s", flag)
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "templates", "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.False(t, Reported(err))
}

func TestInvalidNow(t *testing.T) {
	_, err := execute(t, "templates", "--now", "yesterday")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestListCommand(t *testing.T) {
	dir := testutil.WriteSuite(t, "lab", map[string]string{"test.yaml": passingSuite})

	out, err := execute(t, "list", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "tc_sample")
	assert.Contains(t, out, "two chained samples")

	out, err = execute(t, "list", dir, "--format", "json")
	require.NoError(t, err)
	var infos []CaseInfo
	decode(t, out, &infos)
	require.Len(t, infos, 2)
	assert.Equal(t, "tc_sample", infos[0].ID)
	assert.Equal(t, []string{"cli"}, infos[0].Tags)
	assert.Equal(t, 2, infos[0].Events)
	assert.Equal(t, 2, infos[0].Unittests)
	assert.Equal(t, []string{}, infos[1].Tags)
}

func TestTemplatesCommand(t *testing.T) {
	out, err := execute(t, "templates", "--format", "json")
	require.NoError(t, err)

	var data struct {
		Templates []string `json:"templates"`
	}
	decode(t, out, &data)
	assert.Equal(t, "sample", data.Templates[0])
	assert.Contains(t, data.Templates, "fato_atendimento")
}

func TestMatchCommand(t *testing.T) {
	out, err := execute(t, "match", "p.ds_prod.fato_atendimento", "--format", "json")
	require.NoError(t, err)

	var data struct {
		Token  string      `json:"token"`
		Match  string      `json:"match"`
		Scores []ScoreInfo `json:"scores"`
	}
	decode(t, out, &data)
	assert.Equal(t, "fato_atendimento", data.Token)
	assert.Equal(t, "fato_atendimento", data.Match)
	require.NotEmpty(t, data.Scores)
	assert.Equal(t, "fato_atendimento", data.Scores[0].Template)
	assert.InDelta(t, 1.0, data.Scores[0].Score, 1e-9)

	out, err = execute(t, "match", "fato_atendimento")
	require.NoError(t, err)
	assert.Contains(t, out, "*")
}

func TestMatchEmptyToken(t *testing.T) {
	_, err := execute(t, "match", "p.ds.")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, Reported(err))
	assert.True(t, errors.Is(err, errEmptyToken))
}

func TestBuildCommand(t *testing.T) {
	dir := testutil.WriteSuite(t, "lab", map[string]string{"test.yaml": passingSuite})

	out, err := execute(t, "build", dir, "--case", "tc_sample", "--seed", "42", "--format", "json")
	require.NoError(t, err)

	var view struct {
		Testcase string                              `json:"testcase"`
		Suite    string                              `json:"suite"`
		BaseDate string                              `json:"base_date"`
		Order    []string                            `json:"order"`
		Datasets map[string][]map[string]interface{} `json:"datasets"`
	}
	decode(t, out, &view)
	assert.Equal(t, "tc_sample", view.Testcase)
	assert.Equal(t, "lab", view.Suite)
	assert.Equal(t, "2024-01-10 00:00:00", view.BaseDate)
	assert.Equal(t, []string{"sample"}, view.Order)
	require.Len(t, view.Datasets["sample"], 2)
	assert.Equal(t, "first", view.Datasets["sample"][0]["my_string"])
	assert.Equal(t, "second", view.Datasets["sample"][1]["my_string"])
}

func TestBuildIsDeterministicUnderSeed(t *testing.T) {
	dir := testutil.WriteSuite(t, "lab", map[string]string{"test.yaml": passingSuite})

	first, err := execute(t, "build", dir, "-c", "tc_sample", "--seed", "9", "--now", "2024-06-01", "--format", "json")
	require.NoError(t, err)
	second, err := execute(t, "build", dir, "-c", "tc_sample", "--seed", "9", "--now", "2024-06-01", "--format", "json")
	require.NoError(t, err)

	var a, b struct {
		Datasets interface{} `json:"datasets"`
	}
	decode(t, first, &a)
	decode(t, second, &b)
	assert.Equal(t, a.Datasets, b.Datasets)
}

func TestBuildNeedsCaseWhenSuiteHasMany(t *testing.T) {
	dir := testutil.WriteSuite(t, "lab", map[string]string{"test.yaml": passingSuite})

	out, err := execute(t, "build", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, Reported(err))
	assert.Contains(t, out, "tc_sample, tc_other")
}

func TestBuildText(t *testing.T) {
	dir := testutil.WriteSuite(t, "lab", map[string]string{"test.yaml": failingSuite})

	out, err := execute(t, "build", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "lab/tc_wrong")
	assert.Contains(t, out, "sample (2 rows)")
	assert.Contains(t, out, "my_string")
}

func TestTestCommandPasses(t *testing.T) {
	dir := testutil.WriteSuite(t, "lab", map[string]string{"test.yaml": passingSuite})

	out, err := execute(t, "test", dir, "--format", "json")
	require.NoError(t, err)

	var summary TestSummary
	decode(t, out, &summary)
	assert.Equal(t, "lab", summary.Suite)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Passed)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, "tc_sample", summary.Cases[0].Testcase)
	assert.Equal(t, "passed", summary.Cases[0].Status)
	assert.NotEmpty(t, summary.Cases[0].BuildID)
}

func TestTestCommandFails(t *testing.T) {
	dir := testutil.WriteSuite(t, "lab", map[string]string{"test.yaml": failingSuite})

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, Reported(err))
	assert.Contains(t, out, "tc_wrong")
	assert.Contains(t, out, "0 passed, 1 failed")
}

func TestTestCommandSelection(t *testing.T) {
	dir := testutil.WriteSuite(t, "lab", map[string]string{"test.yaml": passingSuite})

	out, err := execute(t, "test", dir, "--case", "tc_other", "--format", "json")
	require.NoError(t, err)
	var summary TestSummary
	decode(t, out, &summary)
	require.Len(t, summary.Cases, 1)
	assert.Equal(t, "tc_other", summary.Cases[0].Testcase)

	out, err = execute(t, "test", dir, "--filter", "nothing_*")
	require.NoError(t, err)
	assert.Contains(t, out, "No test cases matched.")

	_, err = execute(t, "test", dir, "--case", "tc_missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandWritesResultsDB(t *testing.T) {
	dir := testutil.WriteSuite(t, "lab", map[string]string{"test.yaml": passingSuite})
	db := filepath.Join(t.TempDir(), "results.db")

	_, err := execute(t, "test", dir, "--db", db, "--filter", "tc_s*")
	require.NoError(t, err)
	assert.FileExists(t, db)
}

func TestTestCommandMissingSuite(t *testing.T) {
	_, err := execute(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, Reported(err))
}
