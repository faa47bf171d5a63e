package harness

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSubstitutesParams(t *testing.T) {
	got, err := Render(
		"SELECT * FROM ${dataset}.sample WHERE n > ${MIN_N} AND k = '${person_key}'",
		map[string]string{"min_n": "3", "dataset": "ds_mock", "person_key": "abc"},
		nil, "ds_mock", nil,
	)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM ds_mock.sample WHERE n > 3 AND k = 'abc'", got)
}

func TestRenderUnknownParam(t *testing.T) {
	_, err := Render("SELECT ${nope}, ${also}", map[string]string{}, nil, "ds_mock", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownParam))
	assert.Contains(t, err.Error(), "${nope}, ${also}")
	assert.Contains(t, errors.GetAllHints(err), "declare the parameter under query.params in config.yaml")
}

func TestRenderRewritesTitles(t *testing.T) {
	sql := "SELECT a.* FROM `proj.ds_prod.fato_atendimento` a\n" +
		"JOIN proj.ds_prod.fato_atendimento_hist h ON h.id = a.id\n" +
		"JOIN proj.ds_prod.fato_atendimento x ON x.id = a.id\n" +
		"JOIN proj.ref.calendar c ON c.day = a.day"
	titles := []string{
		"proj.ds_prod.fato_atendimento",
		"proj.ds_prod.fato_atendimento",
		"proj.ds_prod.fato_atendimento_hist",
		"proj.ref.calendar",
	}

	got, err := Render(sql, nil, titles, "ds_mock", []string{"proj.ref.calendar"})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT a.* FROM ds_mock.fato_atendimento a\n"+
			"JOIN ds_mock.fato_atendimento_hist h ON h.id = a.id\n"+
			"JOIN ds_mock.fato_atendimento x ON x.id = a.id\n"+
			"JOIN proj.ref.calendar c ON c.day = a.day",
		got)
}

func TestRenderLeavesUnrelatedPrefixes(t *testing.T) {
	got, err := Render("SELECT * FROM proj.ds_prod.sample_v2", nil, []string{"proj.ds_prod.sample"}, "ds_mock", nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM proj.ds_prod.sample_v2", got)
}
