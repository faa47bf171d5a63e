package template

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datamock/internal/component"
	"github.com/roach88/datamock/internal/generator"
	"github.com/roach88/datamock/internal/ir"
)

func constant(fields ir.Object) Factory {
	return func(Input) (ir.Object, error) { return fields.Clone(), nil }
}

func registryOf(t *testing.T, names ...string) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, name := range names {
		require.NoError(t, r.Register(name, constant(ir.Object{"name": ir.String(name)})))
	}
	return r
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("fato_exame", "fato_exame"))
	assert.Equal(t, 1.0, Similarity("exame_fato", "fato_exame"))
	assert.InDelta(t, 2.0/3.0, Similarity("fato_exame_lab", "fato_exame"), 1e-9)
	assert.InDelta(t, 0.25, Similarity("fato_exame_lab", "fato_laboratorio"), 1e-9)
	assert.Equal(t, 0.0, Similarity("patient_exam", "sample"))
}

func TestMatchPrefersHigherOverlap(t *testing.T) {
	r := registryOf(t, "fato_laboratorio", "fato_exame")

	m, err := r.Match("fato_exame_lab")
	require.NoError(t, err)
	assert.Equal(t, "fato_exame", m.Template.Name)
	assert.InDelta(t, 2.0/3.0, m.Score, 1e-9)
}

func TestMatchTieGoesToFirstRegistered(t *testing.T) {
	r := registryOf(t, "alpha_x", "alpha_y")

	m, err := r.Match("alpha_z")
	require.NoError(t, err)
	assert.Equal(t, "alpha_x", m.Template.Name)

	r = registryOf(t, "alpha_y", "alpha_x")
	m, err = r.Match("alpha_z")
	require.NoError(t, err)
	assert.Equal(t, "alpha_y", m.Template.Name)
}

func TestMatchExactNameWinsOverSameTokenSet(t *testing.T) {
	r := registryOf(t, "lab_exam", "exam_lab")

	m, err := r.Match("exam_lab")
	require.NoError(t, err)
	assert.Equal(t, "exam_lab", m.Template.Name)
	assert.Equal(t, 1.0, m.Score)
}

func TestMatchAlwaysReturnsSomething(t *testing.T) {
	m, err := Default().Match("patient_exam")
	require.NoError(t, err)
	assert.Equal(t, "sample", m.Template.Name)
	assert.Equal(t, 0.0, m.Score)
}

func TestMatchEmptyRegistry(t *testing.T) {
	_, err := NewRegistry().Match("anything")
	assert.True(t, errors.Is(err, ErrEmptyRegistry))
}

func TestDefaultTieBetweenExamTemplates(t *testing.T) {
	// fato_exame_lab overlaps fato_producao_exame and fato_exame_laboratorio
	// equally (2 of 4 tokens); registration order decides.
	m, err := Default().Match("fato_exame_lab")
	require.NoError(t, err)
	assert.Equal(t, "fato_producao_exame", m.Template.Name)
	assert.Equal(t, 0.5, m.Score)
}

func TestScoresSortedStable(t *testing.T) {
	r := registryOf(t, "a_b", "c", "a_c", "a")

	scores := r.Scores("a")
	require.Len(t, scores, 4)
	assert.Equal(t, Score{Name: "a", Score: 1}, scores[0])
	assert.Equal(t, "a_b", scores[1].Name)
	assert.Equal(t, "a_c", scores[2].Name)
	assert.Equal(t, Score{Name: "c", Score: 0}, scores[3])
}

func TestRegisterErrors(t *testing.T) {
	r := registryOf(t, "sample")

	err := r.Register("sample", constant(nil))
	assert.True(t, errors.Is(err, ErrDuplicateTemplate))
	assert.Error(t, r.Register("", constant(nil)))
	assert.Error(t, r.Register("nil_factory", nil))
	assert.Panics(t, func() { r.MustRegister("sample", constant(nil)) })
	assert.Equal(t, []string{"sample"}, r.Names())
}

func TestDefaultNames(t *testing.T) {
	assert.Equal(t, []string{
		"sample", "dim_paciente", "fato_atendimento", "fato_producao_exame", "fato_exame_laboratorio",
	}, Default().Names())
}

func TestInstantiateAddsReservedFields(t *testing.T) {
	tpl, ok := Default().Lookup("sample")
	require.True(t, ok)

	in := Input{
		Tree: ir.Object{
			"my_string":  ir.String("x"),
			"my_integer": ir.Int(5),
			"interval2":  ir.String("2024-01-10 00:00:00"),
		},
		Gen: generator.New(1),
	}

	entity, err := tpl.Instantiate(in, "project.dataset.sample", "sample")
	require.NoError(t, err)

	snap := entity.Snapshot()
	assert.Equal(t, ir.Object{
		"my_string":   ir.String("x"),
		"my_datetime": ir.String("2024-01-10 00:00:00"),
		"my_integer":  ir.Int(5),
		"interval":    ir.String("2024-01-10 00:00:00"),
		"main_name":   ir.String("project.dataset.sample"),
		"table_name":  ir.String("sample"),
	}, snap)

	snap["my_string"] = ir.String("changed")
	assert.Equal(t, ir.String("x"), entity.Fields["my_string"])
}

func TestInstantiateRejectsReservedFields(t *testing.T) {
	tpl := Template{Name: "bad", Build: constant(ir.Object{"table_name": ir.String("x")})}

	_, err := tpl.Instantiate(Input{Tree: ir.Object{}}, "a.b.bad", "bad")
	assert.True(t, errors.Is(err, ErrReservedField))
}

func TestBuiltinsInherit(t *testing.T) {
	gen := generator.New(3)
	person, err := component.NewPerson(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), nil, gen)
	require.NoError(t, err)

	reg := Default()
	tree := ir.Object{"interval2": ir.String("2024-01-10 00:00:00")}

	visit, _ := reg.Lookup("fato_atendimento")
	parent, err := visit.Instantiate(Input{Tree: tree, Person: person, Gen: gen}, "p.d.fato_atendimento", "fato_atendimento")
	require.NoError(t, err)
	parentSnap := parent.Snapshot()

	exam, _ := reg.Lookup("fato_producao_exame")
	child, err := exam.Instantiate(Input{Tree: tree, Person: person, Parent: parentSnap, Gen: gen}, "p.d.fato_producao_exame", "fato_producao_exame")
	require.NoError(t, err)

	assert.Equal(t, parentSnap["id_atendimento"], child.Fields["id_atendimento"])
	assert.Equal(t, ir.String(person.Key), child.Fields["person_key"])
	assert.Equal(t, ir.Bool(true), child.Fields["valid_record"])
	assert.IsType(t, ir.Object{}, child.Fields["practitioner"])
}

func TestBuiltinsPreferDeclaredValues(t *testing.T) {
	gen := generator.New(3)
	tree := ir.Object{
		"interval2":    ir.String("2024-01-10 00:00:00"),
		"nm_analito":   ir.String("GLICOSE"),
		"vl_resultado": ir.Float(99.5),
		"valid_record": ir.Bool(false),
	}

	lab, _ := Default().Lookup("fato_exame_laboratorio")
	entity, err := lab.Instantiate(Input{Tree: tree, Gen: gen}, "p.d.fato_exame_laboratorio", "fato_exame_laboratorio")
	require.NoError(t, err)

	assert.Equal(t, ir.String("GLICOSE"), entity.Fields["nm_analito"])
	assert.Equal(t, ir.Float(99.5), entity.Fields["vl_resultado"])
	assert.Equal(t, ir.Bool(false), entity.Fields["valid_record"])
	assert.Equal(t, ir.Null{}, entity.Fields["person_key"])
}
