package template

import (
	"github.com/roach88/datamock/internal/component"
	"github.com/roach88/datamock/internal/ir"
)

// Default returns a registry holding the built-in templates, in this order:
// sample, dim_paciente, fato_atendimento, fato_producao_exame,
// fato_exame_laboratorio.
func Default() *Registry {
	return NewRegistry().
		MustRegister("sample", sample).
		MustRegister("dim_paciente", dimPaciente).
		MustRegister("fato_atendimento", fatoAtendimento).
		MustRegister("fato_producao_exame", fatoProducaoExame).
		MustRegister("fato_exame_laboratorio", fatoExameLaboratorio)
}

// declared returns the tree value for key when present and not null.
func declared(in Input, key string) (ir.Value, bool) {
	v, ok := in.Tree[key]
	if !ok || ir.IsNull(v) {
		return nil, false
	}
	return v, true
}

// pick prefers the declared value, then fallback.
func pick(in Input, key string, fallback func() ir.Value) ir.Value {
	if v, ok := declared(in, key); ok {
		return ir.Clone(v)
	}
	return fallback()
}

// inherit prefers the declared value, then the parent's, then fallback.
func inherit(in Input, key string, fallback func() ir.Value) ir.Value {
	if v, ok := declared(in, key); ok {
		return ir.Clone(v)
	}
	if v, ok := in.Parent[key]; ok && !ir.IsNull(v) {
		return ir.Clone(v)
	}
	return fallback()
}

func null() ir.Value { return ir.Null{} }

func personField(in Input, key string) func() ir.Value {
	return func() ir.Value {
		if in.Person == nil {
			return ir.Null{}
		}
		return in.Person.Object().Get(key)
	}
}

func validRecord(in Input) ir.Value {
	return pick(in, "valid_record", func() ir.Value { return ir.Bool(true) })
}

func eventDate(in Input) ir.Value {
	return ir.Clone(in.Tree.Get("interval2"))
}

func sample(in Input) (ir.Object, error) {
	return ir.Object{
		"my_string":   pick(in, "my_string", null),
		"my_datetime": eventDate(in),
		"my_integer":  pick(in, "my_integer", null),
	}, nil
}

func dimPaciente(in Input) (ir.Object, error) {
	fields := ir.Object{
		"dt_atualizacao": eventDate(in),
		"valid_record":   validRecord(in),
	}
	for _, key := range []string{"person_key", "cip", "cpf", "birth_date", "gender", "idcode", "name", "age"} {
		fields[key] = pick(in, key, personField(in, key))
	}
	return fields, nil
}

func fatoAtendimento(in Input) (ir.Object, error) {
	return ir.Object{
		"id_atendimento": pick(in, "id_atendimento", func() ir.Value { return ir.Int(in.Gen.IDCode(10)) }),
		"person_key":     pick(in, "person_key", personField(in, "person_key")),
		"dt_atendimento": eventDate(in),
		"tipo_atendimento": pick(in, "tipo_atendimento", func() ir.Value {
			return ir.String(in.Gen.Choice("AMBULATORIAL", "EMERGENCIA", "INTERNACAO"))
		}),
		"uf":           pick(in, "uf", func() ir.Value { return ir.String(in.Gen.UF()) }),
		"practitioner": pick(in, "practitioner", func() ir.Value { return component.NewPractitioner(in.Gen).Object() }),
		"exames":       pick(in, "exames", func() ir.Value { return ir.List{} }),
		"valid_record": validRecord(in),
	}, nil
}

func fatoProducaoExame(in Input) (ir.Object, error) {
	return ir.Object{
		"id_exame":         pick(in, "id_exame", func() ir.Value { return ir.Int(in.Gen.IDCode(10)) }),
		"accession_number": pick(in, "accession_number", func() ir.Value { return ir.String(in.Gen.AccessionNumber()) }),
		"id_atendimento":   inherit(in, "id_atendimento", null),
		"person_key":       inherit(in, "person_key", personField(in, "person_key")),
		"dt_exame":         eventDate(in),
		"nm_exame": pick(in, "nm_exame", func() ir.Value {
			return ir.String(in.Gen.Choice("HEMOGRAMA", "RAIO-X TORAX", "TOMOGRAFIA", "ULTRASSOM"))
		}),
		"practitioner": pick(in, "practitioner", func() ir.Value { return component.NewPractitioner(in.Gen).Object() }),
		"valid_record": validRecord(in),
	}, nil
}

func fatoExameLaboratorio(in Input) (ir.Object, error) {
	return ir.Object{
		"id_resultado":     pick(in, "id_resultado", func() ir.Value { return ir.String(in.Gen.Identifier()) }),
		"id_exame":         inherit(in, "id_exame", func() ir.Value { return ir.Int(in.Gen.IDCode(10)) }),
		"accession_number": inherit(in, "accession_number", func() ir.Value { return ir.String(in.Gen.AccessionNumber()) }),
		"person_key":       inherit(in, "person_key", personField(in, "person_key")),
		"dt_resultado":     eventDate(in),
		"nm_analito": pick(in, "nm_analito", func() ir.Value {
			return ir.String(in.Gen.Choice("HEMOGLOBINA", "GLICOSE", "CREATININA", "COLESTEROL"))
		}),
		"vl_resultado": pick(in, "vl_resultado", func() ir.Value { return ir.Float(in.Gen.Percentual(2, 100)) }),
		"unidade":      pick(in, "unidade", func() ir.Value { return ir.String(in.Gen.Choice("g/dL", "mg/dL")) }),
		"valid_record": validRecord(in),
	}, nil
}
