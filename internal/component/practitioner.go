package component

import (
	"github.com/roach88/datamock/internal/generator"
	"github.com/roach88/datamock/internal/ir"
)

// Practitioner is the physician nested inside attendance and exam records.
type Practitioner struct {
	ID   int64
	Doc  string // CRM-UF-00000000
	Name string
	CPF  string
}

// NewPractitioner generates a practitioner.
func NewPractitioner(gen *generator.Generator) Practitioner {
	return Practitioner{
		ID:   gen.IDCode(8),
		Doc:  gen.CRM(),
		Name: gen.Name(),
		CPF:  gen.CPF(false),
	}
}

// Object renders the practitioner as a nested record.
func (p Practitioner) Object() ir.Object {
	return ir.Object{
		"id_practitioner":   ir.Int(p.ID),
		"doc_practitioner":  ir.String(p.Doc),
		"name_practitioner": ir.String(p.Name),
		"cpf_practitioner":  ir.String(p.CPF),
	}
}
