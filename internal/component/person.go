// Package component builds the independent value objects shared by every
// event of a case: the person the case is about and nested practitioner
// records.
package component

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/roach88/datamock/internal/generator"
	"github.com/roach88/datamock/internal/ir"
)

// ErrInvalidPerson is returned when the case's person block is malformed.
var ErrInvalidPerson = errors.New("invalid person")

// Person is the patient every event of a case refers to.
type Person struct {
	CIP       int64
	CPF       string
	BirthDate string // YYYY-MM-DD
	Key       string // lowercase SHA-1 of CPF + BirthDate
	Gender    string
	IDCode    string
	Name      string
	Age       int
}

// NewPerson builds a person relative to base. Values declared in tree
// (cpf, age, birth_date, gender, id) win over generated ones; age defaults
// to a random value in [18, 100].
func NewPerson(base time.Time, tree ir.Object, gen *generator.Generator) (*Person, error) {
	p := &Person{CIP: gen.IDCode(10)}

	p.CPF = textOr(tree, "cpf", func() string { return gen.CPF(false) })

	age := int(gen.Int64Range(18, 100))
	if raw, ok := tree["age"]; ok {
		n, isInt := raw.(ir.Int)
		if !isInt {
			return nil, errors.Wrapf(ErrInvalidPerson, "age is not an integer: %s", ir.Text(raw))
		}
		if n <= 0 {
			return nil, errors.Wrapf(ErrInvalidPerson, "age should be greater than zero: %d", n)
		}
		age = int(n)
	}
	p.Age = age

	p.BirthDate = textOr(tree, "birth_date", func() string {
		return generator.BirthdateFromAge(age, base).Format(time.DateOnly)
	})

	key, err := generator.Hashcode(p.CPF+p.BirthDate, "SHA1")
	if err != nil {
		return nil, err
	}
	p.Key = strings.ToLower(key)

	p.Gender = textOr(tree, "gender", gen.Gender)
	p.IDCode = textOr(tree, "id", func() string { return gen.IDCodeString(8, "") })
	return p, nil
}

// textOr returns the declared value for key as text, or fallback() when the
// key is absent or empty.
func textOr(tree ir.Object, key string, fallback func() string) string {
	if s := ir.Text(tree.Get(key)); s != "" {
		return s
	}
	return fallback()
}

// Object renders the person as a record value.
func (p *Person) Object() ir.Object {
	return ir.Object{
		"cip":        ir.Int(p.CIP),
		"cpf":        ir.String(p.CPF),
		"birth_date": ir.String(p.BirthDate),
		"person_key": ir.String(p.Key),
		"gender":     ir.String(p.Gender),
		"idcode":     ir.String(p.IDCode),
		"name":       ir.String(p.Name),
		"age":        ir.Int(p.Age),
	}
}
