// Package generator provides the random value utility used by templates and
// the person component.
//
// A Generator wraps a seeded gofakeit Faker. Two generators built with the
// same non-zero seed produce the same sequence of values, which is what makes
// mock builds reproducible. Seed 0 selects a random seed.
package generator

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// ErrUnknownHashMode is returned by Hashcode for modes other than SHA1/SHA256.
var ErrUnknownHashMode = errors.New("unknown hash mode")

// UFs lists the Brazilian federative units used by UF and CRM.
var UFs = []string{
	"AC", "AL", "AP", "AM", "BA", "CE", "DF", "ES", "GO", "MA", "MT",
	"MS", "MG", "PA", "PB", "PR", "PE", "PI", "RJ", "RN", "RS", "RO",
	"RR", "SC", "SP", "SE", "TO",
}

// Generator produces pseudo-random values. Not safe for concurrent use;
// each build owns its own Generator.
type Generator struct {
	faker *gofakeit.Faker
}

// New creates a generator seeded with seed (0 means random).
func New(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Int64Range returns a uniform integer in [min, max].
func (g *Generator) Int64Range(min, max int64) int64 {
	if max <= min {
		return min
	}
	return min + g.faker.Rand.Int63n(max-min+1)
}

// Gender returns "M" or "F" with equal probability.
func (g *Generator) Gender() string {
	if g.faker.Bool() {
		return "M"
	}
	return "F"
}

// IDCode returns a numeric identifier with exactly length digits at most
// (leading zeros are lost in the integer form). Length 0 yields a ten digit
// code in [1000000000, 9999999999].
func (g *Generator) IDCode(length int) int64 {
	min, max := idRange(length)
	return g.Int64Range(min, max)
}

// IDCodeString returns a zero-padded identifier of length digits with sep
// inserted before the final check digit.
func (g *Generator) IDCodeString(length int, sep string) string {
	min, max := idRange(length)
	chosen := fmt.Sprintf("%0*d", length, g.Int64Range(min, max))
	return chosen[:len(chosen)-1] + sep + chosen[len(chosen)-1:]
}

func idRange(length int) (int64, int64) {
	if length <= 0 {
		return 1000000000, 9999999999
	}
	if length > 18 {
		length = 18
	}
	return 1, int64(math.Pow10(length)) - 1
}

// CPF returns a CPF number with valid check digits, optionally formatted as
// 000.000.000-00.
func (g *Generator) CPF(formatted bool) string {
	digits := make([]int, 9, 11)
	for i := range digits {
		digits[i] = g.faker.Number(0, 9)
	}
	for range 2 {
		sum := 0
		for i, d := range digits {
			sum += (len(digits) + 1 - i) * d
		}
		check := 0
		if rem := sum % 11; rem > 1 {
			check = 11 - rem
		}
		digits = append(digits, check)
	}

	var sb strings.Builder
	for i, d := range digits {
		if formatted {
			switch i {
			case 3, 6:
				sb.WriteByte('.')
			case 9:
				sb.WriteByte('-')
			}
		}
		sb.WriteByte(byte('0' + d))
	}
	return sb.String()
}

// ValidCPF reports whether an unformatted 11 digit CPF has correct check digits.
func ValidCPF(cpf string) bool {
	if len(cpf) != 11 {
		return false
	}
	digits := make([]int, 11)
	for i, r := range cpf {
		if r < '0' || r > '9' {
			return false
		}
		digits[i] = int(r - '0')
	}
	for n := 9; n <= 10; n++ {
		sum := 0
		for i := 0; i < n; i++ {
			sum += (n + 1 - i) * digits[i]
		}
		check := 0
		if rem := sum % 11; rem > 1 {
			check = 11 - rem
		}
		if digits[n] != check {
			return false
		}
	}
	return true
}

// UF returns a random federative unit.
func (g *Generator) UF() string {
	return g.faker.RandomString(UFs)
}

// CRM returns a fictitious medical council registration: CRM-<UF>-<8 digits>.
func (g *Generator) CRM() string {
	return fmt.Sprintf("CRM-%s-%08d", g.UF(), g.faker.Number(0, 99999999))
}

// Hashcode returns the lowercase hex SHA1 or SHA256 digest of value.
func Hashcode(value, mode string) (string, error) {
	switch strings.ToUpper(mode) {
	case "SHA1":
		sum := sha1.Sum([]byte(value))
		return hex.EncodeToString(sum[:]), nil
	case "SHA256":
		sum := sha256.Sum256([]byte(value))
		return hex.EncodeToString(sum[:]), nil
	}
	return "", errors.Wrapf(ErrUnknownHashMode, "mode %q", mode)
}

// Identifier returns a random (version 4) UUID drawn from the seeded source.
func (g *Generator) Identifier() string {
	return uuid.Must(uuid.NewRandomFromReader(g.faker.Rand)).String()
}

// Boolean returns a random boolean.
func (g *Generator) Boolean() bool {
	return g.faker.Bool()
}

// Choice returns one of options, or "" when options is empty.
func (g *Generator) Choice(options ...string) string {
	if len(options) == 0 {
		return ""
	}
	return g.faker.RandomString(options)
}

// Percentual returns a uniform float in [0, max] rounded to decimals places.
func (g *Generator) Percentual(decimals int, max float64) float64 {
	chosen := g.faker.Float64Range(0, max)
	scale := math.Pow10(decimals)
	return math.Round(chosen*scale) / scale
}

// AccessionNumber returns an exam accession number shaped DDDLLDLLDDDDL
// (D digit, L upper-case letter).
func (g *Generator) AccessionNumber() string {
	const shape = "DDDLLDLLDDDDL"
	var sb strings.Builder
	for _, c := range shape {
		if c == 'D' {
			sb.WriteByte(byte('0' + g.faker.Number(0, 9)))
		} else {
			sb.WriteByte(byte('A' + g.faker.Number(0, 25)))
		}
	}
	return sb.String()
}

// Name returns a fictitious full name.
func (g *Generator) Name() string {
	return g.faker.Name()
}

// BirthdateFromAge returns the birth date of someone aged age at base:
// one year before the anniversary, plus 360 days.
func BirthdateFromAge(age int, base time.Time) time.Time {
	y, m, d := base.Date()
	start := time.Date(y-(age+1), m, d, 0, 0, 0, 0, time.UTC)
	if start.Day() != d {
		// Feb 29 on a non-leap year clamps to Feb 28.
		start = time.Date(y-(age+1), m+1, 0, 0, 0, 0, 0, time.UTC)
	}
	return start.AddDate(0, 0, 360)
}

// AgeFromBirthDate returns completed years between birth and base.
func AgeFromBirthDate(birth, base time.Time) int {
	age := base.Year() - birth.Year()
	if base.Month() < birth.Month() || (base.Month() == birth.Month() && base.Day() < birth.Day()) {
		age--
	}
	return age
}
