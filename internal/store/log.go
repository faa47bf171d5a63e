package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/roach88/datamock/internal/ir"
)

// Build statuses.
const (
	StatusPassed = "passed"
	StatusFailed = "failed"
	StatusError  = "error"
)

// BuildRecord is one row of the builds log.
type BuildRecord struct {
	ID        string
	Suite     string
	Testcase  string
	PersonKey string
	BaseDate  string
	Status    string
	Duration  time.Duration
	Hash      string // content hash of the generated datasets
	Message   string
	Seq       int64 // assigned on write, increasing per database
}

// UnitResult is one evaluated unittest of a build.
type UnitResult struct {
	BuildID  string
	Name     string
	Expected ir.Value
	Obtained ir.Value
	Passed   bool
	Message  string
}

// WriteBuild appends a build record. Seq is assigned by the database as
// one more than the highest seq written so far.
func (s *Store) WriteBuild(ctx context.Context, b BuildRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO builds
		(id, suite, testcase, person_key, base_date, status, duration_ms, hash, message, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM builds))
	`,
		b.ID,
		b.Suite,
		b.Testcase,
		b.PersonKey,
		b.BaseDate,
		b.Status,
		b.Duration.Milliseconds(),
		b.Hash,
		b.Message,
	)
	if err != nil {
		return errors.Wrap(err, "write build")
	}
	return nil
}

// WriteUnitResult appends one unittest outcome. Expected and obtained
// values are stored as canonical JSON.
//
// Note: The build referenced by BuildID must exist (foreign key constraint).
func (s *Store) WriteUnitResult(ctx context.Context, r UnitResult) error {
	expected, err := marshalValue(r.Expected)
	if err != nil {
		return errors.Wrap(err, "write unit result")
	}
	obtained, err := marshalValue(r.Obtained)
	if err != nil {
		return errors.Wrap(err, "write unit result")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO unit_results (build_id, name, expected, obtained, passed, message)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.BuildID, r.Name, expected, obtained, r.Passed, r.Message)
	if err != nil {
		return errors.Wrap(err, "write unit result")
	}
	return nil
}

// ReadBuilds returns the builds of one case in write order.
func (s *Store) ReadBuilds(ctx context.Context, suite, testcase string) ([]BuildRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, suite, testcase, person_key, base_date, status, duration_ms, hash, message, seq
		FROM builds
		WHERE suite = ? AND testcase = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, suite, testcase)
	if err != nil {
		return nil, errors.Wrap(err, "query builds")
	}
	defer rows.Close()

	builds := []BuildRecord{}
	for rows.Next() {
		var b BuildRecord
		var ms int64
		if err := rows.Scan(&b.ID, &b.Suite, &b.Testcase, &b.PersonKey, &b.BaseDate,
			&b.Status, &ms, &b.Hash, &b.Message, &b.Seq); err != nil {
			return nil, errors.Wrap(err, "scan build")
		}
		b.Duration = time.Duration(ms) * time.Millisecond
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate builds")
	}
	return builds, nil
}

// ReadUnitResults returns the unittest outcomes of a build in write order.
func (s *Store) ReadUnitResults(ctx context.Context, buildID string) ([]UnitResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT build_id, name, expected, obtained, passed, message
		FROM unit_results
		WHERE build_id = ?
		ORDER BY id ASC
	`, buildID)
	if err != nil {
		return nil, errors.Wrap(err, "query unit results")
	}
	defer rows.Close()

	results := []UnitResult{}
	for rows.Next() {
		var r UnitResult
		var expected, obtained string
		if err := rows.Scan(&r.BuildID, &r.Name, &expected, &obtained, &r.Passed, &r.Message); err != nil {
			return nil, errors.Wrap(err, "scan unit result")
		}
		if r.Expected, err = ir.ParseJSON([]byte(expected)); err != nil {
			return nil, errors.Wrapf(err, "decode expected of %s", r.Name)
		}
		if r.Obtained, err = ir.ParseJSON([]byte(obtained)); err != nil {
			return nil, errors.Wrapf(err, "decode obtained of %s", r.Name)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate unit results")
	}
	return results, nil
}

func marshalValue(v ir.Value) (string, error) {
	if v == nil {
		v = ir.Null{}
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
