// Package harness runs mock suites end to end.
//
// For every test case of a suite the harness:
//
//  1. builds the case into datasets (package mocker)
//  2. loads each dataset into the test schema of the sink database
//  3. runs the artefact SQL from config.yaml into the destination table,
//     after substituting ${param} placeholders and rewriting mocked table
//     titles to the test schema
//  4. selects the obtained rows (query.fetch)
//  5. evaluates the case unittests against the obtained rows
//  6. appends the outcome to the builds and unit_results logs
//
// # Unittests
//
// A unittest is named <field>_<assertion>. The supported assertions are:
//
//   - should_be_in_sequence: the field column equals the expected list
//   - should_be_distinct: the field column has no repeated values
//   - should_not_have_datetime_before: no value is earlier than the expected
//     YYYY-MM-DD HH:MM:SS timestamp
//   - should_have_on_array_length_sequence: per-row lengths of an array
//     column (dotted paths descend into nested records) equal the expected list
//
// Rows with valid_record = false are ignored, except when the asserted field
// is valid_record itself or the assertion counts array lengths.
package harness
