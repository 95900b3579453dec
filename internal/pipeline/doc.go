// Package pipeline implements the record normalization and enrichment engine
// for library checkout data: duplicate elimination, missing-value policy,
// heuristic date repair, derived-field computation and a pre-clean audit,
// sequenced by a Runner that records a stage observation at every boundary.
//
// Every transform is a pure in-memory operation over the loaded records. No
// stage performs I/O, and no stage ever rejects a row for being dirty:
// malformed dates and unidentifiable values become absent markers (nil
// fields) that survive to the output. Only the duplicate and missing-value
// stages are permitted to remove rows.
package pipeline
