// Package core holds the QA report domain: classification rules, report
// assembly, the in-memory state store, aggregation and the wire codec.
//
// It has no knowledge of HTTP, files on disk or storage backends. Parsing
// and persistence are injected into [Service] through [ServiceDeps], so the
// same logic runs behind the web API, the CLI and tests.
//
// # Flow
//
//  1. [Service.Ingest] bounds concurrency with [UploadLimiter] and parses the
//     upload with the injected [Parser].
//  2. [Assembler.Assemble] turns every row into a [PartRecord] classified by
//     [RuleEngine]. Rows without an identifier become invalid placeholder
//     records so the row count of each sheet is preserved.
//  3. The report is added to [StateStore], written through to the local
//     cache and queued for remote upload via [Persister].
//
// # Rules
//
// A part number is checked, in order, for a missing extension, a digit count
// other than ten, characters outside the allowed set, an unrecognized
// prefix and membership in the surface body set. Records without issues are
// [StatusCorrected]; the rest are [StatusPending].
//
// # Wire format
//
// Snapshots carry schemaVersion 2. Snapshots without a version are migrated
// by [MigrateSnapshot]; newer ones are rejected with [ErrUnsupportedSchema].
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError]. Each
// category has its own code range (FILE, UPL, REM, CCH, REC) for support
// reference.
package core
