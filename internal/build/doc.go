// Package build runs an archive assembly: it enumerates inputs, resolves
// each item, writes primary records and lets the derivation engine add
// secondary records.
//
// The Assembler is the sequential core and depends only on a record.Writer.
// DefaultService wires an Assembler from a config.Config: it loads the
// manifest and derivation indexes, initializes detectors, opens the archive
// and the optional item log, and writes the metrics textfile afterwards. All
// execution paths (CLI, tests) should route through Service.
package build
