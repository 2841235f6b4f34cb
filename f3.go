// Package f3 is the root of the F3 columnar file format implementation:
// postscript, footer, row-group and column-chunk layout, the reader build
// pipeline, and the sandboxed decoder runtime live in the sibling packages
// documented in each subpackage's own doc comment. This file only carries
// the format-wide constants that every layer needs to agree on.
package f3

// FormatVersion is the current on-disk format version written by this
// module's encoder and accepted by its reader without a compatibility
// shim. Postscripts with a higher version are rejected by
// footer.DecodePostscript.
const FormatVersion = 1

// ModuleVersion is this module's own semantic version, independent of
// FormatVersion. It has no on-disk representation; it exists for
// diagnostics (f3inspect --version, registry compile logs).
const ModuleVersion = "0.1.0"
