// Package rules provides a declarative partition.Scanner built from a
// language definition.
//
// A definition names a root type and a set of regions. A region starts at
// a begin delimiter and ends after its end delimiter, at the end of the
// line (eol), or at the end of the buffer when neither is found. Regions
// may nest other regions; text of a container not covered by a nested
// region is either left to the container or covered by explicit fill
// nodes when the container names a fill type.
//
// Definitions load from TOML or YAML:
//
//	name = "c"
//	extensions = [".c", ".h"]
//	root = "C_DOCUMENT"
//	fill = "C_CODE"
//
//	[[regions]]
//	type = "COMMENT"
//	content = "comment"
//	begin = "/*"
//	end = "*/"
//
// A Registry maps language names and file extensions to compiled
// scanners. DefaultRegistry holds the built-in definitions.
package rules
