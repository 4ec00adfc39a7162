// internal/output/header.go
package output

import (
	"strconv"

	"seqmap-core/engine"
)

// Reference describes the indexed sequences listed in the header.
type Reference interface {
	NumSequences() int
	Header(i int) string
	Length(i int) int
}

// HeaderOptions controls the program line and reference naming.
//
// Verbosity 1 redacts the command line and version from the program line;
// Verbosity 4 and above keeps full reference headers instead of cutting
// them at the first whitespace.
type HeaderOptions struct {
	Program     string
	Version     string
	BuildDate   string
	CommandLine string
	Verbosity   int
}

// FullNames reports whether reference names keep their whole header.
func (o HeaderOptions) FullNames() bool { return o.Verbosity >= 4 }

// SAMHeader returns the header lines, without trailing newlines: one @HD,
// one @SQ per reference in index order, then one @PG.
func SAMHeader(ref Reference, o HeaderOptions) []string {
	prog := o.Program
	if prog == "" {
		prog = "seqmap"
	}
	lines := make([]string, 0, ref.NumSequences()+2)
	lines = append(lines, "@HD\tVN:1.0\tSO:unknown")
	for i := 0; i < ref.NumSequences(); i++ {
		name := engine.ReferenceName(ref.Header(i), o.FullNames())
		lines = append(lines, "@SQ\tSN:"+name+"\tLN:"+strconv.Itoa(ref.Length(i)))
	}
	pg := "@PG\tID:" + prog + "\tPN:" + prog
	if o.Verbosity != 1 {
		pg += "\tCL:" + o.CommandLine + "\tVN:" + o.Version
		if o.BuildDate != "" {
			pg += " compiled on " + o.BuildDate
		}
	}
	return append(lines, pg)
}
