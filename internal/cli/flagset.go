package cli

import (
	"flag"
	"fmt"

	"seqmap/internal/version"
)

// NewFlagSet returns a ContinueOnError FlagSet whose usage names the tool
// and its version before the flag list.
func NewFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "%s: %s\n\nVersion: %s\n\nUsage of %s:\n",
			name, describe(name), version.String(), name)
		fs.PrintDefaults()
	}
	return fs
}

func describe(name string) string {
	if name == DaemonName {
		return "map query files as they land in a watched directory"
	}
	return "map query sequences against an indexed reference"
}
