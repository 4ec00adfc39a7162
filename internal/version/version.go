// Package version carries build identification. Release builds override
// these with -ldflags "-X seqmap/internal/version.Version=...".
package version

var (
	Version   = "0.4.0"
	BuildDate = ""
)

// String is the version as shown in headers and --version output.
func String() string {
	if BuildDate == "" {
		return Version
	}
	return Version + " (" + BuildDate + ")"
}
