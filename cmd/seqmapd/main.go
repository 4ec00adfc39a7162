// cmd/seqmapd/main.go
package main

import (
	"seqmap/internal/appshell"
	"seqmap/internal/daemonapp"
)

func main() { appshell.Main(daemonapp.RunContext) }
