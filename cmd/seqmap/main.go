// cmd/seqmap/main.go
package main

import (
	"seqmap/internal/app"
	"seqmap/internal/appshell"
)

func main() { appshell.Main(app.RunContext) }
