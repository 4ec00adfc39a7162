// internal/arch/arch_test.go
package arch

import (
	"bytes"
	"encoding/json"
	"io"
	"os/exec"
	"strings"
	"testing"
)

type pkg struct {
	ImportPath string
	Imports    []string
	Standard   bool
}

func TestImportBoundaries(t *testing.T) {
	cmd := exec.Command("go", "list", "-json", "./...")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		t.Fatalf("go list: %v", err)
	}
	dec := json.NewDecoder(&out)

	apps := []string{
		"seqmap/internal/app", "seqmap/internal/appcore", "seqmap/internal/daemonapp",
		"seqmap/internal/cli", "seqmap/cmd/",
	}
	bans := map[string][]string{
		"seqmap/internal/queue": append([]string{
			"seqmap/internal/notify", "seqmap/internal/daemon", "seqmap/internal/mapping",
		}, apps...),
		"seqmap/internal/notify": append([]string{
			"seqmap/internal/queue", "seqmap/internal/daemon", "seqmap/internal/mapping",
		}, apps...),
		"seqmap/internal/mapper": append([]string{
			"seqmap/internal/mapping", "seqmap/internal/daemon", "seqmap/internal/output",
		}, apps...),
		"seqmap/internal/output": append([]string{
			"seqmap/internal/mapper", "seqmap/internal/mapping", "seqmap/internal/daemon",
		}, apps...),
		"seqmap/internal/mapping": append([]string{
			"seqmap/internal/daemon", "seqmap/internal/notify", "seqmap/internal/queue",
		}, apps...),
		"seqmap/internal/daemon":  apps,
		"seqmap/internal/ledger":  apps,
		"seqmap/internal/metrics": apps,
		"seqmap/internal/gate":    {"seqmap/"},
	}

	var violations []string
	for {
		var p pkg
		if err := dec.Decode(&p); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !strings.HasPrefix(p.ImportPath, "seqmap/") {
			continue
		}
		imp := p.ImportPath
		for prefix, forbidden := range bans {
			if !within(imp, prefix) {
				continue
			}
			for _, dep := range p.Imports {
				if !strings.HasPrefix(dep, "seqmap/") {
					continue
				}
				for _, ban := range forbidden {
					if within(dep, ban) {
						violations = append(violations, imp+" → "+dep)
					}
				}
			}
		}
	}

	if len(violations) > 0 {
		t.Fatalf("import boundary violations:\n  %s", strings.Join(violations, "\n  "))
	}
}

// within reports whether path is pkg or below it. A pkg ending in "/"
// matches by plain prefix.
func within(path, pkg string) bool {
	if strings.HasSuffix(pkg, "/") {
		return strings.HasPrefix(path, pkg)
	}
	return path == pkg || strings.HasPrefix(path, pkg+"/")
}
