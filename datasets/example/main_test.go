package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("t,i,j,p,vx,vy,alpha\n")
	for ts := 0; ts < 5; ts++ {
		for i := 0; i < 2; i++ {
			for j := 0; j < 3; j++ {
				fmt.Fprintf(&b, "%d,%d,%d,%d,0,0,1\n", ts, i, j, ts+i+j)
			}
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "sim.csv"), []byte(b.String()), 0644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	var out bytes.Buffer
	if err := run(&out, filepath.Join(dir, "*.csv"), 2); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if !strings.Contains(out.String(), "Frames: 5, grid: 2x3, depth: 2, samples: 4") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}

	if err := run(&out, filepath.Join(dir, "missing", "*.csv"), 2); err == nil {
		t.Fatalf("expected error for an empty pattern")
	}
}
