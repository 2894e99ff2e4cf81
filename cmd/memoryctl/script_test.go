package main

import (
	"context"
	"io"
	"os"
	"testing"

	"rsc.io/script"
	"rsc.io/script/scripttest"

	"github.com/untoldecay/semanticmemory/internal/validate"
)

// TestScripts runs the testdata/*.txt script files with rsc.io/script in a throwaway
// working directory. The engine carries only the package's default commands and
// conditions; memoryctl itself is not registered as a script command, so the scripts
// check fixture files and do not invoke memoryctl subcommands.
func TestScripts(t *testing.T) {
	engine := &script.Engine{
		Cmds:  script.DefaultCmds(),
		Conds: script.DefaultConds(),
	}
	env := os.Environ()
	scripttest.Test(t, context.Background(), engine, env, "testdata/*.txt")
}

// TestValidateKindCoverage is a sanity check that every Kind the validate subcommand's
// --kind flag documents actually dispatches, so the script tests above and the flag's
// help text don't silently drift apart.
func TestValidateKindCoverage(t *testing.T) {
	kinds := []validate.Kind{
		validate.KindDispatch, validate.KindComplete, validate.KindPostExecution,
		validate.KindLockTable, validate.KindWatchdog,
	}
	for _, k := range kinds {
		if _, err := validate.Run(k, strEmptyReader{}); err != nil {
			t.Errorf("Run(%q, empty) returned a dispatch error, want a denied Result: %v", k, err)
		}
	}
}

type strEmptyReader struct{}

func (strEmptyReader) Read(p []byte) (int, error) { return 0, io.EOF }
