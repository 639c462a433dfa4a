package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertLogged checks that the run logged msg with every given key=value
// attribute on the same line. It expects the text log format.
func AssertLogged(t *testing.T, result *HarnessResult, msg string, attrs ...string) {
	t.Helper()

	for _, line := range strings.Split(result.LogOutput, "\n") {
		if !strings.Contains(line, msg) {
			continue
		}
		found := true
		for _, a := range attrs {
			if !strings.Contains(line, a) {
				found = false
				break
			}
		}
		if found {
			return
		}
	}
	require.Failf(t, "log line not found", "expected a line with %q and %v in:\n%s", msg, attrs, result.LogOutput)
}
