package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/seqcore/internal/config"
	"github.com/vk/seqcore/internal/hcl_adapter"
	"github.com/vk/seqcore/internal/sequence"
)

// LoadHCL loads a single HCL document through the HCL adapter and builds
// the sequence library from it.
func LoadHCL(t *testing.T, src string) (*sequence.Library, config.Converter) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "main.hcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	model, conv, err := hcl_adapter.NewLoader().Load(Context(), path)
	require.NoError(t, err)

	lib, err := sequence.FromConfig(model)
	require.NoError(t, err)
	return lib, conv
}
