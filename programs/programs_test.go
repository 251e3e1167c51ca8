package programs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/switchbot/pkg/program"
)

func TestRegister(t *testing.T) {
	catalog := program.NewCatalog()
	require.NoError(t, Register(catalog, Config{OutputDir: t.TempDir()}))
	assert.Equal(t, []string{"Test Program", "BDSP Soft Resetter"}, catalog.Names())

	built, err := catalog.Build(nil)
	require.NoError(t, err)
	require.Len(t, built, 2)

	assert.Error(t, Register(catalog, Config{}), "names are unique")
}
