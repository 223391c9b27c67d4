package migrations

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ms-booking/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, "./migrations", opts.MigrationsDir)
	assert.True(t, opts.AutoMigrate)
}

func TestNewRunner_DefaultsDir(t *testing.T) {
	r := NewRunner(nil, MigrateOptions{}, logger.Discard())
	assert.Equal(t, DefaultMigrationsDir, r.options.MigrationsDir)
}

func TestInitialize_MissingDir(t *testing.T) {
	r := NewRunner(nil, MigrateOptions{MigrationsDir: filepath.Join(t.TempDir(), "nope")}, logger.Discard())

	err := r.Initialize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrations directory does not exist")
	assert.NoError(t, r.Close())
}

// The shipped migrations must come in up/down pairs.
func TestMigrationFilesArePaired(t *testing.T) {
	entries, err := os.ReadDir(filepath.Join("..", "..", "..", "migrations"))
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}

	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}
