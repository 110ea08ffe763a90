package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/fenilmodi00/ipo-scorecard/config"
	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandNamesAreUnique(t *testing.T) {
	names := map[string]bool{}
	for _, c := range commands {
		assert.False(t, names[c.Name()], c.Name())
		names[c.Name()] = true
		assert.NotEmpty(t, c.Synopsis())
		assert.NotEmpty(t, c.Usage())
	}
	assert.Equal(t, map[string]bool{"find-missing": true, "process-pending": true, "check": true}, names)
}

func TestConfigFromPrefersPassedConfig(t *testing.T) {
	cfg := &config.Config{DataFile: "custom.json"}
	assert.Same(t, cfg, configFrom([]interface{}{"noise", cfg}))
	assert.NotNil(t, configFrom(nil))
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "valid.json")
	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(valid, []byte(`[{"ticker":"RDDT","name":"Reddit","ipo_date":"2024-03-21","ipo_price":34,"exchange":"NYSE","sector":"Tech"}]`), 0o644))
	require.NoError(t, os.WriteFile(invalid, []byte(`[{"ticker":"RDDT","ipo_date":"2024-03-21"}]`), 0o644))

	cmd := &checkCmd{}
	flags := flag.NewFlagSet("check", flag.ContinueOnError)

	assert.Equal(t, subcommands.ExitSuccess, cmd.Execute(context.Background(), flags, &config.Config{DataFile: valid}))
	assert.Equal(t, subcommands.ExitFailure, cmd.Execute(context.Background(), flags, &config.Config{DataFile: invalid}))
}
