package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.Nil(t, Init(fsys, "/etc/marlin"))

	// The written profile must load and validate as-is.
	p, err := Load(fsys, "/etc/marlin")
	require.Nil(t, err)
	assert.Equal(t, Default(), p)

	// A second init must not clobber it.
	assert.NotNil(t, Init(fsys, "/etc/marlin"))
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.Nil(t, afero.WriteFile(fsys, "/etc/marlin/profile.yaml",
		[]byte("prompt: '$ '\nhistroy_size: 10\n"), 0644))

	_, err := Load(fsys, "/etc/marlin")
	assert.NotNil(t, err)
}
