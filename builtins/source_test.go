package builtins

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource(t *testing.T) {
	h := newShell()
	lib := "greet() { echo hi $1; }\nLIB=ready\n"
	require.Nil(t, afero.WriteFile(h.fs, "/lib.sh", []byte(lib), 0644))

	st := h.run(t, "source /lib.sh\ngreet there\necho $LIB")

	assert.Equal(t, 0, st.Code)
	assert.Equal(t, "hi there\nready\n", h.out.String())
}

func TestDotAlias(t *testing.T) {
	h := newShell()
	require.Nil(t, afero.WriteFile(h.fs, "/lib.sh", []byte("echo sourced\n"), 0644))

	// Relative paths resolve against the working directory.
	st := h.run(t, ". lib.sh")

	assert.Equal(t, 0, st.Code)
	assert.Equal(t, "sourced\n", h.out.String())
}

func TestSourceMissingFile(t *testing.T) {
	h := newShell()
	st := h.run(t, "source /nope.sh")

	assert.Equal(t, 1, st.Code)
	assert.Contains(t, h.errs.String(), "source: ")
}

func TestSourceNoOperand(t *testing.T) {
	h := newShell()
	st := h.run(t, "source")

	assert.Equal(t, 1, st.Code)
	assert.Contains(t, h.errs.String(), "expected exactly one file")
}

func TestSourceSyntaxError(t *testing.T) {
	h := newShell()
	require.Nil(t, afero.WriteFile(h.fs, "/bad.sh", []byte("if true\n"), 0644))

	st := h.run(t, "source /bad.sh\necho after")

	// The broken file fails but the current script continues.
	assert.Equal(t, 0, st.Code)
	assert.Equal(t, "after\n", h.out.String())
	assert.NotEmpty(t, h.errs.String())
}
