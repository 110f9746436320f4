package builtins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitAssign(t *testing.T) {
	name, value, ok := splitAssign("A=1")
	assert.True(t, ok)
	assert.Equal(t, "A", name)
	assert.Equal(t, "1", value)

	name, value, ok = splitAssign("A=a=b")
	assert.True(t, ok)
	assert.Equal(t, "A", name)
	assert.Equal(t, "a=b", value)

	name, _, ok = splitAssign("BARE")
	assert.False(t, ok)
	assert.Equal(t, "BARE", name)
}

func TestExport(t *testing.T) {
	h := newShell()
	st := h.run(t, "export A=1")
	require.Equal(t, 0, st.Code)

	assert.True(t, h.ev.Scope.IsExported("A"))
	assert.Equal(t, "1", h.ev.Scope.Get("A"))
}

func TestExportExistingVariable(t *testing.T) {
	h := newShell()
	h.run(t, "B=2\nexport B")

	assert.Equal(t, []string{"B=2"}, h.ev.Scope.Environ())
}

func TestExportList(t *testing.T) {
	h := newShell()
	h.run(t, "export B=2 A=1\nexport")

	assert.Equal(t, "export A=1\nexport B=2\n", h.out.String())
}

func TestExportRemove(t *testing.T) {
	h := newShell()
	h.run(t, "export A=1\nexport -n A")

	assert.False(t, h.ev.Scope.IsExported("A"))
	// The variable itself survives.
	assert.Equal(t, "1", h.ev.Scope.Get("A"))
}

func TestUnset(t *testing.T) {
	h := newShell()
	h.run(t, "x=5\nunset x\necho [$x]")

	assert.Equal(t, "[]\n", h.out.String())
	_, ok := h.ev.Scope.Lookup("x")
	assert.False(t, ok)
}

func TestLocal(t *testing.T) {
	h := newShell()
	st := h.run(t, `x=outer
f() { local x=inner; echo $x; }
f
echo $x`)

	assert.Equal(t, 0, st.Code)
	assert.Equal(t, "inner\nouter\n", h.out.String())
}

func TestLocalOutsideFunction(t *testing.T) {
	h := newShell()
	st := h.run(t, "local x=1")

	assert.Equal(t, 1, st.Code)
	assert.Contains(t, h.errs.String(), "can only be used in a function")
}
