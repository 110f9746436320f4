package expand

import (
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marlinsh/marlin/core/ast"
	"github.com/marlinsh/marlin/core/lex"
	"github.com/marlinsh/marlin/core/variables"
)

// word lexes src into a single unexpanded word.
func word(t *testing.T, src string) ast.Word {
	t.Helper()
	toks, err := lex.Tokens(src)
	require.Nil(t, err)
	require.Equal(t, lex.Word, toks[0].Kind)
	return ast.Word{Pos: toks[0].Pos, Frags: toks[0].Frags}
}

func newExpander(vars map[string]variables.Value) *Expander {
	scope := variables.NewScope()
	for k, v := range vars {
		scope.Set(k, v)
	}
	return &Expander{Scope: scope}
}

func TestExpandWord(t *testing.T) {
	cases := map[string]struct {
		src  string
		vars map[string]variables.Value
		want []string
	}{
		"plain": {
			src:  `abc`,
			want: []string{"abc"},
		},
		"variable": {
			src:  `$x`,
			vars: map[string]variables.Value{"x": variables.Scalar("hello")},
			want: []string{"hello"},
		},
		"word splitting": {
			src:  `$x`,
			vars: map[string]variables.Value{"x": variables.Scalar(" a b  c ")},
			want: []string{"a", "b", "c"},
		},
		"quoted suppresses splitting": {
			src:  `"$x"`,
			vars: map[string]variables.Value{"x": variables.Scalar("a b")},
			want: []string{"a b"},
		},
		"split merges with prefix": {
			src:  `pre$x`,
			vars: map[string]variables.Value{"x": variables.Scalar("a b")},
			want: []string{"prea", "b"},
		},
		"unset vanishes": {
			src:  `$missing`,
			want: nil,
		},
		"empty quotes survive": {
			src:  `""`,
			want: []string{""},
		},
		"single quotes are literal": {
			src:  `'$x'`,
			vars: map[string]variables.Value{"x": variables.Scalar("no")},
			want: []string{"$x"},
		},
		"braced name": {
			src:  `${x}y`,
			vars: map[string]variables.Value{"x": variables.Scalar("a")},
			want: []string{"ay"},
		},
		"array splices": {
			src:  `$xs`,
			vars: map[string]variables.Value{"xs": variables.Array([]string{"p", "q"})},
			want: []string{"p", "q"},
		},
		"quoted array joins": {
			src:  `"$xs"`,
			vars: map[string]variables.Value{"xs": variables.Array([]string{"p", "q"})},
			want: []string{"p q"},
		},
		"array length": {
			src:  `${#xs}`,
			vars: map[string]variables.Value{"xs": variables.Array([]string{"p", "q", "r"})},
			want: []string{"3"},
		},
		"scalar length is bytes": {
			src:  `${#x}`,
			vars: map[string]variables.Value{"x": variables.Scalar("hello")},
			want: []string{"5"},
		},
		"brace alternation": {
			src:  `{a,b}c`,
			want: []string{"ac", "bc"},
		},
		"brace range": {
			src:  `img{1..3}`,
			want: []string{"img1", "img2", "img3"},
		},
		"reverse range": {
			src:  `{3..1}`,
			want: []string{"3", "2", "1"},
		},
		"nested braces": {
			src:  `{a,b{1,2}}`,
			want: []string{"a", "b1", "b2"},
		},
		"quoted braces are literal": {
			src:  `"{a,b}"`,
			want: []string{"{a,b}"},
		},
		"lone dollar is literal": {
			src:  `a$`,
			want: []string{"a$"},
		},
		"arithmetic": {
			src:  `$((1 + 2 * 3))`,
			want: []string{"7"},
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			got, err := newExpander(tc.vars).ExpandWord(word(t, tc.src))
			require.Nil(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSpecialParameters(t *testing.T) {
	e := newExpander(nil)
	e.LastStatus = 3
	e.Name = "script.sh"
	e.Args = []string{"first", "second two"}

	cases := map[string]struct {
		src  string
		want []string
	}{
		"status":         {`$?`, []string{"3"}},
		"count":          {`$#`, []string{"2"}},
		"name":           {`$0`, []string{"script.sh"}},
		"positional":     {`$1`, []string{"first"}},
		"splits unless quoted": {`$2`, []string{"second", "two"}},
		"quoted positional":    {`"$2"`, []string{"second two"}},
		"out of range":         {`$9`, nil},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			got, err := e.ExpandWord(word(t, tc.src))
			require.Nil(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAtSplicesQuoted(t *testing.T) {
	e := newExpander(nil)
	e.Args = []string{"a b", "c"}

	got, err := e.ExpandWord(word(t, `"$@"`))
	require.Nil(t, err)
	assert.Equal(t, []string{"a b", "c"}, got)

	got, err = e.ExpandWord(word(t, `$@`))
	require.Nil(t, err)
	assert.Equal(t, []string{"a b", "c"}, got)
}

func TestStrictUnbound(t *testing.T) {
	e := newExpander(nil)
	e.Strict = true

	_, err := e.ExpandWord(word(t, `$missing`))
	require.NotNil(t, err)

	var uerr *UnboundVariableError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "missing", uerr.Name)
}

func TestGlob(t *testing.T) {
	fsys := afero.NewMemMapFs()
	for _, name := range []string{"/work/a.txt", "/work/b.txt", "/work/c.md"} {
		require.Nil(t, afero.WriteFile(fsys, name, nil, 0644))
	}

	e := newExpander(nil)
	e.Fs = fsys
	e.Dir = "/work"

	got, err := e.ExpandWord(word(t, `*.txt`))
	require.Nil(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, got)

	// No match keeps the pattern literally.
	got, err = e.ExpandWord(word(t, `*.zip`))
	require.Nil(t, err)
	assert.Equal(t, []string{"*.zip"}, got)

	// Quoting disables matching.
	got, err = e.ExpandWord(word(t, `"*.txt"`))
	require.Nil(t, err)
	assert.Equal(t, []string{"*.txt"}, got)

	// Malformed patterns stay literal too, so "[" survives as a word.
	got, err = e.ExpandWord(word(t, `[`))
	require.Nil(t, err)
	assert.Equal(t, []string{"["}, got)

	got, err = e.ExpandWord(word(t, `a[0-9.txt`))
	require.Nil(t, err)
	assert.Equal(t, []string{"a[0-9.txt"}, got)
}

func TestCommandSubstitution(t *testing.T) {
	e := newExpander(nil)
	e.Capture = func(src string) (string, error) {
		assert.Equal(t, "emit", src)
		return "one two\n", nil
	}

	// Exactly one trailing newline is stripped, then normal word
	// splitting applies.
	got, err := e.ExpandWord(word(t, `$(emit)`))
	require.Nil(t, err)
	assert.Equal(t, []string{"one", "two"}, got)

	got, err = e.ExpandWord(word(t, `"$(emit)"`))
	require.Nil(t, err)
	assert.Equal(t, []string{"one two"}, got)
}

func TestCommandSubstitutionErrors(t *testing.T) {
	e := newExpander(nil)
	e.Capture = func(string) (string, error) {
		return "", fmt.Errorf("boom")
	}

	_, err := e.ExpandWord(word(t, `$(fail)`))
	var cerr *CommandSubstitutionError
	require.ErrorAs(t, err, &cerr)

	e.Capture = nil
	_, err = e.ExpandWord(word(t, `$(anything)`))
	require.ErrorAs(t, err, &cerr)
}

func TestExpandString(t *testing.T) {
	e := newExpander(map[string]variables.Value{
		"x":  variables.Scalar("a b"),
		"xs": variables.Array([]string{"p", "q"}),
	})

	// No splitting and no globbing, arrays join on spaces.
	got, err := e.ExpandString(word(t, `$x-$xs-*`))
	require.Nil(t, err)
	assert.Equal(t, "a b-p q-*", got)
}

func TestExpandHeredoc(t *testing.T) {
	e := newExpander(map[string]variables.Value{
		"name": variables.Scalar("world"),
	})

	body := "hello $name\n"
	r := ast.Redirect{Kind: ast.RedirHeredoc, Body: &body}

	got, err := e.ExpandHeredoc(r)
	require.Nil(t, err)
	assert.Equal(t, "hello world\n", got)

	r.Quoted = true
	got, err = e.ExpandHeredoc(r)
	require.Nil(t, err)
	assert.Equal(t, "hello $name\n", got)
}

func TestExpandValue(t *testing.T) {
	e := newExpander(map[string]variables.Value{
		"x": variables.Scalar("b"),
	})

	// Scalar assignment value keeps spaces without splitting.
	v, err := e.ExpandValue(ast.Assign{Name: "s", Value: word(t, `"a $x"`)})
	require.Nil(t, err)
	assert.False(t, v.IsArray())
	assert.Equal(t, "a b", v.String())

	// Array literal expands per element.
	v, err = e.ExpandValue(ast.Assign{
		Name:  "vals",
		IsArr: true,
		Array: []ast.Word{word(t, "a"), word(t, "$x"), word(t, "c")},
	})
	require.Nil(t, err)
	assert.True(t, v.IsArray())
	assert.Equal(t, []string{"a", "b", "c"}, v.Fields())
}
