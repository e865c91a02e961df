package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplate(t *testing.T, dir, name, body string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name)+".toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestFind_LaterDirectoryWins(t *testing.T) {
	system := t.TempDir()
	user := t.TempDir()
	writeTemplate(t, system, "translate", `user = "system {{input}}"`)
	writeTemplate(t, user, "translate", `user = "user {{input}}"`)

	tmpl, err := Find("translate", []string{system, user})
	require.NoError(t, err)
	assert.Equal(t, "translate", tmpl.Name)
	assert.Equal(t, "user {{input}}", tmpl.User)
	assert.Equal(t, filepath.Join(user, "translate.toml"), tmpl.Path)
}

func TestFind_Nested(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "code/review", "system = \"Review\"\nuser = \"{{input}}\"\nmodel = \"gemini:gemini-1.5-pro\"\nweb_search = true\n")

	tmpl, err := Find("code/review.toml", []string{dir})
	require.NoError(t, err)
	assert.Equal(t, "code/review", tmpl.Name)
	require.NotNil(t, tmpl.Model)
	assert.Equal(t, "gemini:gemini-1.5-pro", *tmpl.Model)
	require.NotNil(t, tmpl.WebSearch)
	assert.True(t, *tmpl.WebSearch)
}

func TestFind_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := Find("missing", []string{dir})
	assert.ErrorContains(t, err, "not found")

	writeTemplate(t, dir, "badmodel", "user = \"x\"\nmodel = \"no-provider\"\n")
	_, err = Find("badmodel", []string{dir})
	assert.ErrorContains(t, err, "invalid model format")

	writeTemplate(t, dir, "broken", "user = ")
	_, err = Find("broken", []string{dir})
	assert.ErrorContains(t, err, "error decoding")
}

func TestList(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	writeTemplate(t, a, "zeta", `user = "z"`)
	writeTemplate(t, a, "shared", `user = "a"`)
	writeTemplate(t, b, "shared", `user = "b"`)
	writeTemplate(t, b, "dir/alpha", `user = "x"`)
	require.NoError(t, os.WriteFile(filepath.Join(b, "notes.txt"), []byte("skip"), 0644))

	entries, err := List([]string{a, b, filepath.Join(a, "does-not-exist")})
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Name: "dir/alpha", Dir: b},
		{Name: "shared", Dir: b},
		{Name: "zeta", Dir: a},
	}, entries)
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    map[string]string
		wantErr bool
	}{
		{name: "none", args: nil, want: map[string]string{}},
		{name: "simple", args: []string{"lang:French"}, want: map[string]string{"lang": "French"}},
		{name: "escaped colon", args: []string{`time:10\:30`}, want: map[string]string{"time": "10:30"}},
		{name: "quoted", args: []string{`"tone: dry "`}, want: map[string]string{"tone": "dry"}},
		{name: "value with colon", args: []string{"url:http://x"}, want: map[string]string{"url": "http://x"}},
		{name: "missing separator", args: []string{"lang"}, wantErr: true},
		{name: "reserved key", args: []string{"input:x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseArgs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender(t *testing.T) {
	tmpl := &Template{User: "Translate to {{lang}}: {{input}}"}
	assert.Equal(t, "Translate to French: hello", tmpl.Render("hello", map[string]string{"lang": "French"}))

	tmpl.System = "You are {{role}}."
	assert.Equal(t, "System: You are a translator.\n\nUser: Translate to French: hello",
		tmpl.Render("hello", map[string]string{"lang": "French", "role": "a translator"}))
}
