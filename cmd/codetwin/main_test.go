package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codetwin/internal/extractor"
	"codetwin/internal/metadata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rustSource = "fn a(){}\nfn b(){ let x = 1 + 2; }\n"

// runCmd executes the root command with a config that does not exist, so
// defaults apply, and the storage database placed in dir.
func runCmd(t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("CODETWIN_STORAGE_PATH", filepath.Join(dir, "codetwin.db"))

	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", filepath.Join(dir, "none.yaml")}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func functionIDs(t *testing.T, src string) []string {
	t.Helper()
	ext, err := extractor.NewExtractor("rust")
	require.NoError(t, err)
	p, err := ext.Parse(context.Background(), []byte(src), nil, extractor.Options{})
	require.NoError(t, err)
	var ids []string
	for _, b := range p.Blocks {
		if b.Kind == extractor.KindFunctionDefine {
			ids = append(ids, b.VisualID)
		}
	}
	require.Len(t, ids, 2)
	return ids
}

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "codetwin", cmd.Use)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"blocks", "meta", "map", "generate", "graph", "check", "watch", "store"} {
		assert.Contains(t, names, want)
	}
}

func TestBlocksCmd(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.rs", rustSource)
	ids := functionIDs(t, rustSource)

	out, _, err := runCmd(t, dir, "blocks", path)
	require.NoError(t, err)
	assert.Contains(t, out, ids[0])
	assert.Contains(t, out, ids[1])
	assert.Contains(t, out, "Function/Define")
	assert.Contains(t, out, "fn a(){}")
}

func TestBlocksCmd_UnsupportedLanguage(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "hello")

	_, _, err := runCmd(t, dir, "blocks", path)
	assert.ErrorIs(t, err, extractor.ErrUnsupportedLanguage)
}

func TestMetaSetListAndGenerate(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.rs", rustSource)
	ids := functionIDs(t, rustSource)

	out, _, err := runCmd(t, dir, "meta", "set", path, "--id", ids[0], "--x", "10", "--y", "5", "--tag", "core")
	require.NoError(t, err)
	assert.Contains(t, out, "updated "+ids[0])
	_, _, err = runCmd(t, dir, "meta", "set", path, "--id", ids[1], "--y", "1")
	require.NoError(t, err)

	code := readFile(t, path)
	assert.Equal(t, 2, strings.Count(code, "// @codetwin "))
	assert.True(t, strings.HasSuffix(code, rustSource), "code below the comments is untouched")

	// Moving only x keeps the tags written earlier.
	_, _, err = runCmd(t, dir, "meta", "set", path, "--id", ids[0], "--x", "20")
	require.NoError(t, err)

	out, _, err = runCmd(t, dir, "meta", "list", path)
	require.NoError(t, err)
	assert.Contains(t, out, ids[0])
	assert.Contains(t, out, "20,5")
	assert.Contains(t, out, "core")

	out, _, err = runCmd(t, dir, "generate", "--no-metadata", path)
	require.NoError(t, err)
	assert.Equal(t, "fn b(){ let x = 1 + 2; }\n\nfn a(){}\n", out)

	out, _, err = runCmd(t, dir, "map", path)
	require.NoError(t, err)
	assert.Contains(t, out, ids[1])
	assert.Contains(t, out, "2 mapped")
}

func TestMetaSet_MovesInheritingRecord(t *testing.T) {
	dir := t.TempDir()
	src := "// @codetwin {\"id\":\"p\",\"origin\":\"lib.rs\"}\n" +
		"// @codetwin {\"id\":\"c\",\"extends\":\"p\",\"x\":1,\"y\":1}\n" + rustSource
	path := writeFile(t, dir, "main.rs", src)

	out, _, err := runCmd(t, dir, "meta", "set", path, "--id", "c", "--x", "50", "--y", "60")
	require.NoError(t, err)
	assert.Contains(t, out, "conflict on c: movement")

	var child metadata.Record
	for _, e := range metadata.Entries(readFile(t, path)) {
		if e.Record.ID == "c" {
			child = e.Record
		}
	}
	assert.Equal(t, 50.0, child.X)
	assert.Equal(t, 60.0, child.Y)
	assert.Empty(t, child.Origin)
}

func TestMetaSet_RequiresID(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.rs", rustSource)

	_, _, err := runCmd(t, dir, "meta", "set", path, "--x", "1")
	assert.Error(t, err)
	assert.Equal(t, rustSource, readFile(t, path))
}

func TestMetaFixCmd(t *testing.T) {
	dir := t.TempDir()
	src := "// @codetwin {\"id\":\"x\"}\n// @codetwin {\"id\":\"x\"}\n" + rustSource
	path := writeFile(t, dir, "main.rs", src)

	out, _, err := runCmd(t, dir, "meta", "fix", "--dry-run", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"id":"x-2"`)
	assert.Equal(t, src, readFile(t, path), "dry run leaves the file alone")

	out, _, err = runCmd(t, dir, "meta", "fix", path)
	require.NoError(t, err)
	assert.Equal(t, "line 2: x -> x-2\n", out)
	assert.Contains(t, readFile(t, path), `"id":"x-2"`)

	out, _, err = runCmd(t, dir, "meta", "fix", path)
	require.NoError(t, err)
	assert.Equal(t, "no duplicate ids\n", out)
}

func TestMetaStripCmd(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.rs", "// @codetwin {\"id\":\"x\"}\n"+rustSource)

	out, _, err := runCmd(t, dir, "meta", "strip", path)
	require.NoError(t, err)
	assert.Equal(t, rustSource, out)

	_, _, err = runCmd(t, dir, "meta", "strip", "-w", path)
	require.NoError(t, err)
	assert.Equal(t, rustSource, readFile(t, path))
}

func TestGraphCmd(t *testing.T) {
	dir := t.TempDir()
	ids := functionIDs(t, rustSource)
	src := "// @codetwin {\"id\":\"" + ids[0] + "\",\"links\":[\"" + ids[1] + "\",\"ghost\"]}\n" +
		"// @codetwin {\"id\":\"" + ids[1] + "\"}\n" + rustSource
	path := writeFile(t, dir, "main.rs", src)

	out, stderr, err := runCmd(t, dir, "graph", path)
	require.NoError(t, err)
	assert.Contains(t, out, "flowchart TD")
	assert.Contains(t, out, "-->")
	assert.Contains(t, stderr, "dangling links: ghost")

	out, _, err = runCmd(t, dir, "graph", "--focus", ids[1], "--hops", "0", path)
	require.NoError(t, err)
	assert.NotContains(t, out, "-->")

	_, _, err = runCmd(t, dir, "graph", "--focus", "nobody", path)
	assert.Error(t, err)
}

func TestCheckCmd(t *testing.T) {
	dir := t.TempDir()
	ids := functionIDs(t, rustSource)
	clean := writeFile(t, dir, "clean.rs", "// @codetwin {\"id\":\""+ids[0]+"\"}\n"+rustSource)

	out, _, err := runCmd(t, dir, "check", "--save", clean)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")

	out, _, err = runCmd(t, dir, "store", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, clean)

	out, _, err = runCmd(t, dir, "store", "show", clean)
	require.NoError(t, err)
	assert.Contains(t, out, ids[0])

	orphan := writeFile(t, dir, "orphan.py", "# @codetwin {\"id\":\"gone\"}\ndef f():\n    pass\n")
	out, _, err = runCmd(t, dir, "check", "-j", "2", clean, orphan)
	assert.ErrorIs(t, err, errProblemsFound)
	assert.Contains(t, out, "orphaned: gone")

	broken := writeFile(t, dir, "broken.rs", "// @codetwin {\"id\": }\n"+rustSource)
	out, _, err = runCmd(t, dir, "check", broken)
	assert.ErrorIs(t, err, errProblemsFound)
	assert.Contains(t, out, "invalid JSON")

	_, _, err = runCmd(t, dir, "check", filepath.Join(dir, "missing.go"))
	assert.Error(t, err)
}

func TestCheckCmd_Directory(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.Mkdir(src, 0o755))
	writeFile(t, src, "a.rs", rustSource)
	writeFile(t, src, "b.py", "def f():\n    pass\n")
	writeFile(t, src, "notes.txt", "not code")

	out, _, err := runCmd(t, dir, "check", src)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(src, "a.rs"))
	assert.Contains(t, out, filepath.Join(src, "b.py"))
	assert.NotContains(t, out, "notes.txt")
}

func TestStoreCmd_RefsAndRemove(t *testing.T) {
	dir := t.TempDir()
	ids := functionIDs(t, rustSource)
	src := "// @codetwin {\"id\":\"" + ids[0] + "\",\"extends\":\"" + ids[1] + "\"}\n" +
		"// @codetwin {\"id\":\"" + ids[1] + "\"}\n" + rustSource
	path := writeFile(t, dir, "lib.rs", src)

	_, _, err := runCmd(t, dir, "check", "--save", path)
	require.NoError(t, err)

	out, _, err := runCmd(t, dir, "store", "refs", ids[1])
	require.NoError(t, err)
	assert.Contains(t, out, ids[0])
	assert.Contains(t, out, "extends")

	_, _, err = runCmd(t, dir, "store", "rm", path)
	require.NoError(t, err)
	_, _, err = runCmd(t, dir, "store", "show", path)
	assert.Error(t, err)
}

func TestGraphCmd_Directory(t *testing.T) {
	dir := t.TempDir()
	tree := filepath.Join(dir, "tree")
	require.NoError(t, os.Mkdir(tree, 0o755))
	writeFile(t, tree, "a.rs", "// @codetwin {\"id\":\"parent\"}\n"+rustSource)
	writeFile(t, tree, "b.py", "# @codetwin {\"id\":\"kid\",\"extends\":\"parent\"}\ndef f():\n    pass\n")

	out, _, err := runCmd(t, dir, "graph", tree)
	require.NoError(t, err)
	assert.Contains(t, out, "kid -.->|extends| parent")

	out, _, err = runCmd(t, dir, "graph", "--json", tree)
	require.NoError(t, err)
	assert.Contains(t, out, `"from": "kid"`)
}
