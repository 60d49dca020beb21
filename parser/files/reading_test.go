package files

import (
	"compress/gzip"
	"io/ioutil"
	"os"
	"path"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `1565647204351 Lynnsie Tilda
1565647205351 Tilda Lynnsie
this line is broken
1565647206351 Lynnsie Sharon
`

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	filePath := path.Join(dir, name)
	require.NoError(t, ioutil.WriteFile(filePath, []byte(contents), 0644))
	return filePath
}

func TestReadConns(t *testing.T) {
	logger, _ := test.NewNullLogger()
	filePath := writeFile(t, t.TempDir(), "input-file.txt", sampleLog)

	counter := NewLineCounter(filePath, logger)
	conns, err := ReadConns(filePath, counter)
	require.NoError(t, err)
	require.Len(t, conns, 3)

	assert.Equal(t, "Lynnsie", conns[0].Source)
	assert.Equal(t, "Tilda", conns[1].Source)
	assert.Equal(t, "Sharon", conns[2].Destination)
	assert.Equal(t, LineStats{Lines: 4, Accepted: 3, Rejected: 1}, counter.Stats())
}

func TestReadConnsGzip(t *testing.T) {
	logger, _ := test.NewNullLogger()
	filePath := path.Join(t.TempDir(), "conn.log.gz")

	fileHandle, err := os.Create(filePath)
	require.NoError(t, err)
	gz := gzip.NewWriter(fileHandle)
	_, err = gz.Write([]byte(sampleLog))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, fileHandle.Close())

	conns, err := ReadConns(filePath, NewLineCounter(filePath, logger))
	require.NoError(t, err)
	assert.Len(t, conns, 3)
}

func TestReadConnsMissingFile(t *testing.T) {
	logger, _ := test.NewNullLogger()
	missing := path.Join(t.TempDir(), "missing.log")
	_, err := ReadConns(missing, NewLineCounter(missing, logger))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}

func TestGatherLogFiles(t *testing.T) {
	logger, hook := test.NewNullLogger()
	dir := t.TempDir()
	a := writeFile(t, dir, "a.log", "")
	b := writeFile(t, dir, "b.txt", "")
	writeFile(t, dir, "notes.md", "")
	require.NoError(t, os.Mkdir(path.Join(dir, "sub.log"), 0755))

	other := t.TempDir()
	c := writeFile(t, other, "c.gz", "")
	ignored := writeFile(t, other, "c.csv", "")

	found := GatherLogFiles([]string{dir, c, ignored}, logger)
	assert.ElementsMatch(t, []string{a, b, c}, found)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, ignored, hook.LastEntry().Data["path"])
}
