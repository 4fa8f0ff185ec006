package main

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTemplateExportCSV(t *testing.T) {
	t.Setenv("TRAVELCMS_STORE_DRIVER", "memory")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", t.TempDir(), "template", "export", "travel-guide"})
	require.NoError(t, root.Execute())

	records, err := csv.NewReader(&out).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "title", records[0][0])
}

func TestTemplateList(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", t.TempDir(), "template", "list"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "travel-guide")
}
