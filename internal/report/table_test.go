package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	csv := "item,concurrency,qps\ncheckout,50,500.25\nbrowse,20,1800.00\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	table, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"item", "concurrency", "qps"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"checkout", "50", "500.25"}, table.Rows[0])
}

func TestLoadTable_GBKEncoded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	csv := "测试项,并发数,QPS\n下单,50,500.25\n"
	encoded, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, encoded, 0o644))

	table, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"测试项", "并发数", "QPS"}, table.Headers)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "下单", table.Rows[0][0])
}

func TestLoadTable_Missing(t *testing.T) {
	_, err := LoadTable(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}

func TestLoadTable_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := LoadTable(path)
	assert.Error(t, err)
}
