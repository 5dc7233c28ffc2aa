package preprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	payload := []byte("Country, Component ,Amount\nKenya,HIV,100\nMalawi,Malaria,250\n")

	table, err := ParseCSV(payload)
	require.NoError(t, err)

	assert.Equal(t, []string{"Country", "Component", "Amount"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"Kenya", "HIV", "100"}, table.Rows[0])
}

func TestParseCSVQuotedFields(t *testing.T) {
	payload := []byte("Name,Description\nGrant A,\"Multi-line\ndescription, with comma\"\n")

	table, err := ParseCSV(payload)
	require.NoError(t, err)

	require.Len(t, table.Rows, 1)
	assert.Equal(t, "Multi-line\ndescription, with comma", table.Rows[0][1])
}

func TestParseCSVRaggedRows(t *testing.T) {
	payload := []byte("A,B,C\n1,2\n1,2,3,4\n")

	table, err := ParseCSV(payload)
	require.NoError(t, err)

	// Short rows are padded, long rows truncated to the header width.
	assert.Equal(t, []string{"1", "2", ""}, table.Rows[0])
	assert.Equal(t, []string{"1", "2", "3"}, table.Rows[1])
}

func TestParseCSVHeaderOnly(t *testing.T) {
	table, err := ParseCSV([]byte("A,B,C\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, table.Columns)
	assert.Empty(t, table.Rows)
}

func TestParseCSVEmpty(t *testing.T) {
	_, err := ParseCSV([]byte(""))
	assert.Error(t, err)
}
