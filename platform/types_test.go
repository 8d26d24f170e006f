package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObjectTypeAcceptsBothSpellings(t *testing.T) {
	wire, err := ParseObjectType("LOGICAL_TABLE")
	require.NoError(t, err)
	assert.Equal(t, TableType, wire)

	friendly, err := ParseObjectType("table")
	require.NoError(t, err)
	assert.Equal(t, TableType, friendly)

	_, err = ParseObjectType("dashboard")
	assert.Error(t, err)
}

func TestObjectTypeFolders(t *testing.T) {
	assert.Equal(t, "worksheets", WorksheetType.Folder())
	assert.Equal(t, "liveboards", LiveboardType.Folder())
	assert.Equal(t, "LIVEBOARD", LiveboardType.String())
}
