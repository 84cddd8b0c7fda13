package invoices

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaKeepsSubCentRates(t *testing.T) {
	column := regexp.MustCompile(`(?m)^\s+(\w+)\s+NUMERIC\((\d+),(\d+)\)`)
	matches := column.FindAllStringSubmatch(schemaSQL, -1)
	require.NotEmpty(t, matches)

	rates := 0
	for _, m := range matches {
		name, scale := m[1], m[3]
		if name == "rate" {
			rates++
			assert.Equal(t, "6", scale, "rate columns must keep fractional cents")
			continue
		}
		assert.Equal(t, "2", scale, "%s is a money column", name)
	}
	assert.Equal(t, 2, rates)
	assert.Contains(t, schemaSQL, "ALTER TABLE invoice_items ALTER COLUMN rate TYPE NUMERIC(18,6);")
}
