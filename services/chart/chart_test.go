package chartsvc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/messengermaksym/diploma-project/core"
	"github.com/messengermaksym/diploma-project/core/report"
)

func TestBarChart(t *testing.T) {
	conf := core.NewTestConfig()
	rdr, err := NewRenderer(conf)
	require.NoError(t, err)

	t.Run("empty series", func(t *testing.T) {
		uri, err := rdr.BarChart("Maths - groups", nil)
		assert.NoError(t, err)
		assert.Empty(t, uri)
	})

	t.Run("data uri", func(t *testing.T) {
		uri, err := rdr.BarChart("Maths - practical works", []report.LabeledValue{
			{Label: "Lab 1", Value: 7.5},
			{Label: "Lab 2 with a very long practical title", Value: 9},
		})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))
		assert.Greater(t, len(uri), len("data:image/png;base64,"))
	})

	t.Run("out of range values are clamped", func(t *testing.T) {
		uri, err := rdr.BarChart("Maths", []report.LabeledValue{
			{Label: "low", Value: -2},
			{Label: "high", Value: 42},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, uri)
	})
}
