package catalog

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumber_Unmarshal(t *testing.T) {
	cases := map[string]float64{
		`12.5`:     12.5,
		`"12.5"`:   12.5,
		`" 7 "`:    7,
		`"1e3"`:    1000,
		`""`:       math.NaN(),
		`"abc"`:    math.NaN(),
		`null`:     math.NaN(),
		`true`:     math.NaN(),
		`"Inf"`:    math.Inf(1),
		`{"x": 1}`: math.NaN(),
	}

	for in, want := range cases {
		var n Number
		require.NoError(t, json.Unmarshal([]byte(in), &n), in)
		if math.IsNaN(want) {
			assert.True(t, math.IsNaN(float64(n)), in)
			continue
		}
		assert.Equal(t, want, float64(n), in)
	}
}

func TestEncodeCatalog_KeepsOrder(t *testing.T) {
	order := []string{"Zeta", "Alpha"}
	m := map[string][]Item{
		"Alpha": {{ID: "2", Name: "a", Points: 1, Price: 2}},
		"Zeta":  {{ID: "1", Name: "z", Points: 3, Price: 4}},
	}

	data, err := encodeCatalog(order, m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Zeta":[{"id":"1","name":"z","points":3,"price":4}],"Alpha":[{"id":"2","name":"a","points":1,"price":2}]}`, string(data))
	assert.Less(t, strings.Index(string(data), "Zeta"), strings.Index(string(data), "Alpha"))
}
