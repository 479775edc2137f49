package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shepherdmeng/smrf/internal/distribute"
	"github.com/shepherdmeng/smrf/internal/domain"
	"github.com/shepherdmeng/smrf/internal/pipeline"
)

func names(vars []distribute.Variable) []string {
	out := make([]string, len(vars))
	for i, v := range vars {
		out[i] = v.Name()
	}
	return out
}

func TestGraph_Order(t *testing.T) {
	vars := []distribute.Variable{
		fake("thermal", []domain.Variable{"ta", "vp"}, "lw"),
		fake("vapor", []domain.Variable{"ta"}, "vp"),
		fake("soil", nil, "soil"),
		fake("air", nil, "ta"),
	}

	g, err := pipeline.NewGraph(vars)
	require.NoError(t, err)
	assert.Equal(t, []string{"soil", "air", "vapor", "thermal"}, names(g.Order()))
	assert.Equal(t, []string{"thermal", "vapor"}, names(g.Consumers("ta")))
	assert.Empty(t, g.Consumers("lw"))
	assert.Equal(t, []domain.Variable{"lw", "soil", "ta", "vp"}, g.Outputs())

	p, ok := g.Producer("vp")
	require.True(t, ok)
	assert.Equal(t, "vapor", p.Name())
}

func TestGraph_Errors(t *testing.T) {
	cases := []struct {
		name string
		vars []distribute.Variable
		want string
	}{
		{
			name: "duplicate producer",
			vars: []distribute.Variable{fake("a", nil, "x"), fake("b", nil, "x")},
			want: "x produced by both a and b",
		},
		{
			name: "duplicate name",
			vars: []distribute.Variable{fake("a", nil, "x"), fake("a", nil, "y")},
			want: `duplicate distributor "a"`,
		},
		{
			name: "missing producer",
			vars: []distribute.Variable{fake("a", []domain.Variable{"y"}, "x")},
			want: "a needs y",
		},
		{
			name: "self loop",
			vars: []distribute.Variable{fake("a", []domain.Variable{"x"}, "x")},
			want: "a depends on itself",
		},
		{
			name: "cycle",
			vars: []distribute.Variable{
				fake("a", []domain.Variable{"z"}, "x"),
				fake("b", []domain.Variable{"x"}, "y"),
				fake("c", []domain.Variable{"y"}, "z"),
				fake("d", nil, "w"),
			},
			want: "dependency cycle among [a b c]",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := pipeline.NewGraph(tc.vars)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
