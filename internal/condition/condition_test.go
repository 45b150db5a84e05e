package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskpilot/taskpilot/internal/types"
)

func TestEvaluate(t *testing.T) {
	eval := New()

	tests := []struct {
		name    string
		cond    types.Condition
		context map[string]string
		want    bool
	}{
		{
			name: "literal true",
			cond: types.Condition{Expression: "true"},
			want: true,
		},
		{
			name: "literal false",
			cond: types.Condition{Expression: "false"},
			want: false,
		},
		{
			name: "case insensitive literal",
			cond: types.Condition{Expression: "TRUE"},
			want: true,
		},
		{
			name: "equality with substitution",
			cond: types.Condition{
				Expression: "${env} == production",
				Variables:  map[string]string{"env": "production"},
			},
			want: true,
		},
		{
			name: "equality mismatch",
			cond: types.Condition{
				Expression: "${env} == production",
				Variables:  map[string]string{"env": "staging"},
			},
			want: false,
		},
		{
			name: "inequality",
			cond: types.Condition{
				Expression: "${env} != production",
				Variables:  map[string]string{"env": "staging"},
			},
			want: true,
		},
		{
			name: "quoted operands",
			cond: types.Condition{
				Expression: `"${answer}" == "42"`,
				Variables:  map[string]string{"answer": "42"},
			},
			want: true,
		},
		{
			name: "unbound variable is false",
			cond: types.Condition{Expression: "${missing} == anything"},
			want: false,
		},
		{
			name: "unbound variable in bare expression is false",
			cond: types.Condition{Expression: "${missing}"},
			want: false,
		},
		{
			name:    "execution context fallback",
			cond:    types.Condition{Expression: "${branch} == main"},
			context: map[string]string{"branch": "main"},
			want:    true,
		},
		{
			name: "condition variables shadow context",
			cond: types.Condition{
				Expression: "${branch} == main",
				Variables:  map[string]string{"branch": "dev"},
			},
			context: map[string]string{"branch": "main"},
			want:    false,
		},
		{
			name: "bare non-empty value is truthy",
			cond: types.Condition{
				Expression: "${flag}",
				Variables:  map[string]string{"flag": "yes"},
			},
			want: true,
		},
		{
			name: "bare zero is falsy",
			cond: types.Condition{
				Expression: "${flag}",
				Variables:  map[string]string{"flag": "0"},
			},
			want: false,
		},
		{
			name: "empty expression is false",
			cond: types.Condition{Expression: ""},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, eval.Evaluate(tt.cond, tt.context))
		})
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	eval := New()
	cond := types.Condition{
		Expression: "${a} == ${b}",
		Variables:  map[string]string{"a": "x", "b": "x"},
	}
	first := eval.Evaluate(cond, nil)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, eval.Evaluate(cond, nil))
	}
}

func TestSubstitute(t *testing.T) {
	out, ok := Substitute("deploy ${app} to ${env}",
		map[string]string{"app": "web"},
		map[string]string{"env": "prod", "app": "ignored"},
	)
	assert.True(t, ok)
	assert.Equal(t, "deploy web to prod", out)

	_, ok = Substitute("deploy ${app}", nil)
	assert.False(t, ok)
}
