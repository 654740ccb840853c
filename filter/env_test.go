package filter

import (
	"testing"

	"github.com/antonmedv/expr"
	"github.com/stretchr/testify/assert"
)

func TestTargetFilter(t *testing.T) {
	env := Env{
		Room:   Room{Id: "room-1"},
		Source: Source{Id: "alice"},
		Target: Target{
			Id:   "bob",
			Nick: "Bob",
		},
		Name:          "message",
		Created:       1700000000,
		Tags:          map[string]string{"weight": "42", "ratio": "0.5", "ids": "a,b,c"},
		AsInt:         AsInt,
		AsFloat:       AsFloat,
		AsStringSlice: AsStringSlice,
	}

	for src, want := range map[string]bool{
		`Target.Id == "bob"`:                true,
		`Target.Nick == "Bob"`:              true,
		`Source.Id == Target.Id`:            false,
		`Name == "message"`:                 true,
		`AsInt(Tags["weight"]) == 42`:       true,
		`AsFloat(Tags["ratio"]) < 1.0`:      true,
		`"b" in AsStringSlice(Tags["ids"])`: true,
		`Created > 0`:                       true,
	} {
		prog, err := expr.Compile(src, expr.Env(Env{}))
		assert.NoError(t, err, src)
		res, err := expr.Run(prog, env)
		assert.NoError(t, err, src)
		assert.Equal(t, want, res, src)
	}
}

func TestTagHelpers(t *testing.T) {
	assert.Equal(t, int64(42), AsInt("42"))
	assert.Equal(t, int64(0), AsInt("not a number"))
	assert.Equal(t, 0.5, AsFloat("0.5"))
	assert.Equal(t, 0.0, AsFloat("x"))
	assert.Equal(t, []string{"a", "b", "c"}, AsStringSlice("a,b,c"))
}
