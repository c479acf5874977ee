package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/normware/internal/ir"
	"github.com/roach88/normware/internal/schema"
)

func TestHasPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload ir.Value
		want    bool
	}{
		{"nil", nil, false},
		{"null", ir.Null{}, false},
		{"zero int", ir.Int(0), true},
		{"false", ir.Bool(false), true},
		{"empty string", ir.String(""), true},
		{"empty object", ir.Object{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Action{Type: "T", Payload: tt.payload}.HasPayload())
		})
	}
}

func TestHasSchema(t *testing.T) {
	var typedNil *schema.Entity

	assert.False(t, Action{Type: "T"}.HasSchema())
	assert.False(t, Action{Type: "T", Meta: &Meta{}}.HasSchema())
	assert.False(t, Action{Type: "T", Meta: &Meta{Schema: typedNil}}.HasSchema())
	assert.True(t, Action{Type: "T", Meta: &Meta{Schema: schema.NewEntity("users")}}.HasSchema())
}

func TestWithoutSchema_LeavesOriginal(t *testing.T) {
	users := schema.NewEntity("users")
	orig := Action{
		Type:    "T",
		Payload: ir.Object{"id": ir.Int(1)},
		Meta:    &Meta{Schema: users, Extra: ir.Object{"trace": ir.String("abc")}},
	}

	stripped := orig.WithoutSchema()

	require.NotNil(t, stripped.Meta)
	assert.Nil(t, stripped.Meta.Schema)
	assert.Equal(t, ir.Object{"trace": ir.String("abc")}, stripped.Meta.Extra)
	assert.Same(t, users, orig.Meta.Schema, "original meta must keep its schema")
	assert.NotSame(t, orig.Meta, stripped.Meta)

	stripped.Meta.Extra["trace"] = ir.String("changed")
	assert.Equal(t, ir.String("abc"), orig.Meta.Extra["trace"])
}

func TestWithoutSchema_NoMeta(t *testing.T) {
	a := Action{Type: "T"}.WithoutSchema()
	assert.Nil(t, a.Meta)
}

func TestWithPayload(t *testing.T) {
	orig := Action{Type: "T", Payload: ir.Int(1)}
	next := orig.WithPayload(ir.Int(2))

	assert.Equal(t, ir.Int(1), orig.Payload)
	assert.Equal(t, ir.Int(2), next.Payload)
	assert.Equal(t, "T", next.Type)
}

func TestClone(t *testing.T) {
	orig := Action{Type: "T", Error: true, Meta: &Meta{Extra: ir.Object{"a": ir.Int(1)}}}
	c := orig.Clone()

	assert.Equal(t, orig, c)
	assert.NotSame(t, orig.Meta, c.Meta)

	var m *Meta
	assert.Nil(t, m.Clone())
}
