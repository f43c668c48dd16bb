package state

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/feedstore/internal/ident"
)

func TestNestedIndex_AddMember(t *testing.T) {
	x := NewNestedIndex()
	x = x.AddMember(1, 30)
	x = x.AddMember(1, 10)
	x = x.AddMember(2, 20)

	assert.Equal(t, []ident.ID{10, 30}, x.Members(1))
	assert.Equal(t, []ident.ID{20}, x.Members(2))
	assert.Nil(t, x.Members(3))
	assert.Equal(t, 2, x.Len())
	assert.Equal(t, []ident.ID{1, 2}, x.Keys())
}

func TestNestedIndex_SetSemantics(t *testing.T) {
	x := NewNestedIndex().AddMember(1, 10)
	y := x.AddMember(1, 10)

	assert.Equal(t, 1, y.Size(1))
	assert.True(t, x.Equal(y))
}

func TestNestedIndex_Persistent(t *testing.T) {
	before := NewNestedIndex().AddMember(1, 10)
	after := before.AddMember(1, 11).Remove(1, 10)

	assert.Equal(t, []ident.ID{10}, before.Members(1), "older version must be unchanged")
	assert.Equal(t, []ident.ID{11}, after.Members(1))
}

func TestNestedIndex_RemoveDropsEmptySets(t *testing.T) {
	x := NewNestedIndex().AddMember(1, 10).Remove(1, 10)

	assert.Equal(t, 0, x.Len())
	assert.False(t, x.Contains(1, 10))
	assert.True(t, x.Equal(NewNestedIndex()))
}

func TestNestedIndex_RemoveMissing(t *testing.T) {
	x := NewNestedIndex().AddMember(1, 10)

	assert.True(t, x.Equal(x.Remove(2, 10)))
	assert.True(t, x.Equal(x.Remove(1, 11)))
}

func TestNestedIndex_Equal(t *testing.T) {
	a := NewNestedIndex().AddMember(1, 10).AddMember(2, 20)
	b := NewNestedIndex().AddMember(2, 20).AddMember(1, 10)
	c := NewNestedIndex().AddMember(1, 10).AddMember(2, 21)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}
