package path

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/knit/internal/notify"
	"github.com/roach88/knit/internal/reflector"
)

type node struct {
	notify.Hub
	Name  string
	Count int
	Child *node
}

type holder struct {
	Item any
}

type (
	rootA struct{ Name string }
	rootB struct{ Name string }
	rootC struct{ Name string }
	rootD struct{ Name string }
	rootE struct{ Name string }
)

// =============================================================================
// Parse
// =============================================================================

func TestNew_Components(t *testing.T) {
	p, err := New("Child?.Child.Name")
	require.NoError(t, err)

	assert.Equal(t, []string{"Child", "Child", "Name"}, p.Components())
	assert.Equal(t, "Child?.Child.Name", p.String())
}

func TestNew_EmptyComponent(t *testing.T) {
	_, err := New("Child..Name")

	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Index)

	_, err = New("")
	assert.ErrorAs(t, err, &se)
}

func TestNew_TrailingNullPropagationIgnored(t *testing.T) {
	p, err := New("Child.Name?")
	require.NoError(t, err)

	assert.Equal(t, []string{"Child", "Name"}, p.Components())
	_, err = p.GetValue(&node{})
	assert.True(t, IsNullReference(err))
}

func TestNew_NormalizesComponents(t *testing.T) {
	// Decomposed e + combining acute accent.
	p, err := New("Cafe\u0301")
	require.NoError(t, err)

	assert.Equal(t, []string{"Caf\u00e9"}, p.Components())
}

// =============================================================================
// GetValue / SetValue
// =============================================================================

func TestResolver_GetValue_Chain(t *testing.T) {
	p := MustNew("Child.Name")
	root := &node{Child: &node{Name: "leaf"}}

	v, err := p.GetValue(root)
	require.NoError(t, err)
	assert.Equal(t, "leaf", v)
}

func TestResolver_GetValue_NullPropagation(t *testing.T) {
	root := &node{}

	v, err := MustNew("Child?.Name").GetValue(root)
	require.NoError(t, err)
	assert.Equal(t, "", v, "nil propagates to the target type's zero value")

	_, err = MustNew("Child.Name").GetValue(root)
	var ne *NullReferenceError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "Name", ne.Component)
	assert.Equal(t, 1, ne.Step)
}

func TestResolver_GetValue_PropagationShortCircuits(t *testing.T) {
	root := &node{}

	v, err := MustNew("Child?.Child.Count").GetValue(root)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestResolver_GetValue_NilRoot(t *testing.T) {
	_, err := MustNew("Name").GetValue((*node)(nil))
	assert.True(t, IsNullReference(err))

	_, err = MustNew("Name").GetValue(nil)
	assert.True(t, IsNullReference(err))
}

func TestResolver_GetValue_MissingMember(t *testing.T) {
	_, err := MustNew("Nope").GetValue(&node{})

	assert.True(t, reflector.IsMissingMember(err))
}

func TestResolver_GetValue_InterfaceStage(t *testing.T) {
	p := MustNew("Item.Name")

	v, err := p.GetValue(&holder{Item: &node{Name: "n"}})
	require.NoError(t, err)
	assert.Equal(t, "n", v)

	v, err = p.GetValue(&holder{Item: &rootA{Name: "a"}})
	require.NoError(t, err)
	assert.Equal(t, "a", v)
}

func TestResolver_SetValue_Chain(t *testing.T) {
	p := MustNew("Child.Count")
	root := &node{Child: &node{}}

	require.NoError(t, p.SetValue(root, 7))
	assert.Equal(t, 7, root.Child.Count)

	require.NoError(t, p.SetValue(root, nil))
	assert.Equal(t, 0, root.Child.Count, "nil writes the zero value")
}

func TestResolver_SetValue_FractionalNumberRejected(t *testing.T) {
	p := MustNew("Count")
	root := &node{Count: 2}

	err := p.SetValue(root, 30.9)

	var tm *reflector.TypeMismatchError
	require.ErrorAs(t, err, &tm)
	assert.Equal(t, 2, root.Count)

	require.NoError(t, p.SetValue(root, 30.0))
	assert.Equal(t, 30, root.Count)
}

func TestResolver_SetValue_NilParent(t *testing.T) {
	root := &node{}

	err := MustNew("Child?.Name").SetValue(root, "x")
	assert.True(t, IsNullReference(err))
}

// =============================================================================
// Compile cache
// =============================================================================

func TestResolver_CacheEvictsLeastRecentlyUsed(t *testing.T) {
	p := MustNew("Name")

	for _, root := range []any{&rootA{}, &rootB{}, &rootC{}, &rootD{}} {
		_, err := p.GetValue(root)
		require.NoError(t, err)
	}
	assert.Equal(t, Stats{Compiles: 4, Cached: 4}, p.Stats())

	// Touch A so B becomes the oldest.
	_, err := p.GetValue(&rootA{})
	require.NoError(t, err)
	assert.Equal(t, 4, p.Stats().Compiles)

	_, err = p.GetValue(&rootE{})
	require.NoError(t, err)
	assert.Equal(t, Stats{Compiles: 5, Cached: MaxCacheEntries}, p.Stats())

	_, err = p.GetValue(&rootA{})
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stats().Compiles)

	_, err = p.GetValue(&rootB{})
	require.NoError(t, err)
	assert.Equal(t, 6, p.Stats().Compiles, "B was evicted and recompiles")
}

// =============================================================================
// Subscriptions
// =============================================================================

func TestResolver_AddChangedHandler_Leaf(t *testing.T) {
	p := MustNew("Child.Name")
	root := &node{Child: &node{Name: "a"}}

	var got []any
	h := NewHandler(func(_ any, v any) { got = append(got, v) })

	ok, err := p.AddChangedHandler(root, h)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, p.Subscriptions())

	root.Child.Name = "b"
	root.Child.Emit(root.Child, "Name")
	root.Child.Emit(root.Child, "Count")

	assert.Equal(t, []any{"b"}, got)
}

func TestResolver_AddChangedHandler_IntermediateReplaced(t *testing.T) {
	p := MustNew("Child.Name")
	old := &node{Name: "a"}
	root := &node{Child: old}

	var sources, values []any
	h := NewHandler(func(src any, v any) {
		sources = append(sources, src)
		values = append(values, v)
	})
	_, err := p.AddChangedHandler(root, h)
	require.NoError(t, err)

	root.Child = &node{Name: "c"}
	root.Emit(root, "Child")

	require.Equal(t, []any{"c"}, values)
	assert.Same(t, root, sources[0])

	// Resubscribing moves the leaf hook to the new child.
	_, err = p.AddChangedHandler(root, h)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Subscriptions())
	assert.Equal(t, 0, old.Len())

	old.Emit(old, "Name")
	assert.Len(t, values, 1)
}

func TestResolver_RemoveChangedHandler(t *testing.T) {
	p := MustNew("Child.Name")
	root := &node{Child: &node{}}
	h := NewHandler(func(any, any) {})

	_, err := p.AddChangedHandler(root, h)
	require.NoError(t, err)
	require.Equal(t, 1, root.Len())
	require.Equal(t, 1, root.Child.Len())

	assert.True(t, p.RemoveChangedHandler(root, h))
	assert.False(t, p.RemoveChangedHandler(root, h))

	assert.Equal(t, 0, p.Subscriptions())
	assert.Equal(t, 0, root.Len())
	assert.Equal(t, 0, root.Child.Len())
}

func TestResolver_HandlersShareHook(t *testing.T) {
	p := MustNew("Name")
	root := &node{}
	calls := 0
	h1 := NewHandler(func(any, any) { calls++ })
	h2 := NewHandler(func(any, any) { calls++ })

	_, err := p.AddChangedHandler(root, h1)
	require.NoError(t, err)
	_, err = p.AddChangedHandler(root, h2)
	require.NoError(t, err)

	assert.Equal(t, 1, p.Subscriptions())
	assert.Equal(t, 1, root.Len())

	root.Emit(root, "Name")
	assert.Equal(t, 2, calls)

	p.RemoveChangedHandler(root, h1)
	assert.Equal(t, 1, root.Len())
	p.RemoveChangedHandler(root, h2)
	assert.Equal(t, 0, root.Len())
}

func TestResolver_AddChangedHandler_StopsAtNil(t *testing.T) {
	p := MustNew("Child?.Name")
	root := &node{}

	var got []any
	h := NewHandler(func(_ any, v any) { got = append(got, v) })

	ok, err := p.AddChangedHandler(root, h)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, p.Subscriptions())

	root.Emit(root, "Child")
	assert.Equal(t, []any{""}, got)
}

func TestResolver_AddChangedHandler_NotObservable(t *testing.T) {
	p := MustNew("Name")

	ok, err := p.AddChangedHandler(&rootA{}, NewHandler(func(any, any) {}))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, p.Subscriptions())
}
