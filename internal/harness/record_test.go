package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/knit/internal/path"
	"github.com/roach88/knit/internal/property"
)

func TestRecord_SetMemberEmits(t *testing.T) {
	rec := NewRecord("person", map[string]any{"Name": "Ann"})

	var changed []string
	rec.Observe(func(sender any, member string) {
		assert.Same(t, rec, sender)
		changed = append(changed, member)
	})

	require.NoError(t, rec.SetMember("Name", "Bob"))
	require.NoError(t, rec.SetMember("Age", 40))

	assert.Equal(t, []string{"Name", "Age"}, changed)
	v, ok := rec.Member("Name")
	assert.True(t, ok)
	assert.Equal(t, "Bob", v)
}

func TestRecord_CopiesFields(t *testing.T) {
	fields := map[string]any{"Name": "Ann"}
	rec := NewRecord("person", fields)
	fields["Name"] = "Changed"

	v, _ := rec.Member("Name")
	assert.Equal(t, "Ann", v)
}

func TestRecord_MissingMember(t *testing.T) {
	rec := NewRecord("empty", nil)

	_, ok := rec.Member("Name")
	assert.False(t, ok)

	require.NoError(t, rec.SetMember("Name", "Ann"))
	assert.Equal(t, []string{"Name"}, rec.Members())
}

func TestRecord_MembersSorted(t *testing.T) {
	rec := NewRecord("r", map[string]any{"b": 1, "c": 2, "a": 3})
	assert.Equal(t, []string{"a", "b", "c"}, rec.Members())
	assert.Equal(t, "@r", rec.String())
	assert.Equal(t, "r", rec.Name())
}

func TestRecord_ResolvedThroughPath(t *testing.T) {
	inner := NewRecord("address", map[string]any{"City": "Oslo"})
	outer := NewRecord("person", map[string]any{"Address": inner})

	p, err := path.New("Address.City", path.WithReflector(property.DefaultReflector()))
	require.NoError(t, err)

	v, err := p.GetValue(outer)
	require.NoError(t, err)
	assert.Equal(t, "Oslo", v)

	require.NoError(t, p.SetValue(outer, "Bergen"))
	v, _ = inner.Member("City")
	assert.Equal(t, "Bergen", v)
}
