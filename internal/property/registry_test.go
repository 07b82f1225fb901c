package property

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Register
// =============================================================================

func TestRegister_DuplicateConflicts(t *testing.T) {
	_, err := Register[*widget, string]("Title", "again")

	require.Error(t, err)
	assert.True(t, IsRegistrationConflict(err))
}

func TestRegister_PointerAndValueOwnerAreSame(t *testing.T) {
	_, err := Register[widget, int]("Count", 1)

	assert.True(t, IsRegistrationConflict(err))
}

func TestRegister_DistinctOwnersAndNames(t *testing.T) {
	assert.NotSame(t, titleProp.Descriptor, gadgetTitle.Descriptor)
	assert.NotSame(t, titleProp.Descriptor, countProp.Descriptor)

	assert.Equal(t, "widget.Title", titleProp.String())
	assert.Equal(t, reflect.TypeFor[string](), titleProp.Type())
	assert.Equal(t, "untitled", titleProp.Default())
}

func TestMustRegister_PanicsOnConflict(t *testing.T) {
	assert.Panics(t, func() {
		MustRegister[*gadget, string]("Title", "")
	})
}

// =============================================================================
// Lookup
// =============================================================================

func TestLookup_OwnerType(t *testing.T) {
	d, ok := Lookup("Title", reflect.TypeFor[*widget]())
	require.True(t, ok)
	assert.Same(t, titleProp.Descriptor, d)

	d, ok = Lookup("Title", reflect.TypeFor[*gadget]())
	require.True(t, ok)
	assert.Same(t, gadgetTitle.Descriptor, d)
}

func TestLookup_WalksEmbeddedBase(t *testing.T) {
	d, ok := Lookup("Theme", reflect.TypeFor[*fancy]())

	require.True(t, ok)
	assert.Same(t, themeProp.Descriptor, d)
}

func TestLookup_InterfaceOwner(t *testing.T) {
	d, ok := Lookup("DataContext", reflect.TypeFor[*gadget]())

	require.True(t, ok)
	assert.Same(t, ContextProperty.Descriptor, d)
}

func TestLookup_Missing(t *testing.T) {
	_, ok := Lookup("Nope", reflect.TypeFor[*widget]())
	assert.False(t, ok)

	_, ok = Lookup("Title", nil)
	assert.False(t, ok)
}

func TestLookup_RunsTypeRegistrationOnce(t *testing.T) {
	d, ok := Lookup("Lazy", reflect.TypeFor[*lazy]())
	require.True(t, ok)
	assert.Equal(t, 7, d.Default())
	assert.Same(t, lazyProp.Descriptor, d)

	Lookup("Lazy", reflect.TypeFor[*lazy]())
	EnsureRegistered(reflect.TypeFor[lazy]())
	assert.Equal(t, 1, lazyInits)

	assert.False(t, RegisterType(reflect.TypeFor[*lazy](), func() {}))
}

// =============================================================================
// Descriptor
// =============================================================================

func TestDescriptor_IsValidTarget(t *testing.T) {
	assert.True(t, titleProp.IsValidTarget(newWidget(nil)))
	assert.True(t, titleProp.IsValidTarget(newFancy()))
	assert.False(t, titleProp.IsValidTarget(newGadget()))
	assert.False(t, titleProp.IsValidTarget(nil))

	assert.True(t, dockProp.IsValidTarget(newWidget(nil)), "attached applies anywhere")
	assert.True(t, ContextProperty.IsValidTarget(newGadget()))
}

func TestDescriptor_Validate(t *testing.T) {
	w := newWidget(nil)

	assert.True(t, countProp.Validate(w, 3))
	assert.False(t, countProp.Validate(w, -1), "validator rejects")
	assert.False(t, countProp.Validate(w, "3"), "type mismatch is false, not an error")
	assert.False(t, countProp.Validate(w, nil))
	assert.True(t, ContextProperty.Validate(w, nil))
}

func TestDescriptor_NotifyChanged(t *testing.T) {
	countChanged = 0

	require.NoError(t, countProp.NotifyChanged(newWidget(nil), 1))
	assert.Equal(t, 1, countChanged)

	err := countProp.NotifyChanged(newGadget(), 1)
	assert.True(t, IsInvalidTarget(err))

	err = countProp.NotifyChanged(newWidget(nil), "x")
	assert.True(t, IsTypeMismatch(err))
	assert.Equal(t, 1, countChanged)
}
