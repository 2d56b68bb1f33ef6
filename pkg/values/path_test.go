package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() []UIValue {
	return []UIValue{
		{Name: "a", DisplayName: "A", Value: Int{Value: 1}},
		{Name: "arr", DisplayName: "Arr", Value: Array{
			Template: []UIValue{{Name: "n", DisplayName: "N", Value: Int{}}},
			Elements: [][]UIValue{
				{{Name: "n", DisplayName: "N", Value: Int{Value: 10}}},
				{{Name: "n", DisplayName: "N", Value: Int{Value: 20}}},
				{{Name: "n", DisplayName: "N", Value: Int{Value: 30}}},
			},
		}},
		{Name: "style", DisplayName: "Style", Value: Group{
			Fields: []UIValue{
				{Name: "fg", DisplayName: "Foreground", Value: Color{R: 255, A: 255}},
				{Name: "locked", DisplayName: "Locked", ReadOnly: true, Value: Bool{Value: true}},
			},
		}},
	}
}

// TestGetByPath tests path resolution across groups and arrays.
func TestGetByPath(t *testing.T) {
	tree := sampleTree()

	tests := []struct {
		name    string
		path    string
		want    Field
		wantErr bool
	}{
		{name: "top-level scalar", path: "a", want: Int{Value: 1}},
		{name: "array element", path: "arr[1]", want: Int{Value: 20}},
		{name: "group field", path: "style.fg", want: Color{R: 255, A: 255}},
		{name: "missing name", path: "nope", wantErr: true},
		{name: "missing nested name", path: "style.nope", wantErr: true},
		{name: "index out of range", path: "arr[9]", wantErr: true},
		{name: "index on scalar", path: "a[0]", wantErr: true},
		{name: "malformed index", path: "arr[x]", wantErr: true},
		{name: "empty path", path: "", wantErr: true},
		{name: "trailing dot", path: "style.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GetByPath(tree, tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Value)
		})
	}
}

// TestSetByPath tests in-place replacement semantics: the target changes,
// siblings do not, and the input tree is never mutated.
func TestSetByPath(t *testing.T) {
	tree := sampleTree()

	edited, ok := SetByPath(tree, UIPathValue{
		UIValue: UIValue{Name: "n", Value: Int{Value: 99}},
		Path:    "arr[1]",
	})
	require.True(t, ok)

	got, err := GetByPath(edited, "arr[1]")
	require.NoError(t, err)
	assert.Equal(t, Int{Value: 99}, got.Value)

	// Siblings untouched.
	for _, path := range []string{"a", "arr[0]", "arr[2]", "style.fg"} {
		before, err := GetByPath(tree, path)
		require.NoError(t, err)
		after, err := GetByPath(edited, path)
		require.NoError(t, err)
		assert.Equal(t, before.Value, after.Value, "sibling %s changed", path)
	}

	// Input tree unchanged.
	original, err := GetByPath(tree, "arr[1]")
	require.NoError(t, err)
	assert.Equal(t, Int{Value: 20}, original.Value)
}

// TestSetByPathRejections tests kind mismatches, read-only targets and
// invalid choice selections.
func TestSetByPathRejections(t *testing.T) {
	tree := []UIValue{
		{Name: "a", DisplayName: "A", Value: Int{Value: 1}},
		{Name: "locked", DisplayName: "Locked", ReadOnly: true, Value: Text{Value: "x"}},
		{Name: "align", DisplayName: "Align", Value: Choice{
			Options:  []string{"left", "right"},
			Selected: "left",
		}},
	}

	tests := []struct {
		name  string
		value UIPathValue
	}{
		{
			name:  "kind mismatch",
			value: UIPathValue{UIValue: UIValue{Value: Text{Value: "no"}}, Path: "a"},
		},
		{
			name:  "read-only target",
			value: UIPathValue{UIValue: UIValue{Value: Text{Value: "y"}}, Path: "locked"},
		},
		{
			name:  "choice outside options",
			value: UIPathValue{UIValue: UIValue{Value: Choice{Selected: "middle"}}, Path: "align"},
		},
		{
			name:  "nil payload",
			value: UIPathValue{Path: "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edited, ok := SetByPath(tree, tt.value)
			assert.False(t, ok)
			assert.Equal(t, tree, edited)
		})
	}
}

// TestArrayAddRemove mirrors the editing scenario from the daemon protocol:
// removing element 1 of [10,20,30] yields [10,30], removing element 9 fails
// and leaves the tree unchanged.
func TestArrayAddRemove(t *testing.T) {
	tree := sampleTree()

	t.Run("remove middle element", func(t *testing.T) {
		edited, ok := RemoveArrayElement(tree, "arr", 1)
		require.True(t, ok)

		arr := mustGet(t, edited, "arr").Value.(Array)
		require.Len(t, arr.Elements, 2)
		assert.Equal(t, Int{Value: 10}, arr.Elements[0][0].Value)
		assert.Equal(t, Int{Value: 30}, arr.Elements[1][0].Value)

		// "a" sibling unaffected.
		assert.Equal(t, Int{Value: 1}, mustGet(t, edited, "a").Value)
	})

	t.Run("remove out of range", func(t *testing.T) {
		edited, ok := RemoveArrayElement(tree, "arr", 9)
		assert.False(t, ok)
		assert.Equal(t, tree, edited)
	})

	t.Run("add from template", func(t *testing.T) {
		edited, ok := AddArrayElement(tree, "arr")
		require.True(t, ok)

		arr := mustGet(t, edited, "arr").Value.(Array)
		require.Len(t, arr.Elements, 4)
		assert.Equal(t, Int{}, arr.Elements[3][0].Value)
	})

	t.Run("add to non-array", func(t *testing.T) {
		edited, ok := AddArrayElement(tree, "a")
		assert.False(t, ok)
		assert.Equal(t, tree, edited)
	})

	t.Run("remove from read-only", func(t *testing.T) {
		locked := []UIValue{{Name: "arr", ReadOnly: true, Value: Array{
			Elements: [][]UIValue{{{Name: "n", Value: Int{Value: 1}}}},
		}}}
		_, ok := RemoveArrayElement(locked, "arr", 0)
		assert.False(t, ok)
	})
}

// TestToPathValues tests the flattened path listing used by the protocol's
// get_component_values response.
func TestToPathValues(t *testing.T) {
	flat := ToPathValues(sampleTree())

	paths := make(map[string]UIPathValue, len(flat))
	for _, pv := range flat {
		paths[pv.Path] = pv
	}

	require.Contains(t, paths, "a")
	require.Contains(t, paths, "arr")
	require.Contains(t, paths, "arr[0]")
	require.Contains(t, paths, "arr[2]")
	require.Contains(t, paths, "style")
	require.Contains(t, paths, "style.fg")
	assert.Equal(t, Int{Value: 30}, paths["arr[2]"].Value)
	assert.Equal(t, Color{R: 255, A: 255}, paths["style.fg"].Value)
}

func mustGet(t *testing.T, tree []UIValue, path string) UIValue {
	t.Helper()
	v, err := GetByPath(tree, path)
	require.NoError(t, err)
	return v
}
