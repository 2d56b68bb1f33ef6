package values

import (
	"fmt"
	"strconv"
	"strings"
)

// A path addresses a single value inside a value list using dot and bracket
// notation: ".name" descends into a named sibling or group field, "[i]"
// selects the i-th element of an array. "background.color" and
// "text[2].font" are typical paths.
//
// Paths are total: a missing name, a bad index or a malformed expression is
// a reported failure, never a silent miss.

type pathSegment struct {
	name    string
	indices []int
}

func parsePath(path string) ([]pathSegment, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}
	var segs []pathSegment
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return nil, fmt.Errorf("malformed path %q: empty segment", path)
		}
		name := part
		var indices []int
		for {
			open := strings.IndexByte(name, '[')
			if open < 0 {
				break
			}
			rest := name[open:]
			name = name[:open]
			for rest != "" {
				if rest[0] != '[' {
					return nil, fmt.Errorf("malformed path %q: unexpected %q", path, rest)
				}
				close := strings.IndexByte(rest, ']')
				if close < 0 {
					return nil, fmt.Errorf("malformed path %q: unterminated index", path)
				}
				idx, err := strconv.Atoi(rest[1:close])
				if err != nil || idx < 0 {
					return nil, fmt.Errorf("malformed path %q: bad index %q", path, rest[1:close])
				}
				indices = append(indices, idx)
				rest = rest[close+1:]
			}
		}
		if name == "" {
			return nil, fmt.Errorf("malformed path %q: missing name", path)
		}
		segs = append(segs, pathSegment{name: name, indices: indices})
	}
	return segs, nil
}

// resolve walks segs through list and returns a pointer to the addressed
// value inside list, which must therefore be a tree the caller owns.
//
// A trailing "[i]" resolves to the element bundle; the bundle must then hold
// exactly one value, which becomes the target.
func resolve(list []UIValue, segs []pathSegment) (*UIValue, error) {
	current := list
	var target *UIValue
	for si, seg := range segs {
		target = nil
		for i := range current {
			if current[i].Name == seg.name {
				target = &current[i]
				break
			}
		}
		if target == nil {
			return nil, fmt.Errorf("no value named %q", seg.name)
		}
		for _, idx := range seg.indices {
			arr, ok := target.Value.(Array)
			if !ok {
				return nil, fmt.Errorf("%q is not an array", target.Name)
			}
			if idx >= len(arr.Elements) {
				return nil, fmt.Errorf("index %d out of range for %q", idx, target.Name)
			}
			current = arr.Elements[idx]
			if len(current) == 1 {
				target = &arr.Elements[idx][0]
			} else {
				target = nil
			}
		}
		if si == len(segs)-1 {
			break
		}
		// Descend for the next segment. Group fields share their backing
		// array with the value itself, so edits through the returned
		// pointer land in the original tree.
		if target != nil {
			if g, ok := target.Value.(Group); ok {
				current = g.Fields
			} else if len(seg.indices) == 0 {
				return nil, fmt.Errorf("cannot descend into %q", seg.name)
			}
		}
		if current == nil {
			return nil, fmt.Errorf("cannot descend past %q", seg.name)
		}
	}
	if target == nil {
		return nil, fmt.Errorf("path does not resolve to a single value")
	}
	return target, nil
}

// GetByPath resolves path inside list and returns a deep copy of the value
// it addresses. Reads never mutate, so walking a shared tree is safe.
func GetByPath(list []UIValue, path string) (UIValue, error) {
	segs, err := parsePath(path)
	if err != nil {
		return UIValue{}, err
	}
	target, err := resolve(list, segs)
	if err != nil {
		return UIValue{}, err
	}
	return target.Clone(), nil
}

// editByPath deep-copies list, resolves segs inside the copy and applies fn
// to the addressed value. On any failure the original list is returned
// untouched with ok=false; sibling values are never affected either way.
func editByPath(list []UIValue, path string, fn func(target *UIValue) error) ([]UIValue, bool) {
	segs, err := parsePath(path)
	if err != nil {
		return list, false
	}
	edited := CloneValues(list)
	target, err := resolve(edited, segs)
	if err != nil {
		return list, false
	}
	if target.ReadOnly {
		return list, false
	}
	if err := fn(target); err != nil {
		return list, false
	}
	return edited, true
}

// SetByPath replaces the value at value.Path with value's payload. The
// payload kind must match the target's kind; for choices the new selection
// must be one of the target's options. Returns the edited tree and whether
// the edit applied.
func SetByPath(list []UIValue, value UIPathValue) ([]UIValue, bool) {
	if value.Value == nil {
		return list, false
	}
	return editByPath(list, value.Path, func(target *UIValue) error {
		if target.Value == nil || target.Value.Kind() != value.Value.Kind() {
			return fmt.Errorf("kind mismatch")
		}
		if next, ok := value.Value.(Choice); ok {
			cur := target.Value.(Choice)
			if !contains(cur.Options, next.Selected) {
				return fmt.Errorf("%q is not a valid option", next.Selected)
			}
			// The option set itself is owned by the module.
			cur.Selected = next.Selected
			target.Value = cur
			return nil
		}
		target.Value = value.Value.clone()
		return nil
	})
}

// AddArrayElement appends a fresh clone of the array's template to the array
// at path.
func AddArrayElement(list []UIValue, path string) ([]UIValue, bool) {
	return editByPath(list, path, func(target *UIValue) error {
		arr, ok := target.Value.(Array)
		if !ok {
			return fmt.Errorf("not an array")
		}
		arr.Elements = append(arr.Elements, CloneValues(arr.Template))
		target.Value = arr
		return nil
	})
}

// RemoveArrayElement removes element index from the array at path.
// Out-of-range indices fail and leave the tree unchanged.
func RemoveArrayElement(list []UIValue, path string, index int) ([]UIValue, bool) {
	return editByPath(list, path, func(target *UIValue) error {
		arr, ok := target.Value.(Array)
		if !ok {
			return fmt.Errorf("not an array")
		}
		if index < 0 || index >= len(arr.Elements) {
			return fmt.Errorf("index %d out of range", index)
		}
		arr.Elements = append(arr.Elements[:index:index], arr.Elements[index+1:]...)
		if len(arr.Elements) == 0 {
			arr.Elements = nil
		}
		target.Value = arr
		return nil
	})
}

// ToPathValues flattens a value list into path-annotated values, one entry
// per addressable node, in depth-first order. Containers appear before their
// children.
func ToPathValues(list []UIValue) []UIPathValue {
	var out []UIPathValue
	appendPathValues(&out, list, "")
	return out
}

func appendPathValues(out *[]UIPathValue, list []UIValue, prefix string) {
	for _, v := range list {
		path := v.Name
		if prefix != "" {
			path = prefix + "." + v.Name
		}
		*out = append(*out, UIPathValue{UIValue: v.Clone(), Path: path})
		switch f := v.Value.(type) {
		case Group:
			appendPathValues(out, f.Fields, path)
		case Array:
			for i, elem := range f.Elements {
				elemPrefix := fmt.Sprintf("%s[%d]", path, i)
				if len(elem) == 1 {
					*out = append(*out, UIPathValue{UIValue: elem[0].Clone(), Path: elemPrefix})
					continue
				}
				appendPathValues(out, elem, elemPrefix)
			}
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
