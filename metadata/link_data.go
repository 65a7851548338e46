package metadata

import (
	"errors"
	"fmt"

	"github.com/jvzon-lab/tracklineage/geom"
)

// ErrBadLink indicates an operation on a link whose endpoints are not in
// consecutive time points (|dt| != 1).
var ErrBadLink = errors.New("metadata: link endpoints must be in consecutive time points")

// LinkKey canonically identifies an undirected link between two positions
// in consecutive time points: (A, B) and (B, A) compare equal as a map key
// because Canonical always orders the earlier position first.
type LinkKey struct {
	Earlier, Later geom.Position
}

// Canonical builds a LinkKey from two linked positions, requiring
// consecutive time points and ordering the earlier position first so that
// (a, b) and (b, a) produce the same key. Fails with ErrBadLink if the
// positions are not exactly one time point apart.
func Canonical(a, b geom.Position) (LinkKey, error) {
	dt := a.T - b.T
	if dt != 1 && dt != -1 {
		return LinkKey{}, fmt.Errorf("%w: t=%d and t=%d", ErrBadLink, a.T, b.T)
	}
	if dt < 0 {
		return LinkKey{Earlier: a, Later: b}, nil
	}
	return LinkKey{Earlier: b, Later: a}, nil
}

// LinkData is a two-level mapping data_name -> (link -> value). The zero
// value is empty and ready to use.
type LinkData struct {
	byName map[string]map[LinkKey]Value
}

// NewLinkData returns an empty LinkData.
func NewLinkData() *LinkData {
	return &LinkData{byName: make(map[string]map[LinkKey]Value)}
}

// Get returns the value stored for the link (a, b) under name.
func (d *LinkData) Get(a, b geom.Position, name string) (Value, bool, error) {
	key, err := Canonical(a, b)
	if err != nil {
		return Value{}, false, err
	}
	byLink, ok := d.byName[name]
	if !ok {
		return Value{}, false, nil
	}
	v, ok := byLink[key]
	return v, ok, nil
}

// Set stores value for the link (a, b) under name, or removes it if value
// is nil. Rejects names starting with "__" and the reserved names
// "source"/"target".
func (d *LinkData) Set(a, b geom.Position, name string, value *Value) error {
	if err := checkReservedLinkName(name); err != nil {
		return err
	}
	key, err := Canonical(a, b)
	if err != nil {
		return err
	}
	byLink, ok := d.byName[name]
	if !ok {
		if value == nil {
			return nil
		}
		byLink = make(map[LinkKey]Value)
		d.byName[name] = byLink
	}
	if value == nil {
		delete(byLink, key)
		if len(byLink) == 0 {
			delete(d.byName, name)
		}
		return nil
	}
	byLink[key] = *value
	return nil
}

// RemoveLink drops all data stored for the link between a and b.
func (d *LinkData) RemoveLink(a, b geom.Position) {
	key, err := Canonical(a, b)
	if err != nil {
		return
	}
	for name, byLink := range d.byName {
		if _, ok := byLink[key]; ok {
			delete(byLink, key)
			if len(byLink) == 0 {
				delete(d.byName, name)
			}
		}
	}
}

// RemovePosition drops all link-data entries touching p, regardless of
// its role (earlier or later) in the link.
func (d *LinkData) RemovePosition(p geom.Position) {
	for name, byLink := range d.byName {
		for key := range byLink {
			if key.Earlier == p || key.Later == p {
				delete(byLink, key)
			}
		}
		if len(byLink) == 0 {
			delete(d.byName, name)
		}
	}
}

// ReplacePosition rekeys every link-data entry that touches old so it
// touches new_ instead, preserving the stored values.
func (d *LinkData) ReplacePosition(old, new_ geom.Position) {
	for _, byLink := range d.byName {
		for key, v := range byLink {
			if key.Earlier != old && key.Later != old {
				continue
			}
			delete(byLink, key)
			replacement := key
			if key.Earlier == old {
				replacement.Earlier = new_
			}
			if key.Later == old {
				replacement.Later = new_
			}
			byLink[replacement] = v
		}
	}
}

// Merge overwrites d's entries with other's on key collision within a
// data name.
func (d *LinkData) Merge(other *LinkData) {
	for name, byLink := range other.byName {
		dst, ok := d.byName[name]
		if !ok {
			dst = make(map[LinkKey]Value, len(byLink))
			d.byName[name] = dst
		}
		for key, v := range byLink {
			dst[key] = v
		}
	}
}

// Copy returns a deep copy of d.
func (d *LinkData) Copy() *LinkData {
	out := NewLinkData()
	for name, byLink := range d.byName {
		cp := make(map[LinkKey]Value, len(byLink))
		for key, v := range byLink {
			cp[key] = v
		}
		out.byName[name] = cp
	}
	return out
}
