package value

import "fmt"

// Header is the container envelope (spec §3 "Container").
type Header struct {
	SourceID      string
	SourceSubID   string // conventionally "host:port"
	TargetID      string
	TargetSubID   string // conventionally "host:port"
	MessageType   string
	IndicationID  string // optional; empty when unused
	HasIndication bool
}

// Container is a root message: an envelope plus an ordered list of
// top-level values, with ordered multi-map semantics by Name.
type Container struct {
	Header
	values []*Value
}

func NewContainer(srcID, srcSub, tgtID, tgtSub, msgType string, values []*Value) *Container {
	return &Container{
		Header: Header{
			SourceID:    srcID,
			SourceSubID: srcSub,
			TargetID:    tgtID,
			TargetSubID: tgtSub,
			MessageType: msgType,
		},
		values: append([]*Value(nil), values...),
	}
}

// Add appends v to the end of the top-level value list.
func (c *Container) Add(v *Value) { c.values = append(c.values, v) }

// Remove deletes every top-level value whose Name equals name, and reports
// how many were removed.
func (c *Container) Remove(name string) int {
	out := c.values[:0]
	n := 0
	for _, v := range c.values {
		if v.Name == name {
			n++
			continue
		}
		out = append(out, v)
	}
	c.values = out
	return n
}

// ValueArray returns every top-level value named name, in insertion order.
func (c *Container) ValueArray(name string) []*Value {
	var out []*Value
	for _, v := range c.values {
		if v.Name == name {
			out = append(out, v)
		}
	}
	return out
}

// GetValue returns the index'th (0-based) top-level value named name, or
// nil if there is no such occurrence.
func (c *Container) GetValue(name string, index int) *Value {
	i := 0
	for _, v := range c.values {
		if v.Name == name {
			if i == index {
				return v
			}
			i++
		}
	}
	return nil
}

// Values returns the full ordered top-level value list; callers must treat
// it as read-only.
func (c *Container) Values() []*Value { return c.values }

// SwapHeader exchanges source and target identifiers in place.
func (c *Container) SwapHeader() {
	c.SourceID, c.TargetID = c.TargetID, c.SourceID
	c.SourceSubID, c.TargetSubID = c.TargetSubID, c.SourceSubID
}

// Copy returns a copy of the container; deep recurses into nested container
// values, shallow shares child Value identity (spec §4.1).
func (c *Container) Copy(deep bool) *Container {
	cp := &Container{Header: c.Header}
	cp.values = make([]*Value, len(c.values))
	for i, v := range c.values {
		cp.values[i] = v.Copy(deep)
	}
	return cp
}

// Equal reports structural equality of envelope and ordered values.
func (c *Container) Equal(o *Container) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c.Header != o.Header {
		return false
	}
	if len(c.values) != len(o.values) {
		return false
	}
	for i := range c.values {
		if !c.values[i].Equal(o.values[i]) {
			return false
		}
	}
	return true
}

// Walk visits every value in document order, depth-first, including
// children of nested containers; path accumulates value names from the
// root. Walk stops early if visit returns false (SPEC_FULL §4.1).
func (c *Container) Walk(visit func(path []string, v *Value) bool) {
	var walk func(path []string, values []*Value) bool
	walk = func(path []string, values []*Value) bool {
		for _, v := range values {
			p := append(append([]string(nil), path...), v.Name)
			if !visit(p, v) {
				return false
			}
			if v.Type == TypeContainer {
				if !walk(p, v.Children()) {
					return false
				}
			}
		}
		return true
	}
	walk(nil, c.values)
}

func (c *Container) String() string {
	return fmt.Sprintf("container{%s/%s -> %s/%s, type=%s, %d values}",
		c.SourceID, c.SourceSubID, c.TargetID, c.TargetSubID, c.MessageType, len(c.values))
}
