package value_test

import (
	"testing"

	"github.com/meshline/msgline/value"
)

func sample() *value.Container {
	nested := value.NewContainerValue("nested", []*value.Value{
		value.NewString("s", "x"),
		value.NewLong("i", -7),
		value.NewBool("b", true),
	})
	return value.NewContainer("c1", "10.0.0.1:9000", "s1", "10.0.0.2:9000", "echo", []*value.Value{
		value.NewString("greeting", "hi;there[]//edge"),
		value.NewBytes("blob", []byte{0x00, 0xff, ';', ']', '[', '/', '/'}),
		value.NewDouble("pi", 3.14159),
		nested,
	})
}

func TestRoundTrip(t *testing.T) {
	c := sample()
	out, err := value.Deserialize(value.Serialize(c))
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if !c.Equal(out) {
		t.Fatalf("round trip mismatch:\n  in:  %s\n  out: %s", c, out)
	}
}

func TestSwapHeaderIdempotent(t *testing.T) {
	c := sample()
	orig := c.Copy(true)
	c.SwapHeader()
	c.SwapHeader()
	if !c.Equal(orig) {
		t.Fatalf("swap_header(swap_header(c)) != c")
	}
}

func TestMultiMapSemantics(t *testing.T) {
	c := value.NewContainer("a", "", "b", "", "mt", nil)
	c.Add(value.NewString("k", "1"))
	c.Add(value.NewString("k", "2"))
	c.Add(value.NewString("other", "x"))

	arr := c.ValueArray("k")
	if len(arr) != 2 || arr[0].Str() != "1" || arr[1].Str() != "2" {
		t.Fatalf("unexpected value_array result: %v", arr)
	}
	if v := c.GetValue("k", 1); v == nil || v.Str() != "2" {
		t.Fatalf("get_value(k,1) = %v", v)
	}
	n := c.Remove("k")
	if n != 2 || len(c.ValueArray("k")) != 0 {
		t.Fatalf("remove did not delete all occurrences")
	}
	if len(c.Values()) != 1 {
		t.Fatalf("remove should not touch other names")
	}
}

func TestDeepVsShallowCopy(t *testing.T) {
	child := value.NewString("s", "orig")
	parent := value.NewContainer("a", "", "b", "", "mt", []*value.Value{
		value.NewContainerValue("n", []*value.Value{child}),
	})

	shallow := parent.Copy(false)
	if shallow.Values()[0].Children()[0] != parent.Values()[0].Children()[0] {
		t.Fatalf("shallow copy must share child Value identity")
	}

	deep := parent.Copy(true)
	if deep.Values()[0].Children()[0] == parent.Values()[0].Children()[0] {
		t.Fatalf("deep copy must not share child Value identity")
	}
	if !deep.Equal(parent) {
		t.Fatalf("deep copy must be structurally equal")
	}
}

func TestWalk(t *testing.T) {
	c := sample()
	var names []string
	c.Walk(func(path []string, v *value.Value) bool {
		names = append(names, path[len(path)-1])
		return true
	})
	want := []string{"greeting", "blob", "pi", "nested", "s", "i", "b"}
	if len(names) != len(want) {
		t.Fatalf("Walk visited %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Walk[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

// TestEscapeInjective guards against a lone '/' immediately before a
// delimiter byte colliding with that delimiter's own escape sequence: e.g.
// the bytes "/]"  and "//1" must not serialize to the same wire text.
func TestEscapeInjective(t *testing.T) {
	cases := [][]byte{
		[]byte("/["),
		[]byte("/]"),
		[]byte("/;"),
		[]byte("path/[0]"),
		[]byte("//1"),
		[]byte("a/"),
		[]byte("/"),
	}
	seen := map[string][]byte{}
	for _, raw := range cases {
		c := value.NewContainer("a", "", "b", "", "mt", []*value.Value{value.NewBytes("v", raw)})
		wire := value.Serialize(c)
		if prior, ok := seen[string(wire)]; ok && string(prior) != string(raw) {
			t.Fatalf("encode collision: %q and %q both produce %q", prior, raw, wire)
		}
		seen[string(wire)] = raw

		out, err := value.Deserialize(wire)
		if err != nil {
			t.Fatalf("deserialize(%q): %v", raw, err)
		}
		got := out.Values()[0].Bytes()
		if string(got) != string(raw) {
			t.Fatalf("round trip mismatch: in=%q out=%q", raw, got)
		}
	}
}

func TestDeserializeMalformedRejected(t *testing.T) {
	cases := [][]byte{
		[]byte(``),
		[]byte(`@header={[source,a,b];[target,c,d];[message_type,mt];};@data={[n,z,x];};`), // unknown type
		[]byte(`@header={[source,a,b];[target,c,d];[message_type,mt];};@data={[n,4,a];};`), // bad width for int16
		[]byte(`@header={[source,a,b];[target,c,d];[message_type,mt];};@data={[n,1,` + "\x00\x00" + `];};`), // bool must be 1 byte
	}
	for i, raw := range cases {
		if _, err := value.Deserialize(raw); err == nil {
			t.Fatalf("case %d: expected error, got nil", i)
		}
	}
}
