package value

import "strings"

// Serialize renders c in the stable textual format (spec §4.1):
//
//	@header={[source,<sid>,<ssid>];[target,<tid>,<tsid>];[message_type,<mt>];};
//	@data={<value>;<value>;...};
func Serialize(c *Container) []byte {
	var b strings.Builder
	b.WriteString("@header={")
	writeField(&b, "source", c.SourceID, c.SourceSubID)
	writeField(&b, "target", c.TargetID, c.TargetSubID)
	writeField(&b, "message_type", c.MessageType)
	if c.HasIndication {
		writeField(&b, "indication", c.IndicationID)
	}
	b.WriteString("};@data={")
	for _, v := range c.values {
		writeValueBlock(&b, v)
		b.WriteByte(';')
	}
	b.WriteString("};")
	return []byte(b.String())
}

func writeField(b *strings.Builder, tag string, vals ...string) {
	b.WriteByte('[')
	b.WriteString(tag)
	for _, v := range vals {
		b.WriteByte(',')
		b.WriteString(escapeEncode([]byte(v)))
	}
	b.WriteString("];")
}

func writeValueBlock(b *strings.Builder, v *Value) {
	b.WriteByte('[')
	b.WriteString(v.Name)
	b.WriteByte(',')
	b.WriteByte(byte(v.Type))
	b.WriteByte(',')
	if v.Type == TypeContainer {
		for _, c := range v.childv {
			writeValueBlock(b, c)
		}
	} else {
		b.WriteString(escapeEncode(v.rawBytes()))
	}
	b.WriteByte(']')
}

// Deserialize parses the textual format produced by Serialize, returning
// one of the package's unexported sentinel errors (errors.go; plain errors,
// not cmn.Error values) on any malformed input; no partial container is
// ever returned alongside an error (spec §4.1 "Failure modes").
func Deserialize(b []byte) (*Container, error) {
	s := string(b)
	pos := 0

	const headerPrefix = "@header={"
	const dataPrefix = "@data={"

	if !strings.HasPrefix(s[pos:], headerPrefix) {
		return nil, errMissingMarker
	}
	pos += len(headerPrefix)

	c := &Container{}
	for pos < len(s) && s[pos] == '[' {
		inner, end, err := findBlock(s, pos)
		if err != nil {
			return nil, err
		}
		if err := applyHeaderField(c, inner); err != nil {
			return nil, err
		}
		pos = end
		if pos >= len(s) || s[pos] != ';' {
			return nil, errMissingMarker
		}
		pos++
	}
	if !strings.HasPrefix(s[pos:], "};") {
		return nil, errMissingMarker
	}
	pos += 2

	if !strings.HasPrefix(s[pos:], dataPrefix) {
		return nil, errMissingMarker
	}
	pos += len(dataPrefix)

	for pos < len(s) && s[pos] == '[' {
		v, end, err := parseValueBlock(s, pos)
		if err != nil {
			return nil, err
		}
		c.values = append(c.values, v)
		pos = end
		if pos >= len(s) || s[pos] != ';' {
			return nil, errMissingMarker
		}
		pos++
	}
	if !strings.HasPrefix(s[pos:], "};") {
		return nil, errMissingMarker
	}
	pos += 2
	if pos != len(s) {
		return nil, errUnbalancedBraces
	}
	return c, nil
}

func applyHeaderField(c *Container, inner string) error {
	fields := strings.Split(inner, ",")
	decoded := make([]string, len(fields))
	for i, f := range fields {
		d, err := escapeDecode(f)
		if err != nil {
			return err
		}
		decoded[i] = string(d)
	}
	switch decoded[0] {
	case "source":
		if len(decoded) != 3 {
			return errTruncated
		}
		c.SourceID, c.SourceSubID = decoded[1], decoded[2]
	case "target":
		if len(decoded) != 3 {
			return errTruncated
		}
		c.TargetID, c.TargetSubID = decoded[1], decoded[2]
	case "message_type":
		if len(decoded) != 2 {
			return errTruncated
		}
		c.MessageType = decoded[1]
	case "indication":
		if len(decoded) != 2 {
			return errTruncated
		}
		c.IndicationID = decoded[1]
		c.HasIndication = true
	default:
		return errMissingMarker
	}
	return nil
}

// findBlock locates the "[...]" block starting at s[pos] ('[' required),
// tracking bracket depth so nested-container data (which embeds literal,
// unescaped child brackets) is matched correctly, while escape triplets
// ("//0", "//1", "//2", "//3") inside leaf data are skipped as opaque runs
// so their literal '/' characters never perturb the depth count.
func findBlock(s string, pos int) (inner string, end int, err error) {
	if pos >= len(s) || s[pos] != '[' {
		return "", 0, errMissingMarker
	}
	depth := 0
	i := pos
	for i < len(s) {
		c := s[i]
		if c == '/' && i+1 < len(s) && s[i+1] == '/' {
			i += 3
			continue
		}
		switch c {
		case '[':
			depth++
			i++
		case ']':
			depth--
			i++
			if depth == 0 {
				return s[pos+1 : i-1], i, nil
			}
		default:
			i++
		}
	}
	return "", 0, errUnbalancedBraces
}

// parseValueBlock parses one "[name,type,data]" block starting at s[pos].
func parseValueBlock(s string, pos int) (*Value, int, error) {
	inner, end, err := findBlock(s, pos)
	if err != nil {
		return nil, 0, err
	}
	comma := strings.IndexByte(inner, ',')
	if comma < 0 || comma+2 >= len(inner) || inner[comma+2] != ',' {
		return nil, 0, errTruncated
	}
	name := inner[:comma]
	typeCode := Type(inner[comma+1])
	if !typeCode.Valid() {
		return nil, 0, errUnknownType
	}
	dataStr := inner[comma+3:]
	v := &Value{Name: name, Type: typeCode}
	if typeCode == TypeContainer {
		children, err := parseChildren(dataStr)
		if err != nil {
			return nil, 0, err
		}
		v.childv = children
		return v, end, nil
	}
	raw, err := escapeDecode(dataStr)
	if err != nil {
		return nil, 0, err
	}
	if w := widthOf(typeCode); w >= 0 && len(raw) != w {
		return nil, 0, errBadWidth
	}
	if err := v.fromRawBytes(raw); err != nil {
		return nil, 0, err
	}
	return v, end, nil
}

// parseChildren parses a bare concatenation of "[...]" blocks (no
// separator between them, per spec §4.1's "concatenation of their
// children").
func parseChildren(s string) ([]*Value, error) {
	var out []*Value
	pos := 0
	for pos < len(s) {
		if s[pos] != '[' {
			return nil, errMissingMarker
		}
		v, end, err := parseValueBlock(s, pos)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		pos = end
	}
	return out, nil
}
