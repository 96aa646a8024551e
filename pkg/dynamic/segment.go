package dynamic

import "strings"

// SegmentKind identifies the kind of a parsed segment.
type SegmentKind string

const (
	// SegmentStatic is literal text fixed at parse time.
	SegmentStatic SegmentKind = "static"

	// SegmentCommand is a command expression found between {{ and }}.
	SegmentCommand SegmentKind = "command"

	// SegmentVariable is a reference to a named variable.
	SegmentVariable SegmentKind = "variable"
)

// Segment is one unit of a parsed template.
type Segment struct {
	Kind  SegmentKind `json:"kind"`
	Value string      `json:"value"`
}

// Static returns a static text segment.
func Static(text string) Segment {
	return Segment{Kind: SegmentStatic, Value: text}
}

// Command returns a command expression segment.
func Command(expr string) Segment {
	return Segment{Kind: SegmentCommand, Value: expr}
}

// Variable returns a variable reference segment.
func Variable(name string) Segment {
	return Segment{Kind: SegmentVariable, Value: name}
}

// IsDynamic reports whether the segment is driven by a producer.
func (s Segment) IsDynamic() bool {
	return s.Kind == SegmentCommand || s.Kind == SegmentVariable
}

// Raw returns template text that parses back to this segment.
func (s Segment) Raw() string {
	switch s.Kind {
	case SegmentCommand:
		return "{{" + s.Value + "}}"
	case SegmentVariable:
		return "#" + s.Value
	default:
		return strings.ReplaceAll(s.Value, "#", "##")
	}
}

func (s Segment) String() string {
	return string(s.Kind) + "(" + s.Value + ")"
}

// Raw reconstructs template text from a segment list.
func Raw(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Raw())
	}
	return b.String()
}
