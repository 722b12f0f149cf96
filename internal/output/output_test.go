package output

import (
	"reflect"
	"testing"
)

func TestParse_ReplacesInputPathAndTags(t *testing.T) {
	raw := []byte("assembling /tmp/build1/foo.run\n/tmp/build1/foo.run:12:3: unknown opcode\n/tmp/build1/foo.run:4: bad label\ndone\n")
	got := Parse(raw, "/tmp/build1/foo.run")

	want := []Line{
		{Text: "assembling <source>"},
		{Text: "<source>:12:3: unknown opcode", Tag: &Tag{Line: 12, Column: 3, Text: "unknown opcode"}},
		{Text: "<source>:4: bad label", Tag: &Tag{Line: 4, Column: 0, Text: "bad label"}},
		{Text: "done"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() = %+v, want %+v", got, want)
	}
}

func TestParse_ParenthesisedLocation(t *testing.T) {
	got := Parse([]byte("foo.run(7,2): error: missing operand"), "foo.run")
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Tag == nil {
		t.Fatal("Tag = nil, want tag")
	}
	if got[0].Tag.Line != 7 || got[0].Tag.Column != 2 {
		t.Errorf("Tag = %+v, want line 7 column 2", got[0].Tag)
	}
	if got[0].Tag.Text != "error: missing operand" {
		t.Errorf("Tag.Text = %q", got[0].Tag.Text)
	}
}

func TestParse_Empty(t *testing.T) {
	got := Parse(nil, "foo.run")
	if got == nil || len(got) != 0 {
		t.Errorf("Parse(nil) = %#v, want empty non-nil slice", got)
	}
}

func TestParse_CRLF(t *testing.T) {
	got := Parse([]byte("a\r\nb\r\n"), "")
	if len(got) != 2 || got[0].Text != "a" || got[1].Text != "b" {
		t.Errorf("Parse(CRLF) = %+v, want [a b]", got)
	}
}

func TestParse_DropsBlankLines(t *testing.T) {
	got := Parse([]byte("a\n\nb\n"), "")
	want := []Line{{Text: "a"}, {Text: "b"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() = %+v, want %+v", got, want)
	}
}

func TestParse_StdinAndFixme(t *testing.T) {
	got := Parse([]byte("fixme:heap:HeapSetInformation stub\n<stdin>:3: unknown opcode\n"), "")
	if len(got) != 1 {
		t.Fatalf("Parse() = %+v, want one line", got)
	}
	if got[0].Text != "<source>:3: unknown opcode" {
		t.Errorf("Text = %q", got[0].Text)
	}
	if got[0].Tag == nil || got[0].Tag.Line != 3 {
		t.Errorf("Tag = %+v, want line 3", got[0].Tag)
	}
}

func TestString(t *testing.T) {
	lines := []Line{{Text: "one"}, {Text: "two"}}
	if got := String(lines); got != "one\ntwo\n" {
		t.Errorf("String() = %q", got)
	}
}
