package format

import (
	"bytes"
	"testing"
)

func TestWrite(t *testing.T) {
	t.Parallel()

	v := map[string]any{"data": []int{1, 2}}
	cases := []struct {
		format string
		pretty bool
		want   string
	}{
		{format: "", want: "{\"data\":[1,2]}\n"},
		{format: "json", pretty: true, want: "{\n  \"data\": [\n    1,\n    2\n  ]\n}\n"},
		{format: "jsonl", pretty: true, want: "{\"data\":[1,2]}\n"},
		{format: " JSONL ", want: "{\"data\":[1,2]}\n"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		if err := Write(&buf, v, tc.format, tc.pretty); err != nil {
			t.Fatalf("%q: %v", tc.format, err)
		}
		if buf.String() != tc.want {
			t.Fatalf("%q: expected %q; got %q", tc.format, tc.want, buf.String())
		}
	}
	if err := Write(&bytes.Buffer{}, v, "edn", false); err == nil {
		t.Fatalf("expected unknown format error")
	}
}

func TestWrite_KeepsMarkupReadable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Write(&buf, map[string]string{"content": "<b>R&D</b>"}, "json", false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if want := "{\"content\":\"<b>R&D</b>\"}\n"; buf.String() != want {
		t.Fatalf("expected %q; got %q", want, buf.String())
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Format
		ok   bool
	}{
		{in: "", want: JSON, ok: true},
		{in: "json", want: JSON, ok: true},
		{in: "jsonl", want: JSONL, ok: true},
		{in: "yaml"},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if (err == nil) != tc.ok || got != tc.want {
			t.Fatalf("%q: expected %q ok=%v; got %q err=%v", tc.in, tc.want, tc.ok, got, err)
		}
	}
}
