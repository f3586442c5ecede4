package draft

import (
	"errors"
	"testing"
)

func TestSanitize(t *testing.T) {
	cases := []struct {
		name, in, want string
		err            error
	}{
		{"plain object", `{"title":"a"}`, `{"title":"a"}`, nil},
		{"surrounding prose", "Here you go: {\"title\":\"a\"} hope it helps", `{"title":"a"}`, nil},
		{"code fence", "```json\n{\"title\":\"a\"}\n```", `{"title":"a"}`, nil},
		{"bare members", `"title":"a","description":"b"`, `{"title":"a","description":"b"}`, nil},
		{"missing close", `{"title":"a"`, "", ErrTruncated},
		{"missing open", `"title":"a"}`, `{"title":"a"}`, nil},
		{"missing open with trailer", "\"title\":\"a\"} ok", `{"title":"a"}`, nil},
		{"reversed", `} {`, "", ErrTruncated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Sanitize(tc.in)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("err = %v, want %v", err, tc.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseStrict(t *testing.T) {
	title, desc, err := Parse(`{"title":" Ship it ","description":"Release v2"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if title != "Ship it" || desc != "Release v2" {
		t.Fatalf("got %q/%q", title, desc)
	}

	bad := []string{
		`{"title": 42, "description": "x"}`,
		`{"title": "a", "description": ["x"]}`,
		`{"title": "a",}`,
		``,
		`   `,
	}
	for _, in := range bad {
		if _, _, err := Parse(in); err == nil {
			t.Fatalf("Parse(%q) succeeded, want error", in)
		}
	}
}

func TestParseRejectsTwoObjects(t *testing.T) {
	// first '{' to last '}' spans both objects
	if _, _, err := Parse(`{"title":"a"} {"title":"b"}`); err == nil {
		t.Fatalf("expected trailing data error")
	}
}

func TestParseRepairsMissingOpenBrace(t *testing.T) {
	title, desc, err := Parse(`"title":"Write spec","description":"Draft v1"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if title != "Write spec" || desc != "Draft v1" {
		t.Fatalf("got %q/%q", title, desc)
	}
}

func TestParseAllowsMissingFields(t *testing.T) {
	title, desc, err := Parse(`{}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if title != "" || desc != "" {
		t.Fatalf("got %q/%q", title, desc)
	}
}
