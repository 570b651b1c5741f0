package fingerprint

import (
	"bytes"
	"strings"
	"testing"
)

func TestComputeEquivalence(t *testing.T) {
	// Inputs differing only in whitespace, comments, or literal
	// values must hash identically.
	tests := []struct {
		name string
		a, b string
	}{
		{
			name: "whitespace and literal",
			a:    "SELECT * FROM T WHERE id = 1",
			b:    "select *  from  T  where  id = 42",
		},
		{
			name: "line comment",
			a:    "SELECT a FROM T -- fetch it\nWHERE x = 5",
			b:    "SELECT a FROM T WHERE x = 9",
		},
		{
			name: "block comment",
			a:    "SELECT a /* hint: recompile */ FROM T",
			b:    "SELECT a FROM T",
		},
		{
			name: "string literal",
			a:    "SELECT * FROM users WHERE name = 'alice'",
			b:    "SELECT * FROM users WHERE name = 'bob'",
		},
		{
			name: "escaped quote inside literal",
			a:    "SELECT * FROM t WHERE s = 'o''brien'",
			b:    "SELECT * FROM t WHERE s = 'smith'",
		},
		{
			name: "decimal and hex",
			a:    "SELECT * FROM t WHERE a = 3.14 AND b = 0xFF",
			b:    "SELECT * FROM t WHERE a = 2.71 AND b = 0x1A",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := Compute(tt.a)
			fb := Compute(tt.b)
			if !bytes.Equal(fa.Hash, fb.Hash) {
				t.Errorf("hashes differ:\n  %q -> %s\n  %q -> %s", tt.a, fa.NormalizedText, tt.b, fb.NormalizedText)
			}
		})
	}
}

func TestComputeNormalizedText(t *testing.T) {
	fp := Compute("select *  from  T  where  id = 42")
	want := "SELECT * FROM T WHERE id = #"
	if fp.NormalizedText != want {
		t.Errorf("normalized = %q, want %q", fp.NormalizedText, want)
	}
}

func TestComputeDistinguishesQueries(t *testing.T) {
	a := Compute("SELECT a FROM t1")
	b := Compute("SELECT b FROM t2")
	if bytes.Equal(a.Hash, b.Hash) {
		t.Error("different queries must not collide on an 8-byte hash in a unit test")
	}
}

func TestComputeSentinels(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			in:   "SELECT * FROM t WHERE d = '2024-01-15'",
			want: "SELECT * FROM t WHERE d = '#DATE#'",
		},
		{
			in:   "SELECT * FROM t WHERE d = '2024-01-15 10:30:00'",
			want: "SELECT * FROM t WHERE d = '#DATE#'",
		},
		{
			in:   "SELECT * FROM t WHERE g = 'a1b2c3d4-e5f6-7890-abcd-ef0123456789'",
			want: "SELECT * FROM t WHERE g = '#GUID#'",
		},
		{
			in:   "SELECT * FROM t WHERE s = 'plain'",
			want: "SELECT * FROM t WHERE s = '#'",
		},
	}
	for _, tt := range tests {
		got := Compute(tt.in).NormalizedText
		if got != tt.want {
			t.Errorf("Compute(%q).NormalizedText = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestComputeIdempotent(t *testing.T) {
	in := "SELECT col FROM t WHERE x = 7 AND name = 'n'"
	first := Compute(in)
	second := Compute(first.NormalizedText)
	if second.NormalizedText != first.NormalizedText {
		t.Errorf("normalizing normalized text changed it: %q -> %q", first.NormalizedText, second.NormalizedText)
	}
}

func TestComputeCasePreservesIdentifiers(t *testing.T) {
	fp := Compute("select MyColumn from MySchema.MyTable where selected_at > 10")
	if !strings.Contains(fp.NormalizedText, "MyColumn") || !strings.Contains(fp.NormalizedText, "MySchema.MyTable") {
		t.Errorf("identifier case not preserved: %q", fp.NormalizedText)
	}
	// "selected_at" contains "select" but is an identifier, not a keyword.
	if !strings.Contains(fp.NormalizedText, "selected_at") {
		t.Errorf("identifier resembling a keyword was altered: %q", fp.NormalizedText)
	}
}

func TestSampleTextTruncation(t *testing.T) {
	long := strings.Repeat("SELECT 1; ", 1000) // 10000 bytes
	fp := Compute(long)
	if len(fp.SampleText) > sampleTextLimit {
		t.Errorf("sample text length %d exceeds limit %d", len(fp.SampleText), sampleTextLimit)
	}
	if !strings.HasSuffix(fp.SampleText, truncationMarker) {
		t.Error("truncated sample text missing ellipsis marker")
	}

	short := "SELECT 1"
	if got := Compute(short).SampleText; got != short {
		t.Errorf("short sample text altered: %q", got)
	}
}

func TestHashLength(t *testing.T) {
	fp := Compute("SELECT 1")
	if len(fp.Hash) != 8 {
		t.Errorf("hash length = %d, want 8", len(fp.Hash))
	}
}
