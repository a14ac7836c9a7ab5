package title

import (
	"strings"
	"testing"
)

func TestExtract(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		want  string
		found bool
	}{
		{"plain wrapper", "<title>Invoice March 2024</title>", "Invoice March 2024", true},
		{"reasoning preamble", "<think>reasoning...</think>\n<title>Invoice March 2024</title>", "Invoice March 2024", true},
		{"multi-line reasoning", "<think>\nfirst idea\n<title>Wrong</title>\n</think>\n<title>Right</title>", "Right", true},
		{"closer shares line", "<thinking>\nhmm\n</thinking><title>Lease 2023</title>", "Lease 2023", true},
		{"reasoning tag", "<Reasoning>x</Reasoning>\n<TITLE>Tax Return</TITLE>", "Tax Return", true},
		{"last candidate wins", "<title>First</title>\nchatter\n<title>Second</title>", "Second", true},
		{"entities", "<title>&quot;Smith &amp; Sons&quot;</title>", "Smith & Sons", true},
		{"quotes stripped", `<title>"Bank Statement"</title>`, "Bank Statement", true},
		{"single quotes and dashes", "<title>- 'Receipt' -</title>", "'Receipt'", true},
		{"dashes only", "<title>--Contract--</title>", "Contract", true},
		{"surrounding text", "Title: <title> Electric Bill </title> done", "Electric Bill", true},
		{"wrapper spans lines", "<title>Water\nBill</title>", "Water Bill", true},
		{"empty wrapper", "<title>   </title>", "", true},
		{"no wrapper", "Some preamble\nNo tags here", "", false},
		{"reasoning only", "<think>\nI should title this carefully.\n</think>", "", false},
		{"unterminated reasoning", "<think>\n<title>Hidden</title>", "", false},
		{"empty", "", "", false},
		{"whitespace", " \n\t\n", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, found := Extract(tc.raw)
			if found != tc.found || got != tc.want {
				t.Fatalf("Extract(%q) = (%q, %v), want (%q, %v)", tc.raw, got, found, tc.want, tc.found)
			}
		})
	}
}

func TestExtractSinglePass(t *testing.T) {
	got, ok := Extract("<title>Invoice March 2024</title>")
	if !ok {
		t.Fatal("expected title")
	}
	if again, ok := Extract(got); ok {
		t.Fatalf("bare title should not extract, got %q", again)
	}
}

func TestExtractDoesNotTruncate(t *testing.T) {
	long := strings.Repeat("a", 300)
	got, ok := Extract("<title>" + long + "</title>")
	if !ok || got != long {
		t.Fatalf("expected untruncated title, got len %d", len(got))
	}
}

func TestCandidates(t *testing.T) {
	got := Candidates("  one  \n\n<think>skip</think>two\n<think>\ndrop\n</think>\n three ")
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
