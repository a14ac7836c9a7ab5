package llm

import "testing"

func TestCompletionText(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"string content", `{"choices":[{"message":{"role":"assistant","content":"<title>A</title>"}}]}`, "<title>A</title>", true},
		{"content parts", `{"choices":[{"message":{"content":[{"type":"text","text":"one"},{"type":"image_url"},{"type":"text","text":"two"}]}}]}`, "one\ntwo", true},
		{"legacy text", `{"choices":[{"text":"plain"}]}`, "plain", true},
		{"null content", `{"choices":[{"message":{"content":null}}]}`, "", false},
		{"empty content", `{"choices":[{"message":{"content":"  "}}]}`, "", false},
		{"no choices", `{"choices":[]}`, "", false},
		{"error body", `{"error":{"message":"bad"}}`, "", false},
		{"not json", `oops`, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := CompletionText([]byte(tc.raw))
			if ok != tc.ok || got != tc.want {
				t.Fatalf("got (%q, %v), want (%q, %v)", got, ok, tc.want, tc.ok)
			}
		})
	}
}
