package assistant

import "testing"

func TestSanitize_RemovesBlocks(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "inline",
			in:   "Intro before.```json {\"action\": \"x\"} ``` After block. More ```json {\"action\": \"y\"} ``` end",
			want: "Intro before. After block. More end",
		},
		{
			name: "paragraphs",
			in:   "Done!\n\n```json\n{\"action\":\"create_task\"}\n```\n\nAnything else?",
			want: "Done!\n\nAnything else?",
		},
		{
			name: "single newline",
			in:   "Done!\n```json\n{}\n```\nAnything else?",
			want: "Done!\nAnything else?",
		},
		{
			name: "only block",
			in:   "\n```json\n{\"action\":\"create_task\"}\n```\n",
			want: "",
		},
		{
			name: "invalid json is still stripped",
			in:   "a ```json {not json ``` b",
			want: "a b",
		},
		{
			name: "adjacent blocks collapse to one gap",
			in:   "x\n\n```json\n{}\n```\n\n```json\n{\"action\":\"archive_task\",\"task_title\":\"a\"}\n```\n\nz",
			want: "x\n\nz",
		},
		{
			name: "adjacent blocks on consecutive lines",
			in:   "x\n```json\n{}\n```\n```json\n{}\n```\nz",
			want: "x\nz",
		},
		{
			name: "prose between blocks is kept",
			in:   "x\n\n```json\n{}\n```\n\ny\n\n```json\n{}\n```\n\nz",
			want: "x\n\ny\n\nz",
		},
		{
			name: "fence inside a string ends the block",
			in:   "ok ```json\n{\"title\":\"a ``` b\"}\n``` end",
			want: "ok b\"}\n``` end",
		},
		{
			name: "other fences stay",
			in:   "```go\nx := 1\n```",
			want: "```go\nx := 1\n```",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sanitize(tc.in); got != tc.want {
				t.Fatalf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSanitize_IsIdempotent(t *testing.T) {
	inputs := []string{
		"  plain text  ",
		"Sure!\n```json\n{\"action\":\"create_task\",\"title\":\"AI task\"}\n```\nDone.",
		"a```json{}```b ```json\n{}\n```   c\n\n\n```json {} ```\n\nd",
		"line one\n\n\nline two",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		if twice := Sanitize(once); twice != once {
			t.Fatalf("Sanitize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
