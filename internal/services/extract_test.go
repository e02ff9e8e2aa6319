package services

import "testing"

func TestExtractItemID(t *testing.T) {
	tt := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "playlist URL", input: "https://open.spotify.com/playlist/ABC123", want: "ABC123", wantOK: true},
		{name: "playlist URL with query", input: "https://open.spotify.com/playlist/37i9dQZF1DX?si=abc", want: "37i9dQZF1DX", wantOK: true},
		{name: "show URL", input: "https://open.spotify.com/show/4rOoJ6Egrf8K2IrywzwOMk", want: "4rOoJ6Egrf8K2IrywzwOMk", wantOK: true},
		{name: "episode URL", input: "https://open.spotify.com/episode/xyz789", want: "xyz789", wantOK: true},
		{name: "spotify URI", input: "spotify:playlist:ABC123", want: "ABC123", wantOK: true},
		{name: "bare id", input: "ABC123", want: "ABC123", wantOK: true},
		{name: "bare id with whitespace", input: "  ABC123 \n", want: "ABC123", wantOK: true},
		{name: "unparseable text", input: "not a playlist!", wantOK: false},
		{name: "empty", input: "", wantOK: false},
		{name: "album URL", input: "https://open.spotify.com/album/ABC-123", wantOK: false},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractItemID(tc.input)
			if ok != tc.wantOK {
				t.Fatalf("ExtractItemID(%q) ok = %v, want %v", tc.input, ok, tc.wantOK)
			}
			if got != tc.want {
				t.Errorf("ExtractItemID(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
