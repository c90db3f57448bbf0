package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/doctalk-ai/doctalk/engine/domain"
)

func TestParseVideoID(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://youtube.com/watch?v=abc123&t=42s", "abc123", false},
		{"https://m.youtube.com/watch?v=abc123", "abc123", false},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://youtu.be/", "", true},
		{"https://www.youtube.com/watch", "", true},
		{"https://vimeo.com/12345", "", true},
		{"not a url at all\x7f://", "", true},
	}
	for _, tt := range tests {
		got, err := ParseVideoID(tt.url)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseVideoID(%q): expected error", tt.url)
				continue
			}
			var ee *domain.ExtractionError
			if !errors.As(err, &ee) || ee.Kind != domain.ExtractBadURL {
				t.Errorf("ParseVideoID(%q): expected bad_url extraction error, got %v", tt.url, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseVideoID(%q): %v", tt.url, err)
		}
		if got != tt.want {
			t.Errorf("ParseVideoID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestOrderTracks_LanguagePreference(t *testing.T) {
	tracks := []captionTrack{
		{BaseURL: "u-en-asr", Lang: "en", Kind: "asr"},
		{BaseURL: "u-fr", Lang: "fr"},
		{BaseURL: "u-hi", Lang: "hi"},
		{BaseURL: "u-en", Lang: "en"},
	}
	urls := orderTracks(tracks, []string{"hi", "en"})
	want := []string{
		"u-hi&fmt=srv3",
		"u-en&fmt=srv3",
		"u-en-asr&fmt=srv3",
		"u-fr&fmt=srv3",
	}
	if len(urls) != len(want) {
		t.Fatalf("got %d urls, want %d", len(urls), len(want))
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("urls[%d] = %q, want %q", i, urls[i], want[i])
		}
	}
}

func TestParseTranscriptXML_SRV3(t *testing.T) {
	body := []byte(`<timedtext><body>` +
		`<p t="0" d="1000">hello there</p>` +
		`<p t="1000" d="1000">[Music] general &amp;#39;kenobi</p>` +
		`</body></timedtext>`)
	got, err := parseTranscriptXML(body)
	if err != nil {
		t.Fatalf("parse srv3: %v", err)
	}
	if !strings.Contains(got, "hello there") {
		t.Errorf("missing text: %q", got)
	}
	if strings.Contains(got, "[Music]") {
		t.Errorf("bracket noise not removed: %q", got)
	}
}

func TestParseTranscriptXML_Legacy(t *testing.T) {
	body := []byte(`<transcript>` +
		`<text start="0" dur="2.4">first line</text>` +
		`<text start="2.4" dur="3.1">second line</text>` +
		`</transcript>`)
	got, err := parseTranscriptXML(body)
	if err != nil {
		t.Fatalf("parse legacy: %v", err)
	}
	if got != "first line second line" {
		t.Errorf("got %q", got)
	}
}

func TestParseTranscriptXML_Garbage(t *testing.T) {
	if _, err := parseTranscriptXML([]byte("<html>not a transcript</html>")); err == nil {
		t.Fatal("expected error for non-transcript payload")
	}
}

func TestCleanTranscript(t *testing.T) {
	in := "  [Applause] it&#39;s   a &quot;test&quot; &amp; more  "
	want := `it's a "test" & more`
	if got := CleanTranscript(in); got != want {
		t.Errorf("CleanTranscript = %q, want %q", got, want)
	}
}

func TestFetchTranscriptFromURL(t *testing.T) {
	payload := `<transcript><text start="0" dur="1">` +
		strings.Repeat("words and more words ", 10) +
		`</text></transcript>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	y := NewYouTube(nil)
	got, err := y.fetchTranscriptFromURL(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(got, "words and more words") {
		t.Errorf("unexpected transcript: %q", got)
	}
}

func TestFetchTranscriptFromURL_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	y := NewYouTube(nil)
	if _, err := y.fetchTranscriptFromURL(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404 response")
	}
}
