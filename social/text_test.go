package social

import (
	"reflect"
	"testing"
)

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"  plain  ":            "plain",
		"tab\tand\x00nul":      "tabandnul",
		"keeps\nnewlines":      "keeps\nnewlines",
		"\x1b[31mansi\x1b[0m ": "[31mansi[0m",
		"":                     "",
	}
	for in, want := range cases {
		if got := Sanitize(in); got != want {
			t.Errorf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractHashtags(t *testing.T) {
	got := ExtractHashtags("golden hour #Sunset at the #pier, again #sunset")
	want := []string{"sunset", "pier"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("hashtags = %v, want %v", got, want)
	}
	if tags := ExtractHashtags("no tags here"); len(tags) != 0 {
		t.Errorf("hashtags = %v, want none", tags)
	}
}

func TestExtractMentions(t *testing.T) {
	got := ExtractMentions("shot with @Ada and @ada and @charles")
	want := []string{"ada", "charles"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mentions = %v, want %v", got, want)
	}
}
