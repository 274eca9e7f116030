package link

import (
	"slices"
	"testing"

	"github.com/nao1215/torspider/internal/model"
)

const testPage = `<!DOCTYPE html>
<html>
<head><title>  Site A </title></head>
<body>
  <a href="/about">About</a>
  <a href="http://site-b.test">B</a>
  <a href="http://site-a.test">Home</a>
  <a href="/about/">About again</a>
  <a href="#top">Top</a>
  <a href="javascript:void(0)">Nothing</a>
  <a>No href</a>
  <a href="//site-c.test/x">C</a>
  <a href="/about">About third time</a>
</body>
</html>`

func keys(urls []model.URL) []string {
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = u.Key
	}
	return out
}

// TestExtract tests link extraction from a parsed page.
func TestExtract(t *testing.T) {
	t.Parallel()

	page := model.URL{Key: "site-a.test", Scheme: "http"}
	doc, err := Parse([]byte(testPage))
	if err != nil {
		t.Fatal(err)
	}

	internal, external := Collect(Extract(doc, page))

	if got, want := keys(internal), []string{"site-a.test/about", "site-a.test"}; !slices.Equal(got, want) {
		t.Errorf("internal = %v, expected %v", got, want)
	}
	if got, want := keys(external), []string{"site-b.test", "site-c.test/x"}; !slices.Equal(got, want) {
		t.Errorf("external = %v, expected %v", got, want)
	}
}

// TestExtractSinglePass tests that the sequence cannot be replayed.
func TestExtractSinglePass(t *testing.T) {
	t.Parallel()

	page := model.URL{Key: "site-a.test", Scheme: "http"}
	doc, err := Parse([]byte(testPage))
	if err != nil {
		t.Fatal(err)
	}

	seq := Extract(doc, page)
	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	if first != 4 {
		t.Errorf("first pass yielded %d links, expected 4", first)
	}
	if second != 0 {
		t.Errorf("second pass yielded %d links, expected 0", second)
	}
}

// TestExtractEarlyStop tests that breaking out of the range is honored.
func TestExtractEarlyStop(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(testPage))
	if err != nil {
		t.Fatal(err)
	}

	var got []Link
	for l := range Extract(doc, model.URL{Key: "site-a.test"}) {
		got = append(got, l)
		if len(got) == 2 {
			break
		}
	}
	if len(got) != 2 {
		t.Fatalf("got %d links, expected 2", len(got))
	}
	if got[1].Raw != "http://site-b.test" {
		t.Errorf("second raw = %q", got[1].Raw)
	}
}

// TestExtractDeterministic tests that the same document yields the same sets.
func TestExtractDeterministic(t *testing.T) {
	t.Parallel()

	page := model.URL{Key: "site-a.test", Scheme: "http"}

	var runs [2][2][]string
	for i := range runs {
		doc, err := Parse([]byte(testPage))
		if err != nil {
			t.Fatal(err)
		}
		internal, external := Collect(Extract(doc, page))
		runs[i] = [2][]string{keys(internal), keys(external)}
	}

	if !slices.Equal(runs[0][0], runs[1][0]) || !slices.Equal(runs[0][1], runs[1][1]) {
		t.Errorf("runs differ: %v vs %v", runs[0], runs[1])
	}
}

// TestTitle tests title extraction.
func TestTitle(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(testPage))
	if err != nil {
		t.Fatal(err)
	}
	if got := Title(doc); got != "Site A" {
		t.Errorf("Title() = %q, expected %q", got, "Site A")
	}

	empty, err := Parse([]byte("<p>no title</p>"))
	if err != nil {
		t.Fatal(err)
	}
	if got := Title(empty); got != "" {
		t.Errorf("Title() = %q, expected empty", got)
	}
}
