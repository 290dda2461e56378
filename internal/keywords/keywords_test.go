package keywords

import "testing"

func TestExtract(t *testing.T) {
	set := Extract("Fixed the auth_handler retry loop in internal/auth/retry.go", 0)

	for _, want := range []string{"fixed", "auth", "handler", "retry", "loop", "internal"} {
		if _, ok := set[want]; !ok {
			t.Errorf("missing keyword %q", want)
		}
	}
	if _, ok := set["the"]; ok {
		t.Error("stopword survived extraction")
	}
	if _, ok := set["go"]; ok {
		t.Error("token below minimum length survived")
	}
}

func TestExtractMinLen(t *testing.T) {
	set := Extract("go to db", 2)
	if _, ok := set["go"]; !ok {
		t.Error("two-rune token dropped with minLen 2")
	}
	if _, ok := set["db"]; !ok {
		t.Error("db dropped with minLen 2")
	}
}

func TestJaccard(t *testing.T) {
	a := Set{"auth": {}, "retry": {}, "loop": {}}
	b := Set{"auth": {}, "retry": {}, "queue": {}}

	got := Jaccard(a, b)
	if got != 0.5 {
		t.Errorf("jaccard = %v, want 0.5", got)
	}
	if Jaccard(a, a) != 1 {
		t.Error("identical sets should score 1")
	}
	if Jaccard(nil, nil) != 1 {
		t.Error("two empty sets should score 1")
	}
	if Jaccard(a, nil) != 0 {
		t.Error("one empty set should score 0")
	}
}

func TestUnion(t *testing.T) {
	got := Union(Set{"a": {}}, Set{"b": {}}, Set{"a": {}, "c": {}})
	if len(got) != 3 {
		t.Errorf("union size = %d, want 3", len(got))
	}
}

func TestTop(t *testing.T) {
	set := Set{"authentication": {}, "retry": {}, "db": {}, "scheduler": {}}

	got := Top(set, 2)
	if len(got) != 2 {
		t.Fatalf("got %d keywords, want 2", len(got))
	}
	if got[0] != "authentication" {
		t.Errorf("top keyword = %q, want longest first", got[0])
	}
}
