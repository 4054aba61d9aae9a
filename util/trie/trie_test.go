package trie

import "testing"

func TestSearch(t *testing.T) {
	tr := New[string]()
	for pattern, v := range map[string]string{
		"example.com":         "exact",
		"+.google.com":        "google",
		"*.cdn.net":           "cdn",
		"mail.+.bad.org":      "",
		"deep.www.google.com": "deep",
	} {
		err := tr.Insert(pattern, v)
		if pattern == "mail.+.bad.org" {
			if err == nil {
				t.Fatalf("inner + accepted")
			}
			continue
		}
		if err != nil {
			t.Fatalf("Insert %v: %v", pattern, err)
		}
	}

	cases := []struct {
		domain string
		want   string
		ok     bool
	}{
		{"example.com", "exact", true},
		{"EXAMPLE.com.", "exact", true},
		{"www.example.com", "", false},
		{"www.google.com", "google", true},
		{"a.b.google.com", "google", true},
		{"deep.www.google.com", "deep", true},
		{"google.com", "", false},
		{"x.cdn.net", "cdn", true},
		{"y.x.cdn.net", "", false},
		{"com", "", false},
	}
	for _, c := range cases {
		got, ok := tr.Search(c.domain)
		if ok != c.ok || got != c.want {
			t.Fatalf("Search(%v) = %q, %v; want %q, %v", c.domain, got, ok, c.want, c.ok)
		}
	}
}

func TestEmpty(t *testing.T) {
	tr := New[int]()
	if !tr.Empty() {
		t.Fatalf("new trie not empty")
	}
	tr.Insert("a.b", 1)
	if tr.Empty() {
		t.Fatalf("trie with an entry reported empty")
	}
}
