package permission

import "testing"

func TestAllowedEmptyMapAllowsEverything(t *testing.T) {
	if !Allowed(nil, "get_email") {
		t.Fatal("expected nil map to allow")
	}
	if !Allowed(map[string]bool{}, "get_email") {
		t.Fatal("expected empty map to allow")
	}
}

func TestAllowedWildcard(t *testing.T) {
	cases := []string{"*", "all", "__all__"}
	for _, wildcard := range cases {
		m := map[string]bool{wildcard: true}
		if !Allowed(m, "anything") {
			t.Fatalf("expected wildcard %q to allow", wildcard)
		}
	}

	if Allowed(map[string]bool{"*": false}, "anything") {
		t.Fatal("expected false wildcard to fall through, not allow")
	}
}

func TestAllowedExplicitNormalizedMatch(t *testing.T) {
	m := map[string]bool{"get_email": false}
	if Allowed(m, "Get-Email") {
		t.Fatal("expected explicit deny to win")
	}

	m = map[string]bool{"mail_new": true}
	if !Allowed(m, "  MAIL_NEW  ") {
		t.Fatal("expected explicit allow after trim/lower-case")
	}
}

func TestAllowedHyphenatedVariant(t *testing.T) {
	m := map[string]bool{"mail-new": true}
	if !Allowed(m, "mail_new") {
		t.Fatal("expected hyphenated variant lookup to match")
	}
}

func TestAllowedDeniesUnlistedAction(t *testing.T) {
	m := map[string]bool{"get_email": true}
	if Allowed(m, "pool_stats") {
		t.Fatal("expected unlisted action to deny once map is non-empty")
	}
}
