package validation

import "testing"

func TestValidateEmail(t *testing.T) {
	valid := []string{"mario.rossi@scuola.it", "a+b@example.co.uk", "x_1-2@sub.domain.org"}
	for _, e := range valid {
		if !ValidateEmail(e) {
			t.Errorf("%q should be valid", e)
		}
	}

	invalid := []string{"", "mario", "mario@", "@scuola.it", "mario@scuola", "mario rossi@scuola.it"}
	for _, e := range invalid {
		if ValidateEmail(e) {
			t.Errorf("%q should be invalid", e)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	ok, errs := ValidatePassword("Str0ng!pass")
	if !ok {
		t.Fatalf("strong password rejected: %v", errs)
	}

	cases := []struct {
		name     string
		password string
	}{
		{"too short", "S1!a"},
		{"no uppercase", "str0ng!pass"},
		{"no lowercase", "STR0NG!PASS"},
		{"no number", "Strong!pass"},
		{"no special", "Str0ngpass"},
		{"common", "Password1!"},
		{"ascending run", "Abcd9!xkqp"},
		{"repeated run", "Aaaa9!xkqp"},
	}
	for _, tc := range cases {
		if ok, _ := ValidatePassword(tc.password); ok {
			t.Errorf("%s: %q should be rejected", tc.name, tc.password)
		}
	}
}

func TestHasTrivialSequence(t *testing.T) {
	if hasTrivialSequence("ab12cd34") {
		t.Fatal("short runs should pass")
	}
	if !hasTrivialSequence("x4321z") {
		t.Fatal("descending run of four should be caught")
	}
	if hasTrivialSequence("abc") {
		t.Fatal("too short to contain a run")
	}
}

func TestValidateUsername(t *testing.T) {
	if ok, _ := ValidateUsername("mario_rossi-06"); !ok {
		t.Fatal("valid username rejected")
	}
	for _, u := range []string{"ab", "with space", "emoji😀", string(make([]byte, 31))} {
		if ok, _ := ValidateUsername(u); ok {
			t.Errorf("%q should be rejected", u)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  ciao\x00 mondo  "); got != "ciao mondo" {
		t.Fatalf("SanitizeString = %q", got)
	}
}
