package crud

import "testing"

func TestInitials(t *testing.T) {
	tests := map[string]string{
		"peanuts":  "PE",
		"  émile ": "ÉM",
		"x":        "X",
		"":         "??",
	}
	for in, want := range tests {
		if got := Initials(in, "??"); got != want {
			t.Errorf("Initials(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFirstInitials(t *testing.T) {
	if got := FirstInitials("??", "thandi", "", "nkosi"); got != "TN" {
		t.Errorf("unexpected %q", got)
	}
	if got := FirstInitials("RX", "", " "); got != "RX" {
		t.Errorf("expected fallback, got %q", got)
	}
}

func TestOrDefault(t *testing.T) {
	blank := "  "
	v := "weekly"
	if OrDefault(nil, "As needed") != "As needed" || OrDefault(&blank, "d") != "d" || OrDefault(&v, "d") != "weekly" {
		t.Error("unexpected OrDefault result")
	}
}

func TestOptions(t *testing.T) {
	opts := Options("life_threatening", "medical-record")
	if opts[0].Label != "Life threatening" || opts[1].Label != "Medical record" {
		t.Errorf("unexpected labels %+v", opts)
	}
	if opts[0].Value != "life_threatening" {
		t.Errorf("value must be unchanged, got %q", opts[0].Value)
	}
}

func TestDeref(t *testing.T) {
	s := "x"
	if Deref(&s) != "x" || Deref(nil) != "" {
		t.Error("unexpected Deref result")
	}
}
