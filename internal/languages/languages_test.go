package languages

import "testing"

func TestParseDirection(t *testing.T) {
	tests := []struct {
		input  string
		source string
		target string
	}{
		{"en→zh", "en", "zh"},
		{"zh→en", "zh", "en"},
		{" ja → ko ", "ja", "ko"},
		{"yue→en", "yue", "en"},
		{"en->zh", "en", "zh"}, // ASCII arrow accepted for hand-typed input
		{" ja -> ko ", "ja", "ko"},
		{"", "en", "zh"},          // empty falls back to default
		{"enzh", "en", "zh"},      // no arrow
		{"→zh", "en", "zh"},       // missing source
		{"en→", "en", "zh"},       // missing target
	}

	for _, tt := range tests {
		d := ParseDirection(tt.input)
		if d.Source != tt.source || d.Target != tt.target {
			t.Errorf("ParseDirection(%q) = %s→%s, want %s→%s",
				tt.input, d.Source, d.Target, tt.source, tt.target)
		}
	}
}

func TestDirectionRoundTrip(t *testing.T) {
	d := Direction{Source: "en", Target: "zh"}

	if got := d.String(); got != "en→zh" {
		t.Errorf("String() = %q, want %q", got, "en→zh")
	}

	if got := ParseDirection(d.String()); got != d {
		t.Errorf("ParseDirection(String()) = %v, want %v", got, d)
	}
}

func TestDirectionSwapped(t *testing.T) {
	d := Direction{Source: "en", Target: "zh"}

	swapped := d.Swapped()
	if swapped.Source != "zh" || swapped.Target != "en" {
		t.Errorf("Swapped() = %v, want zh→en", swapped)
	}

	// Double swap restores the original pair.
	if back := swapped.Swapped(); back != d {
		t.Errorf("Swapped().Swapped() = %v, want %v", back, d)
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"en", "English"},
		{"zh", "中文"},
		{"ja", "日本語"},
		{"xx", "xx"}, // unknown code returned unchanged
	}

	for _, tt := range tests {
		if got := Name(tt.code); got != tt.want {
			t.Errorf("Name(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestLabelConversion(t *testing.T) {
	if got := CodeToLabel("en"); got != "en (English)" {
		t.Errorf("CodeToLabel(en) = %q", got)
	}
	if got := CodeToLabel("xx"); got != "xx" {
		t.Errorf("CodeToLabel(xx) = %q", got)
	}
	if got := LabelToCode("en (English)"); got != "en" {
		t.Errorf("LabelToCode = %q, want en", got)
	}
	if got := LabelToCode("qq (Unknown)"); got != "qq" {
		t.Errorf("LabelToCode fallback = %q, want qq", got)
	}
}
