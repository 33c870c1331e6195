package tgui

import "testing"

func TestDataRoundtrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		action, payload string
	}{
		{"bk_details", "42"},
		{"tz_zone", "Europe/Berlin"}, // payload contains no colon
		{"set_menu", ""},
	}
	for _, tt := range tests {
		data := Data(tt.action, tt.payload)
		action, payload := SplitData(data)
		if action != tt.action || payload != tt.payload {
			t.Fatalf("roundtrip(%q,%q) = %q,%q", tt.action, tt.payload, action, payload)
		}
	}

	// Payloads keep their own colons.
	action, payload := SplitData("x:a:b:c")
	if action != "x" || payload != "a:b:c" {
		t.Fatalf("SplitData = %q,%q", action, payload)
	}
}

func TestEscAndTags(t *testing.T) {
	t.Parallel()
	if got := B("<b>"); got != "<b>&lt;b&gt;</b>" {
		t.Fatalf("B = %q", got)
	}
	if got := Code("a&b"); got != "<code>a&amp;b</code>" {
		t.Fatalf("Code = %q", got)
	}
	if got := Link("x", `https://e.com/?a="1"`); got == "" || got[0] != '<' {
		t.Fatalf("Link = %q", got)
	}
}

func TestInlineRows(t *testing.T) {
	t.Parallel()
	kb := NewInline()
	kb.Row(Btn("a", "x"), Btn("b", "y"))
	kb.Row(URLBtn("c", "https://e.com"))

	rm := kb.Markup()
	if len(rm.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(rm.InlineKeyboard))
	}
	if len(rm.InlineKeyboard[0]) != 2 || len(rm.InlineKeyboard[1]) != 1 {
		t.Fatalf("row shapes: %v", rm.InlineKeyboard)
	}
}
