package command

import (
	"errors"
	"testing"
)

// --- Parse: happy path ---

func TestParse_PlainHandleInteger(t *testing.T) {
	cmd, ok := Parse("@alice 50")
	if !ok {
		t.Fatal("expected parse")
	}
	if cmd.Recipient != "@alice" || cmd.Amount != 50 || cmd.DisplayName != "alice" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestParse_PlainHandleDecimal(t *testing.T) {
	cmd, ok := Parse("@bob 12.5")
	if !ok {
		t.Fatal("expected parse")
	}
	if cmd.Recipient != "@bob" || cmd.Amount != 12.5 || cmd.DisplayName != "bob" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestParse_PlainHandleWithDotsAndHyphens(t *testing.T) {
	cmd, ok := Parse("@john.doe-dev 100")
	if !ok {
		t.Fatal("expected parse")
	}
	if cmd.Recipient != "@john.doe-dev" || cmd.Amount != 100 {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestParse_PlainHandleUnderscoreAndDigits(t *testing.T) {
	cmd, ok := Parse("@dev_42 7")
	if !ok || cmd.Recipient != "@dev_42" || cmd.DisplayName != "dev_42" {
		t.Fatalf("unexpected result: %+v ok=%v", cmd, ok)
	}
}

func TestParse_RichMentionWithDisplayName(t *testing.T) {
	cmd, ok := Parse("<@U12345678|alice> 75")
	if !ok {
		t.Fatal("expected parse")
	}
	if cmd.Recipient != "<@U12345678>" || cmd.Amount != 75 || cmd.DisplayName != "alice" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestParse_RichMentionEmptyDisplayName(t *testing.T) {
	cmd, ok := Parse("<@UABCDEFGH|> 10")
	if !ok {
		t.Fatal("expected parse")
	}
	if cmd.Recipient != "<@UABCDEFGH>" || cmd.Amount != 10 || cmd.DisplayName != "UABCDEFGH" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestParse_RichMentionWithoutPipe(t *testing.T) {
	cmd, ok := Parse("<@U024BE7LH> 3.75")
	if !ok {
		t.Fatal("expected parse")
	}
	if cmd.Recipient != "<@U024BE7LH>" || cmd.DisplayName != "U024BE7LH" || cmd.Amount != 3.75 {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestParse_LeadingAndTrailingWhitespace(t *testing.T) {
	cmd, ok := Parse("  @charlie 33  ")
	if !ok || cmd.Recipient != "@charlie" || cmd.Amount != 33 {
		t.Fatalf("unexpected result: %+v ok=%v", cmd, ok)
	}
}

func TestParse_MultipleSeparatorSpaces(t *testing.T) {
	cmd, ok := Parse("@charlie \t 33")
	if !ok || cmd.Amount != 33 {
		t.Fatalf("unexpected result: %+v ok=%v", cmd, ok)
	}
}

func TestParse_UnicodeSeparators(t *testing.T) {
	cases := map[string]float64{
		"@alice\u00a050":      50, // no-break space after autocomplete
		"<@U1|a>\u00a05":      5,
		"@alice\v50":          50,
		"@alice\u2003\u20097": 7,
		"<@U1>\u300012.5":     12.5,
	}
	for in, want := range cases {
		cmd, ok := Parse(in)
		if !ok || cmd.Amount != want {
			t.Errorf("Parse(%q) = %+v ok=%v, want amount %v", in, cmd, ok, want)
		}
	}
}

func TestParse_NonASCIIDigits(t *testing.T) {
	cases := map[string]float64{
		"@alice \u0665\u0660":         50,  // Arabic-Indic
		"@alice \u096a.\u096b":        4.5, // Devanagari
		"<@U1|a> \uff11\uff12":        12,  // fullwidth
		"@alice \U0001d7cf\U0001d7ce": 10,  // mathematical bold
		"@alice 1\u06623":             123, // mixed scripts
	}
	for in, want := range cases {
		cmd, ok := Parse(in)
		if !ok || cmd.Amount != want {
			t.Errorf("Parse(%q) = %+v ok=%v, want amount %v", in, cmd, ok, want)
		}
	}
	if _, ok := Parse("@alice \u216b"); ok {
		t.Error("roman numerals are not decimal digits")
	}
}

// --- Parse: edge cases ---

func TestParse_ZeroAmountIsParsed(t *testing.T) {
	cmd, ok := Parse("@dave 0")
	if !ok {
		t.Fatal("zero amount should parse")
	}
	if cmd.Recipient != "@dave" || cmd.Amount != 0 {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestParse_LargeAmount(t *testing.T) {
	cmd, ok := Parse("@whale 999999")
	if !ok || cmd.Amount != 999999 {
		t.Fatalf("unexpected result: %+v ok=%v", cmd, ok)
	}
}

// --- Parse: failures ---

func TestParse_Failures(t *testing.T) {
	inputs := []string{
		"alice 50",          // missing @
		"@alice",            // missing amount
		"@alice abc",        // non-numeric amount
		"@alice -10",        // negative
		"@alice +10",        // explicit sign
		"@alice 50 extra",   // trailing token
		"please @alice 50",  // leading token
		"@alice 1.",         // dangling decimal point
		"@alice .5",         // missing integer part
		"@alice 1e3",        // exponent form
		"<@u123|alice> 5",   // lowercase user id
		"<@U123|alice>5",    // no separator
		"@ali ce 5",         // space inside handle
		"hello world",
		"",
		"   ",
	}
	for _, in := range inputs {
		if cmd, ok := Parse(in); ok {
			t.Errorf("Parse(%q) should fail, got %+v", in, cmd)
		}
	}
}

func TestParse_FailureReturnsZeroValue(t *testing.T) {
	cmd, ok := Parse("@alice -10")
	if ok {
		t.Fatal("expected no parse")
	}
	if cmd.Recipient != "" || cmd.DisplayName != "" || cmd.Amount != 0 {
		t.Fatalf("expected zero command, got %+v", cmd)
	}
}

func TestParse_OverflowingAmountRejected(t *testing.T) {
	huge := "@alice 1"
	for i := 0; i < 400; i++ {
		huge += "0"
	}
	if _, ok := Parse(huge); ok {
		t.Fatal("amount overflowing float64 should not parse")
	}
}

// --- ParseDistribute ---

func TestParseDistribute_WithBotMention(t *testing.T) {
	d, err := ParseDistribute("<@U0BOT> /distribute 10 bacon @alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Amount != 10 || d.User != "@alice" {
		t.Fatalf("unexpected result: %+v", d)
	}
}

func TestParseDistribute_CaseInsensitiveKeywords(t *testing.T) {
	d, err := ParseDistribute("Distribute 5 BACON <@U123>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Amount != 5 || d.User != "<@U123>" {
		t.Fatalf("unexpected result: %+v", d)
	}
}

func TestParseDistribute_OtherCommand(t *testing.T) {
	if _, err := ParseDistribute("<@U0BOT> hello there"); !errors.Is(err, ErrNotDistribute) {
		t.Fatalf("expected ErrNotDistribute, got %v", err)
	}
	if _, err := ParseDistribute(""); !errors.Is(err, ErrNotDistribute) {
		t.Fatalf("expected ErrNotDistribute for empty text, got %v", err)
	}
}

func TestParseDistribute_BadFormat(t *testing.T) {
	inputs := []string{
		"/distribute 10 bacon",
		"/distribute ten bacon @alice",
		"/distribute 10 pancakes @alice",
		"/distribute -10 bacon @alice",
		"/distribute 1.5 bacon @alice",
		"/distribute 10 bacon alice",
		"/distribute 10 bacon @alice now",
	}
	for _, in := range inputs {
		if _, err := ParseDistribute(in); !errors.Is(err, ErrDistributeUsage) {
			t.Errorf("ParseDistribute(%q): expected ErrDistributeUsage, got %v", in, err)
		}
	}
}
