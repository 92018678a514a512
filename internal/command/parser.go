// Package command parses the free-form text of BACON slash commands and
// mention commands into structured requests.
package command

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"baconbot/internal/domain"
)

// Both shapes are anchored at both ends. The amount has no sign, so negative
// values never parse. The separator accepts any Unicode space, including the
// no-break space Slack inserts after an autocompleted mention, and digits may
// come from any decimal script.
var (
	richMentionRe = regexp.MustCompile(`^<@([A-Z0-9]+)\|?([^>]*)>[\s\v\x{1c}-\x{1f}\x{85}\p{Z}]+(\p{Nd}+(?:\.\p{Nd}+)?)$`)
	plainHandleRe = regexp.MustCompile(`^@([\p{L}\p{N}_.\-]+)[\s\v\x{1c}-\x{1f}\x{85}\p{Z}]+(\p{Nd}+(?:\.\p{Nd}+)?)$`)
)

// Parse extracts the recipient and amount from "/bacon" command text.
// Accepted forms:
//
//	@username 50
//	@john.doe-dev 12.5
//	<@U12345678|username> 75
//	<@U12345678> 75
//
// ok is false when the text matches neither form; no partial result is returned.
func Parse(text string) (cmd domain.Command, ok bool) {
	text = strings.TrimSpace(text)

	if m := richMentionRe.FindStringSubmatch(text); m != nil {
		amount, ok := parseAmount(m[3])
		if !ok {
			return domain.Command{}, false
		}
		userID := m[1]
		display := m[2]
		if display == "" {
			display = userID
		}
		return domain.Command{
			Recipient:   "<@" + userID + ">",
			DisplayName: display,
			Amount:      amount,
		}, true
	}

	if m := plainHandleRe.FindStringSubmatch(text); m != nil {
		amount, ok := parseAmount(m[2])
		if !ok {
			return domain.Command{}, false
		}
		return domain.Command{
			Recipient:   "@" + m[1],
			DisplayName: m[1],
			Amount:      amount,
		}, true
	}

	return domain.Command{}, false
}

// parseAmount rejects values that overflow float64.
func parseAmount(s string) (float64, bool) {
	s, ok := asciiDigits(s)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// asciiDigits maps decimal digits of any script onto 0-9. Every Nd block is a
// run of ten code points starting at zero, so the offset within the range
// gives the value.
func asciiDigits(s string) (string, bool) {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '.' || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		d, ok := digitValue(r)
		if !ok {
			return "", false
		}
		b.WriteByte('0' + byte(d))
	}
	return b.String(), true
}

func digitValue(r rune) (int, bool) {
	for _, rng := range unicode.Nd.R16 {
		if rng.Stride == 1 && r >= rune(rng.Lo) && r <= rune(rng.Hi) {
			return int(r-rune(rng.Lo)) % 10, true
		}
	}
	for _, rng := range unicode.Nd.R32 {
		if rng.Stride == 1 && r >= rune(rng.Lo) && r <= rune(rng.Hi) {
			return int(r-rune(rng.Lo)) % 10, true
		}
	}
	return 0, false
}

var (
	ErrNotDistribute   = errors.New("not a distribute command")
	ErrDistributeUsage = errors.New("invalid distribute command format")
)

// Distribute is the older mention-driven command: "distribute <amount> bacon @user".
type Distribute struct {
	Amount int64
	User   string
}

// leadingMentionRe matches the bot mention Slack prepends to app_mention text.
var leadingMentionRe = regexp.MustCompile(`^<@[A-Z0-9]+(?:\|[^>]*)?>\s*`)

// ParseDistribute parses mention text such as "<@BOT> /distribute 10 bacon @alice".
// It returns ErrNotDistribute when the text is some other command and
// ErrDistributeUsage when it is a malformed distribute command.
func ParseDistribute(text string) (Distribute, error) {
	text = strings.TrimSpace(leadingMentionRe.ReplaceAllString(strings.TrimSpace(text), ""))
	text = strings.TrimPrefix(text, "/")

	parts := strings.Fields(text)
	if len(parts) == 0 || strings.ToLower(parts[0]) != "distribute" {
		return Distribute{}, ErrNotDistribute
	}
	if len(parts) != 4 || strings.ToLower(parts[2]) != "bacon" {
		return Distribute{}, ErrDistributeUsage
	}

	amount, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || amount < 0 || strings.HasPrefix(parts[1], "+") {
		return Distribute{}, ErrDistributeUsage
	}
	user := parts[3]
	if !strings.HasPrefix(user, "@") && !strings.HasPrefix(user, "<@") {
		return Distribute{}, ErrDistributeUsage
	}
	return Distribute{Amount: amount, User: user}, nil
}
