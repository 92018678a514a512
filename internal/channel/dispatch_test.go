package channel

import (
	"context"
	"strings"
	"testing"
	"time"

	"baconbot/internal/domain"
)

func newTestDispatcher(rec TransferRecorder) *Dispatcher {
	return NewDispatcher(DispatcherConfig{
		Command:   "/bacon",
		TokenName: "BACON",
		Recorder:  rec,
		Logger:    testLogger(),
		Now:       func() time.Time { return testNow },
	})
}

var testSender = domain.Sender{UserID: "U0SENDER", UserName: "bob", ChannelID: "C0CHAN"}

func TestDispatcher_DefaultSenderName(t *testing.T) {
	d := newTestDispatcher(nil)
	reply := d.HandleSlash(context.Background(), domain.Sender{UserID: "U1"}, "@alice 1")
	if !strings.HasPrefix(reply.Text, ":bacon: *@someone* sent") {
		t.Fatalf("unexpected text %q", reply.Text)
	}
}

func TestDispatcher_CustomCommandAndToken(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Command: "/pancake", TokenName: "PANCAKE", Logger: testLogger()})
	usage := d.HandleSlash(context.Background(), testSender, "")
	if !strings.Contains(usage.Text, "`/pancake @user <amount>`") {
		t.Fatalf("unexpected usage %q", usage.Text)
	}
	reply := d.HandleSlash(context.Background(), testSender, "@alice 2")
	if !strings.Contains(reply.Text, "*2 PANCAKE*") {
		t.Fatalf("unexpected announcement %q", reply.Text)
	}
}

func TestDispatcher_MentionDistribute(t *testing.T) {
	mem := &memRecorder{}
	d := newTestDispatcher(mem)

	reply, ok := d.HandleMention(context.Background(), testSender, "<@U0BOT> /distribute 10 bacon @alice")
	if !ok || reply != "Distributed 10 bacon to @alice" {
		t.Fatalf("unexpected reply %q ok=%v", reply, ok)
	}
	if len(mem.records) != 1 || mem.records[0].Amount != 10 || mem.records[0].ToUserDisplay != "@alice" {
		t.Fatalf("unexpected records %+v", mem.records)
	}
}

func TestDispatcher_MentionBadFormat(t *testing.T) {
	mem := &memRecorder{}
	d := newTestDispatcher(mem)

	reply, ok := d.HandleMention(context.Background(), testSender, "<@U0BOT> distribute lots bacon @alice")
	if !ok || reply != "Invalid command format. Use /distribute <amount> bacon @<user>" {
		t.Fatalf("unexpected reply %q ok=%v", reply, ok)
	}
	if len(mem.records) != 0 {
		t.Fatal("malformed command must not be recorded")
	}
}

func TestDispatcher_MentionZeroAmount(t *testing.T) {
	d := newTestDispatcher(nil)
	reply, ok := d.HandleMention(context.Background(), testSender, "distribute 0 bacon @alice")
	if !ok || reply != ":x: Amount must be greater than 0." {
		t.Fatalf("unexpected reply %q ok=%v", reply, ok)
	}
}

func TestDispatcher_MentionOtherCommand(t *testing.T) {
	d := newTestDispatcher(nil)
	if _, ok := d.HandleMention(context.Background(), testSender, "<@U0BOT> how are you"); ok {
		t.Fatal("non-distribute mention should not be handled")
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[float64]string{50: "50", 12.5: "12.5", 0.25: "0.25", 1000000: "1000000"}
	for in, want := range cases {
		if got := FormatAmount(in); got != want {
			t.Errorf("FormatAmount(%v) = %q, want %q", in, got, want)
		}
	}
}
