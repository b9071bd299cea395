package logrus

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/unkn0wn-root/optcache"
)

func TestLogrusLogger(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	l.Debug("child skipped", optcache.Fields{"key": "users", "reason": "missing_id"})
	l.Warn("identity replaced", nil)

	if len(hook.Entries) != 2 {
		t.Fatalf("got %d entries", len(hook.Entries))
	}
	first := hook.Entries[0]
	if first.Level != logrus.DebugLevel || first.Message != "child skipped" {
		t.Fatalf("first=%v %q", first.Level, first.Message)
	}
	if first.Data["component"] != "optcache" || first.Data["reason"] != "missing_id" {
		t.Fatalf("data=%v", first.Data)
	}
	if last := hook.LastEntry(); last.Level != logrus.WarnLevel {
		t.Fatalf("last level=%v", last.Level)
	}
}
