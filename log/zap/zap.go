// Package zap adapts a *zap.Logger to optcache.Logger.
package zap

import (
	"sort"

	"github.com/unkn0wn-root/optcache"
	"go.uber.org/zap"
)

var _ optcache.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

// New names the logger "optcache". nil => zap.NewNop().
func New(l *zap.Logger) ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return ZapLogger{L: l.Named("optcache")}
}

func (z ZapLogger) Debug(msg string, f optcache.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f optcache.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f optcache.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f optcache.Fields) { z.L.Error(msg, zf(f)...) }

// zf orders fields by name; errors use zap's error encoding.
func zf(f optcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
