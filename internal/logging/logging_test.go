package logging

import (
	"context"
	"testing"
)

type recordingLogger struct {
	fields map[string]any
	msgs   []string
}

func (r *recordingLogger) Trace(msg string, args ...any)      { r.msgs = append(r.msgs, msg) }
func (r *recordingLogger) Debug(msg string, args ...any)      { r.msgs = append(r.msgs, msg) }
func (r *recordingLogger) Info(msg string, args ...any)       { r.msgs = append(r.msgs, msg) }
func (r *recordingLogger) Warn(msg string, args ...any)       { r.msgs = append(r.msgs, msg) }
func (r *recordingLogger) Error(msg string, args ...any)      { r.msgs = append(r.msgs, msg) }
func (r *recordingLogger) WithContext(context.Context) Logger { return r }
func (r *recordingLogger) WithFields(fields map[string]any) Logger {
	r.fields = fields
	return r
}

type staticProvider struct {
	logger *recordingLogger
	names  []string
}

func (p *staticProvider) GetLogger(name string) Logger {
	p.names = append(p.names, name)
	return p.logger
}

func TestModuleLogger(t *testing.T) {
	t.Run("nil provider is no-op", func(t *testing.T) {
		l := ModuleLogger(nil, AssistModule)
		if l == nil {
			t.Fatal("expected logger")
		}
		l.Info("ignored")
	})

	t.Run("attaches module field", func(t *testing.T) {
		rec := &recordingLogger{}
		p := &staticProvider{logger: rec}
		l := ModuleLogger(p, ExportModule)
		l.Warn("hello")

		if len(p.names) != 1 || p.names[0] != ExportModule {
			t.Errorf("requested names = %v", p.names)
		}
		if rec.fields["module"] != ExportModule {
			t.Errorf("module field = %v", rec.fields["module"])
		}
		if len(rec.msgs) != 1 || rec.msgs[0] != "hello" {
			t.Errorf("messages = %v", rec.msgs)
		}
	})

	t.Run("empty module defaults to root", func(t *testing.T) {
		p := &staticProvider{logger: &recordingLogger{}}
		ModuleLogger(p, "")
		if p.names[0] != RootModule {
			t.Errorf("name = %q, want %q", p.names[0], RootModule)
		}
	})
}

func TestOrNoOp(t *testing.T) {
	if OrNoOp(nil) == nil {
		t.Fatal("expected no-op logger for nil")
	}
	rec := &recordingLogger{}
	if OrNoOp(rec) != Logger(rec) {
		t.Error("expected the given logger back")
	}
}
