package gologger

import "testing"

func TestNewProviderValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"json debug", Config{Level: "debug", Format: "json"}, false},
		{"pretty warning alias", Config{Level: "warning", Format: "pretty"}, false},
		{"bad format", Config{Format: "xml"}, true},
		{"bad level", Config{Level: "loud"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && p.GetLogger("ferry.test") == nil {
				t.Error("expected a logger")
			}
		})
	}
}

func TestNilProviderReturnsNoOp(t *testing.T) {
	var p *Provider
	if p.GetLogger("x") == nil {
		t.Fatal("expected no-op logger")
	}
}
