package shared

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	tu "github.com/desertthunder/isoca/internal/testing"
)

func TestMaskToken(t *testing.T) {
	tc := []struct {
		name  string
		token string
		want  string
	}{
		{name: "empty", token: "", want: "(none)"},
		{name: "short", token: "abc", want: "****"},
		{name: "long", token: "BQDx1234567890wxyz", want: "BQDx…wxyz"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskToken(tt.token); got != tt.want {
				t.Errorf("MaskToken() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	t.Run("WithLogger adds fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "component", "store")
		logger.Info("opened")

		if !strings.Contains(buf.String(), "component=store") {
			t.Errorf("expected component field in %q", buf.String())
		}
	})

	t.Run("GenerateID is unique", func(t *testing.T) {
		if GenerateID() == GenerateID() {
			t.Error("expected distinct ids")
		}
	})
}

func TestOpenBrowser(t *testing.T) {
	original := getRuntime
	defer func() { getRuntime = original }()

	getRuntime = func() string { return "plan9" }
	if err := OpenBrowser("http://127.0.0.1"); err == nil {
		t.Error("expected error for unsupported platform")
	}
}

func TestNewFileLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tmp", "logs")
	path := filepath.Join(dir, "isoca-tui.log")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	logger.Info("tui started", "view", "signed out")

	tu.AssertDirExists(t, dir)
	tu.AssertFileExists(t, path)
	if content := tu.MustReadFile(t, path); !strings.Contains(content, "tui started") {
		t.Errorf("expected log line in file, got %q", content)
	}
}
