package pdfrenderer

import (
	"log/slog"
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	os.Exit(m.Run())
}
