package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/theaxonlab/physioevents/internal/config"
	"github.com/theaxonlab/physioevents/internal/source"
	"github.com/theaxonlab/physioevents/internal/store"
)

// syntheticLog builds a quality-control log with n blank/motor trial pairs.
func syntheticLog(n int) string {
	var sb strings.Builder
	sb.WriteString("10.0000 \tDATA \tKeypress: s\n")
	ts := 20.0
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%.4f \tEXP \tfixation: autoDraw = True\n", ts)
		fmt.Fprintf(&sb, "%.4f \tDATA \tKeypress: s\n", ts+1)
		fmt.Fprintf(&sb, "%.4f \tEXP \tfixation: autoDraw = False\n", ts+3)
		fmt.Fprintf(&sb, "%.4f \tEXP \tft_hand: text = 'RIGHT'\n", ts+3)
		fmt.Fprintf(&sb, "%.4f \tEXP \tft_hand: autoDraw = True\n", ts+3)
		fmt.Fprintf(&sb, "%.4f \tEXP \tft_hand: autoDraw = False\n", ts+8)
		ts += 10
	}
	return sb.String()
}

func benchDir(b *testing.B, files int) string {
	b.Helper()
	dir := b.TempDir()
	text := []byte(syntheticLog(200))
	for i := 0; i < files; i++ {
		path := filepath.Join(dir, fmt.Sprintf("control_task_%03d.log", i))
		if err := os.WriteFile(path, text, 0o600); err != nil {
			b.Fatal(err)
		}
	}
	return dir
}

func BenchmarkParseLog(b *testing.B) {
	text := syntheticLog(1000)
	b.SetBytes(int64(len(text)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := source.ParseLog("bench.log", text); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLoad(b *testing.B) {
	dir := benchDir(b, 32)
	cfg := config.DefaultConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result, err := Load(context.Background(), dir, cfg, Options{}, nil)
		if err != nil {
			b.Fatal(err)
		}
		_ = result
	}
}

func BenchmarkLoadWithCache(b *testing.B) {
	dir := benchDir(b, 32)
	cfg := config.DefaultConfig()

	cache, err := store.Open(filepath.Join(b.TempDir(), "events.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer func() { _ = cache.Close() }()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cr, err := LoadWithCache(context.Background(), dir, cfg, Options{}, cache, nil)
		if err != nil {
			b.Fatal(err)
		}
		_ = cr
	}
}
