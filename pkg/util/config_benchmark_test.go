/*
Performance Baseline Documentation - Config Benchmarks

These benchmarks measure configuration loading, defaults application and
validation for configs declaring a growing number of custom platforms.

Run benchmarks with:

	go test -bench=Benchmark -benchmem ./pkg/util/
*/
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// BenchmarkLoadConfig_YAML measures loading and parsing YAML configuration
// files of various sizes.
func BenchmarkLoadConfig_YAML(b *testing.B) {
	benchmarks := []struct {
		name         string
		numPlatforms int
	}{
		{"builtin_only", 0},
		{"small_5_platforms", 5},
		{"large_50_platforms", 50},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			configPath := filepath.Join(b.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(generateYAMLConfig(bm.numPlatforms)), 0644); err != nil {
				b.Fatalf("Failed to write config: %v", err)
			}

			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := LoadConfig(configPath); err != nil {
					b.Fatalf("LoadConfig failed: %v", err)
				}
			}
		})
	}
}

// BenchmarkValidate measures validation of an already-defaulted config.
func BenchmarkValidate(b *testing.B) {
	config := baseConfig()
	config.Remediation.Platforms = generatePlatforms(20)
	if err := config.ApplyDefaults(); err != nil {
		b.Fatalf("ApplyDefaults failed: %v", err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := config.Validate(); err != nil {
			b.Fatalf("Validate failed: %v", err)
		}
	}
}

// BenchmarkDefaultConfig measures building the default configuration.
func BenchmarkDefaultConfig(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := DefaultConfig(); err != nil {
			b.Fatalf("DefaultConfig failed: %v", err)
		}
	}
}

func generateYAMLConfig(n int) string {
	var sb strings.Builder
	sb.WriteString("thresholds:\n  errorThreshold: 100\n  warningThreshold: 500\n")
	sb.WriteString("source:\n  type: csv-dir\n  path: /tmp/logs\n")
	if n == 0 {
		return sb.String()
	}
	sb.WriteString("remediation:\n  platforms:\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "    - name: platform-%d\n", i)
		sb.WriteString("      actions:\n")
		sb.WriteString("        - label: Clean tmp\n")
		sb.WriteString("          category: DiskCleanup\n")
		sb.WriteString("          requiredTool: find\n")
		sb.WriteString("          command: [find, /tmp, -mindepth, \"1\", -delete]\n")
	}
	return sb.String()
}

func generatePlatforms(n int) []types.PlatformConfig {
	platforms := make([]types.PlatformConfig, 0, n)
	for i := 0; i < n; i++ {
		platforms = append(platforms, types.PlatformConfig{
			Name: fmt.Sprintf("platform-%d", i),
			Actions: []types.ActionConfig{{
				Label:    "Restart agent",
				Category: "restart",
				Command:  []string{"systemctl", "restart", "agent"},
			}},
		})
	}
	return platforms
}
