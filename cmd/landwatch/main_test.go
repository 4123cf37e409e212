// cmd/landwatch/main_test.go
package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valpere/landwatch/internal/errors"
	"github.com/valpere/landwatch/internal/storage"
	"github.com/valpere/landwatch/pkg/types"
)

func TestCLIVersion(t *testing.T) {
	version = "test-version"
	buildTime = "2025-06-23"
	gitCommit = "abc123"

	var out bytes.Buffer
	if code := run([]string{"version"}, &out, &out); code != errors.ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	for _, want := range []string{"test-version", "2025-06-23", "abc123"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("version output should contain %q, got: %s", want, out.String())
		}
	}
}

func TestCLIHelp(t *testing.T) {
	var out bytes.Buffer
	run([]string{"help"}, &out, &out)

	for _, cmd := range []string{"run", "daemon", "validate", "template", "export", "stats", "version", "help"} {
		if !strings.Contains(out.String(), "landwatch "+cmd) {
			t.Errorf("help output should contain command %q", cmd)
		}
	}
}

func TestCLIUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"scrape"}, &stdout, &stderr); code != errors.ExitGeneral {
		t.Errorf("exit code = %d, want %d", code, errors.ExitGeneral)
	}
	if !strings.Contains(stderr.String(), "unknown command 'scrape'") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		want    cli
		wantErr bool
	}{
		{
			name: "defaults",
			argv: []string{"run"},
			want: cli{command: "run", configFile: defaultConfigFile},
		},
		{
			name: "flags before and after command",
			argv: []string{"-v", "export", "--format", "csv", "--out=listings.csv", "-c", "prod.yaml"},
			want: cli{command: "export", configFile: "prod.yaml", verbose: true, format: "csv", out: "listings.csv"},
		},
		{
			name: "positional config",
			argv: []string{"validate", "custom.yaml"},
			want: cli{command: "validate", args: []string{"custom.yaml"}, configFile: defaultConfigFile},
		},
		{
			name:    "missing flag value",
			argv:    []string{"export", "--out"},
			wantErr: true,
		},
		{
			name:    "unknown flag",
			argv:    []string{"run", "--fast"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.argv)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseArgs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.command != tt.want.command || got.configFile != tt.want.configFile ||
				got.verbose != tt.want.verbose || got.format != tt.want.format || got.out != tt.want.out ||
				strings.Join(got.args, ",") != strings.Join(tt.want.args, ",") {
				t.Errorf("parseArgs() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCLITemplate(t *testing.T) {
	var out bytes.Buffer
	if code := run([]string{"template", "slow"}, &out, &out); code != errors.ExitOK {
		t.Fatalf("exit code = %d, output: %s", code, out.String())
	}
	for _, want := range []string{"cortar_no: \"1168010100\"", "profile: slow", "${TELEGRAM_BOT_TOKEN}"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("template should contain %q", want)
		}
	}
}

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	db := filepath.Join(dir, "listings.db")
	path := filepath.Join(dir, "config.yaml")
	content := "regions:\n  - name: 역삼\n    cortar_no: \"1168010100\"\n" +
		"storage:\n  driver: sqlite3\n  dsn: " + db + "\n" +
		"telegram:\n  enabled: false\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path, db
}

func TestCLIValidate(t *testing.T) {
	path, _ := writeConfig(t)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"validate", path}, &stdout, &stderr); code != errors.ExitOK {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "is valid") {
		t.Errorf("stdout = %q", stdout.String())
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("regions:\n  - cortar_no: abc\n"), 0644)
	stderr.Reset()
	if code := run([]string{"validate", bad}, &stdout, &stderr); code != errors.ExitConfiguration {
		t.Errorf("exit code = %d, want %d", code, errors.ExitConfiguration)
	}
	if !strings.Contains(stderr.String(), "Configuration Error") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestCLIStatsAndExport(t *testing.T) {
	path, db := writeConfig(t)

	store, err := storage.OpenSQLite(context.Background(), db)
	if err != nil {
		t.Fatal(err)
	}
	for _, article := range []string{"1", "2"} {
		if _, err := store.Insert(context.Background(), types.Listing{
			ID: types.ListingID("101", article), ComplexNo: "101", ArticleNo: article, TradeType: types.TradeSale,
		}); err != nil {
			t.Fatal(err)
		}
	}
	store.Close()

	var stdout, stderr bytes.Buffer
	if code := run([]string{"stats", "--config", path}, &stdout, &stderr); code != errors.ExitOK {
		t.Fatalf("stats exit code = %d, stderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Pending:  2") {
		t.Errorf("stats output = %q", stdout.String())
	}

	out := filepath.Join(t.TempDir(), "listings.csv")
	stdout.Reset()
	if code := run([]string{"export", "--config", path, "--out", out}, &stdout, &stderr); code != errors.ExitOK {
		t.Fatalf("export exit code = %d, stderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Exported 2 listings") {
		t.Errorf("export output = %q", stdout.String())
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("export file missing: %v", err)
	}
}

func TestCLIExportNeedsOut(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"export"}, &stdout, &stderr); code != errors.ExitConfiguration {
		t.Errorf("exit code = %d, want %d", code, errors.ExitConfiguration)
	}
}
