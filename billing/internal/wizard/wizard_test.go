package wizard

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mealplanpro/mealplan/billing/internal/config"
	"github.com/mealplanpro/mealplan/pkg/cli"
)

func readConfig(t *testing.T, path string) config.Config {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	var cfg config.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("unmarshal config: %v", err)
	}
	return cfg
}

func TestWizard_Supabase(t *testing.T) {
	input := strings.Join([]string{
		":9090",                     // listen address
		"",                          // action route (default)
		"https://mealplan.example",  // CORS origin
		"1",                         // auth: supabase
		"https://abc.supabase.co",   // supabase url
		"service-role-key",          // service role key
		"rzp_test_123",              // key id
		"rzp_secret",                // key secret
		"",                          // plan name (default)
		"49900",                     // amount
		"1",                         // storage: sqlite
		"./data/billing.db",         // sqlite path
	}, "\n") + "\n"

	out := &bytes.Buffer{}
	p := &cli.Prompter{In: strings.NewReader(input), Out: out}
	outputPath := filepath.Join(t.TempDir(), "billing.json")

	if err := New(p).Run(outputPath); err != nil {
		t.Fatalf("wizard.Run() error: %v", err)
	}

	cfg := readConfig(t, outputPath)
	if cfg.Server.Addr != ":9090" || cfg.Server.Path != "/razorpay" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://mealplan.example" {
		t.Errorf("allowed_origins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Auth.Provider != "supabase" || cfg.Auth.SupabaseURL != "https://abc.supabase.co" || cfg.Auth.ServiceRoleKey != "service-role-key" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.Razorpay.KeyID != "rzp_test_123" || cfg.Razorpay.KeySecret != "rzp_secret" {
		t.Errorf("razorpay = %+v", cfg.Razorpay)
	}
	if cfg.Plan.Name != "Meal Plan Pro" || cfg.Plan.Amount != 49900 {
		t.Errorf("plan = %+v", cfg.Plan)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.DSN != "./data/billing.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if !strings.Contains(out.String(), "Test mode key detected.") {
		t.Error("expected test mode notice")
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o, want 0600", perm)
	}
}

func TestWizard_JWTRejectsShortSecret(t *testing.T) {
	input := strings.Join([]string{
		"", "", "",
		"2",                                  // auth: jwt
		"too-short",                          // rejected
		"0123456789abcdef0123456789abcdef",   // accepted
		"rzp_live_1",
		"secret",
		"", "",
		"2",                                  // storage: postgres
		"postgres://localhost/mealplan",
	}, "\n") + "\n"

	out := &bytes.Buffer{}
	p := &cli.Prompter{In: strings.NewReader(input), Out: out}
	outputPath := filepath.Join(t.TempDir(), "billing.json")

	if err := New(p).Run(outputPath); err != nil {
		t.Fatalf("wizard.Run() error: %v", err)
	}

	cfg := readConfig(t, outputPath)
	if cfg.Auth.Provider != "jwt" || cfg.Auth.JWTSecret != "0123456789abcdef0123456789abcdef" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.Storage.Driver != "postgres" || cfg.Storage.DSN != "postgres://localhost/mealplan" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if !strings.Contains(out.String(), "at least 32 characters") {
		t.Error("expected short secret notice")
	}
}

func TestWizard_InputEnds(t *testing.T) {
	p := &cli.Prompter{In: strings.NewReader("\n\n\n1\n"), Out: &bytes.Buffer{}}
	if err := New(p).Run(filepath.Join(t.TempDir(), "billing.json")); err == nil {
		t.Fatal("expected error when input ends before the Supabase URL")
	}
}

func TestRunDefaults(t *testing.T) {
	t.Setenv("MEALPLAN_ADDR", ":7000")
	t.Setenv("MEALPLAN_STORAGE_DRIVER", "")
	t.Setenv("MEALPLAN_STORAGE_DSN", "")
	t.Setenv("RAZORPAY_KEY_ID", "rzp_test_env")
	t.Setenv("RAZORPAY_KEY_SECRET", "env-secret")
	t.Setenv("SUPABASE_URL", "")

	out := &bytes.Buffer{}
	w := New(&cli.Prompter{In: strings.NewReader(""), Out: out})
	outputPath := filepath.Join(t.TempDir(), "billing.json")
	if err := w.RunDefaults(outputPath); err != nil {
		t.Fatalf("RunDefaults: %v", err)
	}

	cfg := readConfig(t, outputPath)
	if cfg.Server.Addr != ":7000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Razorpay.KeyID != "rzp_test_env" || cfg.Razorpay.KeySecret != "env-secret" {
		t.Errorf("razorpay = %+v", cfg.Razorpay)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.DSN != "/var/lib/mealplan/billing.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if !strings.Contains(out.String(), "Set SUPABASE_URL") {
		t.Errorf("expected missing variable notice, got %q", out.String())
	}
}

func TestRunDefaults_PostgresNeedsDSN(t *testing.T) {
	t.Setenv("MEALPLAN_STORAGE_DRIVER", "postgres")
	t.Setenv("MEALPLAN_STORAGE_DSN", "")
	t.Setenv("DATABASE_URL", "")

	w := New(&cli.Prompter{In: strings.NewReader(""), Out: &bytes.Buffer{}})
	if err := w.RunDefaults(filepath.Join(t.TempDir(), "billing.json")); err == nil {
		t.Fatal("expected error without a postgres DSN")
	}
}
