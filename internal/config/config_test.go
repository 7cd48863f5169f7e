package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":8080"
policy_path: /etc/txnscore/policy.yaml
db:
  driver: sqlite
  dsn: /var/lib/txnscore/audit.db
kafka:
  brokers: ["broker-1:9092", "broker-2:9092"]
  topic: transactions
  group_id: txnscore
logging:
  env: production
  level: debug
summarizer:
  enabled: true
  timeout_ms: 500
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.PolicyPath != "/etc/txnscore/policy.yaml" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.DSN != "/var/lib/txnscore/audit.db" {
		t.Fatalf("db = %+v", cfg.DB)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Topic != "transactions" {
		t.Fatalf("kafka = %+v", cfg.Kafka)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if !cfg.Summarizer.Enabled || cfg.Summarizer.TimeoutMS != 500 {
		t.Fatalf("summarizer = %+v", cfg.Summarizer)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TXNSCORE_TEST_DSN", "postgres://audit:secret@db:5432/audit")
	path := writeConfig(t, `
listen_addr: ":8080"
db:
  driver: postgres
  dsn: ${TXNSCORE_TEST_DSN}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DB.DSN != "postgres://audit:secret@db:5432/audit" {
		t.Fatalf("dsn = %q", cfg.DB.DSN)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing_listen_addr",
			cfg:     Config{},
			wantErr: "listen_addr",
		},
		{
			name:    "unknown_driver",
			cfg:     Config{ListenAddr: ":8080", DB: DBConfig{Driver: "oracle"}},
			wantErr: "db.driver",
		},
		{
			name:    "sqlite_without_dsn",
			cfg:     Config{ListenAddr: ":8080", DB: DBConfig{Driver: "sqlite"}},
			wantErr: "db.dsn",
		},
		{
			name:    "topic_without_brokers",
			cfg:     Config{ListenAddr: ":8080", Kafka: KafkaConfig{Topic: "txns"}},
			wantErr: "kafka.brokers",
		},
		{
			name:    "summarizer_without_timeout",
			cfg:     Config{ListenAddr: ":8080", Summarizer: SummarizerConfig{Enabled: true}},
			wantErr: "timeout_ms",
		},
		{
			name: "memory_driver_ok",
			cfg:  Config{ListenAddr: ":8080", DB: DBConfig{Driver: "memory"}},
		},
		{
			name: "empty_driver_ok",
			cfg:  Config{ListenAddr: ":8080"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error = %v, want mention of %s", err, tc.wantErr)
			}
		})
	}
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := writeConfig(t, "listen_addr: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("expected yaml error")
	}
}
