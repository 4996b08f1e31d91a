package config

import (
	"testing"
	"time"
)

func TestLoad_RequiresTokenAndGuild(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("DISCORD_GUILD_ID", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when DISCORD_TOKEN is missing")
	}

	t.Setenv("DISCORD_TOKEN", "tok")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when DISCORD_GUILD_ID is missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("DISCORD_GUILD_ID", "g1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Discord.CommandPrefix != "!" {
		t.Errorf("CommandPrefix = %q, want %q", cfg.Discord.CommandPrefix, "!")
	}
	if cfg.Tickets.ReminderDelay() != 48*time.Hour {
		t.Errorf("ReminderDelay = %v, want 48h", cfg.Tickets.ReminderDelay())
	}
	if cfg.Tickets.SuspendDelay() != 24*time.Hour {
		t.Errorf("SuspendDelay = %v, want 24h", cfg.Tickets.SuspendDelay())
	}
	if cfg.Tickets.PollInterval() != 5*time.Minute {
		t.Errorf("PollInterval = %v, want 5m", cfg.Tickets.PollInterval())
	}
	if cfg.Web.Addr() != "0.0.0.0:5000" {
		t.Errorf("Addr = %q, want 0.0.0.0:5000", cfg.Web.Addr())
	}
}

func TestParseCategoryMap(t *testing.T) {
	tests := map[string]struct {
		raw  string
		want map[string]string
	}{
		"empty":      {raw: "", want: map[string]string{}},
		"single":     {raw: "reports=123", want: map[string]string{"reports": "123"}},
		"multiple":   {raw: "reports=123,appeals=456", want: map[string]string{"reports": "123", "appeals": "456"}},
		"whitespace": {raw: " reports = 123 , appeals = 456 ", want: map[string]string{"reports": "123", "appeals": "456"}},
		"malformed":  {raw: "reports,appeals=456", want: map[string]string{"appeals": "456"}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := parseCategoryMap(tc.raw)
			if len(got) != len(tc.want) {
				t.Fatalf("parseCategoryMap(%q) = %v, want %v", tc.raw, got, tc.want)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Errorf("key %q = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}
