package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ALLOWED_ORIGINS", "STORE_DRIVER", "DB_PATH", "MONGODB_URI",
		"REDIS_ADDR", "CACHE_TTL", "BCRYPT_COST", "WS_SEND_BUFFER", "IDENTITY_JWT_SECRET",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != "3001" {
		t.Errorf("Port = %q, want 3001", cfg.Port)
	}
	if cfg.CORSOrigins() != "http://localhost:3000" {
		t.Errorf("CORSOrigins() = %q", cfg.CORSOrigins())
	}
	if cfg.StoreDriver != DriverSQLite {
		t.Errorf("StoreDriver = %q, want %q", cfg.StoreDriver, DriverSQLite)
	}
	if cfg.BcryptCost != 10 {
		t.Errorf("BcryptCost = %d, want 10", cfg.BcryptCost)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL)
	}
	if cfg.SendBufferSize != 256 {
		t.Errorf("SendBufferSize = %d, want 256", cfg.SendBufferSize)
	}
}

func TestLoad_MongoURISelectsMongoDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")

	if got := Load().StoreDriver; got != DriverMongo {
		t.Errorf("StoreDriver = %q, want %q", got, DriverMongo)
	}

	t.Setenv("STORE_DRIVER", "SQLite")
	if got := Load().StoreDriver; got != DriverSQLite {
		t.Errorf("explicit STORE_DRIVER ignored, got %q", got)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", " https://a.example/ ,https://b.example,, ")
	t.Setenv("BCRYPT_COST", "not-a-number")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("WS_SEND_BUFFER", "8")

	cfg := Load()

	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.AllowedOrigins) != len(want) {
		t.Fatalf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins, want)
	}
	for i := range want {
		if cfg.AllowedOrigins[i] != want[i] {
			t.Errorf("AllowedOrigins[%d] = %q, want %q", i, cfg.AllowedOrigins[i], want[i])
		}
	}
	if cfg.BcryptCost != 10 {
		t.Errorf("invalid BCRYPT_COST should fall back to default, got %d", cfg.BcryptCost)
	}
	if cfg.CacheTTL != 90*time.Second {
		t.Errorf("CacheTTL = %v, want 90s", cfg.CacheTTL)
	}
	if cfg.SendBufferSize != 8 {
		t.Errorf("SendBufferSize = %d, want 8", cfg.SendBufferSize)
	}
}
