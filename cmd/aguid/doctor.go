package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/coagents/aguid/internal/config"
	"github.com/coagents/aguid/internal/storage"
)

// check represents a single diagnostic check result.
type check struct {
	Name   string
	Status string // "ok", "warn", "fail"
	Detail string
}

// doctorChecks performs preflight diagnostics.
func doctorChecks() []check {
	var checks []check

	cfg, err := config.LoadConfig()
	if err != nil {
		checks = append(checks, check{Name: "config", Status: "fail", Detail: err.Error()})
		return checks
	}
	checks = append(checks, checkConfig(cfg))
	checks = append(checks, checkDataDir(cfg.DataDir))
	checks = append(checks, checkDatabase(cfg))
	checks = append(checks, checkPort(cfg))
	return checks
}

func checkConfig(cfg *config.Config) check {
	if err := cfg.Validate(); err != nil {
		return check{Name: "config", Status: "fail", Detail: err.Error()}
	}
	return check{Name: "config", Status: "ok", Detail: fmt.Sprintf("Service: %s, Addr: %s", cfg.ServiceName, cfg.Addr())}
}

func checkDataDir(dataDir string) check {
	info, err := os.Stat(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return check{Name: "data_dir", Status: "warn", Detail: fmt.Sprintf("%s does not exist (will be created)", dataDir)}
		}
		return check{Name: "data_dir", Status: "fail", Detail: err.Error()}
	}
	if !info.IsDir() {
		return check{Name: "data_dir", Status: "fail", Detail: fmt.Sprintf("%s is not a directory", dataDir)}
	}
	// Probe writability; stat alone does not prove it.
	probe := filepath.Join(dataDir, ".doctor_probe")
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		return check{Name: "data_dir", Status: "fail", Detail: fmt.Sprintf("%s is not writable: %v", dataDir, err)}
	}
	os.Remove(probe)
	return check{Name: "data_dir", Status: "ok", Detail: dataDir}
}

func checkDatabase(cfg *config.Config) check {
	db, err := storage.Open(cfg.DBPath())
	if err != nil {
		return check{Name: "database", Status: "fail", Detail: err.Error()}
	}
	db.Close()
	return check{Name: "database", Status: "ok", Detail: cfg.DBPath()}
}

func checkPort(cfg *config.Config) check {
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return check{Name: "port", Status: "fail", Detail: fmt.Sprintf("cannot listen on %s: %v", cfg.Addr(), err)}
	}
	ln.Close()
	return check{Name: "port", Status: "ok", Detail: cfg.Addr()}
}

func formatChecks(checks []check) string {
	var sb strings.Builder
	for _, c := range checks {
		icon := "✓"
		switch c.Status {
		case "warn":
			icon = "!"
		case "fail":
			icon = "✗"
		}
		sb.WriteString(fmt.Sprintf("[%s] %s: %s\n", icon, c.Name, c.Detail))
	}
	return sb.String()
}
