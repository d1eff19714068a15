package bootstrap_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artpar/tablegate/app"
	"github.com/artpar/tablegate/bootstrap"
	"github.com/artpar/tablegate/config"
)

func memoryConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Server.Port = 0
	cfg.Database = config.DatabaseConfig{Driver: config.DriverMemory}
	return &cfg
}

// running starts a.Run and waits for the first listener.
func running(t *testing.T, a *bootstrap.App) (base func() string, stop func() error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	base = func() string {
		if addr := a.Supervisor.Addr(); addr != nil {
			return "http://" + addr.String()
		}
		return ""
	}
	eventually(t, func() bool { return base() != "" })

	stopped := false
	stop = func() error {
		if stopped {
			return nil
		}
		stopped = true
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return")
			return nil
		}
	}
	t.Cleanup(func() { stop() })
	return base, stop
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 5s")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func request(method, url, body string) (int, string, error) {
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data), err
}

func TestNew_MemoryDriver(t *testing.T) {
	a, err := bootstrap.New(bootstrap.Options{Config: memoryConfig(), LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown()

	if a.Supervisor == nil || a.Schema == nil || a.Users == nil || a.Metrics == nil {
		t.Fatal("components not initialized")
	}
	if a.Supervisor.State() != app.StateIdle {
		t.Errorf("State = %v before Run, want IDLE", a.Supervisor.State())
	}
	if a.Supervisor.Addr() != nil {
		t.Error("nothing should listen before Run")
	}
}

func TestNew_SQLiteMigrates(t *testing.T) {
	cfg := memoryConfig()
	cfg.Database = config.DatabaseConfig{
		Driver: config.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "tablegate.db"),
	}

	a, err := bootstrap.New(bootstrap.Options{Config: cfg, LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	base, _ := running(t, a)

	status, body, err := request(http.MethodGet, base()+"/users", "")
	if err != nil {
		t.Fatalf("GET /users: %v", err)
	}
	if status != http.StatusOK || strings.TrimSpace(body) != "[]" {
		t.Errorf("GET /users = %d %q, want 200 []", status, body)
	}

	status, _, err = request(http.MethodGet, base()+"/health/ready", "")
	if err != nil || status != http.StatusOK {
		t.Errorf("GET /health/ready = %d, %v", status, err)
	}
}

func TestNew_InvalidConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tablegate.yaml")
	os.WriteFile(path, []byte("database:\n  driver: oracle\n"), 0644)

	if _, err := bootstrap.New(bootstrap.Options{ConfigPath: path, LogOutput: io.Discard}); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestRun_DefineEntityReconfigures(t *testing.T) {
	a, err := bootstrap.New(bootstrap.Options{Config: memoryConfig(), LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	base, _ := running(t, a)
	first := base()

	status, _, err := request(http.MethodPost, first+"/widget", "")
	if err != nil {
		t.Fatalf("POST /widget: %v", err)
	}
	if status != http.StatusNotFound {
		t.Fatalf("POST /widget before definition = %d, want 404", status)
	}

	status, body, err := request(http.MethodPost, first+"/types",
		`{"name":"Widget","fields":[["id","INTEGER"],["label","TEXT"]]}`)
	if err != nil {
		t.Fatalf("POST /types: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("POST /types = %d %q", status, body)
	}
	if want := "CREATE TABLE widget (\nid\tINTEGER,\nlabel\tTEXT\n)"; body != want {
		t.Errorf("body = %q, want %q", body, want)
	}

	// Port 0 rebinds to a fresh port, so a new address marks the new listener.
	eventually(t, func() bool { return base() != "" && base() != first })

	status, body, err = request(http.MethodPost, base()+"/widget", "")
	if err != nil {
		t.Fatalf("POST /widget: %v", err)
	}
	if status != http.StatusOK || body != "Unknown handler" {
		t.Errorf("POST /widget = %d %q, want 200 Unknown handler", status, body)
	}
}

func TestRun_UsersCollaborator(t *testing.T) {
	a, err := bootstrap.New(bootstrap.Options{Config: memoryConfig(), LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	base, _ := running(t, a)

	status, body, err := request(http.MethodPost, base()+"/users", `{"username":"ada","password":"secret"}`)
	if err != nil || status != http.StatusCreated {
		t.Fatalf("POST /users = %d %q, %v", status, body, err)
	}
	if strings.Contains(body, "secret") || strings.Contains(body, "password") {
		t.Errorf("response leaks password: %s", body)
	}

	status, body, err = request(http.MethodPost, base()+"/users", `{"username":"ada","password":"other"}`)
	if err != nil || status != http.StatusConflict || !strings.Contains(body, "Username already exists") {
		t.Errorf("duplicate POST /users = %d %q, %v", status, body, err)
	}
}

func TestRun_UsersDisabled(t *testing.T) {
	cfg := memoryConfig()
	cfg.Users.Enabled = false

	a, err := bootstrap.New(bootstrap.Options{Config: cfg, LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	base, _ := running(t, a)

	status, body, err := request(http.MethodPost, base()+"/users", `{}`)
	if err != nil || status != http.StatusOK || body != "Unknown handler" {
		t.Errorf("POST /users = %d %q, %v", status, body, err)
	}
}

func TestRun_ConfigReloadRestartsListener(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tablegate.yaml")
	write := func(users bool) {
		content := "server:\n  port: 0\ndatabase:\n  driver: memory\nusers:\n  enabled: false\n"
		if users {
			content = strings.Replace(content, "enabled: false", "enabled: true", 1)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	write(true)

	a, err := bootstrap.New(bootstrap.Options{ConfigPath: path, LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	base, _ := running(t, a)

	status, _, err := request(http.MethodGet, base()+"/users", "")
	if err != nil || status != http.StatusOK {
		t.Fatalf("GET /users = %d, %v", status, err)
	}

	write(false)
	if err := a.Config.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	// Only POST is bound once users are served as a plain entity.
	eventually(t, func() bool {
		status, _, err := request(http.MethodGet, base()+"/users", "")
		return err == nil && status == http.StatusMethodNotAllowed
	})
}

func TestRun_ContextCancelReturnsNil(t *testing.T) {
	a, err := bootstrap.New(bootstrap.Options{Config: memoryConfig(), LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	base, stop := running(t, a)
	addr := base()

	if err := stop(); err != nil {
		t.Errorf("Run = %v, want nil", err)
	}
	if _, _, err := request(http.MethodGet, addr+"/health", ""); err == nil {
		t.Error("listener still serving after Run returned")
	}
}

func TestRun_ClosedChannelIsFatal(t *testing.T) {
	a, err := bootstrap.New(bootstrap.Options{Config: memoryConfig(), LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, stop := running(t, a)

	a.Supervisor.Close()

	if err := stop(); !errors.Is(err, app.ErrChannelClosed) {
		t.Errorf("Run = %v, want ErrChannelClosed", err)
	}
}

func TestNew_TracingEnabled(t *testing.T) {
	cfg := memoryConfig()
	cfg.Tracing.Enabled = true
	cfg.Tracing.Insecure = true
	cfg.Tracing.Endpoint = "http://127.0.0.1:4318"

	a, err := bootstrap.New(bootstrap.Options{Config: cfg, LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	base, _ := running(t, a)

	status, _, err := request(http.MethodGet, base()+"/health", "")
	if err != nil || status != http.StatusOK {
		t.Errorf("GET /health = %d, %v", status, err)
	}
}
