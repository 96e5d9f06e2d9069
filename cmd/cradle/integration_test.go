// ABOUTME: Integration tests for the cradle binary.
// ABOUTME: Runs a real server process and two linked devices that sync through it.
package main_test

import (
	"bytes"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().String()
}

func TestFullWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("builds and runs the binary")
	}

	tmpDir := t.TempDir()
	binary := filepath.Join(tmpDir, "cradle")
	buildCmd := exec.Command("go", "build", "-o", binary, ".")
	if output, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build: %v\n%s", err, output)
	}

	serverEnv := []string{
		"HOME=" + tmpDir,
		"XDG_CONFIG_HOME=" + filepath.Join(tmpDir, "server", "config"),
		"XDG_DATA_HOME=" + filepath.Join(tmpDir, "server", "data"),
		"CRADLE_JWT_SECRET=integration-secret",
		"CRADLE_DATA_DIR=" + filepath.Join(tmpDir, "server", "data"),
	}

	// device returns a runner with its own config and store.
	device := func(name string) func(args ...string) (string, error) {
		env := []string{
			"HOME=" + tmpDir,
			"XDG_CONFIG_HOME=" + filepath.Join(tmpDir, name, "config"),
			"XDG_DATA_HOME=" + filepath.Join(tmpDir, name, "data"),
		}
		return func(args ...string) (string, error) {
			cmd := exec.Command(binary, args...)
			cmd.Env = env
			output, err := cmd.CombinedOutput()
			return string(output), err
		}
	}

	tokenCmd := exec.Command(binary, "token", "1")
	tokenCmd.Env = serverEnv
	var stdout bytes.Buffer
	tokenCmd.Stdout = &stdout
	if err := tokenCmd.Run(); err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	token := strings.TrimSpace(stdout.String())

	addr := freePort(t)
	serveCmd := exec.Command(binary, "serve", "--addr", addr)
	serveCmd.Env = serverEnv
	if err := serveCmd.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() {
		_ = serveCmd.Process.Signal(os.Interrupt)
		_ = serveCmd.Wait()
	})

	base := "http://" + addr
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not become healthy: %v", err)
		}
		time.Sleep(100 * time.Millisecond)
	}

	phone := device("phone")
	laptop := device("laptop")
	for name, run := range map[string]func(...string) (string, error){"phone": phone, "laptop": laptop} {
		output, err := run("sync", "login", "--server", base, "--owner", "1", "--token", token)
		if err != nil {
			t.Fatalf("%s: failed to log in: %v\n%s", name, err, output)
		}
	}

	output, err := phone("add", "feeding", "--sub", "bottle", "--amount", "90", "--unit", "ml")
	if err != nil {
		t.Fatalf("Failed to add feeding: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Logged feeding") {
		t.Errorf("Expected 'Logged feeding' in output, got: %s", output)
	}

	output, err = phone("growth", "add", "4.1", "54")
	if err != nil {
		t.Fatalf("Failed to add growth: %v\n%s", err, output)
	}

	output, err = laptop("sync", "pull")
	if err != nil {
		t.Fatalf("Failed to pull: %v\n%s", err, output)
	}

	output, err = laptop("list")
	if err != nil {
		t.Fatalf("Failed to list: %v\n%s", err, output)
	}
	if !strings.Contains(output, "feeding") || !strings.Contains(output, "90 ml") {
		t.Errorf("Expected the phone's feeding on the laptop, got: %s", output)
	}

	output, err = laptop("growth", "list")
	if err != nil {
		t.Fatalf("Failed to list growth: %v\n%s", err, output)
	}
	if !strings.Contains(output, "4.10") {
		t.Errorf("Expected the phone's growth record on the laptop, got: %s", output)
	}

	output, err = laptop("export", "yaml")
	if err != nil {
		t.Fatalf("Failed to export: %v\n%s", err, output)
	}
	if !strings.Contains(output, `version: "1"`) {
		t.Errorf("Expected a versioned YAML export, got: %s", output)
	}
}
