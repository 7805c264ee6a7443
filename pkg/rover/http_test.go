package rover

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sightline/go-rover/pkg/command"
)

func TestDrive(t *testing.T) {
	var gotPath, gotCommand string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		gotCommand = body["command"]
		json.NewEncoder(w).Encode(map[string]interface{}{"accepted": true, "status": "ok"})
	}))
	defer srv.Close()

	ctrl := &HTTPController{BaseURL: srv.URL}

	accepted, status, err := ctrl.Drive(command.Forward)
	if err != nil {
		t.Fatalf("Drive returned error: %v", err)
	}
	if !accepted {
		t.Error("Drive should report accepted")
	}
	if status != "ok" {
		t.Errorf("status = %q, want ok", status)
	}
	if gotPath != "/api/drive" {
		t.Errorf("path = %q, want /api/drive", gotPath)
	}
	if gotCommand != "F" {
		t.Errorf("command = %q, want F", gotCommand)
	}
}

func TestDriveRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"accepted": false, "status": "estop"})
	}))
	defer srv.Close()

	ctrl := &HTTPController{BaseURL: srv.URL}

	accepted, status, err := ctrl.Drive(command.Forward)
	if err != nil {
		t.Fatalf("Drive returned error: %v", err)
	}
	if accepted {
		t.Error("Drive should report not accepted")
	}
	if status != "estop" {
		t.Errorf("status = %q, want estop", status)
	}
}

func TestDriveServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctrl := &HTTPController{BaseURL: srv.URL}

	accepted, _, err := ctrl.Drive(command.Forward)
	if err == nil {
		t.Error("Drive should return an error on HTTP 500")
	}
	if accepted {
		t.Error("Drive should not report accepted on HTTP 500")
	}
}

func TestNewHTTPControllerTargetsDaemonPort(t *testing.T) {
	ctrl := NewHTTPController("192.168.68.80")

	if ctrl.BaseURL != "http://192.168.68.80:8000" {
		t.Errorf("BaseURL = %q, want http://192.168.68.80:8000", ctrl.BaseURL)
	}
}

func TestDriveInvalidCommand(t *testing.T) {
	ctrl := NewHTTPController("127.0.0.1")

	if _, _, err := ctrl.Drive(command.Command("Q")); err == nil {
		t.Error("Drive should reject invalid commands before hitting the network")
	}
}

func TestGetStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/api/status") {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"state": "running"})
	}))
	defer srv.Close()

	ctrl := &HTTPController{BaseURL: srv.URL}

	state, err := ctrl.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus returned error: %v", err)
	}
	if state != "running" {
		t.Errorf("state = %q, want running", state)
	}
}
