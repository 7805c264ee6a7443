package rover

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sightline/go-rover/internal/config"
	"github.com/sightline/go-rover/internal/httpc"
	"github.com/sightline/go-rover/pkg/command"
)

// httpClient bounds every drive round trip so a dead link cannot block the
// dispatch worker for long. Shared by all HTTPController instances.
var httpClient = httpc.NewClient(httpc.ActuatorTimeout)

// HTTPController implements Controller using the rover's HTTP API.
// This is the primary actuator used by the pilot.
type HTTPController struct {
	BaseURL string
}

// NewHTTPController creates a controller talking to the drive daemon on
// its standard port.
func NewHTTPController(roverIP string) *HTTPController {
	return &HTTPController{
		BaseURL: config.ActuatorURL(roverIP),
	}
}

// driveResponse is the rover firmware's acknowledgement.
type driveResponse struct {
	Accepted bool   `json:"accepted"`
	Status   string `json:"status"`
}

// Drive sends a drive command to the rover.
func (r *HTTPController) Drive(cmd command.Command) (bool, string, error) {
	if !cmd.Valid() {
		return false, "invalid", fmt.Errorf("invalid drive command %q", cmd)
	}

	payload, err := json.Marshal(map[string]string{"command": string(cmd)})
	if err != nil {
		return false, "marshal", fmt.Errorf("failed to marshal drive payload: %w", err)
	}

	resp, err := httpClient.Post(
		r.BaseURL+"/api/drive",
		"application/json",
		bytes.NewReader(payload),
	)
	if err != nil {
		return false, "unreachable", fmt.Errorf("drive request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, resp.Status, fmt.Errorf("drive request returned %s", resp.Status)
	}

	var ack driveResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return false, "bad-response", fmt.Errorf("failed to decode drive response: %w", err)
	}
	if ack.Status == "" {
		ack.Status = resp.Status
	}

	return ack.Accepted, ack.Status, nil
}

// GetStatus returns the rover firmware status string.
func (r *HTTPController) GetStatus() (string, error) {
	resp, err := httpClient.Get(r.BaseURL + "/api/status")
	if err != nil {
		return "", fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	var status struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", fmt.Errorf("failed to decode status: %w", err)
	}

	return status.State, nil
}
