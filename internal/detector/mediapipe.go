package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const (
	serviceScript = "landmarker_service.py"

	// serviceIdleTimeout stops the Python process after a quiet period.
	serviceIdleTimeout = 30 * time.Second
)

// ErrServiceNotFound is returned when the landmarker service script is missing.
var ErrServiceNotFound = errors.New(serviceScript + " not found")

// MediaPipeDetector runs the MediaPipe hand landmarker in a Python
// subprocess. Each frame is sent as a 4-byte big-endian length followed by
// JPEG bytes; the service answers with one JSON line.
type MediaPipeDetector struct {
	config     Config
	scriptPath string
	pythonPath string

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	idleTimer *time.Timer
}

// NewMediaPipeDetector locates the service script. The subprocess itself is
// started lazily on the first Detect call.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	script := config.ScriptPath
	if script == "" {
		script = findInstalled("scripts/" + serviceScript)
	}
	if script == "" {
		return nil, ErrServiceNotFound
	}

	python := config.PythonPath
	if python == "" {
		python = findInstalled("venv/bin/python")
	}
	if python == "" {
		python = "python3"
	}

	return &MediaPipeDetector{
		config:     config,
		scriptPath: script,
		pythonPath: python,
	}, nil
}

// Detect sends frame to the service and parses the reported hands.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.start(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	hands, err := d.roundTrip(buf.GetBytes())
	if err != nil {
		// The stream is out of sync after a failed exchange.
		d.stop()
		return nil, err
	}

	d.armIdleTimer()
	return hands, nil
}

func (d *MediaPipeDetector) roundTrip(jpeg []byte) ([]HandLandmarks, error) {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(jpeg)))

	if _, err := d.stdin.Write(header[:]); err != nil {
		return nil, fmt.Errorf("write frame header: %w", err)
	}
	if _, err := d.stdin.Write(jpeg); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read landmarks: %w", err)
	}

	var resp serviceResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse landmarks: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("landmarker: %s", resp.Error)
	}

	hands := make([]HandLandmarks, 0, len(resp.Hands))
	for _, h := range resp.Hands {
		hands = append(hands, h.landmarks())
	}
	return hands, nil
}

// Close stops the subprocess.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stop()
}

func (d *MediaPipeDetector) start() error {
	if d.cmd != nil {
		return nil
	}

	cfg := d.config
	cmd := exec.Command(d.pythonPath, d.scriptPath,
		"--max-hands", strconv.Itoa(cfg.MaxHands),
		"--min-detection", strconv.FormatFloat(cfg.MinConfidence, 'f', -1, 64),
		"--min-presence", strconv.FormatFloat(cfg.MinPresenceConf, 'f', -1, 64),
		"--min-tracking", strconv.FormatFloat(cfg.MinTrackingConf, 'f', -1, 64),
	)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("landmarker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("landmarker stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start landmarker: %w", err)
	}

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	return nil
}

func (d *MediaPipeDetector) stop() error {
	if d.cmd == nil {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	// Closing stdin is the service's signal to exit.
	d.stdin.Close()
	err := d.cmd.Wait()

	d.cmd = nil
	d.stdin = nil
	d.stdout = nil
	return err
}

func (d *MediaPipeDetector) armIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(serviceIdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.stop()
	})
}

// findInstalled looks for rel next to the working directory, the executable
// and under ~/.mudra.
func findInstalled(rel string) string {
	dirs := []string{".", ".."}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".mudra"))
	}

	for _, dir := range dirs {
		p := filepath.Join(dir, rel)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
		return p
	}
	return ""
}

type serviceResponse struct {
	Hands []serviceHand `json:"hands"`
	Error string        `json:"error,omitempty"`
}

type serviceHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

func (h serviceHand) landmarks() HandLandmarks {
	lm := HandLandmarks{Handedness: h.Handedness, Score: h.Score}
	copy(lm.Points[:], h.Points)
	return lm
}
