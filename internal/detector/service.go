package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// serviceIdleTimeout shuts an unused service process down.
const serviceIdleTimeout = 30 * time.Second

// serviceProcess drives a Python inference service over stdin/stdout.
// Frames are sent as a 4-byte big-endian length followed by JPEG bytes;
// each frame is answered with one JSON line.
// The process is started lazily on first use.
type serviceProcess struct {
	script string
	args   []string

	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

func newServiceProcess(scriptName string, args ...string) (*serviceProcess, error) {
	script := findScript(scriptName)
	if script == "" {
		return nil, fmt.Errorf("%s not found", scriptName)
	}
	return &serviceProcess{script: script, args: args}, nil
}

// roundTrip sends one frame and decodes the JSON reply into out.
func (s *serviceProcess) roundTrip(frame *gocv.Mat, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if frame == nil || frame.Empty() {
		return fmt.Errorf("empty frame")
	}

	if err := s.ensureStarted(); err != nil {
		return err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := s.stdin.Write(length); err != nil {
		s.shutdown()
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := s.stdin.Write(data); err != nil {
		s.shutdown()
		return fmt.Errorf("write data: %w", err)
	}

	line, err := s.stdout.ReadString('\n')
	if err != nil {
		s.shutdown()
		return fmt.Errorf("read response: %w", err)
	}

	if err := json.Unmarshal([]byte(line), out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	s.resetIdleTimer()
	return nil
}

func (s *serviceProcess) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown()
}

func (s *serviceProcess) ensureStarted() error {
	if s.started {
		return nil
	}

	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	args := append([]string{s.script}, s.args...)
	s.cmd = exec.Command(pythonPath, args...)

	stdin, err := s.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	s.cmd.Stderr = os.Stderr

	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", filepath.Base(s.script), err)
	}

	s.stdin = stdin
	s.stdout = bufio.NewReader(stdout)
	s.started = true

	return nil
}

func (s *serviceProcess) shutdown() error {
	if !s.started {
		return nil
	}

	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}

	if s.stdin != nil {
		s.stdin.Close()
	}

	err := s.cmd.Wait()
	s.started = false
	s.cmd = nil
	s.stdin = nil
	s.stdout = nil

	return err
}

func (s *serviceProcess) resetIdleTimer() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	s.idleTimer = time.AfterFunc(serviceIdleTimeout, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.shutdown()
	})
}

// findScript looks for a service script in the scripts directory next to
// the working directory, the executable, or ~/.rtspwatch.
func findScript(name string) string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", name),
		filepath.Join("..", "scripts", name),
		filepath.Join(execDir, "scripts", name),
		filepath.Join(os.Getenv("HOME"), ".rtspwatch", "scripts", name),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".rtspwatch/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
