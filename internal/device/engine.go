package device

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/tahcohcat/monument-narrator/config"
	"github.com/tahcohcat/monument-narrator/internal/logger"
	"github.com/tahcohcat/monument-narrator/internal/process"
	"github.com/tahcohcat/monument-narrator/internal/voice"
)

var _ Engine = (*CommandEngine)(nil)

// CommandEngine speaks through a synthesizer binary such as espeak-ng or say.
type CommandEngine struct {
	driver          driver
	binary          string
	defaultLanguage string
	logger          *logger.Log

	mu      sync.Mutex
	current *process.Command
	stopped bool
}

func NewCommandEngine(cfg config.DeviceConfig) (*CommandEngine, error) {
	return newCommandEngine(cfg, runtime.GOOS)
}

func newCommandEngine(cfg config.DeviceConfig, goos string) (*CommandEngine, error) {
	d, err := driverFor(cfg.Driver, goos)
	if err != nil {
		return nil, err
	}

	binary := cfg.Binary
	if binary == "" {
		binary = d.binary()
	}

	lang := cfg.DefaultLanguage
	if lang == "" {
		lang = "en-US"
	}

	return &CommandEngine{
		driver:          d,
		binary:          binary,
		defaultLanguage: lang,
		logger:          logger.New().WithField("engine", d.name()),
	}, nil
}

// Available reports whether the synthesizer binary can be found.
func (e *CommandEngine) Available() error {
	if _, err := exec.LookPath(e.binary); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrEngineUnavailable, e.binary, err)
	}
	return nil
}

// Speak replaces any utterance in progress and blocks until this one ends.
func (e *CommandEngine) Speak(ctx context.Context, text string, opts Options) error {
	if err := e.Available(); err != nil {
		return err
	}

	if opts.Language == "" {
		opts.Language = e.defaultLanguage
	}

	cmd := process.New(ctx, e.binary, e.driver.speakArgs(opts)...)
	cmd.SetStdin(strings.NewReader(text))

	e.mu.Lock()
	// A call that went stale while waiting must not cut off a newer utterance.
	if err := ctx.Err(); err != nil {
		e.mu.Unlock()
		return err
	}
	prev := e.current
	e.current = cmd
	e.stopped = false
	e.mu.Unlock()

	if prev != nil {
		_ = prev.Kill()
	}

	if err := cmd.Start(); err != nil {
		e.release(cmd)
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	e.logger.Narration(e.voiceLabel(opts.Voice), preview(text))
	if opts.OnStart != nil {
		opts.OnStart()
	}

	<-cmd.Done()
	stopped := e.release(cmd)

	if stopped {
		return ErrInterrupted
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cmd.Err(); err != nil {
		return fmt.Errorf("%s failed: %w", e.binary, err)
	}
	return nil
}

func (e *CommandEngine) voiceLabel(v voice.Option) string {
	switch {
	case v.Name != "":
		return v.Name
	case v.ID != "":
		return v.ID
	default:
		return e.driver.name()
	}
}

const previewLen = 80

// preview shortens text for the log line.
func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= previewLen {
		return text
	}
	return string(r[:previewLen]) + "..."
}

// release forgets cmd if it is still current and reports whether it was
// stopped explicitly.
func (e *CommandEngine) release(cmd *process.Command) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != cmd {
		return true
	}
	e.current = nil
	stopped := e.stopped
	e.stopped = false
	return stopped
}

func (e *CommandEngine) Stop() error {
	e.mu.Lock()
	cmd := e.current
	if cmd != nil {
		e.stopped = true
	}
	e.mu.Unlock()

	if cmd == nil {
		return nil
	}
	return cmd.Kill()
}

func (e *CommandEngine) Pause() error {
	return e.signal((*process.Command).Suspend)
}

func (e *CommandEngine) Resume() error {
	return e.signal((*process.Command).Resume)
}

func (e *CommandEngine) signal(fn func(*process.Command) error) error {
	e.mu.Lock()
	cmd := e.current
	e.mu.Unlock()

	if cmd == nil {
		return nil
	}
	if err := fn(cmd); err != nil && !errors.Is(err, process.ErrNotStarted) {
		return err
	}
	return nil
}

// Voices lists the voices the synthesizer reports.
func (e *CommandEngine) Voices(ctx context.Context) ([]voice.Option, error) {
	if err := e.Available(); err != nil {
		return nil, err
	}

	out, err := exec.CommandContext(ctx, e.binary, e.driver.listArgs()...).Output()
	if err != nil {
		return nil, fmt.Errorf("listing %s voices: %w", e.driver.name(), err)
	}

	voices := e.driver.parseVoices(out)
	e.logger.Debug(fmt.Sprintf("found %d device voices", len(voices)))
	return voices, nil
}
