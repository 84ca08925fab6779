package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/tahcohcat/monument-narrator/config"
	"github.com/tahcohcat/monument-narrator/internal/logger"
	"github.com/tahcohcat/monument-narrator/internal/process"
	"github.com/tahcohcat/monument-narrator/internal/tts"
)

var _ Player = (*CommandPlayer)(nil)

type playerCommand struct {
	binary string
	args   []string
}

// knownPlayers are tried in order when no player is configured.
var knownPlayers = []playerCommand{
	{binary: "ffplay", args: []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
	{binary: "mpg123", args: []string{"-q"}},
	{binary: "mpv", args: []string{"--no-video", "--really-quiet"}},
}

// CommandPlayer writes each clip to a temporary file and plays it with an
// external command.
type CommandPlayer struct {
	player playerCommand
	tmpDir string
	logger *logger.Log
}

func NewCommandPlayer(cfg config.AudioConfig) *CommandPlayer {
	p := &CommandPlayer{
		logger: logger.New().WithField("component", "audio"),
	}

	if cfg.Player != "" {
		p.player = playerCommand{binary: cfg.Player, args: cfg.PlayerArgs}
		return p
	}

	candidates := knownPlayers
	if runtime.GOOS == "darwin" {
		candidates = append([]playerCommand{{binary: "afplay"}}, candidates...)
	}
	for _, c := range candidates {
		if _, err := exec.LookPath(c.binary); err == nil {
			p.player = c
			break
		}
	}
	return p
}

// Available reports whether a player command was found.
func (p *CommandPlayer) Available() error {
	if p.player.binary == "" {
		return ErrNoPlayer
	}
	if _, err := exec.LookPath(p.player.binary); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNoPlayer, p.player.binary, err)
	}
	return nil
}

// Load stores the clip on disk. The player is not started until Play.
func (p *CommandPlayer) Load(ctx context.Context, audio *tts.Audio) (Sound, error) {
	if audio == nil || len(audio.Data) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrNotPlayable, tts.ErrEmptyAudio)
	}
	if err := p.Available(); err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(p.tmpDir, "narration-*"+extensionFor(audio.ContentType))
	if err != nil {
		return nil, fmt.Errorf("failed to create audio file: %w", err)
	}
	path := f.Name()

	if _, err := f.Write(audio.Data); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to write audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to close audio file: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	args := append(append([]string{}, p.player.args...), path)

	return &commandSound{
		cmd:    process.New(ctx, p.player.binary, args...),
		cancel: cancel,
		path:   path,
		done:   make(chan struct{}),
		logger: p.logger,
	}, nil
}

func extensionFor(contentType string) string {
	switch {
	case strings.Contains(contentType, "mpeg"), strings.Contains(contentType, "mp3"):
		return ".mp3"
	case strings.Contains(contentType, "wav"):
		return ".wav"
	case strings.Contains(contentType, "ogg"):
		return ".ogg"
	default:
		return ".mp3"
	}
}

type commandSound struct {
	cmd    *process.Command
	cancel context.CancelFunc
	path   string
	logger *logger.Log

	mu      sync.Mutex
	started bool
	stopped bool
	done    chan struct{}
	err     error
	once    sync.Once
}

func (s *commandSound) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrNotPlayable
	}
	if s.started {
		return nil
	}

	if err := s.cmd.Start(); err != nil {
		return err
	}
	s.started = true

	go func() {
		<-s.cmd.Done()
		s.mu.Lock()
		if !s.stopped {
			s.err = s.cmd.Err()
		}
		s.mu.Unlock()
		s.finish()
	}()
	return nil
}

func (s *commandSound) Pause() error {
	return s.ifStarted(s.cmd.Suspend)
}

func (s *commandSound) Resume() error {
	return s.ifStarted(s.cmd.Resume)
}

func (s *commandSound) ifStarted(fn func() error) error {
	s.mu.Lock()
	started, stopped := s.started, s.stopped
	s.mu.Unlock()

	if !started || stopped {
		return nil
	}
	return fn()
}

// Stop kills the player and removes the clip.
func (s *commandSound) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	started := s.started
	s.mu.Unlock()

	var err error
	if started {
		if kerr := s.cmd.Kill(); kerr != nil && !errors.Is(kerr, process.ErrNotStarted) {
			err = kerr
		}
	} else {
		s.finish()
	}
	s.cancel()
	return err
}

func (s *commandSound) finish() {
	s.once.Do(func() {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			s.logger.WithError(err).Warn("failed to remove audio file")
		}
		s.cancel()
		close(s.done)
	})
}

func (s *commandSound) Done() <-chan struct{} {
	return s.done
}

func (s *commandSound) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
