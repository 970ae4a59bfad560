package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	kit "taskpanel/internal/transport"
)

type Config struct {
	Level    string
	Console  bool
	File     FileConfig
	Telegram TelegramConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// TelegramConfig controls the alert sink. The destination chat is set
// separately with SetTelegramTarget.
type TelegramConfig struct {
	Enabled    bool
	ThreadID   int
	MinLevel   string
	RatePerSec int
}

const defaultLogFile = "./taskpanel.log"

// Service owns the process-wide sinks. Apply may be called again on config
// reload; loggers handed out earlier pick up the new outputs.
type Service struct {
	mu    sync.Mutex
	file  *os.File
	alert *alertSink

	zl atomic.Pointer[zerolog.Logger]
}

// New builds the Service, applies cfg and returns it with a root logger.
// sender may be nil, in which case alerts are dropped.
func New(cfg Config, sender kit.Adapter) (*Service, Logger) {
	s := &Service{alert: newAlertSink(sender)}
	s.Apply(cfg)
	return s, s.Logger()
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

func (s *Service) current() zerolog.Logger {
	if zl := s.zl.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

// SetTelegramTarget sets the alert chat. chatID 0 mutes the sink; a zero
// threadID keeps the configured one.
func (s *Service) SetTelegramTarget(chatID int64, threadID int) {
	s.alert.setTarget(chatID, threadID)
}

// Apply rebuilds the writer chain from cfg.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}

	var outs []io.Writer
	if cfg.Console {
		outs = append(outs, consoleWriter(os.Stdout))
	}
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = defaultLogFile
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logx: open %s: %v\n", path, err)
		} else {
			s.file = f
			outs = append(outs, zerolog.SyncWriter(f))
		}
	}
	s.alert.configure(cfg.Telegram)
	if cfg.Telegram.Enabled {
		s.alert.start()
		outs = append(outs, s.alert)
		if !s.alert.hasTarget() {
			fmt.Fprintln(os.Stderr, "logx: telegram alerts enabled but telegram.group_log is not set")
		}
	}
	if len(outs) == 0 {
		outs = append(outs, consoleWriter(os.Stdout))
	}

	zl := newZerolog(parseLevel(cfg.Level, zerolog.InfoLevel), zerolog.MultiLevelWriter(outs...))
	s.zl.Store(&zl)
}

// Close stops the alert worker and closes the log file.
func (s *Service) Close() error {
	s.alert.stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

var _ zerolog.LevelWriter = (*alertSink)(nil)
