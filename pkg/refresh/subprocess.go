package refresh

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/morningstar-transit/morningstar/pkg/timetable"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/slices"
)

var ErrImportFailed = errors.New("timetable import failed")

// SubprocessImporter runs `Command Args... Source Route -o <file>` and
// installs the produced snapshot file at Destination
type SubprocessImporter struct {
	Command string
	Args    []string

	Source      string
	Route       string
	Destination string
}

func (i *SubprocessImporter) Import(ctx context.Context) (*timetable.TimeTable, error) {
	temporary, err := os.CreateTemp(filepath.Dir(i.Destination), filepath.Base(i.Destination)+".*.import")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImportFailed, err)
	}
	temporary.Close()
	defer os.Remove(temporary.Name())

	args := append(slices.Clone(i.Args), i.Source, i.Route, "-o", temporary.Name())

	cmd := exec.CommandContext(ctx, i.Command, args...)
	cmd.Stdout = processLogWriter{stream: "stdout"}
	cmd.Stderr = processLogWriter{stream: "stderr"}
	cmd.WaitDelay = 5 * time.Second

	log.Info().
		Str("command", i.Command).
		Strs("args", args).
		Msg("Starting timetable import")

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImportFailed, err)
	}

	snapshot, err := timetable.LoadFile(temporary.Name())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImportFailed, err)
	}

	if err := os.Rename(temporary.Name(), i.Destination); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImportFailed, err)
	}

	return snapshot, nil
}

type processLogWriter struct {
	stream string
}

func (w processLogWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		log.Info().Str("stream", w.stream).Msg(line)
	}

	return len(p), nil
}
