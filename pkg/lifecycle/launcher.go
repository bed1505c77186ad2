package lifecycle

import (
	"context"
	"time"

	"github.com/cuemby/olrunner/pkg/control"
	"github.com/cuemby/olrunner/pkg/readiness"
)

// Process is the launch process of the managed server
type Process interface {
	Pid() int
	Done() <-chan struct{}
	Alive() bool
	Kill() error
	Terminate(grace time.Duration) error
}

// Launch is a started server: its process and the log that signals readiness
type Launch struct {
	Process Process
	Log     readiness.Source
	LogFile string
}

// Launcher starts the server
type Launcher interface {
	Launch(ctx context.Context) (*Launch, error)
}

// BuildToolLauncher launches the server through the build tool and watches
// the build tool's output log for readiness
type BuildToolLauncher struct {
	Tool *control.BuildTool
}

// Launch starts the build tool's run goals
func (l *BuildToolLauncher) Launch(ctx context.Context) (*Launch, error) {
	proc, logFile, err := l.Tool.Launch(ctx)
	if err != nil {
		return nil, err
	}
	return &Launch{
		Process: proc,
		Log:     readiness.NewFileSource(logFile),
		LogFile: logFile,
	}, nil
}
