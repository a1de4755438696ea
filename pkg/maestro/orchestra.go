package maestro

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/devicelab-dev/flow-orchestra/pkg/proxy"
	"github.com/devicelab-dev/flow-orchestra/pkg/script"
)

// Orchestra is the Flow Driver: the top-level entry point that runs a
// flow against a Driver, an Engine and (optionally) a Proxy, reporting
// progress through Callbacks. One Orchestra instance corresponds to one
// device session; its mutable fields (copiedText, lastInteraction,
// deviceInfo cache, metadata map) are not shared across instances.
type Orchestra struct {
	driver    Driver
	engine    script.Engine
	proxy     proxy.Proxy
	callbacks Callbacks
	config    OrchestraConfig
	logger    *logrus.Entry

	runID           string
	lastInteraction time.Time
	copiedText      string
	deviceInfoCache *DeviceInfo
	metadata        map[Command]*CommandMetadata
}

// NewOrchestra constructs an Orchestra. proxy may be nil; MockNetwork will
// fail with InvalidCommandError if no proxy was supplied. logger may be nil,
// in which case a disabled logrus.Entry is used (mirrors the teacher's
// constructors tolerating a nil *log.Logger).
func NewOrchestra(driver Driver, engine script.Engine, netProxy proxy.Proxy, callbacks Callbacks, cfg OrchestraConfig, logger *logrus.Entry) *Orchestra {
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		logger = logrus.NewEntry(l)
	}
	return &Orchestra{
		driver:    driver,
		engine:    engine,
		proxy:     netProxy,
		callbacks: callbacks,
		config:    cfg.WithDefaults(),
		logger:    logger,
		runID:     uuid.NewString(),
		metadata:  make(map[Command]*CommandMetadata),
	}
}

// log returns the orchestra's logger, tolerating the zero-value Orchestra
// tests construct directly.
func (o *Orchestra) log() *logrus.Entry {
	if o.logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		o.logger = logrus.NewEntry(l)
	}
	return o.logger
}

// RunFlow implements run_flow: initialize the script engine, reset the
// interaction clock, resolve app state (either the caller-supplied
// initState or a freshly run init-flow), push that state into the app, then
// execute commands.
func (o *Orchestra) RunFlow(ctx context.Context, commands []Command, initState *AppState) (bool, error) {
	o.engine.Init()
	o.lastInteraction = time.Now()
	o.deviceInfoCache = nil

	cfg, err := extractConfig(commands)
	if err != nil {
		return false, err
	}
	o.log().WithFields(logrus.Fields{"run": o.runID, "commands": len(commands)}).Info("flow started")

	state := initState
	if state == nil && cfg.InitFlow != nil {
		produced, err := o.runInitFlow(ctx, cfg)
		if err != nil || produced == nil {
			return false, nil
		}
		state = produced
	}

	if state != nil {
		if err := o.driver.ClearAppState(ctx, state.AppID); err != nil {
			return false, UnableToClearStateError(state.AppID, err)
		}
		if err := o.driver.PushAppState(ctx, state.AppID, state.StateFile); err != nil {
			return false, err
		}
	}

	o.callbacks.flowStart(commands)
	return o.executeCommands(ctx, commands, cfg)
}

// runInitFlow implements run_init_flow: run init.Commands as a nested
// run_flow with no init state, then on success stop the app and pull its
// on-disk state into a temp file under stateDir (or the OS default temp
// dir). A failed init-flow never produces a state (open question decision).
func (o *Orchestra) runInitFlow(ctx context.Context, cfg MaestroConfig) (*AppState, error) {
	ok, err := o.RunFlow(ctx, cfg.InitFlow.Commands, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	if err := o.driver.StopApp(ctx, cfg.AppID); err != nil {
		return nil, err
	}

	dir := o.config.StateDir
	if dir == "" {
		dir = os.TempDir()
	}
	file := filepath.Join(dir, fmt.Sprintf("%s-%s.state", cfg.AppID, uuid.NewString()))

	if err := o.driver.PullAppState(ctx, cfg.AppID, file); err != nil {
		return nil, err
	}

	return &AppState{AppID: cfg.AppID, StateFile: file}, nil
}

// extractConfig implements the open-question decision: the first
// ApplyConfiguration command's payload is the flow's config; a second one
// is a parse-time InvalidCommandError.
func extractConfig(commands []Command) (MaestroConfig, error) {
	var found *MaestroConfig
	for _, c := range commands {
		apply, ok := c.(*ApplyConfiguration)
		if !ok {
			continue
		}
		if found != nil {
			return MaestroConfig{}, InvalidCommandError("multiple applyConfiguration commands in one flow")
		}
		cfg := apply.Config
		found = &cfg
	}
	if found == nil {
		return MaestroConfig{}, nil
	}
	return *found, nil
}

// executeCommands implements execute_commands: per command, fire
// on_command_start, evaluate it through the script engine, dispatch to the
// Command Executor, and resolve the terminal callback.
func (o *Orchestra) executeCommands(ctx context.Context, commands []Command, cfg MaestroConfig) (bool, error) {
	for index, cmd := range commands {
		o.callbacks.commandStart(index, cmd)
		o.log().WithField("index", index).Debug(cmd.Describe())

		meta := o.metadataFor(cmd)
		prevSink := o.engine.OnLog(func(entry script.LogEntry) {
			meta.appendLog(fmt.Sprintf("[%s] %s", entry.Level, entry.Message))
		})

		evaluated, err := o.evaluateCommand(cmd)
		if err != nil {
			o.engine.OnLog(prevSink)
			o.log().WithField("index", index).WithError(err).Error("command evaluation failed")
			resolution := o.callbacks.commandFailed(index, cmd, err)
			if resolution == ResolutionFail {
				return false, nil
			}
			continue
		}
		meta.EvaluatedCommand = evaluated
		o.callbacks.metadataUpdate(cmd, *meta)

		err = o.executeCommand(ctx, evaluated, cfg)
		o.engine.OnLog(prevSink)

		switch {
		case err == nil:
			o.callbacks.commandComplete(index, cmd)
		case IsCommandSkipped(err):
			o.log().WithField("index", index).Warn("command skipped")
			o.callbacks.commandSkipped(index, cmd)
		default:
			o.log().WithField("index", index).WithError(err).Error("command failed")
			resolution := o.callbacks.commandFailed(index, cmd, err)
			if resolution == ResolutionFail {
				return false, nil
			}
		}
	}
	return true, nil
}

// runSubFlow implements run_sub_flow: push a script-engine scope,
// execute commands re-raising on FAIL, and pop the scope on every exit path.
// Returns true iff any sub-command mutated device state.
func (o *Orchestra) runSubFlow(ctx context.Context, commands []Command, cfg MaestroConfig) (mutated bool, err error) {
	o.engine.EnterScope()
	defer o.engine.LeaveScope()

	before := o.lastInteraction
	for index, cmd := range commands {
		o.callbacks.commandStart(index, cmd)

		meta := o.metadataFor(cmd)
		prevSink := o.engine.OnLog(func(entry script.LogEntry) {
			meta.appendLog(fmt.Sprintf("[%s] %s", entry.Level, entry.Message))
		})

		evaluated, evalErr := o.evaluateCommand(cmd)
		if evalErr != nil {
			o.engine.OnLog(prevSink)
			return mutated, evalErr
		}
		meta.EvaluatedCommand = evaluated
		o.callbacks.metadataUpdate(cmd, *meta)

		execErr := o.executeCommand(ctx, evaluated, cfg)
		o.engine.OnLog(prevSink)

		switch {
		case execErr == nil:
			o.callbacks.commandComplete(index, cmd)
		case IsCommandSkipped(execErr):
			o.callbacks.commandSkipped(index, cmd)
		default:
			if o.callbacks.commandFailed(index, cmd, execErr) == ResolutionFail {
				return mutated, execErr
			}
		}
	}
	mutated = o.lastInteraction.After(before)
	return mutated, nil
}

func (o *Orchestra) metadataFor(cmd Command) *CommandMetadata {
	meta, ok := o.metadata[cmd]
	if !ok {
		meta = &CommandMetadata{}
		o.metadata[cmd] = meta
	}
	return meta
}

// deviceInfo returns the lazily-fetched, flow-lifetime-cached device info.
func (o *Orchestra) deviceInfo(ctx context.Context) (DeviceInfo, error) {
	if o.deviceInfoCache != nil {
		return *o.deviceInfoCache, nil
	}
	info, err := o.driver.DeviceInfo(ctx)
	if err != nil {
		return DeviceInfo{}, err
	}
	o.deviceInfoCache = &info
	o.engine.SetPlatform(info.Platform)
	return info, nil
}

// markMutating refreshes the interaction clock, the way any command
// reporting mutating=true does.
func (o *Orchestra) markMutating() {
	o.lastInteraction = time.Now()
}

// repeatLimit parses a Repeat.Times string the way the script engine's
// expansion feeds it: a plain integer, or "MAX"/absent meaning unbounded.
func repeatLimit(times string) int {
	if times == "" {
		return math.MaxInt32
	}
	n, err := strconv.Atoi(times)
	if err != nil {
		return math.MaxInt32
	}
	return n
}
