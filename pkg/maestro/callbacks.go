package maestro

// ErrorResolution is the host's verdict after on_command_failed: whether the
// Flow Driver should abort the flow or continue to the next command.
type ErrorResolution int

const (
	ResolutionFail ErrorResolution = iota
	ResolutionContinue
)

// Callbacks is the observer surface consumed from the host, supplied at
// Orchestra construction. Exactly one of OnCommandComplete / OnCommandSkipped
// / OnCommandFailed fires per command, always preceded by OnCommandStart and
// any number of OnCommandMetadataUpdate calls. Any
// nil hook is treated as a no-op.
type Callbacks struct {
	OnFlowStart             func(commands []Command)
	OnCommandStart          func(index int, cmd Command)
	OnCommandComplete       func(index int, cmd Command)
	OnCommandFailed         func(index int, cmd Command, err error) ErrorResolution
	OnCommandSkipped        func(index int, cmd Command)
	OnCommandReset          func(cmd Command)
	OnCommandMetadataUpdate func(cmd Command, metadata CommandMetadata)
}

func (c Callbacks) flowStart(commands []Command) {
	if c.OnFlowStart != nil {
		c.OnFlowStart(commands)
	}
}

func (c Callbacks) commandStart(index int, cmd Command) {
	if c.OnCommandStart != nil {
		c.OnCommandStart(index, cmd)
	}
}

func (c Callbacks) commandComplete(index int, cmd Command) {
	if c.OnCommandComplete != nil {
		c.OnCommandComplete(index, cmd)
	}
}

func (c Callbacks) commandFailed(index int, cmd Command, err error) ErrorResolution {
	if c.OnCommandFailed != nil {
		return c.OnCommandFailed(index, cmd, err)
	}
	return ResolutionFail
}

func (c Callbacks) commandSkipped(index int, cmd Command) {
	if c.OnCommandSkipped != nil {
		c.OnCommandSkipped(index, cmd)
	}
}

func (c Callbacks) commandReset(cmd Command) {
	if c.OnCommandReset != nil {
		c.OnCommandReset(cmd)
	}
}

func (c Callbacks) metadataUpdate(cmd Command, metadata CommandMetadata) {
	if c.OnCommandMetadataUpdate != nil {
		c.OnCommandMetadataUpdate(cmd, metadata)
	}
}

// resetSubCommands walks a composite command's sub-commands and fires
// on_command_reset on each, recursing into nested composites. Called when a
// Repeat loops back to a fresh iteration, matching the reference orchestra's
// "reset" walk described in the design notes.
func (c Callbacks) resetSubCommands(cmd Command) {
	composite, ok := cmd.(CompositeCommand)
	if !ok {
		return
	}
	for _, sub := range composite.SubCommands() {
		c.commandReset(sub)
		c.resetSubCommands(sub)
	}
}
