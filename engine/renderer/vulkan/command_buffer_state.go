package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/tundra/engine/core"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

func (s VulkanCommandBufferState) String() string {
	switch s {
	case COMMAND_BUFFER_STATE_READY:
		return "ready"
	case COMMAND_BUFFER_STATE_RECORDING:
		return "recording"
	case COMMAND_BUFFER_STATE_IN_RENDER_PASS:
		return "in_render_pass"
	case COMMAND_BUFFER_STATE_RECORDING_ENDED:
		return "recording_ended"
	case COMMAND_BUFFER_STATE_SUBMITTED:
		return "submitted"
	case COMMAND_BUFFER_STATE_NOT_ALLOCATED:
		return "not_allocated"
	}
	return "unknown"
}

type commandBufferEvent int

const (
	commandBufferAllocate commandBufferEvent = iota
	commandBufferBegin
	commandBufferBeginRenderPass
	commandBufferEndRenderPass
	commandBufferEnd
	commandBufferSubmit
	commandBufferReset
	commandBufferFree
)

var commandBufferEventNames = [...]string{"allocate", "begin", "begin_render_pass", "end_render_pass", "end", "submit", "reset", "free"}

// commandBufferTransitions lists, per event, the states it may start from and
// the state it leads to.
var commandBufferTransitions = map[commandBufferEvent]struct {
	from []VulkanCommandBufferState
	to   VulkanCommandBufferState
}{
	commandBufferAllocate:        {[]VulkanCommandBufferState{COMMAND_BUFFER_STATE_NOT_ALLOCATED}, COMMAND_BUFFER_STATE_READY},
	commandBufferBegin:           {[]VulkanCommandBufferState{COMMAND_BUFFER_STATE_READY}, COMMAND_BUFFER_STATE_RECORDING},
	commandBufferBeginRenderPass: {[]VulkanCommandBufferState{COMMAND_BUFFER_STATE_RECORDING}, COMMAND_BUFFER_STATE_IN_RENDER_PASS},
	commandBufferEndRenderPass:   {[]VulkanCommandBufferState{COMMAND_BUFFER_STATE_IN_RENDER_PASS}, COMMAND_BUFFER_STATE_RECORDING},
	commandBufferEnd:             {[]VulkanCommandBufferState{COMMAND_BUFFER_STATE_RECORDING}, COMMAND_BUFFER_STATE_RECORDING_ENDED},
	commandBufferSubmit:          {[]VulkanCommandBufferState{COMMAND_BUFFER_STATE_RECORDING_ENDED}, COMMAND_BUFFER_STATE_SUBMITTED},
	// The pool is created with RESET_COMMAND_BUFFER so any allocated buffer may be reset.
	commandBufferReset: {[]VulkanCommandBufferState{
		COMMAND_BUFFER_STATE_READY,
		COMMAND_BUFFER_STATE_RECORDING,
		COMMAND_BUFFER_STATE_IN_RENDER_PASS,
		COMMAND_BUFFER_STATE_RECORDING_ENDED,
		COMMAND_BUFFER_STATE_SUBMITTED,
	}, COMMAND_BUFFER_STATE_READY},
	commandBufferFree: {[]VulkanCommandBufferState{
		COMMAND_BUFFER_STATE_READY,
		COMMAND_BUFFER_STATE_RECORDING,
		COMMAND_BUFFER_STATE_IN_RENDER_PASS,
		COMMAND_BUFFER_STATE_RECORDING_ENDED,
		COMMAND_BUFFER_STATE_SUBMITTED,
	}, COMMAND_BUFFER_STATE_NOT_ALLOCATED},
}

// nextCommandBufferState validates event against the current state.
func nextCommandBufferState(current VulkanCommandBufferState, event commandBufferEvent) (VulkanCommandBufferState, error) {
	transition, ok := commandBufferTransitions[event]
	if !ok {
		return current, errors.Wrapf(core.ErrInvalidCommandBufferState, "unknown event %d", event)
	}
	for _, from := range transition.from {
		if from == current {
			return transition.to, nil
		}
	}
	return current, errors.Wrapf(core.ErrInvalidCommandBufferState, "cannot %s a command buffer that is %s", commandBufferEventNames[event], current)
}
