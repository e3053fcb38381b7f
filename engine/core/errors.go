package core

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrSwapchainBooting   = errors.New("swapchain resized or recreated, booting")
	ErrSwapchainOutOfDate = errors.New("swapchain out of date")
	ErrSwapchainAcquire   = errors.New("failed to acquire swapchain image")
	ErrSwapchainPresent   = errors.New("failed to present swapchain image")

	ErrNoSuitableDevice = errors.New("no physical device meets the requirements")
	ErrNoDepthFormat    = errors.New("no supported depth format")

	ErrFenceTimeout = errors.New("fence wait timed out")
	ErrDeviceLost   = errors.New("device lost")
	ErrOutOfMemory  = errors.New("out of memory")

	ErrInvalidCommandBufferState = errors.New("invalid command buffer state transition")

	ErrInstanceSlotsExhausted   = errors.New("no free instance slots")
	ErrStaleInstance            = errors.New("instance id is stale or not allocated")
	ErrGlobalSamplerUnsupported = errors.New("global samplers are not supported")

	ErrUnknown = errors.New("unknown")
)

// IsRecoverable reports whether err is a transient frame condition that should
// skip the frame rather than stop the render loop.
func IsRecoverable(err error) bool {
	return errors.IsAny(err, ErrSwapchainBooting, ErrSwapchainOutOfDate, ErrFenceTimeout)
}
