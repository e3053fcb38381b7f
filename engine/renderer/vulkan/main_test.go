package vulkan

import (
	"os"
	"testing"

	"github.com/spaghettifunk/tundra/engine/core"
)

func TestMain(m *testing.M) {
	core.SetDefaultLogger(core.NewDiscardLogger())
	os.Exit(m.Run())
}
