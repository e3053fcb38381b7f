package systems

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

const tolerance = 1e-5

// near compares component-wise with an absolute tolerance.
func near(a, b []float32) bool {
	for i := range a {
		if mgl32.Abs(a[i]-b[i]) > tolerance {
			return false
		}
	}
	return len(a) == len(b)
}

func vec3Near(a, b mgl32.Vec3) bool { return near(a[:], b[:]) }
func mat4Near(a, b mgl32.Mat4) bool { return near(a[:], b[:]) }

func TestCameraView(t *testing.T) {
	camera := NewCamera()
	if camera.View() != mgl32.Ident4() {
		t.Fatal("a fresh camera must have an identity view")
	}
	camera.SetPosition(mgl32.Vec3{0, 0, 30})
	if !mat4Near(camera.View(), mgl32.Translate3D(0, 0, -30)) {
		t.Fatalf("unexpected view %v", camera.View())
	}
	if !vec3Near(camera.Forward(), mgl32.Vec3{0, 0, -1}) {
		t.Fatalf("unexpected forward %v", camera.Forward())
	}
	if !vec3Near(camera.Right(), mgl32.Vec3{1, 0, 0}) {
		t.Fatalf("unexpected right %v", camera.Right())
	}

	camera.MoveForward(10)
	if !vec3Near(camera.Position(), mgl32.Vec3{0, 0, 20}) {
		t.Fatalf("unexpected position %v", camera.Position())
	}
	camera.MoveUp(2)
	camera.MoveLeft(1)
	if !vec3Near(camera.Position(), mgl32.Vec3{-1, 2, 20}) {
		t.Fatalf("unexpected position %v", camera.Position())
	}
}

func TestCameraRotation(t *testing.T) {
	camera := NewCamera()
	camera.Yaw(mgl32.DegToRad(90))
	// Turning left by 90 degrees looks down -x.
	if !vec3Near(camera.Forward(), mgl32.Vec3{-1, 0, 0}) {
		t.Fatalf("unexpected forward %v", camera.Forward())
	}

	camera.Pitch(10)
	if camera.EulerRotation().X() != pitchLimit {
		t.Fatalf("pitch must clamp to %f, got %f", pitchLimit, camera.EulerRotation().X())
	}
	camera.Reset()
	if camera.View() != mgl32.Ident4() || camera.Position() != (mgl32.Vec3{}) {
		t.Fatal("reset must clear the camera")
	}
}

func TestCameraSystem(t *testing.T) {
	if _, err := NewCameraSystem(&CameraSystemConfig{}); err == nil {
		t.Fatal("expected an error for zero capacity")
	}
	cs, err := NewCameraSystem(&CameraSystemConfig{MaxCameraCount: 1})
	if err != nil {
		t.Fatal(err)
	}
	def, err := cs.Acquire(DEFAULT_CAMERA_NAME)
	if err != nil || def != cs.GetDefault() {
		t.Fatal("expected the default camera")
	}

	first, err := cs.Acquire("world")
	if err != nil {
		t.Fatal(err)
	}
	again, _ := cs.Acquire("world")
	if first != again {
		t.Fatal("same name must return the same camera")
	}
	if _, err := cs.Acquire("ui"); err == nil {
		t.Fatal("expected the camera limit to be enforced")
	}

	first.SetPosition(mgl32.Vec3{1, 2, 3})
	cs.Release("world")
	if _, ok := cs.Cameras["world"]; !ok {
		t.Fatal("camera released while still referenced")
	}
	cs.Release("world")
	if _, ok := cs.Cameras["world"]; ok {
		t.Fatal("camera still registered after last release")
	}
	if first.Position() != (mgl32.Vec3{}) {
		t.Fatal("released camera must be reset")
	}
	if _, err := cs.Acquire("ui"); err != nil {
		t.Fatalf("slot must be free again: %v", err)
	}
}
