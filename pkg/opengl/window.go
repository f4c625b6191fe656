package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"multipass/internal/logger"
	"multipass/pkg/config"
)

// Window owns the GLFW window and its GL context. It presents frames by
// swapping buffers and implements engine.Presenter.
type Window struct {
	window *glfw.Window
	logger *logger.Logger
}

// NewWindow initializes GLFW, opens a window and makes a 4.1 core context
// current. Must be called from the main thread.
func NewWindow(cfg config.GraphicsConfig, log *logger.Logger) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize GLFW: %w", err)
	}

	// Set window hints
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	title := cfg.Title
	if title == "" {
		title = "multipass"
	}
	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("failed to create GLFW window: %w", err)
	}

	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	if cfg.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	log.Infof("OpenGL %s", gl.GoStr(gl.GetString(gl.VERSION)))
	return &Window{window: window, logger: log}, nil
}

// FramebufferSize returns the drawable size in pixels, which differs from
// the window size on high-DPI displays.
func (w *Window) FramebufferSize() (int, int) {
	return w.window.GetFramebufferSize()
}

// OnResize registers fn to run when the framebuffer size changes. fn runs
// during event polling, on the main thread.
func (w *Window) OnResize(fn func(width, height int)) {
	w.window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		if width == 0 || height == 0 {
			// minimized
			return
		}
		fn(width, height)
	})
}

// Present implements engine.Presenter
func (w *Window) Present(frame uint64) error {
	w.window.SwapBuffers()
	glfw.PollEvents()
	return nil
}

// ShouldClose implements engine.Presenter. Escape closes the window.
func (w *Window) ShouldClose() bool {
	if w.window.GetKey(glfw.KeyEscape) == glfw.Press {
		w.window.SetShouldClose(true)
	}
	return w.window.ShouldClose()
}

// Close destroys the window and terminates GLFW
func (w *Window) Close() {
	w.logger.Info("Closing window")
	w.window.Destroy()
	glfw.Terminate()
}
