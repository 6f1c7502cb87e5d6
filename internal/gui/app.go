package gui

import (
	"context"
	"errors"
	"fmt"
	"os"

	rl "github.com/gen2brain/raylib-go/raylib"
	"go.uber.org/zap"

	"github.com/san-kum/orbits/internal/camera"
	"github.com/san-kum/orbits/internal/compute"
	"github.com/san-kum/orbits/internal/config"
	"github.com/san-kum/orbits/internal/logging"
	"github.com/san-kum/orbits/internal/opengl"
	"github.com/san-kum/orbits/internal/sim"
)

// Theme Colors (Monochrome Hyper-Minimalist)
var (
	ColBg      = rl.NewColor(10, 10, 10, 255)
	ColAccent  = rl.NewColor(180, 180, 180, 255)
	ColSelect  = rl.NewColor(255, 255, 255, 255)
	ColText    = rl.NewColor(140, 140, 140, 255)
	ColTextDim = rl.NewColor(60, 60, 60, 255)
	ColGPU     = rl.NewColor(255, 120, 220, 255)
)

type App struct {
	cfg      *config.Config
	sim      *sim.Context
	buf      *opengl.Buffer
	renderer *opengl.PointRenderer
	camera   *camera.Camera
	font     rl.Font
	message  string
	log      *zap.Logger
}

// initWindow opens the window and its GL context. Compute shaders need
// raylib built with the opengl43 tag.
func initWindow(cfg *config.Config) {
	rl.SetConfigFlags(rl.FlagMsaa4xHint | rl.FlagWindowResizable)
	rl.InitWindow(int32(cfg.Window.Width), int32(cfg.Window.Height), "orbits")
	rl.SetTargetFPS(60)
	rl.SetExitKey(0)
}

// Run opens a window and runs the simulation until it is closed or a
// frame fails. It must be called from the main goroutine with the OS
// thread locked.
func Run(ctx context.Context, cfg *config.Config) error {
	initWindow(cfg)
	defer rl.CloseWindow()

	app, err := NewApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return app.RunLoop(ctx)
}

// NewApp builds the GL resources and both backends on the current context.
func NewApp(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := opengl.Init(); err != nil {
		return nil, err
	}
	log := logging.Named("gui")

	buf, err := opengl.NewBuffer(cfg.Particles)
	if err != nil {
		return nil, err
	}

	vert, err := opengl.LoadSource(cfg.Shaders.Vertex, opengl.VertexSource)
	if err != nil {
		buf.Delete()
		return nil, err
	}
	frag, err := opengl.LoadSource(cfg.Shaders.Fragment, opengl.FragmentSource)
	if err != nil {
		buf.Delete()
		return nil, err
	}
	cam := cfg.Camera()
	renderer, err := opengl.NewPointRenderer(vert, frag, buf, cam)
	if err != nil {
		buf.Delete()
		return nil, err
	}
	renderer.PointSize = cfg.Window.PointSize

	opts := cfg.ComputeOptions()
	cpu := compute.NewCPUBackend(buf, opts)
	gpu, err := newGPUBackend(cfg, buf, opts)
	if err != nil {
		if !errors.Is(err, compute.ErrUnavailable) || cfg.InitialMode() == sim.ModeGPU {
			renderer.Delete()
			buf.Delete()
			return nil, err
		}
		log.Warn("gpu backend unavailable, running on cpu only", zap.Error(err))
		gpu = nil
	}

	c, err := sim.New(cpu, gpu, buf, renderer, cfg.InitialState(), cfg.SimOptions())
	if err != nil {
		if gpu != nil {
			gpu.Cleanup()
		}
		renderer.Delete()
		buf.Delete()
		return nil, err
	}

	return &App{
		cfg:      cfg,
		sim:      c,
		buf:      buf,
		renderer: renderer,
		camera:   cam,
		font:     rl.GetFontDefault(),
		log:      log,
	}, nil
}

func newGPUBackend(cfg *config.Config, buf *opengl.Buffer, opts compute.Options) (compute.Backend, error) {
	switch cfg.Kind() {
	case compute.KindKernel:
		source := compute.KernelSource
		if cfg.KernelPath != "" {
			data, err := os.ReadFile(cfg.KernelPath)
			if err != nil {
				return nil, fmt.Errorf("kernel source: %w", err)
			}
			source = string(data)
		}
		k, err := compute.NewOpenCLKernel(opts.Gravity, cfg.Particles, source)
		if err != nil {
			return nil, err
		}
		// The backend owns k from here and releases it on failure.
		b, err := compute.NewKernelBackend(k, opengl.Context{}, buf, opts)
		if err != nil {
			return nil, err
		}
		return b, nil
	case compute.KindShader:
		src, err := opengl.LoadSource(cfg.Shaders.Compute, opengl.ComputeSource)
		if err != nil {
			return nil, err
		}
		p, err := opengl.NewComputePipeline(src, opts.Gravity, opts.WorkGroupSize)
		if err != nil {
			return nil, err
		}
		b, err := compute.NewShaderBackend(p, buf, opts)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, nil
	}
}

func (a *App) RunLoop(ctx context.Context) error {
	for !rl.WindowShouldClose() {
		if ctx.Err() != nil || rl.IsKeyPressed(rl.KeyEscape) {
			return nil
		}
		if err := a.Update(); err != nil {
			return err
		}
		if err := a.Draw(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Update handles input: E switches between the CPU and GPU backends, Q
// toggles drawing, the mouse wheel zooms.
func (a *App) Update() error {
	if rl.IsKeyPressed(rl.KeyE) {
		if err := a.sim.Toggle(); err != nil {
			if !errors.Is(err, sim.ErrNoGPU) {
				return err
			}
			a.message = "no gpu backend"
		} else {
			a.message = "switched to " + a.sim.Active().Name()
		}
	}
	if rl.IsKeyPressed(rl.KeyQ) {
		a.sim.ToggleRender()
	}

	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		a.camera.Zoom(1 - 0.1*wheel)
	}
	a.camera.Advance(rl.GetFrameTime())
	a.renderer.Aspect = float32(rl.GetScreenWidth()) / float32(rl.GetScreenHeight())
	return nil
}

// Draw produces one simulation frame and the HUD on top of it.
func (a *App) Draw(ctx context.Context) error {
	rl.BeginDrawing()
	rl.ClearBackground(ColBg)
	// Flush raylib's batch before the renderer issues raw GL calls.
	rl.DrawRenderBatchActive()

	err := a.sim.Frame(ctx)
	a.DrawHUD()
	rl.EndDrawing()
	return err
}

func (a *App) DrawHUD() {
	st := Status{
		Mode:      a.sim.Mode(),
		Backend:   a.sim.Active().Name(),
		Particles: a.sim.Len(),
		Frame:     a.sim.Frames(),
		Switches:  a.sim.Switches(),
		Rendering: a.sim.Rendering(),
		FPS:       int(rl.GetFPS()),
		Message:   a.message,
	}

	a.drawText("orbits", 30, 30, 24, ColSelect)
	col := ColAccent
	if st.Mode == sim.ModeGPU {
		col = ColGPU
	}
	for i, line := range st.Lines() {
		c := ColText
		if i == 0 {
			c = col
		}
		a.drawText(line, 30, 64+i*20, 16, c)
	}
	a.drawText("[E] CPU/GPU  [Q] RENDER  [WHEEL] ZOOM  [ESC] QUIT", 30, int(rl.GetScreenHeight())-40, 14, ColTextDim)
}

func (a *App) drawText(text string, x, y int, size int, color rl.Color) {
	rl.DrawTextEx(a.font, text, rl.NewVector2(float32(x), float32(y)), float32(size), 1, color)
}

func (a *App) Close() {
	a.sim.Close()
	a.renderer.Delete()
	a.buf.Delete()
}
