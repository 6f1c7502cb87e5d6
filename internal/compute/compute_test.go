package compute

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/san-kum/orbits/internal/interop"
	"github.com/san-kum/orbits/internal/particle"
	"github.com/san-kum/orbits/internal/physics"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Gravity = physics.NewGravity(physics.DefaultG, physics.DefaultM)
	opts.WorkGroupSize = 64
	return opts
}

func seedState(n int) particle.State {
	d := particle.Distribution{MinRadius: 0.1, MaxRadius: 1.1, Height: 0.25, G: physics.DefaultG, M: physics.DefaultM}
	return d.Sample(n, rand.New(rand.NewSource(42)))
}

// tracingKernel records the device calls made by a KernelBackend.
type tracingKernel struct {
	*HostKernel
	calls []string
	fail  string
}

func (k *tracingKernel) do(name string) error {
	k.calls = append(k.calls, name)
	if name == k.fail {
		return &DeviceError{Op: name, Status: -5}
	}
	return nil
}

func (k *tracingKernel) AcquireShared(buf interop.Buffer) error {
	if err := k.do("acquire"); err != nil {
		return err
	}
	return k.HostKernel.AcquireShared(buf)
}

func (k *tracingKernel) ReleaseShared(buf interop.Buffer) error {
	if err := k.do("release"); err != nil {
		return err
	}
	return k.HostKernel.ReleaseShared(buf)
}

func (k *tracingKernel) SetTimeStep(dt float32) error {
	if err := k.do("args"); err != nil {
		return err
	}
	return k.HostKernel.SetTimeStep(dt)
}

func (k *tracingKernel) Enqueue(n int) error {
	if err := k.do("enqueue"); err != nil {
		return err
	}
	return k.HostKernel.Enqueue(n)
}

func (k *tracingKernel) Finish() error {
	return k.do("finish")
}

type tracingGraphics struct{ k *tracingKernel }

func (g tracingGraphics) Finish() error { return g.k.do("gl.finish") }

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"cpu", KindCPU, true},
		{" Kernel ", KindKernel, true},
		{"SHADER", KindShader, true},
		{"cuda", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseKind(%q) = %q, %v", tt.in, got, err)
		}
		var cfgErr *ConfigError
		if !tt.ok && !errors.As(err, &cfgErr) {
			t.Errorf("ParseKind(%q): expected ConfigError, got %T", tt.in, err)
		}
	}
}

func TestCPUStepUploadsRenderBuffer(t *testing.T) {
	s := seedState(32)
	buf := interop.NewMemoryBuffer(len(s))
	cpu := NewCPUBackend(buf, testOptions())
	if err := cpu.Upload(s); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if err := cpu.Step(context.Background(), 0.5); err != nil {
		t.Fatalf("step failed: %v", err)
	}

	want := s.Clone()
	testOptions().Gravity.Advance(want, 0.5)

	raw := make([]float32, want.Floats())
	if err := buf.Download(raw); err != nil {
		t.Fatalf("download failed: %v", err)
	}
	got := particle.New(len(s))
	if err := got.Unflatten(raw); err != nil {
		t.Fatalf("unflatten failed: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("particle %d: render buffer %v, expected %v", i, got[i], want[i])
		}
	}
}

func TestCPUParallelMatchesSerial(t *testing.T) {
	s := seedState(parallelThreshold * 2)

	serialOpts := testOptions()
	serialOpts.Workers = 1
	serial := NewCPUBackend(interop.NewMemoryBuffer(len(s)), serialOpts)

	parallelOpts := testOptions()
	parallelOpts.Workers = 7
	parallel := NewCPUBackend(interop.NewMemoryBuffer(len(s)), parallelOpts)

	for _, b := range []*CPUBackend{serial, parallel} {
		if err := b.Upload(s); err != nil {
			t.Fatalf("upload failed: %v", err)
		}
		for i := 0; i < 10; i++ {
			if err := b.Step(context.Background(), 0.5); err != nil {
				t.Fatalf("step failed: %v", err)
			}
		}
	}

	a, b := particle.New(len(s)), particle.New(len(s))
	_ = serial.Download(a)
	_ = parallel.Download(b)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("particle %d: parallel result differs from serial", i)
		}
	}
}

func TestCPUHonorsCanceledContext(t *testing.T) {
	s := seedState(8)
	cpu := NewCPUBackend(interop.NewMemoryBuffer(len(s)), testOptions())
	_ = cpu.Upload(s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := cpu.Step(ctx, 0.5); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	after := particle.New(len(s))
	_ = cpu.Download(after)
	if after[0] != s[0] {
		t.Error("canceled step modified state")
	}
}

func TestHandOffSizeMismatch(t *testing.T) {
	cpu := NewCPUBackend(interop.NewMemoryBuffer(4), testOptions())
	if err := cpu.Upload(particle.New(5)); !errors.Is(err, ErrSize) {
		t.Errorf("expected ErrSize, got %v", err)
	}
	if err := cpu.Download(particle.New(3)); !errors.Is(err, ErrSize) {
		t.Errorf("expected ErrSize, got %v", err)
	}
}

func TestKernelStepProtocol(t *testing.T) {
	s := seedState(16)
	buf := interop.NewMemoryBuffer(len(s))
	k := &tracingKernel{HostKernel: NewHostKernel(testOptions().Gravity, len(s))}

	opts := testOptions()
	opts.Substeps = 0
	kb, err := NewKernelBackend(k, tracingGraphics{k}, buf, opts)
	if err != nil {
		t.Fatalf("new kernel backend: %v", err)
	}
	if err := kb.Upload(s); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if err := kb.Step(context.Background(), 0.5); err != nil {
		t.Fatalf("step failed: %v", err)
	}

	want := []string{
		"gl.finish", "acquire", "args",
		"enqueue", "finish",
		"enqueue", "finish",
		"enqueue", "finish",
		"enqueue", "finish",
		"release",
	}
	if !reflect.DeepEqual(k.calls, want) {
		t.Errorf("expected call order %v, got %v", want, k.calls)
	}
	if kb.Bridge().Owner() != interop.OwnerGraphics {
		t.Errorf("buffer still owned by %s after step", kb.Bridge().Owner())
	}
}

func TestKernelDeviceErrorIsFatal(t *testing.T) {
	s := seedState(16)
	buf := interop.NewMemoryBuffer(len(s))
	k := &tracingKernel{HostKernel: NewHostKernel(testOptions().Gravity, len(s)), fail: "enqueue"}

	kb, err := NewKernelBackend(k, tracingGraphics{k}, buf, testOptions())
	if err != nil {
		t.Fatalf("new kernel backend: %v", err)
	}
	_ = kb.Upload(s)

	err = kb.Step(context.Background(), 0.5)
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("expected DeviceError, got %v", err)
	}
	if devErr.Op != "enqueue" || devErr.Status != -5 {
		t.Errorf("unexpected device error %+v", devErr)
	}
	if got := k.calls[len(k.calls)-1]; got != "release" {
		t.Errorf("expected buffer release after failure, last call was %q", got)
	}
	if n := countCalls(k.calls, "enqueue"); n != 1 {
		t.Errorf("expected no retry, saw %d enqueues", n)
	}
}

func countCalls(calls []string, name string) int {
	n := 0
	for _, c := range calls {
		if c == name {
			n++
		}
	}
	return n
}

func TestNewKernelBackendUnavailable(t *testing.T) {
	if _, err := NewKernelBackend(nil, interop.NopGraphics{}, interop.NewMemoryBuffer(1), testOptions()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestShaderWorkGroupPrecondition(t *testing.T) {
	opts := testOptions()
	opts.WorkGroupSize = 64

	_, err := NewShaderBackend(NewHostPipeline(opts.Gravity, 64), interop.NewMemoryBuffer(100), opts)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for 100 %% 64 != 0, got %v", err)
	}

	sb, err := NewShaderBackend(NewHostPipeline(opts.Gravity, 64), interop.NewMemoryBuffer(128), opts)
	if err != nil {
		t.Fatalf("expected 128 particles to be accepted: %v", err)
	}
	if sb.Groups() != 2 {
		t.Errorf("expected 2 groups, got %d", sb.Groups())
	}

	if err := CheckWorkGroups(128, 0); !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigError for zero work group size, got %v", err)
	}
}

func TestFourParticleCPUStep(t *testing.T) {
	const (
		g  = 6.67384e-11
		m  = 1e4
		dt = 0.5
	)
	initial := particle.Ring(4, 1, g, m)
	buf := interop.NewMemoryBuffer(4)
	cpu := NewCPUBackend(buf, Options{Gravity: physics.NewGravity(g, m), Substeps: 1, Workers: 1})

	if err := cpu.Upload(initial); err != nil {
		t.Fatal(err)
	}
	if err := cpu.Step(context.Background(), dt); err != nil {
		t.Fatal(err)
	}
	got := particle.New(4)
	if err := cpu.Download(got); err != nil {
		t.Fatal(err)
	}

	for i, p0 := range initial {
		px, py, pz := float64(p0.Position.X()), float64(p0.Position.Y()), float64(p0.Position.Z())
		r := math.Sqrt(px*px + py*py + pz*pz)
		k := g * m / (r * r) * dt / r

		vx := float64(p0.Velocity.X()) - px*k
		vy := float64(p0.Velocity.Y()) - py*k
		vz := float64(p0.Velocity.Z()) - pz*k
		want := [3]float64{px + vx*dt, py + vy*dt, pz + vz*dt}
		wantV := [3]float64{vx, vy, vz}

		for c := 0; c < 3; c++ {
			if math.Abs(float64(got[i].Position[c])-want[c]) > 1e-6 {
				t.Errorf("particle %d pos[%d]: expected %.9f, got %.9f", i, c, want[c], got[i].Position[c])
			}
			if math.Abs(float64(got[i].Velocity[c])-wantV[c]) > 1e-9 {
				t.Errorf("particle %d vel[%d]: expected %.12f, got %.12f", i, c, wantV[c], got[i].Velocity[c])
			}
		}
	}

	// The render buffer carries the stepped state.
	floats := make([]float32, 4*particle.FloatsPerParticle)
	if err := buf.Download(floats); err != nil {
		t.Fatal(err)
	}
	drawn := particle.New(4)
	if err := drawn.Unflatten(floats); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(drawn, got) {
		t.Error("render buffer differs from the backend state")
	}
}

type releaseCounter struct{ released int }

type countedKernel struct {
	*HostKernel
	*releaseCounter
}

func (k countedKernel) Release() {
	k.released++
	k.HostKernel.Release()
}

type countedPipeline struct {
	*HostPipeline
	*releaseCounter
}

func (p countedPipeline) Release() {
	p.released++
	p.HostPipeline.Release()
}

func TestFailedConstructionReleasesDevice(t *testing.T) {
	opts := testOptions()

	kc := &releaseCounter{}
	bad := opts
	bad.Substeps = -1
	if _, err := NewKernelBackend(countedKernel{NewHostKernel(opts.Gravity, 64), kc}, interop.NopGraphics{}, interop.NewMemoryBuffer(64), bad); err == nil {
		t.Fatal("expected error for negative substeps")
	}
	if kc.released != 1 {
		t.Errorf("expected kernel released once, got %d", kc.released)
	}

	pc := &releaseCounter{}
	if _, err := NewShaderBackend(countedPipeline{NewHostPipeline(opts.Gravity, 64), pc}, interop.NewMemoryBuffer(100), opts); err == nil {
		t.Fatal("expected error for 100 particles in groups of 64")
	}
	if pc.released != 1 {
		t.Errorf("expected pipeline released once, got %d", pc.released)
	}

	ok := &releaseCounter{}
	if _, err := NewShaderBackend(countedPipeline{NewHostPipeline(opts.Gravity, 64), ok}, interop.NewMemoryBuffer(128), opts); err != nil {
		t.Fatal(err)
	}
	if ok.released != 0 {
		t.Errorf("expected a built backend to keep its pipeline, got %d releases", ok.released)
	}
}

func TestCrossBackendEquivalence(t *testing.T) {
	const n = 256
	s := seedState(n)

	run := func(b Backend) particle.State {
		t.Helper()
		if err := b.Upload(s); err != nil {
			t.Fatalf("%s upload: %v", b.Name(), err)
		}
		if err := b.Step(context.Background(), 0.5); err != nil {
			t.Fatalf("%s step: %v", b.Name(), err)
		}
		out := particle.New(n)
		if err := b.Download(out); err != nil {
			t.Fatalf("%s download: %v", b.Name(), err)
		}
		return out
	}

	for _, substeps := range []int{1, 4} {
		opts := testOptions()
		opts.Substeps = substeps

		cpu := NewCPUBackend(interop.NewMemoryBuffer(n), opts)
		kb, err := NewKernelBackend(NewHostKernel(opts.Gravity, n), interop.NopGraphics{}, interop.NewMemoryBuffer(n), opts)
		if err != nil {
			t.Fatal(err)
		}
		sb, err := NewShaderBackend(NewHostPipeline(opts.Gravity, opts.WorkGroupSize), interop.NewMemoryBuffer(n), opts)
		if err != nil {
			t.Fatal(err)
		}

		ref := run(cpu)
		for _, b := range []Backend{kb, sb} {
			if d := particle.MaxRelativeDelta(ref, run(b)); d > 1e-4 {
				t.Errorf("substeps=%d: %s differs from cpu by %g", substeps, b.Name(), d)
			}
		}
	}
}

func TestCleanupReleasesBackend(t *testing.T) {
	opts := testOptions()
	kb, _ := NewKernelBackend(NewHostKernel(opts.Gravity, 64), interop.NopGraphics{}, interop.NewMemoryBuffer(64), opts)
	sb, _ := NewShaderBackend(NewHostPipeline(opts.Gravity, 64), interop.NewMemoryBuffer(64), opts)
	cpu := NewCPUBackend(interop.NewMemoryBuffer(64), opts)

	for _, b := range []Backend{cpu, kb, sb} {
		b.Cleanup()
		b.Cleanup()
		if b.Available() {
			t.Errorf("%s still available after cleanup", b.Kind())
		}
		if err := b.Step(context.Background(), 0.5); !errors.Is(err, ErrReleased) {
			t.Errorf("%s: expected ErrReleased, got %v", b.Kind(), err)
		}
	}
}

func TestDeviceErrorMessage(t *testing.T) {
	err := &DeviceError{Op: "clBuildProgram", Status: -11, Log: "error: expected ';'"}
	want := "compute: clBuildProgram failed (status -11)\nerror: expected ';'"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}
