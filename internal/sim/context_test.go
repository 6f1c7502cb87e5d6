package sim_test

import (
	"context"
	"errors"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/orbits/internal/compute"
	"github.com/san-kum/orbits/internal/interop"
	"github.com/san-kum/orbits/internal/particle"
	"github.com/san-kum/orbits/internal/physics"
	"github.com/san-kum/orbits/internal/sim"
)

const n = 128

type recordingRenderer struct {
	buffers []interop.Buffer
	counts  []int
}

func (r *recordingRenderer) Draw(buf interop.Buffer, count int) error {
	r.buffers = append(r.buffers, buf)
	r.counts = append(r.counts, count)
	return nil
}

type brokenKernel struct {
	*compute.HostKernel
	enqueues int
}

func (k *brokenKernel) Enqueue(n int) error {
	k.enqueues++
	return &compute.DeviceError{Op: "clEnqueueNDRangeKernel", Status: -36}
}

type countingMetric struct{ observed int }

func (m *countingMetric) Name() string                        { return "observed" }
func (m *countingMetric) Observe(s particle.State, t float64) { m.observed++ }
func (m *countingMetric) Value() float64                      { return float64(m.observed) }
func (m *countingMetric) Reset()                              { m.observed = 0 }

type cancelAfter struct {
	frames uint64
	cancel context.CancelFunc
}

func (c cancelAfter) OnFrame(stats sim.FrameStats) {
	if stats.Frame == c.frames {
		c.cancel()
	}
}

func initialState() particle.State {
	d := particle.Distribution{MinRadius: 0.1, MaxRadius: 1.1, Height: 0.25, G: physics.DefaultG, M: physics.DefaultM}
	return d.Sample(n, rand.New(rand.NewSource(9)))
}

func options() compute.Options {
	opts := compute.DefaultOptions()
	opts.Substeps = 1
	opts.WorkGroupSize = 32
	return opts
}

func newContext(mode sim.Mode, r sim.Renderer, kernel compute.Kernel) (*sim.Context, interop.Buffer) {
	buf := interop.NewMemoryBuffer(n)
	cpu := compute.NewCPUBackend(buf, options())
	if kernel == nil {
		kernel = compute.NewHostKernel(options().Gravity, n)
	}
	gpu, err := compute.NewKernelBackend(kernel, interop.NopGraphics{}, buf, options())
	Expect(err).NotTo(HaveOccurred())

	ctx, err := sim.New(cpu, gpu, buf, r, initialState(), sim.Options{Dt: 0.5, Mode: mode, Render: r != nil})
	Expect(err).NotTo(HaveOccurred())
	return ctx, buf
}

func snapshot(c *sim.Context) particle.State {
	s := particle.New(c.Len())
	Expect(c.Snapshot(s)).To(Succeed())
	return s
}

func runFrames(c *sim.Context, frames int) {
	for i := 0; i < frames; i++ {
		Expect(c.Frame(context.Background())).To(Succeed())
	}
}

var _ = Describe("Context", func() {
	Describe("frames", func() {
		It("steps once and draws the same buffer every frame", func() {
			r := &recordingRenderer{}
			c, buf := newContext(sim.ModeCPU, r, nil)

			runFrames(c, 3)
			c.Toggle()
			runFrames(c, 3)

			Expect(c.Frames()).To(Equal(uint64(6)))
			Expect(c.Time()).To(BeNumerically("~", 3.0, 1e-9))
			Expect(r.buffers).To(HaveLen(6))
			for i := range r.buffers {
				Expect(r.buffers[i]).To(BeIdenticalTo(buf))
				Expect(r.counts[i]).To(Equal(n))
			}
		})

		It("skips drawing while rendering is off", func() {
			r := &recordingRenderer{}
			c, _ := newContext(sim.ModeCPU, r, nil)

			Expect(c.ToggleRender()).To(BeFalse())
			runFrames(c, 2)
			Expect(r.buffers).To(BeEmpty())

			Expect(c.ToggleRender()).To(BeTrue())
			runFrames(c, 1)
			Expect(r.buffers).To(HaveLen(1))
		})

		It("is deterministic for identical inputs", func() {
			a, _ := newContext(sim.ModeCPU, nil, nil)
			b, _ := newContext(sim.ModeCPU, nil, nil)
			runFrames(a, 25)
			runFrames(b, 25)
			Expect(snapshot(a)).To(Equal(snapshot(b)))
		})
	})

	Describe("Toggle", func() {
		It("hands the current state to the other backend unchanged", func() {
			c, _ := newContext(sim.ModeCPU, nil, nil)
			runFrames(c, 5)
			before := snapshot(c)

			Expect(c.Toggle()).To(Succeed())
			Expect(c.Mode()).To(Equal(sim.ModeGPU))
			Expect(snapshot(c)).To(Equal(before))

			runFrames(c, 5)
			afterGPU := snapshot(c)

			Expect(c.Toggle()).To(Succeed())
			Expect(c.Mode()).To(Equal(sim.ModeCPU))
			Expect(snapshot(c)).To(Equal(afterGPU))
			Expect(c.Switches()).To(Equal(2))
		})

		It("introduces no divergence compared with a single-backend run", func() {
			switched, _ := newContext(sim.ModeCPU, nil, nil)
			reference, _ := newContext(sim.ModeCPU, nil, nil)

			for _, span := range []int{4, 7, 3, 6} {
				runFrames(switched, span)
				Expect(switched.Toggle()).To(Succeed())
			}
			runFrames(reference, 20)

			Expect(particle.MaxRelativeDelta(snapshot(reference), snapshot(switched))).To(BeNumerically("<", 1e-4))
		})

		It("fails without a gpu backend", func() {
			buf := interop.NewMemoryBuffer(n)
			cpu := compute.NewCPUBackend(buf, options())
			c, err := sim.New(cpu, nil, buf, nil, initialState(), sim.Options{Dt: 0.5})
			Expect(err).NotTo(HaveOccurred())

			Expect(c.Toggle()).To(MatchError(sim.ErrNoGPU))
			Expect(c.Mode()).To(Equal(sim.ModeCPU))

			_, err = sim.New(cpu, nil, buf, nil, initialState(), sim.Options{Dt: 0.5, Mode: sim.ModeGPU})
			Expect(err).To(MatchError(sim.ErrNoGPU))
		})
	})

	Describe("errors", func() {
		It("treats device errors as fatal without retrying", func() {
			k := &brokenKernel{HostKernel: compute.NewHostKernel(options().Gravity, n)}
			c, _ := newContext(sim.ModeGPU, nil, k)

			err := c.Frame(context.Background())
			var frameErr *sim.FrameError
			Expect(errors.As(err, &frameErr)).To(BeTrue())
			Expect(frameErr.Phase).To(Equal("step"))

			var devErr *compute.DeviceError
			Expect(errors.As(err, &devErr)).To(BeTrue())
			Expect(devErr.Status).To(Equal(-36))
			Expect(k.enqueues).To(Equal(1))
			Expect(c.Frames()).To(BeZero())
		})

		It("rejects invalid options", func() {
			buf := interop.NewMemoryBuffer(n)
			cpu := compute.NewCPUBackend(buf, options())

			_, err := sim.New(cpu, nil, buf, nil, initialState(), sim.Options{Dt: 0})
			Expect(err).To(HaveOccurred())

			_, err = sim.New(cpu, nil, interop.NewMemoryBuffer(n+1), nil, initialState(), sim.Options{Dt: 0.5})
			Expect(err).To(MatchError(compute.ErrSize))
		})

		It("rejects an unknown mode", func() {
			buf := interop.NewMemoryBuffer(n)
			cpu := compute.NewCPUBackend(buf, options())

			var c *sim.Context
			var err error
			Expect(func() {
				c, err = sim.New(cpu, nil, buf, nil, initialState(), sim.Options{Dt: 0.5, Mode: sim.Mode(2)})
			}).NotTo(Panic())
			Expect(err).To(HaveOccurred())
			Expect(c).To(BeNil())
		})

		It("refuses work after Close", func() {
			c, _ := newContext(sim.ModeCPU, nil, nil)
			c.Close()
			Expect(c.Frame(context.Background())).To(MatchError(sim.ErrClosed))
			Expect(c.Toggle()).To(MatchError(sim.ErrClosed))
		})
	})

	Describe("Run", func() {
		It("stops between frames when the context is canceled", func() {
			c, _ := newContext(sim.ModeCPU, nil, nil)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			c.AddObserver(cancelAfter{frames: 3, cancel: cancel})

			result, err := c.Run(ctx, 0)
			Expect(err).To(MatchError(context.Canceled))
			Expect(result.Frames).To(Equal(3))
		})

		It("switches backends at the configured interval", func() {
			buf := interop.NewMemoryBuffer(n)
			cpu := compute.NewCPUBackend(buf, options())
			gpu, err := compute.NewKernelBackend(compute.NewHostKernel(options().Gravity, n), interop.NopGraphics{}, buf, options())
			Expect(err).NotTo(HaveOccurred())
			c, err := sim.New(cpu, gpu, buf, nil, initialState(), sim.Options{Dt: 0.5, ToggleEvery: 4})
			Expect(err).NotTo(HaveOccurred())

			reference, _ := newContext(sim.ModeCPU, nil, nil)

			result, err := c.Run(context.Background(), 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Switches).To(Equal(2))
			Expect(c.Mode()).To(Equal(sim.ModeCPU))

			runFrames(reference, 10)
			Expect(particle.MaxRelativeDelta(snapshot(reference), snapshot(c))).To(BeNumerically("<", 1e-4))
		})

		It("samples metrics at the configured interval", func() {
			buf := interop.NewMemoryBuffer(n)
			cpu := compute.NewCPUBackend(buf, options())
			c, err := sim.New(cpu, nil, buf, nil, initialState(), sim.Options{Dt: 0.5, SampleEvery: 5})
			Expect(err).NotTo(HaveOccurred())

			m := &countingMetric{}
			c.AddMetric(m)
			result, err := c.Run(context.Background(), 20)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Frames).To(Equal(20))
			Expect(result.Samples).To(HaveLen(5))
			Expect(result.Samples[0].Frame).To(BeZero())
			Expect(result.Samples[4].Frame).To(Equal(uint64(20)))
			Expect(result.Metrics["observed"]).To(Equal(5.0))
		})

		It("keeps earlier results intact across runs", func() {
			buf := interop.NewMemoryBuffer(n)
			cpu := compute.NewCPUBackend(buf, options())
			c, err := sim.New(cpu, nil, buf, nil, initialState(), sim.Options{Dt: 0.5, SampleEvery: 5})
			Expect(err).NotTo(HaveOccurred())
			c.AddMetric(&countingMetric{})

			first, err := c.Run(context.Background(), 20)
			Expect(err).NotTo(HaveOccurred())
			frames := make([]uint64, len(first.Samples))
			for i, s := range first.Samples {
				frames[i] = s.Frame
			}

			second, err := c.Run(context.Background(), 20)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Samples[0].Frame).To(Equal(uint64(20)))

			Expect(first.Samples).To(HaveLen(len(frames)))
			for i, s := range first.Samples {
				Expect(s.Frame).To(Equal(frames[i]))
			}
			Expect(first.Samples[1].Frame).To(Equal(uint64(5)))
		})
	})
})
