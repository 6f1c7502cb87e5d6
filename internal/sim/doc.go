// Package sim drives the frame loop of the orbit simulation.
//
// A [Context] holds a CPU backend, an optional GPU backend, the render
// buffer and the renderer. Each call to [Context.Frame] performs exactly
// one step on the authoritative backend and, when rendering is on, one
// draw of the same buffer:
//
//	ctx, err := sim.New(cpu, gpu, buf, renderer, initial, sim.Options{Dt: 0.5, Render: true})
//	if err != nil {
//	    return err
//	}
//	defer ctx.Close()
//
//	for !window.ShouldClose() {
//	    if keyE {
//	        _ = ctx.Toggle()
//	    }
//	    if err := ctx.Frame(context.Background()); err != nil {
//	        return err // device errors are fatal
//	    }
//	}
//
// # Switching backends
//
// [Context.Toggle] always performs a full hand-off: the active backend is
// drained into host memory and the other backend is loaded from it, in
// both directions. Frames are never skipped or batched around a switch.
package sim
