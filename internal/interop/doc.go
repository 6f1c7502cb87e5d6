// Package interop guards the particle buffer shared by the renderer and a
// compute device.
//
// The protocol for every GPU step is fixed:
//
//	graphics Finish -> device acquire -> compute -> device finish -> release
//
// Bridge tracks which side owns the buffer and rejects out-of-order calls
// with ErrOwnership, so a device can never write while a draw is reading
// and the renderer never sees a half-written frame.
package interop
