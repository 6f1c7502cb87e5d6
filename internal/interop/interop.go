package interop

import (
	"errors"
	"fmt"
	"sync"

	"github.com/san-kum/orbits/internal/logging"
	"go.uber.org/zap"
)

var (
	// ErrOwnership is returned when an acquire or release does not match the
	// current owner of the shared buffer.
	ErrOwnership = errors.New("interop: shared buffer ownership violation")

	// ErrBufferSize is returned when a host slice does not match the buffer.
	ErrBufferSize = errors.New("interop: host slice size does not match buffer")
)

// Buffer is the N×32-byte particle buffer that the renderer draws from and
// the compute backends write into. Transfers are explicit copies of the
// flat particle layout.
type Buffer interface {
	// Len is the number of particles the buffer holds.
	Len() int
	Upload(src []float32) error
	Download(dst []float32) error
}

// Graphics is the rendering side of the shared buffer.
type Graphics interface {
	// Finish blocks until every previously issued draw has completed.
	Finish() error
}

// Device is the compute side of the shared buffer.
type Device interface {
	AcquireShared(buf Buffer) error
	ReleaseShared(buf Buffer) error
}

type Owner int

const (
	OwnerGraphics Owner = iota
	OwnerDevice
)

func (o Owner) String() string {
	switch o {
	case OwnerGraphics:
		return "graphics"
	case OwnerDevice:
		return "device"
	default:
		return fmt.Sprintf("owner(%d)", int(o))
	}
}

// Bridge serializes access to a buffer shared between the graphics API and
// a compute device. The graphics side owns the buffer at rest; the device
// owns it only between Acquire and Release.
type Bridge struct {
	mu    sync.Mutex
	gfx   Graphics
	dev   Device
	buf   Buffer
	owner Owner
	log   *zap.Logger
}

func NewBridge(gfx Graphics, dev Device, buf Buffer) *Bridge {
	return &Bridge{
		gfx:   gfx,
		dev:   dev,
		buf:   buf,
		owner: OwnerGraphics,
		log:   logging.Named("interop"),
	}
}

func (b *Bridge) Buffer() Buffer { return b.buf }

func (b *Bridge) Owner() Owner {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.owner
}

// Acquire waits for outstanding draws, then hands the buffer to the device.
func (b *Bridge) Acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.owner != OwnerGraphics {
		return fmt.Errorf("acquire while owned by %s: %w", b.owner, ErrOwnership)
	}
	if err := b.gfx.Finish(); err != nil {
		return fmt.Errorf("graphics finish: %w", err)
	}
	if err := b.dev.AcquireShared(b.buf); err != nil {
		return err
	}
	b.owner = OwnerDevice
	b.log.Debug("buffer acquired", zap.Stringer("owner", b.owner))
	return nil
}

// Release returns the buffer to the graphics side. The device must have
// completed all of its work on the buffer before Release is called.
func (b *Bridge) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.owner != OwnerDevice {
		return fmt.Errorf("release while owned by %s: %w", b.owner, ErrOwnership)
	}
	if err := b.dev.ReleaseShared(b.buf); err != nil {
		return err
	}
	b.owner = OwnerGraphics
	b.log.Debug("buffer released", zap.Stringer("owner", b.owner))
	return nil
}

// Do runs fn while the device owns the buffer. The buffer is released even
// when fn fails; the first error is returned.
func (b *Bridge) Do(fn func() error) error {
	if err := b.Acquire(); err != nil {
		return err
	}
	runErr := fn()
	relErr := b.Release()
	if runErr != nil {
		return runErr
	}
	return relErr
}

// Download copies the buffer to host memory. It is only legal while the
// graphics side owns the buffer.
func (b *Bridge) Download(dst []float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.owner != OwnerGraphics {
		return fmt.Errorf("download while owned by %s: %w", b.owner, ErrOwnership)
	}
	return b.buf.Download(dst)
}

// Upload replaces the buffer contents from host memory under the same rule
// as Download.
func (b *Bridge) Upload(src []float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.owner != OwnerGraphics {
		return fmt.Errorf("upload while owned by %s: %w", b.owner, ErrOwnership)
	}
	return b.buf.Upload(src)
}
