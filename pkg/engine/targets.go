package engine

import (
	"fmt"
	"sync"

	"multipass/internal/logger"
	"multipass/pkg/config"
)

// TargetPair is the output and scratch target of one branch
type TargetPair struct {
	Out     Target
	Scratch Target
}

// TargetPool hands out one TargetPair per branch, every target sized to
// the viewport. With the persistent policy the pairs live until Resize or
// Close; with the per-frame policy every Acquire allocates fresh pairs that
// the lease frees.
type TargetPool struct {
	device     Device
	logger     *logger.Logger
	policy     string
	count      int
	width      int
	height     int
	pairs      []TargetPair
	generation uint64
	live       int
}

// NewTargetPool creates a pool for count branches. Persistent pools
// allocate immediately so setup fails early.
func NewTargetPool(dev Device, count, width, height int, policy string, log *logger.Logger) (*TargetPool, error) {
	switch policy {
	case config.PolicyPersistent, config.PolicyPerFrame:
	default:
		return nil, fmt.Errorf("unknown target policy %q", policy)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}

	p := &TargetPool{
		device: dev,
		logger: log,
		policy: policy,
		count:  count,
		width:  width,
		height: height,
	}

	if policy == config.PolicyPersistent {
		pairs, err := p.allocate()
		if err != nil {
			return nil, err
		}
		p.pairs = pairs
		p.generation++
		log.Debugf("Allocated %d persistent targets at %dx%d", 2*count, width, height)
	}
	return p, nil
}

func (p *TargetPool) allocate() ([]TargetPair, error) {
	pairs := make([]TargetPair, 0, p.count)
	for i := 0; i < p.count; i++ {
		out, err := p.device.NewTarget(p.width, p.height)
		if err != nil {
			p.free(pairs)
			return nil, fmt.Errorf("failed to allocate target %d: %w", i, err)
		}
		scratch, err := p.device.NewTarget(p.width, p.height)
		if err != nil {
			out.Release()
			p.free(pairs)
			return nil, fmt.Errorf("failed to allocate scratch target %d: %w", i, err)
		}
		p.live += 2
		pairs = append(pairs, TargetPair{Out: out, Scratch: scratch})
	}
	return pairs, nil
}

func (p *TargetPool) free(pairs []TargetPair) {
	for _, pair := range pairs {
		pair.Out.Release()
		pair.Scratch.Release()
		p.live -= 2
	}
}

// Lease is a scoped hold on the pool's targets for one frame
type Lease struct {
	pairs      []TargetPair
	generation uint64
	release    func()
	once       sync.Once
}

// Pair returns the targets of branch i
func (l *Lease) Pair(i int) TargetPair {
	return l.pairs[i]
}

// Outputs returns every branch's output target in branch order
func (l *Lease) Outputs() []Target {
	out := make([]Target, len(l.pairs))
	for i, pair := range l.pairs {
		out[i] = pair.Out
	}
	return out
}

// Generation identifies the allocation the lease points at. It changes
// whenever the targets are reallocated.
func (l *Lease) Generation() uint64 {
	return l.generation
}

// Release ends the lease. Per-frame targets are freed here.
func (l *Lease) Release() {
	l.once.Do(func() {
		if l.release != nil {
			l.release()
		}
	})
}

// Acquire leases targets for one frame. Callers must Release the lease,
// typically with defer.
func (p *TargetPool) Acquire() (*Lease, error) {
	if p.policy == config.PolicyPersistent {
		if p.pairs == nil {
			return nil, fmt.Errorf("target pool is closed")
		}
		return &Lease{pairs: p.pairs, generation: p.generation}, nil
	}

	pairs, err := p.allocate()
	if err != nil {
		return nil, err
	}
	p.generation++
	return &Lease{
		pairs:      pairs,
		generation: p.generation,
		release:    func() { p.free(pairs) },
	}, nil
}

// Resize reallocates persistent targets when the size changes
func (p *TargetPool) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid target size %dx%d", width, height)
	}
	if width == p.width && height == p.height {
		return nil
	}
	p.width, p.height = width, height

	if p.policy != config.PolicyPersistent {
		return nil
	}
	p.free(p.pairs)
	p.pairs = nil
	pairs, err := p.allocate()
	if err != nil {
		return err
	}
	p.pairs = pairs
	p.generation++
	p.logger.Debugf("Reallocated %d targets at %dx%d", 2*p.count, width, height)
	return nil
}

// Size returns the current target size
func (p *TargetPool) Size() (width, height int) {
	return p.width, p.height
}

// Live returns the number of allocated targets not yet released
func (p *TargetPool) Live() int {
	return p.live
}

// Policy returns the allocation policy
func (p *TargetPool) Policy() string {
	return p.policy
}

// Close releases persistent targets
func (p *TargetPool) Close() {
	p.free(p.pairs)
	p.pairs = nil
}
