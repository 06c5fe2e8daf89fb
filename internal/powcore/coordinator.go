package powcore

import (
	"sync/atomic"

	"coinshaft/internal/errs"
)

// hashBatchSize is how many nonce attempts a worker makes between atomic
// counter updates. Updating totalHashes on every iteration would serialize
// workers on cache-line contention at MH/s search rates.
const hashBatchSize = 1000

// Stats is a point-in-time snapshot of coordinator progress.
type Stats struct {
	Running     bool
	TotalHashes uint64
	SharesFound uint64
}

// Coordinator partitions the 32-bit nonce space evenly across a fixed number
// of worker goroutines and searches for a header whose double-SHA-256 hash
// satisfies a target. State transitions and counters are lock-free: Running
// is an atomic.Bool and TotalHashes/SharesFound are atomic.Uint64, batched
// in increments of hashBatchSize per worker.
type Coordinator struct {
	threads int

	running     atomic.Bool
	totalHashes atomic.Uint64
	sharesFound atomic.Uint64

	stop chan struct{}
}

// NewCoordinator builds a coordinator for the given worker-thread count.
// threads is clamped to at least 1.
func NewCoordinator(threads int) *Coordinator {
	if threads < 1 {
		threads = 1
	}
	return &Coordinator{threads: threads}
}

// EffectiveThreadCount resolves the thread count a coordinator should start
// with: an explicit count, clamped to cores, if given; otherwise
// ceil(cores*maxCPUPct/100); always floored at 1 regardless of input.
func EffectiveThreadCount(cores int, explicit *int, maxCPUPct float64) int {
	if explicit != nil {
		t := *explicit
		if t > cores {
			t = cores
		}
		if t < 1 {
			t = 1
		}
		return t
	}

	t := int((float64(cores)*maxCPUPct/100.0)+0.999999)
	if t < 1 {
		t = 1
	}
	return t
}

// EffectiveThreadCount returns the number of worker goroutines this
// coordinator will actually launch, which is always threads as configured
// at construction (no further clamping happens at start time).
func (c *Coordinator) EffectiveThreadCount() int {
	return c.threads
}

// partitionSize returns the size of the nonce range assigned to each worker,
// R = math.MaxUint32 / T, so that worker i searches
// [i*R, (i+1)*R) for i < T-1, and the last worker absorbs the remainder up
// to math.MaxUint32 inclusive.
func (c *Coordinator) partitionSize() uint64 {
	return (uint64(1)<<32 - 1) / uint64(c.threads)
}

// partitionBounds returns the inclusive-exclusive nonce bounds for worker i.
func (c *Coordinator) partitionBounds(i int) (start, end uint64) {
	r := c.partitionSize()
	start = uint64(i) * r
	if i == c.threads-1 {
		end = uint64(1) << 32
	} else {
		end = start + r
	}
	return start, end
}

// Start launches one worker goroutine per partition searching header (with
// each worker's nonce substituted in turn) against target. onShare is
// invoked, from the finding worker's goroutine, for every satisfying nonce;
// workers keep searching after a find, so it may be called many times and
// concurrently from different workers. Start returns immediately;
// workers run until Stop is called. Calling Start while already running
// returns a Coordinator error.
func (c *Coordinator) Start(header BlockHeader, target HashTarget, onShare func(nonce uint32)) error {
	if !c.running.CompareAndSwap(false, true) {
		return errs.New(errs.Coordinator, "coordinator already running")
	}

	c.stop = make(chan struct{})
	stop := c.stop

	for i := 0; i < c.threads; i++ {
		start, end := c.partitionBounds(i)
		go c.worker(header, target, start, end, stop, onShare)
	}
	return nil
}

// Stop signals every worker to exit. It does not block until they have
// actually returned: workers check the stop channel before every nonce and
// exit promptly, but Stop itself does not join them.
func (c *Coordinator) Stop() {
	if c.running.CompareAndSwap(true, false) {
		close(c.stop)
	}
}

// IsRunning reports whether the coordinator currently has active workers.
func (c *Coordinator) IsRunning() bool {
	return c.running.Load()
}

// Stats returns a snapshot of the coordinator's current counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Running:     c.running.Load(),
		TotalHashes: c.totalHashes.Load(),
		SharesFound: c.sharesFound.Load(),
	}
}

func (c *Coordinator) worker(header BlockHeader, target HashTarget, start, end uint64, stop <-chan struct{}, onShare func(nonce uint32)) {
	defer func() {
		recover()
	}()

	var batch uint64
	nonce := start

loop:
	for nonce < end {
		select {
		case <-stop:
			break loop
		default:
		}

		header.Nonce = uint32(nonce)
		wire := header.Serialize()
		hash := DoubleSha256(wire[:])

		batch++
		if target.IsValidHash(hash) {
			c.sharesFound.Add(1)
			if onShare != nil {
				onShare(header.Nonce)
			}
		}

		if batch >= hashBatchSize {
			c.totalHashes.Add(batch)
			batch = 0
		}

		nonce++
	}

	if batch > 0 {
		c.totalHashes.Add(batch)
	}
}
