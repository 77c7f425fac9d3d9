package vm

import "time"

// Profile is the optional record of spec.md §3: total instructions retired,
// wall-clock seconds, per-loop iteration counts indexed by the loop's
// build-time id (the Builder's Aux field), and peak heap bytes observed at
// END.
type Profile struct {
	Instructions    int64
	WallClock       time.Duration
	LoopIterations  map[int16]int64
	PeakHeapBytes   uint64

	start time.Time
}

func (p *Profile) begin() {
	if p == nil {
		return
	}
	p.start = timeNow()
	if p.LoopIterations == nil {
		p.LoopIterations = make(map[int16]int64)
	}
}

func (p *Profile) retire() {
	if p == nil {
		return
	}
	p.Instructions++
}

func (p *Profile) loop(id int16) {
	if p == nil {
		return
	}
	p.LoopIterations[id]++
}

func (p *Profile) finish() {
	if p == nil {
		return
	}
	p.WallClock = timeNow().Sub(p.start)
	p.PeakHeapBytes = peakHeapBytes()
}
