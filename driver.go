package eflomal

import (
	"context"
	"sync"

	"github.com/golang/glog"
	"github.com/kho/easy"
)

// DriverConfig configures a Driver (spec.md §4.5, §5).
type DriverConfig struct {
	NSamplers int
	NullPrior Count
	// Model is the highest model to train; blocks run for m = 1..Model
	// in order, each preceded by MakeCounts and followed by NIters[m-1]
	// sampling sweeps.
	Model Model
	// NIters holds the iteration count for M1, M2, M3 respectively.
	NIters [3]int
	Priors *Priors
	Quiet  bool
}

// Driver owns NSamplers independent AlignmentStates over the same
// source/target pair and coordinates their randomisation, per-model
// training sweeps, and the final consensus argmax pass (spec.md §4.5).
// Nothing inside a training block is shared across samplers; the only
// cross-sampler coordination is the barrier at the end of each block and
// the mutex guarding the shared PRNG's Split calls (spec.md §5).
type Driver struct {
	cfg      DriverConfig
	Samplers []*AlignmentState
	root     RandState
	mu       sync.Mutex
}

// NewDriver constructs NSamplers AlignmentStates over source/target, each
// carrying cfg.Priors and cfg.NullPrior.
func NewDriver(source, target *Text, cfg DriverConfig) (*Driver, error) {
	d := &Driver{cfg: cfg}
	d.Samplers = make([]*AlignmentState, cfg.NSamplers)
	for i := range d.Samplers {
		ta, err := NewAlignmentState(source, target)
		if err != nil {
			return nil, err
		}
		ta.NullPrior = cfg.NullPrior
		if cfg.Priors != nil {
			ta.SetPriors(cfg.Priors)
		}
		d.Samplers[i] = ta
	}
	return d, nil
}

// split returns an independent child generator, advancing the driver's
// root state under the mutex. Run calls it from its launching loop, once
// per sampler in index order, before starting that sampler's goroutine;
// that fixed acquisition order is what makes two runs with the same seed
// and sampler count produce identical results (spec.md §5, §9).
func (d *Driver) split() RandState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.root.Split()
}

// Run seeds the driver from seed, randomises every sampler, trains models
// 1..cfg.Model in blocks (each gated by NIters[m-1] > 0), and finishes with
// the consensus argmax sweep into Samplers[0]. ctx is accepted so an
// embedding caller can thread cancellation down to the goroutine
// launch boundary; the kernel loop itself never checks it (spec.md §5: "no
// operation suspends inside the kernel").
func (d *Driver) Run(ctx context.Context, seed uint64) error {
	_ = ctx
	d.root = NewRandState(seed)

	elapsed := easy.Timed(func() {
		var wg sync.WaitGroup
		for i := range d.Samplers {
			local := d.split()
			wg.Add(1)
			go func(i int, local RandState) {
				defer wg.Done()
				d.Samplers[i].Randomize(&local)
			}(i, local)
		}
		wg.Wait()
	})
	if !d.cfg.Quiet {
		glog.Infof("randomized alignment: %v", elapsed)
	}

	for m := 1; m <= int(d.cfg.Model); m++ {
		nIters := d.cfg.NIters[m-1]
		if nIters == 0 {
			continue
		}
		if !d.cfg.Quiet {
			glog.Infof("aligning with model %d (%d iterations)", m, nIters)
		}
		elapsed := easy.Timed(func() {
			var wg sync.WaitGroup
			for i := range d.Samplers {
				local := d.split()
				wg.Add(1)
				go func(i int, local RandState) {
					defer wg.Done()
					ta := d.Samplers[i]
					ta.Model = Model(m)
					ta.MakeCounts()
					for j := 0; j < nIters; j++ {
						ta.Sample(&local, nil)
					}
				}(i, local)
			}
			wg.Wait()
		})
		if !d.cfg.Quiet {
			glog.Infof("done: %v", elapsed)
		}
	}

	elapsed = easy.Timed(func() {
		d.consensusSweep()
	})
	if !d.cfg.Quiet {
		glog.Infof("final argmax iteration: %v", elapsed)
	}
	return nil
}

// consensusSweep performs the single final sweep described in spec.md
// §4.5: for each sentence, every sampler in turn (last to first, so that
// Samplers[0] is processed last and ends up holding the fully accumulated
// argmax) withdraws its own current link, builds its own distribution, and
// adds its normalised contribution into a shared per-sentence accumulator;
// each sampler's own new link — including, at the end, Samplers[0]'s,
// which is what the caller reads back — is the argmax of the accumulator
// as it stands immediately after that sampler's own contribution.
//
// The jump histogram and fertility table used throughout are Samplers[0]'s,
// not each sampler's own: every sampler only ever reads and withdraws
// against Samplers[0]'s jump/fert counts for the duration of this sweep,
// mirroring how the jump_counts/fert_counts locals in the original are
// cached once from the leading sampler at the top of the consensus call
// and never rebound as the working sampler changes. Only the per-sampler
// lexical statistics (SourceCount/InvSourceCountSum) stay genuinely
// per-sampler here. If the trained model reached Model3, Samplers[0]'s
// fertility table is also redrawn fresh once, before the per-sentence
// loop, exactly as an ordinary Model3 sweep would.
func (d *Driver) consensusSweep() {
	n := len(d.Samplers)
	root := d.Samplers[0]
	if root.Model >= Model3 {
		root.resampleFertility(&d.root)
	}
	target := root.Target
	source := root.Source
	for sent := range target.Sentences {
		if root.Links[sent] == nil {
			continue
		}
		sourceLength := len(source.Sentences[sent])
		targetLength := len(target.Sentences[sent])
		stride := sourceLength + 1
		acc := make([]Count, targetLength*stride)
		for k := n - 1; k >= 0; k-- {
			ta := d.Samplers[k]
			ta.sampleSentence(&d.root, sent, ta.Links[sent], nil, ta.cleanSentences(), acc, 0, stride, root.JumpCounts, root.FertCounts)
		}
	}
}

// ScoreCorpus switches Samplers[0] to scoreModel and runs one scoring
// sweep (no resampling; every existing link is kept), returning one value
// per source sentence: -(1/T) sum_j log max_i p(i|j), where the maximum is
// over the non-NULL candidates at target position j. This mirrors
// the original's scores pass, which reuses whatever sufficient statistics
// are already in Samplers[0] rather than rebuilding them for scoreModel —
// if scoreModel was never trained in this run, its statistics (e.g. the
// jump histogram for model>=2) may be whatever MakeCounts last left them
// as, or zero-valued if that model was never reached.
func (d *Driver) ScoreCorpus(scoreModel Model) []Count {
	ta := d.Samplers[0]
	ta.Model = scoreModel
	scores := make([]Count, len(ta.Source.Sentences))
	ta.Sample(&d.root, scores)
	for i := range scores {
		scores[i] = -scores[i]
	}
	return scores
}

// Result returns the trained AlignmentState whose link vectors hold the
// final consensus output (always Samplers[0] after Run has completed).
func (d *Driver) Result() *AlignmentState {
	return d.Samplers[0]
}
