// Production engine: efficiency composition, queue advance, and refill.
package buildings

import (
	"github.com/talgya/circular-city/internal/economy"
	"github.com/talgya/circular-city/internal/entropy"
	"github.com/talgya/circular-city/internal/policy"
)

// EfficiencyInputs are the factors of production efficiency.
type EfficiencyInputs struct {
	Workers         int
	RequiredWorkers int
	Level           int
	Powered         bool
	SpeedMultiplier float64 // production mode
	WastePenalty    float64
}

// Efficiency composes production efficiency in a fixed order:
//
//	workerRatio  = min(1, workers/required)          (0 workers ⇒ 0, regardless of the rest)
//	baseEff      = min(1, 0.7 + 0.1*(level-1))
//	prodEff      = powered ? baseEff*workerRatio : 0.5
//	policyEff    = prodEff * speedMultiplier
//	finalEff     = policyEff * wastePenalty
func Efficiency(in EfficiencyInputs) float64 {
	workerRatio := 1.0
	if in.RequiredWorkers > 0 {
		if in.Workers == 0 {
			return 0
		}
		workerRatio = min(1, float64(in.Workers)/float64(in.RequiredWorkers))
	}

	baseEff := min(1, 0.7+0.1*float64(in.Level-1))

	prodEff := 0.5
	if in.Powered {
		prodEff = baseEff * workerRatio
	}

	policyEff := prodEff * in.SpeedMultiplier
	return policyEff * in.WastePenalty
}

// ProductionEfficiency evaluates Efficiency for b under pol.
func ProductionEfficiency(b *Building, pol policy.Config) float64 {
	return Efficiency(EfficiencyInputs{
		Workers:         b.WorkerCount(),
		RequiredWorkers: b.RequiredWorkers,
		Level:           b.Level,
		Powered:         b.Power.Powered,
		SpeedMultiplier: pol.ProductionSpeed(),
		WastePenalty:    b.WastePenalty(),
	})
}

// WasteMultiplier scales recipe waste: the production mode multiplier,
// reduced 5% per level above 1.
func WasteMultiplier(level int, pol policy.Config) float64 {
	return pol.ProductionWaste() * (1 - 0.05*float64(level-1))
}

// Completion is one job finished during Advance.
type Completion struct {
	Recipe  *Recipe
	Outputs map[economy.Resource]float64 // as credited (after cap clamping)
	Waste   map[economy.WasteType]float64 // as credited, like Outputs
}

// Advance adds eff to every queued job's progress and completes jobs whose
// progress reached their total time: outputs go to the ledger, recipe
// waste scaled by wasteMul goes to the ledger's waste resources, and the
// job leaves the queue in the same call.
func Advance(b *Building, eff, wasteMul float64, ledger *economy.Ledger) []Completion {
	p := b.Production
	if p == nil || len(p.Queue) == 0 {
		return nil
	}

	var done []Completion
	kept := p.Queue[:0]
	for _, job := range p.Queue {
		if eff > 0 {
			job.Progress += eff
		}
		if job.Progress < job.TotalTime {
			kept = append(kept, job)
			continue
		}

		r, ok := RecipeByID(job.RecipeID)
		if !ok {
			// Restored from an older table; the job is dropped.
			continue
		}
		c := Completion{
			Recipe:  r,
			Outputs: make(map[economy.Resource]float64, len(r.Outputs)),
			Waste:   make(map[economy.WasteType]float64, len(r.Waste)),
		}
		for res, q := range r.Outputs {
			before := ledger.Amount(res)
			ledger.Add(res, q)
			c.Outputs[res] = ledger.Amount(res) - before
			b.Produced += q
		}
		for w, q := range r.Waste {
			before := ledger.Amount(w.Resource())
			ledger.Add(w.Resource(), q*wasteMul)
			c.Waste[w] = ledger.Amount(w.Resource()) - before
		}
		done = append(done, c)
	}
	p.Queue = kept
	return done
}

// StartAutomaticProduction refills b's queue up to capacity. Each slot takes
// the highest-RequiredLevel recipe that is open at b.Level and affordable,
// falling back to lower levels; equal-level candidates are chosen with rng.
// Inputs are consumed atomically when a job starts. Returns the number of
// jobs started.
func StartAutomaticProduction(b *Building, ledger *economy.Ledger, rng entropy.Source) int {
	p := b.Production
	if p == nil {
		return 0
	}

	started := 0
	for !p.Full() {
		r := pickRecipe(b, ledger, rng)
		if r == nil {
			break
		}
		if !ledger.ConsumeAll(r.Inputs) {
			break
		}
		p.Queue = append(p.Queue, Job{RecipeID: r.ID, TotalTime: r.Duration})
		started++
	}
	return started
}

func pickRecipe(b *Building, ledger *economy.Ledger, rng entropy.Source) *Recipe {
	var (
		best  []*Recipe
		level = -1
	)
	// RecipesFor is sorted hardest first, so the first affordable level wins.
	for _, r := range RecipesFor(b.Kind) {
		if !r.Open(b.Level) {
			continue
		}
		if level >= 0 && r.RequiredLevel < level {
			break
		}
		if !ledger.HasAll(r.Inputs) {
			continue
		}
		level = r.RequiredLevel
		best = append(best, r)
	}
	switch len(best) {
	case 0:
		return nil
	case 1:
		return best[0]
	}
	if rng == nil {
		return best[0]
	}
	return best[entropy.Pick(rng, len(best))]
}
