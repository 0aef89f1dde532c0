package buildings

import (
	"math"
	"slices"

	"github.com/samber/lo"

	"github.com/talgya/circular-city/internal/agents"
	"github.com/talgya/circular-city/internal/economy"
)

// EnergyStorageCap bounds the shared energy pool.
const EnergyStorageCap = 500.0

// EnergyPool is the city's shared energy store. Producers add to it during
// their simulate step and consumers draw from it in grid-scan order. There is
// no reservation: whoever asks first is served, and a consumer scanned before
// a producer sees the pool as it stood at the end of the previous tick.
type EnergyPool struct {
	Stored float64 `json:"stored"`
	Cap    float64 `json:"cap"`

	// Per-tick generation totals, reset by BeginTick.
	Generated float64 `json:"generated"`
	Renewable float64 `json:"renewable"`
	Consumed  float64 `json:"consumed"`
}

// NewEnergyPool creates a pool holding start units.
func NewEnergyPool(start float64) *EnergyPool {
	return &EnergyPool{Stored: lo.Clamp(start, 0, EnergyStorageCap), Cap: EnergyStorageCap}
}

// BeginTick clears the per-tick generation counters.
func (p *EnergyPool) BeginTick() {
	p.Generated = 0
	p.Renewable = 0
	p.Consumed = 0
}

// Generate adds produced energy. Production above the cap is lost but still
// counts as generated.
func (p *EnergyPool) Generate(amount float64, renewable bool) {
	if amount <= 0 {
		return
	}
	p.Generated += amount
	if renewable {
		p.Renewable += amount
	}
	p.Stored = math.Min(p.Cap, p.Stored+amount)
}

// Draw takes amount if the pool holds at least that much.
func (p *EnergyPool) Draw(amount float64) bool {
	if amount <= 0 {
		return true
	}
	if p.Stored < amount {
		return false
	}
	p.Stored -= amount
	p.Consumed += amount
	return true
}

// RenewableShare is renewable / total generated this tick, 0 when nothing ran.
func (p *EnergyPool) RenewableShare() float64 {
	if p.Generated <= 0 {
		return 0
	}
	return p.Renewable / p.Generated
}

// PowerModule tracks a building's per-tick draw.
type PowerModule struct {
	Required float64 `json:"required"`
	Powered  bool    `json:"powered"`
}

// Draw consumes Required from pool and records whether the building is
// fully powered this tick. A building with no requirement is always powered.
func (m *PowerModule) Draw(pool *EnergyPool) bool {
	if m.Required <= 0 {
		m.Powered = true
		return true
	}
	m.Powered = pool.Draw(m.Required)
	return m.Powered
}

// RoadAccess records whether a building touches a road.
type RoadAccess struct {
	Connected    bool   `json:"connected"`
	TicksWithout uint64 `json:"ticks_without"`
}

// Update sets the connection state for this tick.
func (r *RoadAccess) Update(connected bool) {
	r.Connected = connected
	if connected {
		r.TicksWithout = 0
	} else {
		r.TicksWithout++
	}
}

// WasteModule holds a building's local waste. Amount stays within
// [0, MaxCapacity] after every mutation.
type WasteModule struct {
	Amount             float64           `json:"amount"`
	MaxCapacity        float64           `json:"max_capacity"`
	ProductionRate     float64           `json:"production_rate"`
	Type               economy.WasteType `json:"type"`
	ProductionInterval uint64            `json:"production_interval"`
	LastProductionTick uint64            `json:"last_production_tick"`
	DecayRate          float64           `json:"decay_rate"`
}

func newWasteModule(spec *WasteSpec) *WasteModule {
	return &WasteModule{
		MaxCapacity:        WasteCapacity,
		ProductionRate:     spec.Rate,
		Type:               spec.Type,
		ProductionInterval: spec.Interval,
		DecayRate:          WasteDecayPerTick,
	}
}

// Due reports whether an emission interval has elapsed at tick, and if so
// marks the interval as consumed. It never fires twice within one interval.
func (w *WasteModule) Due(tick uint64) bool {
	if w.ProductionInterval == 0 || tick < w.LastProductionTick+w.ProductionInterval {
		return false
	}
	w.LastProductionTick = tick
	return true
}

// Emit adds amount and returns how much actually fit.
func (w *WasteModule) Emit(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	before := w.Amount
	w.Amount = lo.Clamp(w.Amount+amount, 0, w.MaxCapacity)
	return w.Amount - before
}

// Take removes up to amount and returns what was removed.
func (w *WasteModule) Take(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	taken := math.Min(amount, w.Amount)
	w.Amount = lo.Clamp(w.Amount-taken, 0, w.MaxCapacity)
	return taken
}

// Decay applies the per-tick natural reduction.
func (w *WasteModule) Decay() {
	w.Amount = lo.Clamp(w.Amount-w.DecayRate, 0, w.MaxCapacity)
}

// Set overwrites the amount (restore path), clamped.
func (w *WasteModule) Set(amount float64) {
	w.Amount = lo.Clamp(amount, 0, w.MaxCapacity)
}

// Penalty returns the production multiplier from local waste:
// 0 at capacity, 0.5 from 95, 0.8 from 80, else 1.
func (w *WasteModule) Penalty() float64 {
	return WastePenalty(w.Amount)
}

// WastePenalty maps a local waste amount to its production multiplier.
func WastePenalty(amount float64) float64 {
	switch {
	case amount >= WasteCapacity:
		return 0
	case amount >= WasteCriticalLevel:
		return 0.5
	case amount >= 80:
		return 0.8
	}
	return 1
}

// Critical reports whether the waste status overrides the building status.
func (w *WasteModule) Critical() bool {
	return w.Amount >= WasteCriticalLevel
}

// JobsModule is the set of citizens working in a building. Membership is
// idempotent and Count never exceeds MaxWorkers. Only the engine's job
// allocator may call Hire and Fire.
type JobsModule struct {
	workers    map[agents.CitizenID]struct{}
	MaxWorkers int
}

func newJobsModule(max int) *JobsModule {
	return &JobsModule{workers: make(map[agents.CitizenID]struct{}), MaxWorkers: max}
}

// Count returns the number of workers.
func (j *JobsModule) Count() int { return len(j.workers) }

// Has reports membership.
func (j *JobsModule) Has(id agents.CitizenID) bool {
	_, ok := j.workers[id]
	return ok
}

// Open reports whether a position is free.
func (j *JobsModule) Open() bool { return len(j.workers) < j.MaxWorkers }

// Hire adds id if there is room and it is not already a member.
func (j *JobsModule) Hire(id agents.CitizenID) bool {
	if j.Has(id) || !j.Open() {
		return false
	}
	j.workers[id] = struct{}{}
	return true
}

// Fire removes id, reporting whether it was a member.
func (j *JobsModule) Fire(id agents.CitizenID) bool {
	if !j.Has(id) {
		return false
	}
	delete(j.workers, id)
	return true
}

// Workers returns member ids in ascending order.
func (j *JobsModule) Workers() []agents.CitizenID {
	ids := lo.Keys(j.workers)
	slices.Sort(ids)
	return ids
}

// Excess returns how many workers exceed MaxWorkers.
func (j *JobsModule) Excess() int {
	return max(0, len(j.workers)-j.MaxWorkers)
}

// Development is the growth state of a zone.
type Development struct {
	Level          int    `json:"level"`
	NeglectTicks   uint64 `json:"neglect_ticks"`
	LastGrowthTick uint64 `json:"last_growth_tick"`
	residents      map[agents.CitizenID]struct{}
}

func newDevelopment() *Development {
	return &Development{residents: make(map[agents.CitizenID]struct{})}
}

// Capacity is how many residents the current level houses.
func (d *Development) Capacity() int { return ResidentsPerLevel * d.Level }

// AddResident records a citizen living here.
func (d *Development) AddResident(id agents.CitizenID) { d.residents[id] = struct{}{} }

// RemoveResident forgets a citizen.
func (d *Development) RemoveResident(id agents.CitizenID) { delete(d.residents, id) }

// Residents returns resident ids in ascending order.
func (d *Development) Residents() []agents.CitizenID {
	ids := lo.Keys(d.residents)
	slices.Sort(ids)
	return ids
}

// ResidentCount returns the number of residents.
func (d *Development) ResidentCount() int { return len(d.residents) }

// Job is one queued production run.
type Job struct {
	RecipeID  string  `json:"recipe_id"`
	Progress  float64 `json:"progress"`
	TotalTime float64 `json:"total_time"`
}

// ProductionState is a factory's queue.
type ProductionState struct {
	Queue    []Job `json:"queue"`
	Capacity int   `json:"capacity"`
}

// Full reports whether no more jobs fit.
func (p *ProductionState) Full() bool { return len(p.Queue) >= p.Capacity }

// RecyclingModule carries the manual boost timer.
type RecyclingModule struct {
	BoostUntil uint64 `json:"boost_until"`
}

// Boosted reports whether the boost is active at tick.
func (r *RecyclingModule) Boosted(tick uint64) bool { return tick < r.BoostUntil }

// Boost (re)starts the timer. Re-triggering resets rather than stacks.
func (r *RecyclingModule) Boost(tick uint64) {
	r.BoostUntil = tick + RecyclingBoostDuration
}

// Generator is an energy producer's output stage.
type Generator struct {
	PerLevel  float64 `json:"per_level"`
	Renewable bool    `json:"renewable"`
}

// Output returns energy produced this tick at level with a policy multiplier.
func (g *Generator) Output(level int, policyMul float64) float64 {
	return g.PerLevel * float64(level) * policyMul
}
