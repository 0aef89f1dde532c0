// Collaborator interfaces the simulation calls out to: the renderer, the
// notification sink, and tick observers.
package engine

import (
	"log/slog"

	"github.com/talgya/circular-city/internal/buildings"
	"github.com/talgya/circular-city/internal/world"
)

// VariantKey selects a building's visual variant.
type VariantKey struct {
	Kind  buildings.Kind `json:"kind"`
	Level int            `json:"level"`
	Style string         `json:"style"`
}

// BaseVariant is the fallback variant of a kind.
func BaseVariant(kind buildings.Kind) VariantKey {
	return VariantKey{Kind: kind, Level: 1, Style: buildings.Styles[0]}
}

// ResolveVariant returns key if has reports it available, otherwise the
// kind's level-1 base style.
func ResolveVariant(key VariantKey, has func(VariantKey) bool) VariantKey {
	if has != nil && has(key) {
		return key
	}
	return BaseVariant(key.Kind)
}

func variantOf(b *buildings.Building) VariantKey {
	return VariantKey{Kind: b.Kind, Level: b.Level, Style: b.Style}
}

// Renderer is told when a building's visual state must be re-derived.
type Renderer interface {
	BuildingChanged(id world.BuildingID, key VariantKey)
	BuildingRemoved(id world.BuildingID)
}

type nopRenderer struct{}

func (nopRenderer) BuildingChanged(world.BuildingID, VariantKey) {}
func (nopRenderer) BuildingRemoved(world.BuildingID)             {}

// NoticeKind classifies user-facing notices.
type NoticeKind string

const (
	NoticeInsufficientFunds  NoticeKind = "insufficient-funds"
	NoticeInsufficientEnergy NoticeKind = "insufficient-energy"
	NoticeLevelUp            NoticeKind = "level-up"
	NoticeUnlock             NoticeKind = "unlock"
	NoticePollutionWarning   NoticeKind = "pollution-warning"
	NoticePollutionCrisis    NoticeKind = "pollution-crisis"
)

// Notice is a user-facing warning or announcement.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	Tick    uint64     `json:"tick"`
}

// Notifier receives notices.
type Notifier interface {
	Notify(n Notice)
}

// LogNotifier writes notices to slog.
type LogNotifier struct{}

// Notify logs n at warn level for problems and info otherwise.
func (LogNotifier) Notify(n Notice) {
	switch n.Kind {
	case NoticeInsufficientFunds, NoticeInsufficientEnergy, NoticePollutionWarning, NoticePollutionCrisis:
		slog.Warn("notice", "kind", n.Kind, "tick", n.Tick, "message", n.Message)
	default:
		slog.Info("notice", "kind", n.Kind, "tick", n.Tick, "message", n.Message)
	}
}

// TickObserver is called after every completed tick, outside the
// simulation lock. Observers read state through the snapshot accessors.
type TickObserver interface {
	TickCompleted(s *Simulation, tick uint64)
}

// ObserverFunc adapts a function to TickObserver.
type ObserverFunc func(s *Simulation, tick uint64)

// TickCompleted calls f.
func (f ObserverFunc) TickCompleted(s *Simulation, tick uint64) { f(s, tick) }
