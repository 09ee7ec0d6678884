// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package plants holds the static growth table and the growth-time formula.
package plants

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ManuGH/agribot/internal/ports"
)

// ErrUnknownPlant is returned when a name does not match any table entry.
var ErrUnknownPlant = errors.New("unknown plant")

// Plant describes one crop. Durations are in whole minutes.
type Plant struct {
	Name        string
	StemMinutes int
	// FruitMinutes is the growth time of each additional fruit. Zero means
	// the plant yields a single fruit together with the stem.
	FruitMinutes int
	Fruits       int
}

var table = []Plant{
	{"Concombre", 80, 0, 1},
	{"Oignons", 40, 0, 1},
	{"Laitue", 10, 0, 1},
	{"Pois", 480, 80, 3},
	{"Tomates", 60, 20, 2},
	{"Poivron", 120, 120, 4},
	{"Zucchini", 320, 0, 1},
	{"Ail", 120, 0, 1},
	{"Glycine glacée", 20, 0, 1},
	{"Wazabi", 600, 0, 1},
	{"Courgette", 1200, 0, 1},
	{"Piment de cayenne", 240, 0, 1},
	{"Vixen", 60, 0, 1},
	{"Lune Akari", 40, 45, 1},
	{"Nénuphar", 300, 120, 3},
	{"Chou", 240, 160, 3},
	{"Plume de lave", 120, 240, 4},
	{"Fleur du brasier", 40, 0, 1},
	{"Brocoli", 120, 80, 3},
	{"Iris Pyrobrase", 1440, 0, 1},
	{"Vénus attrape-mouche", 300, 60, 1},
	{"Graine de l'enfer", 190, 0, 1},
	{"Âme gelée", 80, 180, 5},
	{"Pommes des ténèbres", 360, 180, 4},
	{"Cœur du vide", 960, 0, 1},
	{"Orchidée Abyssale", 360, 100, 3},
}

var byKey = func() map[string]Plant {
	m := make(map[string]Plant, len(table))
	for _, p := range table {
		m[normalize(p.Name)] = p
	}
	return m
}()

// normalize folds case and strips diacritics so "Ame gelee" finds "Âme gelée".
func normalize(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, strings.TrimSpace(name))
	if err != nil {
		s = name
	}
	s = strings.ReplaceAll(s, "œ", "oe")
	s = strings.ReplaceAll(s, "Œ", "OE")
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// Lookup finds a plant by name, ignoring case and accents.
func Lookup(name string) (Plant, error) {
	p, ok := byKey[normalize(name)]
	if !ok {
		return Plant{}, fmt.Errorf("%w: %q", ErrUnknownPlant, name)
	}
	return p, nil
}

// Names returns all plant names sorted alphabetically.
func Names() []string {
	out := make([]string, 0, len(table))
	for _, p := range table {
		out = append(out, p.Name)
	}
	sort.Strings(out)
	return out
}

// GrowthMinutes returns the total growth time with a percentage boost applied,
// rounded up to the next minute. Negative boosts count as zero.
//
// Multi-fruit plants only get the boost on the stem. Single-fruit plants get
// it on stem and fruit together.
func (p Plant) GrowthMinutes(boost float64) int {
	boost = math.Max(0, boost)
	div := 1 + boost/100
	var total float64
	if p.Fruits > 1 {
		total = float64(p.StemMinutes)/div + float64(p.Fruits*p.FruitMinutes)
	} else {
		total = float64(p.StemMinutes+p.FruitMinutes) / div
	}
	return int(math.Ceil(total - 1e-9))
}

// GrowthTime is GrowthMinutes as a duration.
func (p Plant) GrowthTime(boost float64) time.Duration {
	return time.Duration(p.GrowthMinutes(boost)) * time.Minute
}

// HarvestClick returns the click used to harvest: stem+fruit plants keep the
// stem and need a secondary click.
func (p Plant) HarvestClick() ports.ClickKind {
	if p.FruitMinutes > 0 {
		return ports.ClickSecondary
	}
	return ports.ClickPrimary
}

// HarvestClickFor resolves the harvest click by name. Unknown plants use the
// secondary click, which never destroys a stem.
func HarvestClickFor(name string) ports.ClickKind {
	p, err := Lookup(name)
	if err != nil {
		return ports.ClickSecondary
	}
	return p.HarvestClick()
}

// FormatMinutes renders minutes as "1h 20m", "2h" or "40m".
func FormatMinutes(minutes int) string {
	h, m := minutes/60, minutes%60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}
