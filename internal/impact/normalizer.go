package impact

import (
	"sort"
	"strings"

	"github.com/2beens/wodcareer/internal/profile"
	"github.com/2beens/wodcareer/internal/workouts"

	log "github.com/sirupsen/logrus"
)

const (
	KeyFatigue     = "fatigue_score"
	KeyAcuteLoad   = "acute_load"
	KeyChronicLoad = "chronic_load"
	KeyLoadRatio   = "load_ratio"

	skillKeyPrefix = "skill_"

	DefaultFatigue        = 10.0
	fallbackCapacityValue = 5.0
	fatigueToLoad         = 8.0
	chronicShare          = 0.65
	minChronic            = 1.0
)

func isReserved(key string) bool {
	switch key {
	case KeyFatigue, KeyAcuteLoad, KeyChronicLoad, KeyLoadRatio:
		return true
	}
	return false
}

type Kind int

const (
	KindCapacity Kind = iota + 1
	KindFatigue
	KindLoad
	KindSkill
)

func (k Kind) String() string {
	switch k {
	case KindCapacity:
		return "capacity"
	case KindFatigue:
		return "fatigue"
	case KindLoad:
		return "load"
	case KindSkill:
		return "skill"
	}
	return "unknown"
}

// Delta is one typed effect of a workout on the athlete profile.
type Delta interface {
	Kind() Kind
}

type CapacityDelta struct {
	Code  string
	Value float64
}

type FatigueDelta struct {
	Value float64
}

type LoadDelta struct {
	Acute   float64
	Chronic float64
	Ratio   *float64
}

// SkillDelta is the exposure a workout gives to one movement.
type SkillDelta struct {
	profile.Exposure
}

func (CapacityDelta) Kind() Kind { return KindCapacity }
func (FatigueDelta) Kind() Kind  { return KindFatigue }
func (LoadDelta) Kind() Kind     { return KindLoad }
func (SkillDelta) Kind() Kind    { return KindSkill }

// MappingGap is an impact key no capacity matched. It is reported and left
// out of the applied map.
type MappingGap struct {
	Key   string
	Value float64
}

type Input struct {
	// Incoming are caller overrides, they win over Current.
	Incoming map[string]any
	// Current is the impact already stored on the analysis.
	Current  map[string]float64
	Analysis map[string]any
	Workout  *workouts.Workout
}

type Normalized struct {
	// Map is the canonical delta map, capacity keys use stored codes.
	Map        map[string]float64
	Capacities []CapacityDelta
	Fatigue    *FatigueDelta
	Load       LoadDelta
	Skills     []SkillDelta
	Gaps       []MappingGap
}

func (n *Normalized) Empty() bool {
	return len(n.Map) == 0
}

// Deltas lists every typed delta: capacities first, then fatigue, load and
// skill exposures.
func (n *Normalized) Deltas() []Delta {
	var deltas []Delta
	for _, c := range n.Capacities {
		deltas = append(deltas, c)
	}
	if n.Fatigue != nil {
		deltas = append(deltas, *n.Fatigue)
	}
	deltas = append(deltas, n.Load)
	for _, s := range n.Skills {
		deltas = append(deltas, s)
	}
	return deltas
}

// ScaleFatigue multiplies the fatigue delta, keeping Map in sync.
func (n *Normalized) ScaleFatigue(factor float64) {
	if n.Fatigue == nil {
		return
	}
	n.Fatigue.Value *= factor
	n.Map[KeyFatigue] = n.Fatigue.Value
}

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

func (nz *Normalizer) Normalize(in Input) *Normalized {
	out := &Normalized{}

	current := make(map[string]any, len(in.Current))
	for k, v := range in.Current {
		current[k] = v
	}
	merged, gaps := canonicalize(current)
	incoming, incomingGaps := canonicalize(in.Incoming)
	for k, v := range incoming {
		merged[k] = v
	}
	out.Gaps = mergeGaps(gaps, incomingGaps)

	if !hasCapacity(merged) {
		for code, v := range focusCapacities(in.Analysis) {
			setDefault(merged, code, v)
		}
		if in.Workout != nil {
			for _, link := range in.Workout.Capacities {
				if code, ok := CanonicalCapacity(link.Capacity); ok {
					setDefault(merged, code, link.Value)
				}
			}
		}
	}

	if _, ok := merged[KeyFatigue]; !ok {
		if f, ok := ParseNumber(in.Analysis[KeyFatigue]); ok {
			merged[KeyFatigue] = f
		} else {
			merged[KeyFatigue] = DefaultFatigue
		}
	}

	if !hasCapacity(merged) {
		domain := ""
		if in.Workout != nil {
			domain = in.Workout.Domain
		}
		merged[domainCapacity(domain)] = fallbackCapacityValue
	}

	if _, ok := merged[KeyAcuteLoad]; !ok {
		merged[KeyAcuteLoad] = sessionLoad(in, merged[KeyFatigue])
	}
	if _, ok := merged[KeyChronicLoad]; !ok {
		merged[KeyChronicLoad] = max(minChronic, profile.Round(merged[KeyAcuteLoad]*chronicShare, 2))
	}
	if _, ok := merged[KeyLoadRatio]; !ok && merged[KeyChronicLoad] > 0 {
		merged[KeyLoadRatio] = profile.Round(merged[KeyAcuteLoad]/merged[KeyChronicLoad], 2)
	}

	out.Map = merged
	out.fillDeltas(in.Workout)

	for _, g := range out.Gaps {
		log.Warnf("[impact] capacity key without mapping: %s=%v", g.Key, g.Value)
	}
	return out
}

func (n *Normalized) fillDeltas(w *workouts.Workout) {
	keys := make([]string, 0, len(n.Map))
	for k := range n.Map {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if isReserved(k) || strings.HasPrefix(k, skillKeyPrefix) {
			continue
		}
		n.Capacities = append(n.Capacities, CapacityDelta{Code: k, Value: n.Map[k]})
	}

	if f, ok := n.Map[KeyFatigue]; ok {
		n.Fatigue = &FatigueDelta{Value: f}
	}

	n.Load = LoadDelta{
		Acute:   n.Map[KeyAcuteLoad],
		Chronic: n.Map[KeyChronicLoad],
	}
	if r, ok := n.Map[KeyLoadRatio]; ok {
		n.Load.Ratio = &r
	}

	if w != nil {
		for _, e := range profile.Exposures(w) {
			n.Skills = append(n.Skills, SkillDelta{Exposure: e})
		}
	}
}

// canonicalize coerces values to floats and translates capacity keys.
// Aliases of the same capacity are summed.
func canonicalize(raw map[string]any) (map[string]float64, []MappingGap) {
	out := map[string]float64{}
	var gaps []MappingGap
	for key, v := range raw {
		f, ok := ParseNumber(v)
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		lower := strings.ToLower(key)
		if isReserved(lower) || strings.HasPrefix(lower, skillKeyPrefix) {
			out[lower] = f
			continue
		}
		code, ok := CanonicalCapacity(key)
		if !ok {
			gaps = append(gaps, MappingGap{Key: key, Value: f})
			continue
		}
		out[code] += f
	}
	return out, gaps
}

func mergeGaps(a, b []MappingGap) []MappingGap {
	gaps := append(a, b...)
	sort.Slice(gaps, func(i, j int) bool {
		return gaps[i].Key < gaps[j].Key
	})
	return gaps
}

func hasCapacity(m map[string]float64) bool {
	for k := range m {
		if isReserved(k) || strings.HasPrefix(k, skillKeyPrefix) {
			continue
		}
		return true
	}
	return false
}

func setDefault(m map[string]float64, key string, v float64) {
	if _, ok := m[key]; !ok {
		m[key] = v
	}
}

// focusCapacities reads the analysis capacity_focus, either a list of
// {capacity, emphasis} objects or a capacity->emphasis object.
func focusCapacities(analysis map[string]any) map[string]float64 {
	out := map[string]float64{}
	add := func(name any, emphasis any) {
		label, ok := name.(string)
		if !ok {
			return
		}
		code, ok := CanonicalCapacity(label)
		if !ok {
			return
		}
		setDefault(out, code, ParseEmphasis(emphasis))
	}

	switch focus := analysis["capacity_focus"].(type) {
	case []any:
		for _, entry := range focus {
			if m, ok := entry.(map[string]any); ok {
				add(m["capacity"], m["emphasis"])
			}
		}
	case []map[string]any:
		for _, m := range focus {
			add(m["capacity"], m["emphasis"])
		}
	case map[string]any:
		for name, emphasis := range focus {
			add(name, emphasis)
		}
	}
	return out
}

// sessionLoad is the acute load default: the analysis session load, then
// the workout's declared numeric session load, else fatigue*8.
func sessionLoad(in Input, fatigue float64) float64 {
	if v, ok := ParseNumber(in.Analysis["session_load"]); ok {
		return v
	}
	if in.Workout != nil && in.Workout.SessionLoad != "" {
		if v, ok := parseStrictNumber(in.Workout.SessionLoad); ok {
			return v
		}
	}
	return fatigue * fatigueToLoad
}

// parseStrictNumber only accepts plain numbers, so labels like "zone 3"
// are not read as a load of 3.
func parseStrictNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	for _, r := range s {
		if !(r >= '0' && r <= '9') && r != '.' && r != ',' && r != '-' {
			return 0, false
		}
	}
	return parseNumericString(s)
}
