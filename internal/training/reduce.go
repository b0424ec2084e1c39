package training

import (
	"math"
	"strings"
	"time"

	"github.com/claude/trainctx/internal/models"
)

const (
	// DefaultScanLimit is how many of the most recent workouts are mined for
	// maxes, pain and RPE. Older sessions only appear as summaries.
	DefaultScanLimit = 20

	// recentPainDays is the window for PainRecord.RecentCount.
	recentPainDays = 30
)

// MaxLift is the best set seen for an exercise by estimated one-rep max.
type MaxLift struct {
	Weight float64 `json:"weight"`
	Reps   int     `json:"reps"`
	E1RM   float64 `json:"e1rm"`
}

// PainRecord summarizes pain-flagged sets for an exercise.
type PainRecord struct {
	Count       int     `json:"count"`
	MaxPain     float64 `json:"maxPain"`
	LastDaysAgo *int    `json:"lastDaysAgo"`
	RecentCount int     `json:"recentCount"`
}

// ExerciseVolume is the performed work for an exercise in the scanned window.
type ExerciseVolume struct {
	Sets    int     `json:"sets"`
	Reps    int     `json:"reps"`
	Tonnage float64 `json:"tonnage"`
}

// Aggregates is the Set Reducer output, keyed by exercise name.
type Aggregates struct {
	MaxLifts    map[string]MaxLift        `json:"maxLifts"`
	PainHistory map[string]PainRecord     `json:"painHistory"`
	RPEAverages map[string]float64        `json:"rpeAverages"`
	RPESamples  map[string]int            `json:"rpeSamples"`
	Volume      map[string]ExerciseVolume `json:"volume"`
}

// ReduceOptions tunes the reducer.
type ReduceOptions struct {
	// ScanLimit caps how many workouts are scanned. Zero means DefaultScanLimit.
	ScanLimit int
	// NormalizeNames case-folds and trims exercise names before keying.
	NormalizeNames bool
}

type rpeAccumulator struct {
	sum float64
	n   int
}

// Reduce walks every set of the most recent workouts once and builds the
// per-exercise max-lift, pain and RPE aggregates. workouts must be ordered
// most recent first, as returned by Normalize. Planned-only sets and
// exercises without a name are skipped; Reduce never fails.
func Reduce(workouts []models.Workout, now time.Time, opts ReduceOptions) Aggregates {
	limit := opts.ScanLimit
	if limit <= 0 {
		limit = DefaultScanLimit
	}
	if len(workouts) > limit {
		workouts = workouts[:limit]
	}

	agg := Aggregates{
		MaxLifts:    make(map[string]MaxLift),
		PainHistory: make(map[string]PainRecord),
		RPEAverages: make(map[string]float64),
		RPESamples:  make(map[string]int),
		Volume:      make(map[string]ExerciseVolume),
	}
	rpe := make(map[string]*rpeAccumulator)
	today := dayStart(now)

	for _, w := range workouts {
		daysAgo, hasDays := daysSince(w, today)

		for _, ex := range w.Exercises {
			name := exerciseKey(ex.Name, opts.NormalizeNames)
			if name == "" {
				continue
			}

			for _, set := range ex.Sets {
				if set == nil || set.Planned() {
					continue
				}

				weight, reps := effectiveLoad(set)
				trackVolume(agg.Volume, name, weight, reps)

				if e1rm, ok := EstimateOneRepMax(weight, reps); ok {
					if cur, exists := agg.MaxLifts[name]; !exists || e1rm > cur.E1RM {
						agg.MaxLifts[name] = MaxLift{Weight: weight, Reps: reps, E1RM: e1rm}
					}
				}

				effort := set.Effort()
				if effort.PainLevel > 0 {
					p := agg.PainHistory[name]
					p.Count++
					p.MaxPain = math.Max(p.MaxPain, effort.PainLevel)
					if hasDays {
						if p.LastDaysAgo == nil || daysAgo < *p.LastDaysAgo {
							d := daysAgo
							p.LastDaysAgo = &d
						}
						if daysAgo <= recentPainDays {
							p.RecentCount++
						}
					}
					agg.PainHistory[name] = p
				}

				if effort.RPE > 0 {
					acc, ok := rpe[name]
					if !ok {
						acc = &rpeAccumulator{}
						rpe[name] = acc
					}
					acc.sum += effort.RPE
					acc.n++
				}
			}
		}
	}

	for name, acc := range rpe {
		agg.RPEAverages[name] = roundTenth(acc.sum / float64(acc.n))
		agg.RPESamples[name] = acc.n
	}
	return agg
}

// effectiveLoad resolves weight and reps as actual, else prescribed, else 0.
func effectiveLoad(set models.Set) (weight float64, reps int) {
	switch s := set.(type) {
	case models.WeightSet:
		return parseLeadingFloat(firstNonEmpty(s.ActualWeight, s.PrescribedWeight)),
			parseLeadingInt(firstNonEmpty(s.ActualReps, s.PrescribedReps))
	case models.BodyweightSet:
		return 0, parseLeadingInt(firstNonEmpty(s.ActualReps, s.PrescribedReps))
	default:
		return 0, 0
	}
}

func trackVolume(volume map[string]ExerciseVolume, name string, weight float64, reps int) {
	v := volume[name]
	v.Sets++
	if reps > 0 {
		v.Reps += reps
		if weight > 0 {
			v.Tonnage = roundTenth(v.Tonnage + weight*float64(reps))
		}
	}
	volume[name] = v
}

func exerciseKey(name string, normalize bool) string {
	if strings.TrimSpace(name) == "" {
		return ""
	}
	if normalize {
		return strings.ToLower(strings.Join(strings.Fields(name), " "))
	}
	return name
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysSince returns whole calendar days between the workout date and today.
// Workouts without a readable date have no age.
func daysSince(w models.Workout, today time.Time) (int, bool) {
	if !w.DateValid {
		return 0, false
	}
	d, err := time.Parse(models.DateKeyLayout, w.Date)
	if err != nil {
		return 0, false
	}
	days := int(today.Sub(d).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return days, true
}
