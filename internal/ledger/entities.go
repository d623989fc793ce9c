package ledger

import (
	"strings"
	"time"
)

// Analysis is a pending (or applied) workout analysis. Impact is the
// normalized delta map; it is frozen once Applied is set.
type Analysis struct {
	ID        int                `json:"id"`
	WorkoutID int                `json:"workout_id"`
	UserID    int                `json:"user_id"`
	Payload   map[string]any     `json:"analysis_json"`
	Impact    map[string]float64 `json:"athlete_impact"`
	Applied   bool               `json:"applied"`
	AppliedAt *time.Time         `json:"applied_at"`
	CreatedAt time.Time          `json:"created_at"`
}

type Capacity struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type CapacityMeasurement struct {
	UserID     int       `json:"user_id"`
	CapacityID int       `json:"capacity_id"`
	Value      float64   `json:"value"`
	MeasuredAt time.Time `json:"measured_at"`
}

type BiometricMeasurement struct {
	UserID            int       `json:"user_id"`
	MeasuredAt        time.Time `json:"measured_at"`
	FatigueScore      *float64  `json:"fatigue_score,omitempty"`
	HRRest            *float64  `json:"hr_rest,omitempty"`
	HRAvg             *float64  `json:"hr_avg,omitempty"`
	HRMax             *float64  `json:"hr_max,omitempty"`
	VO2Est            *float64  `json:"vo2_est,omitempty"`
	HRV               *float64  `json:"hrv,omitempty"`
	SleepHours        *float64  `json:"sleep_hours,omitempty"`
	RecoveryTimeHours *float64  `json:"recovery_time_hours,omitempty"`
}

type SkillTotals struct {
	Reps    float64 `json:"total_reps"`
	Kg      float64 `json:"total_kg"`
	Meters  float64 `json:"total_meters"`
	Cals    float64 `json:"total_cals"`
	Seconds float64 `json:"total_seconds"`
}

func (t SkillTotals) IsZero() bool {
	return t.Reps == 0 && t.Kg == 0 && t.Meters == 0 && t.Cals == 0 && t.Seconds == 0
}

func (t SkillTotals) Add(o SkillTotals) SkillTotals {
	return SkillTotals{
		Reps:    t.Reps + o.Reps,
		Kg:      t.Kg + o.Kg,
		Meters:  t.Meters + o.Meters,
		Cals:    t.Cals + o.Cals,
		Seconds: t.Seconds + o.Seconds,
	}
}

type SkillAggregate struct {
	UserID        int         `json:"user_id"`
	MovementID    int         `json:"movement_id"`
	SkillScore    float64     `json:"skill_score"`
	Totals        SkillTotals `json:"totals"`
	PrimaryMetric string      `json:"primary_metric"`
	MeasuredAt    time.Time   `json:"measured_at"`
}

type RecordType string

const (
	RecordTime     RecordType = "time"
	RecordBestTime RecordType = "BEST_TIME"
	RecordBestPace RecordType = "BEST_PACE"
)

// LowerIsBetter reports whether smaller values of t are improvements.
func (t RecordType) LowerIsBetter() bool {
	switch strings.ToLower(string(t)) {
	case "time", "best_time", "best_pace":
		return true
	}
	return false
}

type PersonalRecord struct {
	UserID     int        `json:"user_id"`
	MovementID int        `json:"movement_id"`
	Type       RecordType `json:"pr_type"`
	Value      float64    `json:"value"`
	Unit       string     `json:"unit"`
	AchievedAt time.Time  `json:"achieved_at"`
}

type TrainingLoadDay struct {
	ID          int       `json:"id"`
	UserID      int       `json:"user_id"`
	LoadDate    time.Time `json:"load_date"`
	AcuteLoad   float64   `json:"acute_load"`
	ChronicLoad float64   `json:"chronic_load"`
	LoadRatio   *float64  `json:"load_ratio"`
	Notes       string    `json:"notes,omitempty"`
}

type Execution struct {
	ID               int            `json:"id"`
	WorkoutID        int            `json:"workout_id"`
	UserID           int            `json:"user_id"`
	ExecutedAt       time.Time      `json:"executed_at"`
	TotalTimeSeconds *float64       `json:"total_time_seconds,omitempty"`
	Raw              map[string]any `json:"raw_json,omitempty"`
	Notes            string         `json:"notes,omitempty"`
}

type ExecutionBlock struct {
	ExecutionID    int     `json:"execution_id"`
	WorkoutBlockID int     `json:"workout_block_id"`
	TimeSeconds    float64 `json:"time_seconds"`
}

type Result struct {
	ID          int       `json:"id"`
	WorkoutID   int       `json:"workout_id"`
	UserID      int       `json:"user_id"`
	TimeSeconds float64   `json:"time_seconds"`
	Difficulty  *float64  `json:"difficulty,omitempty"`
	Rating      *float64  `json:"rating,omitempty"`
	Comment     string    `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type CareerState struct {
	UserID      int       `json:"user_id"`
	XPTotal     int       `json:"xp_total"`
	Level       int       `json:"level"`
	ProgressPct float64   `json:"progress_pct"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Achievement struct {
	ID          int    `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	XPReward    int    `json:"xp_reward"`
	IsActive    bool   `json:"is_active"`
}

type MissionCondition struct {
	Type   string `json:"type" yaml:"type"`
	Target int    `json:"target" yaml:"target"`
	Window string `json:"window" yaml:"window"`
}

type Mission struct {
	ID          int              `json:"id"`
	Type        string           `json:"type"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	XPReward    int              `json:"xp_reward"`
	Condition   MissionCondition `json:"condition_json"`
	IsActive    bool             `json:"is_active"`
}

type MissionStatus string

const (
	MissionAssigned   MissionStatus = "assigned"
	MissionInProgress MissionStatus = "in_progress"
	MissionCompleted  MissionStatus = "completed"
	MissionExpired    MissionStatus = "expired"
)

// Closed reports whether the mission can no longer progress.
func (s MissionStatus) Closed() bool {
	return s == MissionCompleted || s == MissionExpired
}

type UserMission struct {
	ID            int           `json:"id"`
	UserID        int           `json:"user_id"`
	Mission       Mission       `json:"mission"`
	Status        MissionStatus `json:"status"`
	ProgressValue int           `json:"progress_value"`
	AssignedAt    time.Time     `json:"assigned_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
