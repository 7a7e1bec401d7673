package ir

// BindingRecord is the journal row written every time a unit is (re)bound.
// Slices are index-aligned with Keys.
type BindingRecord struct {
	ID         string   `json:"id"`
	Seq        int64    `json:"seq"`
	UnitID     string   `json:"unit_id"`
	EffectName string   `json:"effect_name"`
	ProgramID  string   `json:"program_id"`
	Keys       []string `json:"keys"`
	Values     []Value  `json:"values"`
	Counters   []int64  `json:"counters"`
	Levels     []int    `json:"levels"`
}

// FrameEvent is the journal row written for each use-site evaluated in a frame.
type FrameEvent struct {
	Seq        int64  `json:"seq"`
	EffectName string `json:"effect_name"`
	UnitID     string `json:"unit_id"`
	Outcome    string `json:"outcome"`
	ChangedKey string `json:"changed_key,omitempty"`
	ProgramID  string `json:"program_id"`
}
