package looper

// LoopPair is a candidate loop. Frame fields index the trimmed analysis
// signal; LoopStart and LoopEnd are samples of the untrimmed playback
// signal and are only set on pairs returned by FindBestLoopPoints.
type LoopPair struct {
	LoopStartFrame     int     `json:"loop_start_frame"`
	LoopEndFrame       int     `json:"loop_end_frame"`
	NoteDistance       float64 `json:"note_distance"`
	LoudnessDifference float64 `json:"loudness_difference"`
	Score              float64 `json:"score"`

	LoopStart int `json:"loop_start"`
	LoopEnd   int `json:"loop_end"`
}

// Frames returns the loop length in analysis frames
func (p *LoopPair) Frames() int {
	return p.LoopEndFrame - p.LoopStartFrame
}

// Samples returns the loop length in playback samples
func (p *LoopPair) Samples() int {
	return p.LoopEnd - p.LoopStart
}
