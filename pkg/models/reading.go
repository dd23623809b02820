package models

import "math"

// AcousticReading holds the voice-acoustic indicators of one recording.
// Metrics that cannot be computed are nil and encode as JSON null.
type AcousticReading struct {
	Jitter      *float64 `json:"jitter" doc:"Mean absolute period difference over mean period, percent"`
	Shimmer     *float64 `json:"shimmer" doc:"Mean absolute amplitude difference over mean amplitude, percent"`
	MeanF0      *float64 `json:"mean_f0" doc:"Mean fundamental frequency of voiced frames, Hz"`
	HNR         *float64 `json:"hnr" doc:"Mean harmonics-to-noise ratio, dB"`
	VoicePeriod *float64 `json:"voice_period" doc:"Reciprocal of mean_f0, seconds"`
	VoicedRatio *float64 `json:"voiced_ratio" doc:"Voiced frames over all frames, percent"`
	Formants    Formants `json:"formants" doc:"Formant frequencies at the middle of the recording"`
}

// Formants holds the first three formant frequencies in Hz.
type Formants struct {
	F1 *float64 `json:"F1"`
	F2 *float64 `json:"F2"`
	F3 *float64 `json:"F3"`
}

// Metric returns v as an optional metric. NaN and infinities are undefined.
func Metric(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
