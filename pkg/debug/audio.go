package debug

import (
	"fmt"
	"math"
)

// AudioAnalyzer inspects rendered audio for level, DC, clipping and
// non-finite samples.
type AudioAnalyzer struct {
	clippingThreshold float32
	dcThreshold       float32
	silenceThreshold  float32
}

// NewAudioAnalyzer creates an analyzer with default thresholds.
func NewAudioAnalyzer() *AudioAnalyzer {
	return &AudioAnalyzer{
		clippingThreshold: 0.99,
		dcThreshold:       0.01,
		silenceThreshold:  0.0001,
	}
}

// AnalysisResult contains the results of an analysis.
type AnalysisResult struct {
	Samples        int
	Peak           float32
	RMS            float32
	DC             float32
	ClippedSamples int
	NonFinite      int
	ZeroCrossings  int
	Silent         bool
}

// Clipping reports whether any sample reached the clipping threshold.
func (r AnalysisResult) Clipping() bool {
	return r.ClippedSamples > 0
}

// Analyze performs a one-shot analysis of buffer.
func (a *AudioAnalyzer) Analyze(buffer []float32) AnalysisResult {
	s := a.NewSummary()
	s.Add(buffer)
	return s.Result()
}

// Summary accumulates an analysis over consecutive blocks of one channel.
type Summary struct {
	a          *AudioAnalyzer
	result     AnalysisResult
	sum        float64
	sumSquares float64
	last       float32
	started    bool
}

// NewSummary starts a streaming analysis.
func (a *AudioAnalyzer) NewSummary() *Summary {
	return &Summary{a: a}
}

// Add feeds the next block.
func (s *Summary) Add(buffer []float32) {
	for _, sample := range buffer {
		if math.IsNaN(float64(sample)) || math.IsInf(float64(sample), 0) {
			s.result.NonFinite++
			continue
		}
		s.result.Samples++

		abs := sample
		if abs < 0 {
			abs = -abs
		}
		if abs > s.result.Peak {
			s.result.Peak = abs
		}
		if abs >= s.a.clippingThreshold {
			s.result.ClippedSamples++
		}

		s.sum += float64(sample)
		s.sumSquares += float64(sample) * float64(sample)

		if s.started && ((s.last < 0 && sample >= 0) || (s.last >= 0 && sample < 0)) {
			s.result.ZeroCrossings++
		}
		s.last = sample
		s.started = true
	}
}

// Result returns the analysis of everything added so far.
func (s *Summary) Result() AnalysisResult {
	r := s.result
	if r.Samples > 0 {
		r.RMS = float32(math.Sqrt(s.sumSquares / float64(r.Samples)))
		r.DC = float32(s.sum / float64(r.Samples))
	}
	r.Silent = r.RMS < s.a.silenceThreshold
	return r
}

// Issues lists the problems found in a result, prefixed with name.
func (a *AudioAnalyzer) Issues(r AnalysisResult, name string) []string {
	var issues []string
	if r.NonFinite > 0 {
		issues = append(issues, fmt.Sprintf("%s: %d non-finite samples", name, r.NonFinite))
	}
	if r.Clipping() {
		issues = append(issues, fmt.Sprintf("%s: clipping detected (%d samples)", name, r.ClippedSamples))
	}
	if math.Abs(float64(r.DC)) > float64(a.dcThreshold) {
		issues = append(issues, fmt.Sprintf("%s: DC offset detected (%.3f)", name, r.DC))
	}
	if r.Peak > 1.0 {
		issues = append(issues, fmt.Sprintf("%s: peak exceeds 1.0 (%.3f)", name, r.Peak))
	}
	return issues
}

// DBFS converts a linear amplitude to decibels relative to full scale.
func DBFS(amplitude float32) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(float64(amplitude))
}
