package media

import (
	"fmt"
	"strconv"
	"strings"
)

// crossfadeOffsets computes the xfade start offset for each of the n-1
// transitions between n segments. Each transition starts at the cumulative
// segment duration minus the overlap already consumed by prior transitions,
// so transitions land exactly on segment boundaries.
func crossfadeOffsets(n int, segmentDur, transitionDur float64) []float64 {
	if n < 2 {
		return nil
	}
	offsets := make([]float64, n-1)
	for i := range offsets {
		if i == 0 {
			offsets[i] = segmentDur - transitionDur
		} else {
			offsets[i] = segmentDur*float64(i+1) - transitionDur*float64(i+1)
		}
	}
	return offsets
}

// buildCrossfadeFilter builds the filter_complex string for stitching n
// segments with crossfade video transitions and concatenated audio.
// It returns the filter plus the output labels to map.
//
// Example for 3 segments of 8s with 0.5s transitions:
//
//	[0:v][1:v]xfade=transition=fade:duration=0.5:offset=7.5[v1];
//	[v1][2:v]xfade=transition=fade:duration=0.5:offset=15[v2];
//	[0:a][1:a][2:a]concat=n=3:v=0:a=1[outa]
func buildCrossfadeFilter(n int, segmentDur, transitionDur float64) (filter, videoLabel, audioLabel string) {
	offsets := crossfadeOffsets(n, segmentDur, transitionDur)

	var chains []string
	current := "[0:v]"
	for i, offset := range offsets {
		out := fmt.Sprintf("[v%d]", i+1)
		chains = append(chains, fmt.Sprintf(
			"%s[%d:v]xfade=transition=fade:duration=%s:offset=%s%s",
			current, i+1, formatSeconds(transitionDur), formatSeconds(offset), out,
		))
		current = out
	}

	var audioInputs strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&audioInputs, "[%d:a]", i)
	}
	audio := fmt.Sprintf("%sconcat=n=%d:v=0:a=1[outa]", audioInputs.String(), n)

	filter = strings.Join(append(chains, audio), ";")
	return filter, current, "[outa]"
}

// formatSeconds renders a duration value without trailing zeros.
func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
