package domain

import "strings"

// ComposePrompt appends the option suffixes to the user's prompt.
func ComposePrompt(prompt string, opts Options) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(prompt))
	if opts.NoMusic {
		b.WriteString(" No music.")
	}
	if opts.NoCrowd {
		b.WriteString(" No crowd.")
	}
	if opts.NoCommentators {
		b.WriteString(" No commentators.")
	}
	if opts.LikeAnime {
		b.WriteString(" Filmed like anime.")
	}
	return b.String()
}

// EstimateCost returns the provider credit estimate in USD.
func EstimateCost(model string, duration int) float64 {
	if model == ModelSora2 {
		return float64(duration) / 10 * 0.15
	}
	return float64(duration) * 0.05
}

// Orientation is the stored default framing for new jobs.
type Orientation string

const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

func (o Orientation) Valid() bool {
	return o == OrientationPortrait || o == OrientationLandscape
}

// AspectRatio maps the orientation to the aspect ratio used when a request omits one.
func (o Orientation) AspectRatio() string {
	if o == OrientationLandscape {
		return "16:9"
	}
	return "9:16"
}
