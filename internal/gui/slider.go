package gui

// sliderRange maps the last valid frame index to slider settings. A range of
// zero frames disables the slider and keeps max above min, which the slider
// needs to place its thumb. PageUp/PageDown move a twentieth of the video.
func sliderRange(last int) (top, pageStep float32, enabled bool) {
	if last <= 0 {
		return 1, 1, false
	}
	count := last + 1
	return float32(last), float32(max(1, count/20)), true
}
