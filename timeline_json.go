package reel

import (
	"encoding/json"
	"fmt"
)

// UnmarshalJSON decodes a clip, giving absent fields their usable
// defaults instead of zero values: a clip serialized without opacity,
// speed, or volume plays fully opaque at unit speed and volume. Keeps
// hand-written and older timeline documents rendering sensibly.
func (c *Clip) UnmarshalJSON(data []byte) error {
	type alias Clip
	tmp := alias{Opacity: 1, Speed: 1, Volume: 1}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*c = Clip(tmp)
	return nil
}

// EncodeTimeline serializes a timeline to its JSON document form, the
// format uploaded to a delegated render server and accepted back by
// DecodeTimeline.
func EncodeTimeline(tl *Timeline) ([]byte, error) {
	data, err := json.Marshal(tl)
	if err != nil {
		return nil, fmt.Errorf("encode timeline: %w", err)
	}
	return data, nil
}

// DecodeTimeline parses a timeline document and normalizes it: clips
// sorted by start, zero speeds repaired. The result is ready for
// ResolveLayers.
func DecodeTimeline(data []byte) (*Timeline, error) {
	var tl Timeline
	if err := json.Unmarshal(data, &tl); err != nil {
		return nil, fmt.Errorf("decode timeline: %w", err)
	}
	tl.Normalize()
	return &tl, nil
}
