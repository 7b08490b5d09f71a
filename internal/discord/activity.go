package discord

import "slices"

// ///////////////////////////////////////////////
// Data Types
// ///////////////////////////////////////////////

// Button represents a clickable button in a Rich Presence activity.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Timestamps holds the elapsed/remaining timer bounds for an activity, in
// Unix seconds.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

// Assets holds image keys and tooltip text for an activity.
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// Activity is a Rich Presence activity as announced to the daemon. It is a
// value type: two activities are the same announcement when [Activity.Equal]
// reports true, regardless of where they were built.
type Activity struct {
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
	Buttons    []Button    `json:"buttons,omitempty"`
}

// Equal reports whether a and b describe the same presence. Optional sections
// compare by content; a nil section only equals another nil section. A nil and
// an empty button list are equal.
func (a Activity) Equal(b Activity) bool {
	if a.Details != b.Details || a.State != b.State {
		return false
	}
	if !equalPtr(a.Timestamps, b.Timestamps) || !equalPtr(a.Assets, b.Assets) {
		return false
	}
	return slices.Equal(a.Buttons, b.Buttons)
}

// Clone returns a deep copy of a that shares no memory with it.
func (a Activity) Clone() Activity {
	c := Activity{Details: a.Details, State: a.State}
	if a.Timestamps != nil {
		ts := *a.Timestamps
		c.Timestamps = &ts
	}
	if a.Assets != nil {
		as := *a.Assets
		c.Assets = &as
	}
	if len(a.Buttons) > 0 {
		c.Buttons = slices.Clone(a.Buttons)
	}
	return c
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
