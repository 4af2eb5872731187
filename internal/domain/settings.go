package domain

// Settings is a per-session map of capability flags.
// Unknown keys are preserved so newer clients can carry their own flags.
type Settings map[string]bool

const (
	SettingScreenShare = "screen_share"
	SettingRecording   = "recording"
	SettingChat        = "chat"
	SettingWhiteboard  = "whiteboard"
)

func DefaultSettings() Settings {
	return Settings{
		SettingScreenShare: true,
		SettingRecording:   true,
		SettingChat:        true,
		SettingWhiteboard:  true,
	}
}

func (s Settings) Clone() Settings {
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge overwrites per key and returns the receiver for chaining.
// Last writer wins; nil patches are a no-op.
func (s Settings) Merge(patch Settings) Settings {
	for k, v := range patch {
		s[k] = v
	}
	return s
}

func (s Settings) Allows(key string) bool {
	v, ok := s[key]
	return !ok || v
}
