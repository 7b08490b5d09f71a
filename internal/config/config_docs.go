package config

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc documents one config section or field in the generated
// config.default.toml.
type FieldDoc struct {
	// Comment is shown above the section header or field.
	Comment string

	// Alternatives are shown as commented-out lines below the active value.
	Alternatives []string
}

// ///////////////////////////////////////////////
// Field Documentation Map
// ///////////////////////////////////////////////

// ConfigDocs maps TOML paths ("relay", "relay.pattern") to their docs. The
// genconfig tool reads it to annotate config.default.toml.
var ConfigDocs = map[string]FieldDoc{
	// ── Discord ──────────────────────────────────────────────────
	"discord.client_id": {
		Comment: "Discord application ID sent in the IPC handshake.\nUse your own application to show custom image assets.",
	},

	// ── Relay ────────────────────────────────────────────────────
	"relay": {
		Comment: "Activity files are JSON presence documents written by editors and\nscripts (see \"cord publish\"). The newest matching file is shown.",
	},
	"relay.activity_dir": {
		Comment: "Directory scanned for activity files. Empty means <data dir>/activity.",
	},
	"relay.pattern": {
		Comment: "Glob an activity file name must match (doublestar syntax).",
		Alternatives: []string{
			`pattern = "activity.{nvim,code}*.json"`,
		},
	},
	"relay.stale_minutes": {
		Comment: "Ignore activity files not modified for this many minutes (0 = never).",
	},
	"relay.poll_interval_seconds": {
		Comment: "Rescan interval when file events are missed or unavailable.",
	},
	"relay.reconnect_interval_seconds": {
		Comment: "Interval between attempts to reach the Discord client.",
	},

	// ── Log ──────────────────────────────────────────────────────
	"log.level": {
		Comment: "Minimum log level. Options: \"trace\", \"debug\", \"info\", \"warn\", \"error\"",
		Alternatives: []string{
			`level = "debug"`,
		},
	},
	"log.max_size_mb": {
		Comment: "Rotate the log file at this size.",
	},

	// ── Update ───────────────────────────────────────────────────
	"update.manifest_url": {
		Comment: "Release manifest checked at startup; a newer version is logged.\nEmpty disables the check.",
		Alternatives: []string{
			`manifest_url = "https://example.com/cord/.release-manifest.json"`,
		},
	},
}
