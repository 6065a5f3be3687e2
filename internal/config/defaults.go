package config

const (
	defaultConfigPath       = "~/.config/uploadr/config.toml"
	defaultStateDir         = "~/.local/share/uploadr"
	defaultTokenDir         = "~/.config/uploadr"
	defaultRestURL          = "https://api.flickr.com/services/rest/"
	defaultUploadURL        = "https://up.flickr.com/services/upload/"
	defaultAuthURL          = "https://api.flickr.com/services/auth/"
	defaultPerms            = "delete"
	defaultRequestTimeout   = 0
	defaultTags             = "auto-upload"
	defaultAdminMarker      = "@"
	defaultProcessedPrefix  = "_f-"
	defaultAlbumSeparator   = "-"
	defaultMaxFileSize      = 50000000
	defaultSleepSeconds     = 60
	defaultDripSeconds      = 60
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
	defaultNotifyTimeout    = 10
)

var (
	defaultAllowedExtensions = []string{"jpg", "png"}
	defaultExcludedFragments = []string{
		"@eaDir",
		"#recycle",
		".picasaoriginals",
		"_ExcludeSync",
		"Corel Auto-Preserve",
		"Originals",
		"Automatisch beibehalten von Corel",
	}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			TokenDir: defaultTokenDir,
		},
		Flickr: Flickr{
			RestURL:        defaultRestURL,
			UploadURL:      defaultUploadURL,
			AuthURL:        defaultAuthURL,
			Perms:          defaultPerms,
			RequestTimeout: defaultRequestTimeout,
		},
		Scan: Scan{
			AllowedExtensions: append([]string(nil), defaultAllowedExtensions...),
			ExcludedFragments: append([]string(nil), defaultExcludedFragments...),
			AdminMarker:       defaultAdminMarker,
			ProcessedPrefix:   defaultProcessedPrefix,
			AlbumSeparator:    defaultAlbumSeparator,
			MaxFileSize:       defaultMaxFileSize,
		},
		Upload: Upload{
			Tags: defaultTags,
		},
		Schedule: Schedule{
			SleepSeconds: defaultSleepSeconds,
			DripSeconds:  defaultDripSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
	}
}
