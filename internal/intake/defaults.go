package intake

import "github.com/intake-gateway/intake-gateway/internal/config"

// Defaults are the values applied to absent or blank submission fields.
type Defaults struct {
	TaskID         string
	CommandedBy    string
	ExecutedBy     string
	TaskActionType string
	FileActionType string
	TaskStatus     string
	FileStatus     string
	Filename       string
	ContentType    string
}

// builtinDefaults match the values the gateway has always logged.
var builtinDefaults = Defaults{
	TaskID:         "AUTO",
	CommandedBy:    "Costa",
	ExecutedBy:     "Pepi",
	TaskActionType: "Task",
	FileActionType: "Content",
	TaskStatus:     "success",
	FileStatus:     "uploaded",
	Filename:       "upload.bin",
	ContentType:    "application/octet-stream",
}

// NewDefaults takes configured values, falling back to the built-in ones for any left empty.
func NewDefaults(cfg *config.DefaultsConfig) Defaults {
	d := builtinDefaults
	if cfg == nil {
		return d
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&d.TaskID, cfg.TaskID)
	set(&d.CommandedBy, cfg.CommandedBy)
	set(&d.ExecutedBy, cfg.ExecutedBy)
	set(&d.TaskActionType, cfg.TaskActionType)
	set(&d.FileActionType, cfg.FileActionType)
	set(&d.TaskStatus, cfg.TaskStatus)
	set(&d.FileStatus, cfg.FileStatus)
	set(&d.Filename, cfg.Filename)
	set(&d.ContentType, cfg.ContentType)
	return d
}
