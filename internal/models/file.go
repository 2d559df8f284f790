package models

import "time"

// FileMeta describes a saved project file in the project directory.
type FileMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updatedAt"`
}
