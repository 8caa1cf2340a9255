package entity

import "github.com/joseph-ayodele/notetasks/constants"

// Image is decoded image input handed to a backend.
type Image struct {
	Data     []byte
	Format   string // "jpeg" | "png" | ...
	MIMEType string
	Width    int
	Height   int
}

// ExtractionResult is the transient output of one extraction call.
type ExtractionResult struct {
	Tasks   []Task
	Width   int
	Height  int
	Backend constants.BackendKind
	Raw     string // raw backend output, for diagnostics
}
