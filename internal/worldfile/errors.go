package worldfile

import "errors"

// Decode failures are terminal: the first error aborts the decode and no
// partially filled World is returned. Errors are wrapped with the stage
// or section name they surfaced in.
var (
	ErrTooNew           = errors.New("unsupported world version: too new")
	ErrTooOld           = errors.New("unsupported world version: too old")
	ErrBadMagic         = errors.New("not a relogic file")
	ErrBadFileType      = errors.New("wrong relogic file type")
	ErrBadSectionOffset = errors.New("section offset out of bounds")
	ErrCorrupt          = errors.New("corrupt world data")
)

const (
	// Magic is the tag leading every file written since version 135.
	Magic = "relogic"

	FileTypeMap    = 1
	FileTypeWorld  = 2
	FileTypePlayer = 3
)

// Supported world file versions.
const (
	MinVersion = 77
	MaxVersion = 279
)
