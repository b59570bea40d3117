package schema

import "embed"

//go:embed tagsets/*.yml
var builtinTagsetFS embed.FS
