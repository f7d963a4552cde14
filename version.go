package deployd

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var rawVersion string

// Version is the released version of deployd.
var Version = strings.TrimSpace(rawVersion)
