package tickler

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var rawVersion string

// Version is the release version of tickler.
var Version = strings.TrimSpace(rawVersion)
