package web

import "embed"

//go:embed assets/templates/*.html assets/static
var assets embed.FS
