package web

import "embed"

// TemplatesFS holds layout.html and the page templates rendered inside it.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the small script that wires htmx events.
//
//go:embed static/*
var StaticFS embed.FS
