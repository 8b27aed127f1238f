package web

import "embed"

// TemplatesFS holds the dashboard page templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and selector script.
//
//go:embed static/*
var StaticFS embed.FS
