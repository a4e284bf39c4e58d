// Package web holds the dashboard's templates and static assets, embedded
// into the server binary.
package web

import "embed"

// TemplatesFS embeds HTML templates for server-side rendering.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds the stylesheet and the script that loads advice and
// category suggestions.
//
//go:embed static/*
var StaticFS embed.FS
