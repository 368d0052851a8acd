// Package web holds the dashboard page, its HTMX partials and the browser
// assets, compiled into the binary.
package web

import "embed"

// TemplatesFS holds index.html and the summary partial it embeds.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds app.js (Chart.js wiring) and style.css, served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
