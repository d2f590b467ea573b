package meetassistant

import "embed"

// TemplateFS contains the embedded HTML templates of the panel host. These templates are organized in a
// directory structure that separates layouts, pages, and partial views.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS contains the embedded static assets (the SSE glue script and the stylesheet) of the panel host.
//
//go:embed static/*
var StaticFS embed.FS
