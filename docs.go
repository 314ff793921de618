package main

import _ "embed"

// openapiYAML is served at /api/openapi.yaml and backs the swagger UI.
//
//go:embed openapi.yaml
var openapiYAML []byte
