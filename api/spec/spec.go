// Package spec embeds the public OpenAPI document for the Meridian API.
package spec

import _ "embed"

//go:embed openapi.yaml
var OpenAPI []byte
