package config

import "embed"

const limitsSchemaFile = "schema/limits.schema.json"

//go:embed schema/*.json
var configSchemaFS embed.FS
