//go:build ignore

package main

import (
	"log"

	"entgo.io/ent/entc"
	"entgo.io/ent/entc/gen"
)

// Generates the typed ent client for db/ent/schema: go run db/ent/generate.go
func main() {
	err := entc.Generate(
		"./db/ent/schema",
		&gen.Config{
			Target:   "gen/ent",
			Package:  "github.com/joseph-ayodele/notetasks/gen/ent",
			Features: []gen.Feature{gen.FeatureExecQuery, gen.FeatureUpsert},
		},
	)
	if err != nil {
		log.Fatal(err)
	}
}
