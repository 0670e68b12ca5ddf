package kindred

import (
	"embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// schemaBase gives the embedded documents absolute ids so no loader is consulted.
const schemaBase = "https://ski-homes.local/schemas/"

const (
	schemaStartLogin  = "start_login.json"
	schemaFinishLogin = "finish_login.json"
	schemaRefresh     = "refresh_token.json"
	schemaMe          = "me.json"
	schemaExploreList = "explore_list.json"
)

// compileSchemas compiles every embedded response schema, keyed by file name.
func compileSchemas() (map[string]*jsonschema.Schema, error) {
	names := []string{schemaStartLogin, schemaFinishLogin, schemaRefresh, schemaMe, schemaExploreList}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	for _, n := range names {
		f, err := schemaFS.Open("schemas/" + n)
		if err != nil {
			return nil, err
		}
		err = c.AddResource(schemaBase+n, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("add schema %s: %w", n, err)
		}
	}
	out := make(map[string]*jsonschema.Schema, len(names))
	for _, n := range names {
		s, err := c.Compile(schemaBase + n)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", n, err)
		}
		out[n] = s
	}
	return out, nil
}
