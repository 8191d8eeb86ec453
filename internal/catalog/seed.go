package catalog

import (
	"fmt"
	"os"

	"github.com/russellballestrini/tpmjs-sub004/internal/errors"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML shape of a catalog seed.
type seedFile struct {
	Collections []seedCollection `yaml:"collections"`
}

type seedCollection struct {
	ID          string           `yaml:"id,omitempty"`
	Name        string           `yaml:"name"`
	OwnerUserID string           `yaml:"owner_user_id"`
	Executor    ExecutorConfig   `yaml:"executor,omitempty"`
	Tools       []seedTool       `yaml:"tools,omitempty"`
	BridgeTools []seedBridgeTool `yaml:"bridge_tools,omitempty"`
}

type seedTool struct {
	Package     string `yaml:"package"`
	Tool        string `yaml:"tool"`
	Description string `yaml:"description,omitempty"`

	// Params is the shorthand schema form: property name to Go type.
	// InputSchema, when present, wins.
	Params      map[string]string `yaml:"params,omitempty"`
	InputSchema map[string]any    `yaml:"input_schema,omitempty"`
}

type seedBridgeTool struct {
	Server      string         `yaml:"server"`
	Tool        string         `yaml:"tool"`
	Description string         `yaml:"description,omitempty"`
	InputSchema map[string]any `yaml:"input_schema,omitempty"`
}

// Load reads a YAML seed file and returns a populated in-memory catalog.
func Load(path string) (*Memory, error) {
	// #nosec G304 -- path comes from an explicit server flag.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errors.SeedError{Path: path, Err: err}
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &errors.SeedError{Path: path, Err: err}
	}

	mem, err := fromSeed(&file)
	if err != nil {
		return nil, &errors.SeedError{Path: path, Err: err}
	}

	return mem, nil
}

func fromSeed(file *seedFile) (*Memory, error) {
	mem := NewMemory()

	for _, sc := range file.Collections {
		id := mem.AddCollection(Collection{
			ID:          sc.ID,
			Name:        sc.Name,
			OwnerUserID: sc.OwnerUserID,
			Executor:    sc.Executor,
		})

		for _, st := range sc.Tools {
			if st.Package == "" || st.Tool == "" {
				return nil, fmt.Errorf("collection %q: tool entries need both package and tool", sc.Name)
			}

			schema := st.InputSchema
			if schema == nil && len(st.Params) > 0 {
				schema = SchemaMap(SimpleSchema(st.Params))
			}

			if err := mem.AddTool(id, Tool{
				PackageName: st.Package,
				ToolName:    st.Tool,
				Description: st.Description,
				InputSchema: schema,
			}); err != nil {
				return nil, err
			}
		}

		for _, sb := range sc.BridgeTools {
			if sb.Server == "" || sb.Tool == "" {
				return nil, fmt.Errorf("collection %q: bridge tool entries need both server and tool", sc.Name)
			}

			if err := mem.AddBridgeTool(id, BridgeTool{
				ServerID:    sb.Server,
				ToolName:    sb.Tool,
				Description: sb.Description,
				InputSchema: sb.InputSchema,
			}); err != nil {
				return nil, err
			}
		}
	}

	return mem, nil
}
