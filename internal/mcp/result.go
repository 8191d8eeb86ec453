package mcp

import (
	"encoding/json"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// TextResult creates a CallToolResult with text content.
func TextResult(text string) *sdk.CallToolResult {
	return &sdk.CallToolResult{
		Content: []sdk.Content{
			&sdk.TextContent{Text: text},
		},
	}
}

// ErrorResult creates a CallToolResult marking a tool-execution failure.
// Execution failures ride inside successful protocol responses so the agent,
// not the transport, interprets them.
func ErrorResult(message string) *sdk.CallToolResult {
	return &sdk.CallToolResult{
		Content: []sdk.Content{
			&sdk.TextContent{Text: message},
		},
		IsError: true,
	}
}

// PayloadResult wraps an arbitrary payload as text content. Strings pass
// through verbatim; everything else is rendered as JSON.
func PayloadResult(payload any) *sdk.CallToolResult {
	if s, ok := payload.(string); ok {
		return TextResult(s)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return TextResult(fmt.Sprintf("%v", payload))
	}

	return TextResult(string(data))
}

// ResultToMap flattens a CallToolResult into the tools/call wire payload:
// {content: [...], isError?}.
func ResultToMap(result *sdk.CallToolResult) map[string]any {
	if result == nil {
		return map[string]any{
			"content": []map[string]any{},
		}
	}

	content := make([]map[string]any, 0, len(result.Content))
	for _, c := range result.Content {
		switch v := c.(type) {
		case *sdk.TextContent:
			content = append(content, map[string]any{
				"type": "text",
				"text": v.Text,
			})
		case *sdk.ImageContent:
			content = append(content, map[string]any{
				"type":     "image",
				"data":     v.Data,
				"mimeType": v.MIMEType,
			})
		case *sdk.AudioContent:
			content = append(content, map[string]any{
				"type":     "audio",
				"data":     v.Data,
				"mimeType": v.MIMEType,
			})
		case *sdk.ResourceLink:
			content = append(content, map[string]any{
				"type": "resource_link",
				"uri":  v.URI,
				"name": v.Name,
			})
		case *sdk.EmbeddedResource:
			if v.Resource != nil {
				content = append(content, map[string]any{
					"type": "resource",
					"resource": map[string]any{
						"uri":      v.Resource.URI,
						"mimeType": v.Resource.MIMEType,
						"text":     v.Resource.Text,
					},
				})
			}
		}
	}

	resultMap := map[string]any{
		"content": content,
	}

	if result.IsError {
		resultMap["isError"] = true
	}

	return resultMap
}

// ErrorResultMap is shorthand for ResultToMap(ErrorResult(message)).
func ErrorResultMap(message string) map[string]any {
	return ResultToMap(ErrorResult(message))
}
