package mcp

// ToolDefinitions returns the MCP tool definitions for the recall service.
func ToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name: "recall_memories",
			Description: "Recall trading notes relevant to a query. Combines keyword and " +
				"semantic search over the note store and returns scored entries as JSON. " +
				"Use format_context instead when you want a ready-to-paste prompt block.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"query":     {Type: "string", Description: "Natural language query, e.g. 'momentum entries on NVDA'"},
					"workspace": {Type: "string", Description: "Workspace the notes live in, e.g. 'equities'"},
					"limit": {Type: "number", Description: "Maximum entries to return (default 10, max 100)",
						Default: 10},
					"minImportance": {Type: "number", Description: "Drop entries below this importance 0.0-1.0 (default 0.3)",
						Default: 0.3},
					"categories": {Type: "array", Description: "Restrict to these note categories",
						Items: &Items{Type: "string"}},
					"symbols": {Type: "array", Description: "Restrict to notes tagged with any of these ticker symbols",
						Items: &Items{Type: "string"}},
					"expandQuery": {Type: "boolean", Description: "Also search ticker and keyword variants of the query",
						Default: false},
				},
				Required: []string{"query", "workspace"},
			},
		},
		{
			Name: "format_context",
			Description: "Recall trading notes and render them as a markdown context block, " +
				"grouped by importance tier. Accepts the same arguments as recall_memories " +
				"but returns plain text meant to be inserted into a prompt.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"query":     {Type: "string", Description: "Natural language query"},
					"workspace": {Type: "string", Description: "Workspace the notes live in"},
					"limit": {Type: "number", Description: "Maximum entries to include (default 10)",
						Default: 10},
					"minImportance": {Type: "number", Description: "Drop entries below this importance 0.0-1.0 (default 0.3)",
						Default: 0.3},
					"symbols": {Type: "array", Description: "Restrict to notes tagged with any of these ticker symbols",
						Items: &Items{Type: "string"}},
				},
				Required: []string{"query", "workspace"},
			},
		},
		{
			Name: "warm_cache",
			Description: "Pre-run the standing warm queries for a workspace so follow-up " +
				"recalls hit the cache. Fire this at session start; it returns immediately " +
				"while warming continues in the background.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"workspace": {Type: "string", Description: "Workspace to warm"},
				},
				Required: []string{"workspace"},
			},
		},
		{
			Name:        "cache_stats",
			Description: "Report how many recall results are currently cached.",
			InputSchema: InputSchema{
				Type: "object",
			},
		},
	}
}
