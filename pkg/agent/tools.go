package agent

import (
	"context"
	"strings"

	"github.com/kadirpekel/mamba/pkg/tools"
)

// Agent-specific tools. These are placeholders wired for future backends;
// their payloads say so explicitly rather than fabricating data.

type searchNotesArgs struct {
	Query string `json:"query" jsonschema:"required,description=Search query string"`
}

func newSearchNotesTool() (tools.Tool, error) {
	return tools.NewFunc("search_notes",
		"Search through notes and documents for relevant content.",
		func(ctx context.Context, args searchNotesArgs) (map[string]interface{}, error) {
			return map[string]interface{}{
				"query":   args.Query,
				"results": []interface{}{},
				"message": "Search functionality not yet connected",
			}, nil
		})
}

type analyzeComplexityArgs struct {
	Code     string `json:"code" jsonschema:"required,description=Source code to analyze"`
	Language string `json:"language" jsonschema:"required,description=Programming language"`
}

func newComplexityTool() (tools.Tool, error) {
	return tools.NewFunc("analyze_complexity",
		"Analyze code complexity metrics for a snippet of source code.",
		func(ctx context.Context, args analyzeComplexityArgs) (map[string]interface{}, error) {
			lines := 0
			if args.Code != "" {
				lines = len(strings.Split(strings.TrimRight(args.Code, "\n"), "\n"))
			}
			return map[string]interface{}{
				"language": args.Language,
				"lines":    lines,
				"analysis": "Complexity analysis not yet connected",
			}, nil
		})
}

type currentContextArgs struct {
	Topic string `json:"topic" jsonschema:"required,description=Topic to get context for"`
}

func newContextTool() (tools.Tool, error) {
	return tools.NewFunc("get_current_context",
		"Get additional context about a topic.",
		func(ctx context.Context, args currentContextArgs) (map[string]interface{}, error) {
			return map[string]interface{}{
				"topic":   args.Topic,
				"context": []interface{}{},
				"message": "Context service not yet connected",
			}, nil
		})
}
