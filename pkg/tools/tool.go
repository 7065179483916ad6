// Package tools implements the display-tool registry. Display tools do not
// execute effects: their handler validates the model-supplied arguments and
// echoes them back as the result, so the client receives a structured
// rendering intent.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool is a callable capability advertised to the model.
type Tool interface {
	// Name returns the unique tool name.
	Name() string

	// Description tells the model when to use this tool.
	Description() string

	// Schema returns the JSON Schema of the tool's arguments.
	Schema() map[string]interface{}

	// Call executes the tool with parsed arguments and returns the result
	// payload.
	Call(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error)
}

// Handler is the typed execution function behind a function tool.
type Handler[T any] func(ctx context.Context, args T) (map[string]interface{}, error)

// funcTool adapts a typed handler into a Tool, deriving the argument schema
// from the struct tags of T.
type funcTool[T any] struct {
	name        string
	description string
	schema      map[string]interface{}
	handler     Handler[T]
}

// NewFunc creates a Tool from a typed handler function.
func NewFunc[T any](name, description string, handler Handler[T]) (Tool, error) {
	if name == "" {
		return nil, fmt.Errorf("tool name is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("tool %s has no handler", name)
	}

	schema, err := GenerateSchema[T]()
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema for %s: %w", name, err)
	}

	return &funcTool[T]{
		name:        name,
		description: description,
		schema:      schema,
		handler:     handler,
	}, nil
}

func (t *funcTool[T]) Name() string                   { return t.name }
func (t *funcTool[T]) Description() string            { return t.description }
func (t *funcTool[T]) Schema() map[string]interface{} { return t.schema }

func (t *funcTool[T]) Call(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	typed, err := validateArgs[T](t.name, args)
	if err != nil {
		return nil, err
	}
	return t.handler(ctx, typed)
}

// displayTool validates arguments against T and echoes the raw argument
// object as its result. Echoing the original object (not the decoded
// struct) keeps the result byte-equal to the finalized arguments.
type displayTool[T any] struct {
	name        string
	description string
	schema      map[string]interface{}
}

func newDisplayTool[T any](name, description string) (Tool, error) {
	schema, err := GenerateSchema[T]()
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema for %s: %w", name, err)
	}
	return &displayTool[T]{name: name, description: description, schema: schema}, nil
}

func (t *displayTool[T]) Name() string                   { return t.name }
func (t *displayTool[T]) Description() string            { return t.description }
func (t *displayTool[T]) Schema() map[string]interface{} { return t.schema }

func (t *displayTool[T]) Call(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	if _, err := validateArgs[T](t.name, args); err != nil {
		return nil, err
	}
	return args, nil
}

// validateArgs decodes the raw argument object into T and runs T's Validate
// method when it has one.
func validateArgs[T any](name string, args map[string]interface{}) (T, error) {
	var typed T

	data, err := json.Marshal(args)
	if err != nil {
		return typed, fmt.Errorf("invalid %s arguments: %w", name, err)
	}
	if err := json.Unmarshal(data, &typed); err != nil {
		return typed, fmt.Errorf("invalid %s arguments: %w", name, err)
	}

	if v, ok := any(&typed).(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return typed, fmt.Errorf("invalid %s arguments: %w", name, err)
		}
	}

	return typed, nil
}
