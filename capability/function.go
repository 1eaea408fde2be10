package capability

import (
	"context"

	"github.com/hupe1980/agentkernel/internal/util"
)

// ValidationError reports arguments that do not match a capability schema.
type ValidationError = util.ValidationError

// FunctionCapability exposes a plain Go function as a capability.
//
// Arguments are checked against the declared schema before the function runs
// (required fields and primitive types, see util.ValidateParameters). A
// mismatch returns *ValidationError without invoking the function. Errors from
// the function itself are returned unchanged.
//
// A FunctionCapability holds no mutable state and is safe for concurrent use.
type FunctionCapability struct {
	name        string
	description string
	schema      map[string]any
	fn          func(ctx context.Context, args map[string]any) (any, error)
}

// NewFunction constructs a FunctionCapability from an explicit schema.
//
// Example:
//
//	sum := capability.NewFunction(
//	  "sum",
//	  "Add two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(ctx context.Context, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunction(
	name, description string,
	schema map[string]any,
	fn func(ctx context.Context, args map[string]any) (any, error),
) *FunctionCapability {
	if schema == nil {
		schema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return &FunctionCapability{name: name, description: description, schema: schema, fn: fn}
}

// NewFunctionFromStruct derives the schema from a struct using reflection.
//
//	type SumArgs struct {
//	  A float64 `json:"a" description:"First addend"`
//	  B float64 `json:"b" description:"Second addend"`
//	}
func NewFunctionFromStruct(
	name, description string,
	structType any,
	fn func(ctx context.Context, args map[string]any) (any, error),
) *FunctionCapability {
	return NewFunction(name, description, util.CreateSchema(structType), fn)
}

// Name returns the capability name.
func (f *FunctionCapability) Name() string { return f.name }

// Description returns the human readable description.
func (f *FunctionCapability) Description() string { return f.description }

// InputSchema returns the JSON schema for arguments.
func (f *FunctionCapability) InputSchema() map[string]any { return f.schema }

// Execute validates args then runs the function.
func (f *FunctionCapability) Execute(ctx context.Context, args map[string]any) (any, error) {
	if err := util.ValidateParameters(args, f.schema); err != nil {
		return nil, err
	}
	return f.fn(ctx, args)
}
